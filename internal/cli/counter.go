package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/harun/tinies/pkg/counter"
)

var counterCmd = &cobra.Command{
	Use:   "counter",
	Short: "Inspect the visit counter",
}

var counterShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the persisted visit count",
	RunE:  runCounterShow,
}

var counterLocale string

func init() {
	counterShowCmd.Flags().StringVar(&counterLocale, "locale", "en", "locale used for digit grouping")
	counterCmd.AddCommand(counterShowCmd)
	rootCmd.AddCommand(counterCmd)
}

func runCounterShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	tag, err := language.Parse(counterLocale)
	if err != nil {
		return fmt.Errorf("invalid locale %q: %w", counterLocale, err)
	}

	store, err := counter.Open(cfg.Counter.Driver, cfg.Counter.Path, cfg.Counter.Name)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	if err := store.Initialize(ctx); err != nil {
		return err
	}

	formatted, err := counter.ReadFormatted(ctx, store, tag)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", cfg.Counter.Name, formatted)
	return nil
}
