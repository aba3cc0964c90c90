package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/packages/ssestream"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/tidwall/gjson"
)

const (
	DefaultSpace     = "fujohnwang/alvdansen-littletinies"
	DefaultAPIName   = "/predict"
	DefaultAPIPrefix = "/gradio_api"
)

// GradioConfig addresses a hosted Gradio app
type GradioConfig struct {
	// Space is a Hugging Face Space id (owner/name); ignored when BaseURL is set
	Space   string
	BaseURL string
	APIName string
	// APIPrefix defaults to DefaultAPIPrefix; "/" means no prefix
	APIPrefix string
	Token     string
	Timeout   time.Duration
	// HTTPClient overrides the client used for the result stream
	HTTPClient *http.Client
}

// GradioBackend calls a Gradio app over its HTTP queue API: the prompt is
// posted to /call/<api> and the result is read from an SSE stream.
type GradioBackend struct {
	baseURL string
	apiName string
	token   string
	api     httpkit.ClientInterface
	client  *http.Client
	logger  zerolog.Logger
}

// NewGradioBackend creates a Gradio backend
func NewGradioBackend(cfg GradioConfig) (*GradioBackend, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		if cfg.Space == "" {
			cfg.Space = DefaultSpace
		}
		u, err := SpaceURL(cfg.Space)
		if err != nil {
			return nil, err
		}
		base = u
	}

	prefix := cfg.APIPrefix
	if prefix == "" {
		prefix = DefaultAPIPrefix
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}

	apiName := strings.Trim(cfg.APIName, "/")
	if apiName == "" {
		apiName = strings.Trim(DefaultAPIName, "/")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	// the endpoint comes from config, not from a result
	api := httpkit.New(timeout,
		httpkit.WithMaxRetries(0),
		httpkit.WithSkipNetworkValidation(true),
	)

	return &GradioBackend{
		baseURL: base + strings.TrimRight(prefix, "/"),
		apiName: apiName,
		token:   cfg.Token,
		api:     api,
		client:  client,
		logger:  log.With().Str("component", "gradio").Logger(),
	}, nil
}

// SpaceURL returns the direct URL of a Hugging Face Space
func SpaceURL(space string) (string, error) {
	owner, name, ok := strings.Cut(space, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", fmt.Errorf("invalid space id %q, expected owner/name", space)
	}
	host := strings.NewReplacer("_", "-", ".", "-").Replace(strings.ToLower(owner + "-" + name))
	return "https://" + host + ".hf.space", nil
}

// Name returns "gradio"
func (g *GradioBackend) Name() string {
	return "gradio"
}

// Generate submits prompt and waits for the completed event
func (g *GradioBackend) Generate(ctx context.Context, prompt string) (any, error) {
	eventID, err := g.submit(ctx, prompt)
	if err != nil {
		return nil, err
	}

	g.logger.Debug().Str("event_id", eventID).Msg("Prediction queued")

	return g.await(ctx, eventID)
}

func (g *GradioBackend) submit(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(map[string]any{"data": []any{prompt}})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.callURL(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	g.authorize(req)

	data, err := g.api.DoRequest(req)
	if err != nil {
		return "", fmt.Errorf("failed to submit prediction: %w", err)
	}

	eventID := gjson.GetBytes(data, "event_id").String()
	if eventID == "" {
		return "", fmt.Errorf("submit response has no event_id: %s", snippet(data))
	}
	return eventID, nil
}

func (g *GradioBackend) await(ctx context.Context, eventID string) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.callURL()+"/"+eventID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	g.authorize(req)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to open result stream: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		resp.Body.Close()
		return nil, fmt.Errorf("result stream returned status %d: %s", resp.StatusCode, snippet(data))
	}

	stream := ssestream.NewDecoder(resp)
	defer stream.Close()

	for stream.Next() {
		ev := stream.Event()
		switch ev.Type {
		case "complete":
			return g.parseOutput(ev.Data)
		case "error":
			msg := strings.TrimSpace(string(ev.Data))
			if msg == "" || msg == "null" {
				msg = "no details"
			}
			return nil, fmt.Errorf("app reported an error: %s", msg)
		default:
			g.logger.Trace().Str("event", ev.Type).Msg("Stream event")
		}
	}

	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("result stream failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("result stream ended without a result")
}

// parseOutput returns the first output component. File outputs become
// their URL; anything else is passed through as decoded JSON.
func (g *GradioBackend) parseOutput(data []byte) (any, error) {
	out := gjson.ParseBytes(data)
	if !out.IsArray() || len(out.Array()) == 0 {
		return nil, fmt.Errorf("unexpected output payload: %s", snippet(data))
	}

	first := out.Array()[0]
	switch {
	case first.Type == gjson.String:
		return first.String(), nil
	case first.IsObject():
		if u := first.Get("url").String(); u != "" {
			return u, nil
		}
		if p := first.Get("path").String(); p != "" {
			return g.baseURL + "/file=" + p, nil
		}
	}
	return first.Value(), nil
}

func (g *GradioBackend) callURL() string {
	return g.baseURL + "/call/" + g.apiName
}

func (g *GradioBackend) authorize(req *http.Request) {
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}
}

func snippet(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
