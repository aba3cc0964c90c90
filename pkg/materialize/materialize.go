// Package materialize turns whatever an image backend returned into a JPEG
// file in the scratch directory.
package materialize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"strings"
	"time"

	"github.com/harun/tinies/pkg/scratch"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shouni/go-http-kit/pkg/httpkit"
	_ "golang.org/x/image/webp"
)

const (
	// DefaultQuality is the JPEG quality used when none is configured
	DefaultQuality = 90
	// DefaultMaxDownloadBytes caps the size of a downloaded result
	DefaultMaxDownloadBytes = 20 << 20
)

// Config controls output quality and downloads
type Config struct {
	Quality              int
	MaxDownloadBytes     int64
	BlockPrivateNetworks bool
	Timeout              time.Duration
	// Fetcher overrides the download client; the network guard is then
	// the caller's responsibility
	Fetcher Fetcher
}

// Fetcher downloads the body of a URL. *httpkit.Client satisfies it.
type Fetcher interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// Materializer writes generation results into a scratch directory
type Materializer struct {
	dir      *scratch.Dir
	quality  int
	maxBytes int64
	fetcher  Fetcher
	logger   zerolog.Logger
}

// New creates a materializer writing into dir
func New(dir *scratch.Dir, cfg Config) *Materializer {
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = DefaultQuality
	}
	if cfg.MaxDownloadBytes <= 0 {
		cfg.MaxDownloadBytes = DefaultMaxDownloadBytes
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	fetcher := cfg.Fetcher
	if fetcher == nil {
		fetcher = httpkit.New(cfg.Timeout,
			httpkit.WithMaxRetries(0),
			httpkit.WithSkipNetworkValidation(!cfg.BlockPrivateNetworks),
		)
	}

	return &Materializer{
		dir:      dir,
		quality:  cfg.Quality,
		maxBytes: cfg.MaxDownloadBytes,
		fetcher:  fetcher,
		logger:   log.With().Str("component", "materialize").Logger(),
	}
}

// Materialize converts result into an RGB JPEG file and returns its path.
// result may be a local file path, an http(s) URL, an image.Image or encoded
// image bytes.
func (m *Materializer) Materialize(ctx context.Context, result any) (string, error) {
	img, err := m.load(ctx, result)
	if err != nil {
		return "", err
	}

	path := m.dir.NewImagePath()
	if err := m.write(path, img); err != nil {
		return "", err
	}

	m.logger.Debug().
		Str("path", path).
		Str("source", describe(result)).
		Msg("Result materialized")

	return path, nil
}

func (m *Materializer) load(ctx context.Context, result any) (image.Image, error) {
	switch v := result.(type) {
	case nil:
		return nil, &UnexpectedResultFormatError{Type: "nil"}
	case image.Image:
		return v, nil
	case []byte:
		return decode(v, "bytes")
	case string:
		if isURL(v) {
			data, err := m.download(ctx, v)
			if err != nil {
				return nil, err
			}
			return decode(data, "url")
		}
		if info, err := os.Stat(v); err == nil && info.Mode().IsRegular() {
			data, err := os.ReadFile(v)
			if err != nil {
				return nil, &UnexpectedResultFormatError{Type: "string", Value: v, Err: err}
			}
			return decode(data, "string")
		}
		return nil, &UnexpectedResultFormatError{Type: "string", Value: v}
	default:
		return nil, &UnexpectedResultFormatError{Type: fmt.Sprintf("%T", result)}
	}
}

func (m *Materializer) download(ctx context.Context, url string) ([]byte, error) {
	data, err := m.fetcher.FetchBytes(ctx, url)
	if err != nil {
		return nil, &DownloadError{URL: url, Err: err}
	}
	if int64(len(data)) > m.maxBytes {
		return nil, &DownloadError{
			URL: url,
			Err: fmt.Errorf("image exceeds %d bytes", m.maxBytes),
		}
	}
	return data, nil
}

// write encodes img to path, removing the file if anything fails
func (m *Materializer) write(path string, img image.Image) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	defer func() {
		if err != nil {
			if rmErr := m.dir.Remove(path); rmErr != nil {
				m.logger.Warn().Err(rmErr).Str("path", path).Msg("Failed to remove partial file")
			}
		}
	}()

	if err = jpeg.Encode(f, ToRGB(img), &jpeg.Options{Quality: m.quality}); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode jpeg: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

// ToRGB returns an opaque copy of img. Alpha is dropped and the
// non-premultiplied colour kept.
func ToRGB(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			out.SetRGBA(x, y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
		}
	}
	return out
}

func decode(data []byte, typ string) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			err = fmt.Errorf("unsupported image data: %w", err)
		}
		return nil, &UnexpectedResultFormatError{Type: typ, Err: err}
	}
	return img, nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func describe(result any) string {
	switch v := result.(type) {
	case string:
		if isURL(v) {
			return "url"
		}
		return "path"
	case []byte:
		return "bytes"
	default:
		return fmt.Sprintf("%T", result)
	}
}
