package translate

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/tidwall/gjson"
)

// DefaultGoogleEndpoint is the public web translation endpoint
const DefaultGoogleEndpoint = "https://translate.googleapis.com/translate_a/single"

// GoogleTranslator calls the keyless Google web translation endpoint
type GoogleTranslator struct {
	endpoint string
	client   httpkit.ClientInterface
}

// NewGoogleTranslator creates a translator. An empty endpoint selects the
// public one.
func NewGoogleTranslator(endpoint string, timeout time.Duration) *GoogleTranslator {
	if endpoint == "" {
		endpoint = DefaultGoogleEndpoint
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &GoogleTranslator{
		endpoint: endpoint,
		client: httpkit.New(timeout,
			httpkit.WithMaxRetries(0),
			httpkit.WithSkipNetworkValidation(true),
		),
	}
}

// Name returns "google"
func (g *GoogleTranslator) Name() string {
	return "google"
}

// Translate sends text to the endpoint and joins the translated sentences
func (g *GoogleTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	if source == "" {
		source = "auto"
	}

	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", source)
	q.Set("tl", target)
	q.Set("dt", "t")
	q.Set("q", text)

	body, err := g.client.FetchBytes(ctx, g.endpoint+"?"+q.Encode())
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}

	return parseGoogleResponse(body)
}

// parseGoogleResponse extracts the translation from the positional array
// payload: [[["<translated>","<original>",...],...],null,"<source>",...]
func parseGoogleResponse(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("malformed translation response")
	}
	root := gjson.ParseBytes(body)
	if !root.IsArray() || len(root.Array()) == 0 {
		return "", fmt.Errorf("empty translation response")
	}

	var b strings.Builder
	for _, part := range root.Get("0.#.0").Array() {
		if part.Type == gjson.String {
			b.WriteString(part.Str)
		}
	}

	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", fmt.Errorf("translation response had no text")
	}
	return out, nil
}
