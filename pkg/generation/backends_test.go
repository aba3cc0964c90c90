package generation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIBackendURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/images/generations"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a tiny fox", body["prompt"])
		assert.Equal(t, "dall-e-3", body["model"])
		assert.Equal(t, "1024x1024", body["size"])
		assert.Equal(t, "url", body["response_format"])

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"created": 1, "data": [{"url": "https://images.example/fox.png"}]}`)
	}))
	defer srv.Close()

	b, err := NewOpenAIBackend(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	out, err := b.Generate(context.Background(), "a tiny fox")
	require.NoError(t, err)
	assert.Equal(t, "https://images.example/fox.png", out)
}

func TestOpenAIBackendBase64(t *testing.T) {
	payload := []byte("\x89PNG fake")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, hasFormat := body["response_format"]
		assert.False(t, hasFormat)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"created": 1, "data": [{"b64_json": %q}]}`, base64.StdEncoding.EncodeToString(payload))
	}))
	defer srv.Close()

	b, err := NewOpenAIBackend(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Model: "gpt-image-1"})
	require.NoError(t, err)

	out, err := b.Generate(context.Background(), "a tiny fox")
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}

func TestOpenAIBackendEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"created": 1, "data": []}`)
	}))
	defer srv.Close()

	b, err := NewOpenAIBackend(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	_, err = b.Generate(context.Background(), "a tiny fox")
	assert.ErrorContains(t, err, "no images")
}

func TestOpenAIBackendRequiresKey(t *testing.T) {
	_, err := NewOpenAIBackend(OpenAIConfig{})
	assert.Error(t, err)
}

func TestGeminiBackend(t *testing.T) {
	payload := []byte("\x89PNG gemini")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/"+DefaultGeminiModel+":generateContent"), r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		cfg, _ := body["generationConfig"].(map[string]any)
		assert.Equal(t, []any{"TEXT", "IMAGE"}, cfg["responseModalities"])

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"candidates": [{"content": {"role": "model", "parts": [
			{"text": "Here is your fox"},
			{"inlineData": {"mimeType": "image/png", "data": %q}}
		]}}]}`, base64.StdEncoding.EncodeToString(payload))
	}))
	defer srv.Close()

	b, err := NewGeminiBackend(context.Background(), GeminiConfig{APIKey: "AIza-test", BaseURL: srv.URL})
	require.NoError(t, err)

	out, err := b.Generate(context.Background(), "a tiny fox")
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}

func TestGeminiBackendNoImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates": [{"content": {"role": "model", "parts": [{"text": "I cannot draw that"}]}}]}`)
	}))
	defer srv.Close()

	b, err := NewGeminiBackend(context.Background(), GeminiConfig{APIKey: "AIza-test", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = b.Generate(context.Background(), "a tiny fox")
	assert.ErrorContains(t, err, "no image")
}
