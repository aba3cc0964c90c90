package translate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoogleTranslator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "gtx", q.Get("client"))
		assert.Equal(t, "auto", q.Get("sl"))
		assert.Equal(t, "en", q.Get("tl"))
		assert.Equal(t, "t", q.Get("dt"))
		assert.Equal(t, "ילד עם כובע. כלב.", q.Get("q"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[[["A boy with a hat. ","ילד עם כובע.",null,null,10],["Dog.","כלב.",null,null,10]],null,"iw",null,null,null,1,[],[["iw"],null,[1],["iw"]]]`))
	}))
	defer srv.Close()

	g := NewGoogleTranslator(srv.URL, 5*time.Second)
	out, err := g.Translate(context.Background(), "ילד עם כובע. כלב.", "", "en")

	require.NoError(t, err)
	assert.Equal(t, "A boy with a hat. Dog.", out)
	assert.Equal(t, "google", g.Name())
}

func TestGoogleTranslatorHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewGoogleTranslator(srv.URL, time.Second).Translate(context.Background(), "כלב", "auto", "en")
	require.Error(t, err)
}

func TestParseGoogleResponse(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{name: "single sentence", body: `[[["Hello","שלום",null,null,1]],null,"iw"]`, want: "Hello"},
		{name: "not json", body: `<html>`, wantErr: true},
		{name: "empty array", body: `[]`, wantErr: true},
		{name: "no text", body: `[[],null,"iw"]`, wantErr: true},
		{name: "null sentences", body: `[null,null,"iw"]`, wantErr: true},
		{name: "joins sentences", body: `[[["A cat. ","חתול.",null],["Red hat.","כובע אדום.",null]],null,"iw"]`, want: "A cat. Red hat."},
		{name: "skips non-string parts", body: `[[[null,"x"],["Sun","שמש"]],null,"iw"]`, want: "Sun"},
		{name: "object payload", body: `{"sentences":[]}`, wantErr: true},
		{name: "truncated", body: `[[["Hello"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseGoogleResponse([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
