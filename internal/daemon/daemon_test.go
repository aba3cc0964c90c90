package daemon

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/tinies/internal/config"
	"github.com/harun/tinies/internal/logger"
)

// testConfig returns a config rooted in a temp dir with every remote
// service disabled or pointed at baseURL
func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.DataDir = dir
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = 2
	cfg.Counter.Driver = "memory"
	cfg.Counter.Path = filepath.Join(dir, "counter.db")
	cfg.Scratch.Dir = filepath.Join(dir, "temp_uploads")
	cfg.Content.Dir = filepath.Join(dir, "content")
	cfg.Content.Watch = false
	cfg.Translator.Provider = "none"
	cfg.Generation.Gradio.BaseURL = baseURL
	cfg.Telegram.Enabled = false
	cfg.RateLimit.Enabled = false
	return cfg
}

func createTestDaemon(t *testing.T, cfg *config.Config) *Daemon {
	t.Helper()

	d, err := New(cfg, logger.Nop())
	require.NoError(t, err)
	return d
}

// fakeSpace serves a Gradio app that answers every prompt with a PNG
func fakeSpace(t *testing.T) *httptest.Server {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("POST /gradio_api/call/predict", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"event_id":"ev1"}`)
	})
	mux.HandleFunc("GET /gradio_api/call/predict/ev1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "event: complete\ndata: [{\"path\": \"/tmp/out.png\", \"url\": %q}]\n\n", srv.URL+"/files/out.png")
	})
	mux.HandleFunc("GET /files/out.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(buf.Bytes())
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestNew(t *testing.T) {
	d := createTestDaemon(t, testConfig(t, "http://127.0.0.1:1"))
	defer d.abort()

	assert.NotNil(t, d.counter)
	assert.NotNil(t, d.scratch)
	assert.NotNil(t, d.content)
	assert.NotNil(t, d.sessions)
	assert.NotNil(t, d.orchestrator)
	assert.NotNil(t, d.server)
	assert.NotNil(t, d.cronService)
	assert.NotNil(t, d.eventLoop)
	assert.NotNil(t, d.lifecycle)
	assert.Nil(t, d.relay)
	assert.Nil(t, d.limiter)
	assert.Equal(t, "gradio", d.GetOrchestrator().Backend().Name())

	_, err := os.Stat(filepath.Join(d.config.Content.Dir, "header.md"))
	assert.NoError(t, err, "default content is seeded")
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.Generation.Backend = "dalle"

	_, err := New(cfg, logger.Nop())
	assert.ErrorContains(t, err, "invalid generation.backend")
}

func TestNewFailsWhenCounterCannotInitialize(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.Counter.Driver = "sqlite"
	// A directory where the database file should be
	require.NoError(t, os.MkdirAll(cfg.Counter.Path, 0o755))

	_, err := New(cfg, logger.Nop())
	assert.ErrorContains(t, err, "counter store")
}

func TestDaemonStartStop(t *testing.T) {
	d := createTestDaemon(t, testConfig(t, "http://127.0.0.1:1"))

	require.NoError(t, d.Start())

	status := d.Status()
	assert.True(t, status.Running)
	assert.NotEmpty(t, status.Addr)

	_, err := os.Stat(PIDFilePath(d.config.DataDir))
	assert.NoError(t, err)

	assert.Error(t, d.Start(), "second start fails")

	require.NoError(t, d.Stop())
	assert.False(t, d.Status().Running)

	_, err = os.Stat(PIDFilePath(d.config.DataDir))
	assert.True(t, os.IsNotExist(err))

	assert.Error(t, d.Stop(), "second stop fails")
}

func TestDaemonStatusBeforeStart(t *testing.T) {
	d := createTestDaemon(t, testConfig(t, ""))
	defer d.abort()

	status := d.Status()
	assert.False(t, status.Running)
	assert.Equal(t, time.Duration(0), status.Uptime)
}

func TestDaemonServesGeneration(t *testing.T) {
	space := fakeSpace(t)
	d := createTestDaemon(t, testConfig(t, space.URL))
	require.NoError(t, d.Start())
	defer d.Stop()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar, Timeout: 10 * time.Second}
	base := "http://" + d.Status().Addr

	resp, err := client.PostForm(base+"/generate", url.Values{"prompt": {"A cat wearing a hat"}})
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "data:image/jpeg;base64,")
	assert.Contains(t, string(body), `סה"כ משתמשים: 1`)

	entries, err := os.ReadDir(d.config.Scratch.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch file is cleaned up")

	audit, err := os.ReadFile(filepath.Join(d.config.DataDir, auditFile))
	require.NoError(t, err)
	assert.Contains(t, string(audit), `"action":"generate"`)
	assert.Contains(t, string(audit), `"status":"success"`)
}

func TestCounterPersistsAcrossRestarts(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.Counter.Driver = "sqlite"

	for i := 1; i <= 2; i++ {
		d := createTestDaemon(t, cfg)
		require.NoError(t, d.Start())

		resp, err := http.Get("http://" + d.Status().Addr + "/")
		require.NoError(t, err)
		resp.Body.Close()

		n, err := d.counter.Value(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(i), n)

		require.NoError(t, d.Stop())
	}
}

func TestHousekeepingJobs(t *testing.T) {
	d := createTestDaemon(t, testConfig(t, ""))
	defer d.abort()

	old := d.scratch.NewImagePath()
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o644))
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	n, err := d.cronService.RunJob("scratch-sweep")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	st, _ := d.sessions.GetOrCreate("")
	held := d.scratch.NewImagePath()
	require.NoError(t, os.WriteFile(held, []byte("x"), 0o644))
	st.SetImagePath(held)

	d.expireSession(st)
	_, err = os.Stat(held)
	assert.True(t, os.IsNotExist(err), "expired session releases its image")

	n, err = d.cronService.RunJob("session-expiry")
	require.NoError(t, err)
	assert.Equal(t, 0, n, "fresh sessions are kept")
}

func TestEventLoopRun(t *testing.T) {
	d := createTestDaemon(t, testConfig(t, ""))
	defer d.abort()

	loop := NewEventLoop(d)
	loop.interval = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("event loop did not stop in time")
	}
}

func TestNewNormalizerProviders(t *testing.T) {
	cfg := config.DefaultConfig().Translator

	n, err := newNormalizer(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	assert.NotNil(t, n)

	cfg.Provider = "llm"
	cfg.LLM.Provider = "anthropic"
	cfg.LLM.APIKey = "sk-ant-test"
	_, err = newNormalizer(context.Background(), cfg, logger.Nop())
	assert.NoError(t, err)

	cfg.Provider = "deepl"
	_, err = newNormalizer(context.Background(), cfg, logger.Nop())
	assert.Error(t, err)
}

func TestNewBackendKinds(t *testing.T) {
	cfg := config.DefaultConfig().Generation

	b, err := newBackend(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "gradio", b.Name())

	cfg.Backend = "openai"
	cfg.OpenAI.APIKey = "sk-test"
	b, err = newBackend(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "openai", b.Name())

	cfg.Backend = "openai"
	cfg.OpenAI.APIKey = ""
	_, err = newBackend(context.Background(), cfg)
	assert.Error(t, err)
}
