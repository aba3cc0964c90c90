// Package telegram relays generated images to a Telegram chat.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/harun/tinies/internal/logger"
	"github.com/harun/tinies/pkg/generation"
)

const (
	// MaxCaptionLength is Telegram's limit for media captions
	MaxCaptionLength = 1024

	defaultTimeout = 60 * time.Second
)

// ErrSessionClosed is returned when sending on a closed session
var ErrSessionClosed = errors.New("relay session is closed")

// Config holds what the relay needs to reach the chat
type Config struct {
	BotToken string
	ChatID   int64
	// APIEndpoint is a format string taking the token and method; empty
	// selects tgbotapi.APIEndpoint
	APIEndpoint string
	Timeout     time.Duration
}

// Relay opens a fresh bot session per delivery
type Relay struct {
	cfg    Config
	logger zerolog.Logger
}

// NewRelay creates a relay
func NewRelay(cfg Config, log *logger.Logger) (*Relay, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if cfg.ChatID == 0 {
		return nil, fmt.Errorf("chat id is required")
	}
	if cfg.APIEndpoint == "" {
		cfg.APIEndpoint = tgbotapi.APIEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Relay{
		cfg:    cfg,
		logger: log.Component("telegram"),
	}, nil
}

// Open authenticates a new bot session on its own transport
func (r *Relay) Open(ctx context.Context) (generation.RelaySession, error) {
	return r.open(ctx)
}

func (r *Relay) open(ctx context.Context) (*Session, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	client := &contextClient{
		client: &http.Client{Transport: transport, Timeout: r.cfg.Timeout},
		ctx:    ctx,
	}

	api, err := awaitResult(ctx, func() (*tgbotapi.BotAPI, error) {
		return tgbotapi.NewBotAPIWithClient(r.cfg.BotToken, r.cfg.APIEndpoint, client)
	})
	if err != nil {
		transport.CloseIdleConnections()
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	r.logger.Debug().
		Str("username", api.Self.UserName).
		Msg("Telegram session opened")

	return &Session{
		api:       api,
		chatID:    r.cfg.ChatID,
		client:    client,
		transport: transport,
		logger:    r.logger,
	}, nil
}

// Ping authenticates and returns the bot's username
func (r *Relay) Ping(ctx context.Context) (string, error) {
	s, err := r.open(ctx)
	if err != nil {
		return "", err
	}
	defer s.Close()
	return s.api.Self.UserName, nil
}

// Session is one authenticated bot connection. It must be closed.
type Session struct {
	api       *tgbotapi.BotAPI
	chatID    int64
	client    *contextClient
	transport *http.Transport
	logger    zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// SendDocument uploads the file at path with caption. The upload runs on a
// worker goroutine; a cancelled ctx abandons the wait.
func (s *Session) SendDocument(ctx context.Context, path, caption string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.mu.Unlock()

	doc := tgbotapi.NewDocument(s.chatID, tgbotapi.FilePath(path))
	doc.Caption = TruncateCaption(caption)

	s.client.setContext(ctx)
	msg, err := awaitResult(ctx, func() (tgbotapi.Message, error) {
		return s.api.Send(doc)
	})
	if err != nil {
		return fmt.Errorf("failed to upload document: %w", err)
	}

	s.logger.Info().
		Int64("chat_id", s.chatID).
		Int("message_id", msg.MessageID).
		Str("path", path).
		Msg("Document uploaded")

	return nil
}

// Close releases the session's connections. It is safe to call twice.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.transport.CloseIdleConnections()
	return nil
}

// TruncateCaption shortens caption to MaxCaptionLength characters
func TruncateCaption(caption string) string {
	runes := []rune(caption)
	if len(runes) <= MaxCaptionLength {
		return caption
	}
	return string(runes[:MaxCaptionLength-1]) + "…"
}

// awaitResult runs fn on a goroutine and waits for it or for ctx
func awaitResult[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()

	select {
	case res := <-done:
		return res.val, res.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// contextClient binds outgoing bot requests to the caller's context
type contextClient struct {
	client *http.Client

	mu  sync.Mutex
	ctx context.Context
}

func (c *contextClient) setContext(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ctx = ctx
}

// Do implements tgbotapi.HTTPClient
func (c *contextClient) Do(req *http.Request) (*http.Response, error) {
	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()
	if ctx != nil {
		req = req.WithContext(ctx)
	}
	return c.client.Do(req)
}
