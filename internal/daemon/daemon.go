package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/harun/tinies/internal/config"
	"github.com/harun/tinies/internal/logger"
	"github.com/harun/tinies/internal/metrics"
	"github.com/harun/tinies/internal/observability"
	"github.com/harun/tinies/internal/telegram"
	"github.com/harun/tinies/internal/tracing"
	"github.com/harun/tinies/pkg/content"
	"github.com/harun/tinies/pkg/counter"
	"github.com/harun/tinies/pkg/cron"
	"github.com/harun/tinies/pkg/generation"
	"github.com/harun/tinies/pkg/materialize"
	"github.com/harun/tinies/pkg/scratch"
	"github.com/harun/tinies/pkg/session"
	"github.com/harun/tinies/pkg/web"
)

const auditFile = "audit.log"

// Daemon represents the tinies service
type Daemon struct {
	config  *config.Config
	logger  *logger.Logger
	metrics *metrics.Metrics

	// Core modules
	counter      counter.Store
	scratch      *scratch.Dir
	content      *content.Loader
	sessions     *session.Registry
	relay        *telegram.Relay
	orchestrator *generation.Orchestrator
	audit        *observability.AuditLogger

	// Services
	progress    *web.ProgressHub
	limiter     *web.RateLimiter
	server      *web.Server
	watcher     *content.Watcher
	cronService *cron.Service

	// Internal
	eventLoop *EventLoop
	lifecycle *LifecycleManager

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startTime time.Time
	running   bool
	mu        sync.RWMutex

	tracingEnabled bool
}

// New creates a new daemon instance. Failing to open or initialize the
// counter store is fatal.
func New(cfg *config.Config, log *logger.Logger) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		config:  cfg,
		logger:  log,
		metrics: metrics.NewMetrics(),
		ctx:     ctx,
		cancel:  cancel,
	}

	if cfg.Tracing.Enabled {
		if err := tracing.InitOpenTelemetry(cfg.Tracing.ServiceName, cfg.Tracing.SampleRatio); err != nil {
			log.Warn().Err(err).Msg("Failed to initialize tracing, continuing without distributed tracing")
		} else {
			d.tracingEnabled = true
			log.Info().Msg("Tracing initialized successfully")
		}
	}

	if err := d.initializeCoreModules(); err != nil {
		d.abort()
		return nil, fmt.Errorf("failed to initialize core modules: %w", err)
	}

	if err := d.initializeServices(); err != nil {
		d.abort()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	d.eventLoop = NewEventLoop(d)
	d.lifecycle = NewLifecycleManager(d)

	return d, nil
}

func (d *Daemon) abort() {
	d.cancel()
	if d.counter != nil {
		_ = d.counter.Close()
	}
	if d.limiter != nil {
		d.limiter.Stop()
	}
	if d.audit != nil {
		_ = d.audit.Close()
	}
	if d.tracingEnabled {
		_ = tracing.ShutdownOpenTelemetry(context.Background())
		d.tracingEnabled = false
	}
}

func (d *Daemon) initializeCoreModules() error {
	cfg := d.config

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	store, err := counter.Open(cfg.Counter.Driver, cfg.Counter.Path, cfg.Counter.Name)
	if err != nil {
		return fmt.Errorf("failed to open counter store: %w", err)
	}
	d.counter = store
	if err := store.Initialize(d.ctx); err != nil {
		return fmt.Errorf("failed to initialize counter store: %w", err)
	}
	if n, err := store.Value(d.ctx); err == nil {
		d.metrics.Visits.Set(float64(n))
	}
	d.logger.Info().
		Str("driver", cfg.Counter.Driver).
		Str("name", cfg.Counter.Name).
		Msg("Counter store initialized")

	d.scratch, err = scratch.New(cfg.Scratch.Dir)
	if err != nil {
		return err
	}

	created, err := content.Seed(cfg.Content.Dir)
	if err != nil {
		return fmt.Errorf("failed to seed content directory: %w", err)
	}
	if len(created) > 0 {
		d.logger.Info().Strs("files", created).Str("dir", cfg.Content.Dir).Msg("Seeded default content")
	}
	d.content = content.NewLoader(cfg.Content.Dir)
	d.content.Reload()

	d.sessions = session.NewRegistry(minutes(cfg.Session.IdleTimeout), d.expireSession)

	normalizer, err := newNormalizer(d.ctx, cfg.Translator, d.logger)
	if err != nil {
		return err
	}

	backend, err := newBackend(d.ctx, cfg.Generation)
	if err != nil {
		return err
	}

	materializer := materialize.New(d.scratch, materialize.Config{
		Quality:              cfg.Materializer.JPEGQuality,
		MaxDownloadBytes:     cfg.Materializer.MaxDownloadBytes,
		BlockPrivateNetworks: cfg.Materializer.BlockPrivateNetworks,
		Timeout:              seconds(cfg.Materializer.Timeout),
	})

	opts := generation.Options{
		Normalizer:        normalizer,
		Backend:           backend,
		Materializer:      materializer,
		Scratch:           d.scratch,
		CaptionPrefix:     cfg.Telegram.CaptionPrefix,
		FailOnNotifyError: cfg.Telegram.FailOnError,
		Metrics:           d.metrics,
	}

	if cfg.Telegram.Enabled {
		d.relay, err = telegram.NewRelay(telegram.Config{
			BotToken:    cfg.Telegram.BotToken,
			ChatID:      cfg.Telegram.ChatID,
			APIEndpoint: cfg.Telegram.APIEndpoint,
			Timeout:     seconds(cfg.Telegram.Timeout),
		}, d.logger)
		if err != nil {
			return fmt.Errorf("failed to create telegram relay: %w", err)
		}
		opts.Relay = d.relay
	} else {
		d.logger.Info().Msg("Telegram relay disabled")
	}

	d.progress = web.NewProgressHub(d.metrics, d.logger.GetZerolog())
	observers := generation.Observers{d.progress}
	if cfg.Logging.Audit {
		d.audit, err = observability.OpenAuditLogger(filepath.Join(cfg.DataDir, auditFile))
		if err != nil {
			return fmt.Errorf("failed to open audit log: %w", err)
		}
		observers = append(observers, d.audit)
	}
	opts.Observer = observers

	d.orchestrator, err = generation.NewOrchestrator(opts)
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	d.logger.Info().
		Str("backend", backend.Name()).
		Str("translator", cfg.Translator.Provider).
		Msg("Core modules initialized")

	return nil
}

func (d *Daemon) initializeServices() error {
	cfg := d.config

	if cfg.RateLimit.Enabled {
		d.limiter = web.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, time.Minute)
	}

	examples := cfg.UI.Examples
	if len(examples) == 0 {
		examples = config.DefaultExamples
	}

	var err error
	d.server, err = web.NewServer(web.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		Generator:   d.orchestrator,
		Sessions:    d.sessions,
		Counter:     d.counter,
		Content:     d.content,
		Progress:    d.progress,
		RateLimiter: d.limiter,
		Metrics:     d.metrics,
		Examples:    examples,
		CookieName:  cfg.Session.CookieName,
		Logger:      d.logger.GetZerolog(),
	})
	if err != nil {
		return fmt.Errorf("failed to create web server: %w", err)
	}

	d.cronService = cron.NewService()
	if err := d.cronService.AddJob(cron.Job{
		Name:     "scratch-sweep",
		Schedule: cfg.Scratch.SweepSchedule,
		Run:      d.sweepScratch,
	}); err != nil {
		return err
	}
	if err := d.cronService.AddJob(cron.Job{
		Name:     "session-expiry",
		Schedule: cfg.Session.ExpirySchedule,
		Run:      d.expireSessions,
	}); err != nil {
		return err
	}

	return nil
}

// Start starts the daemon service
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	traceID := tracing.NewTraceID()
	logger := d.logger.GetZerolog().With().Str("trace_id", traceID).Logger()
	logger.Info().Msg("Starting tinies daemon")

	if err := d.lifecycle.Start(); err != nil {
		d.setStopped()
		return fmt.Errorf("failed to start lifecycle manager: %w", err)
	}

	if err := d.server.Start(); err != nil {
		_ = d.lifecycle.Stop()
		d.setStopped()
		return fmt.Errorf("failed to start web server: %w", err)
	}

	d.cronService.Start()
	logger.Info().Int("jobs", len(d.cronService.ListJobs())).Msg("Cron service started")

	if d.config.Content.Watch {
		w, err := content.NewWatcher(d.content)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to watch content directory, hot reload disabled")
		} else {
			d.watcher = w
			if d.audit != nil {
				w.OnReload(func(p *content.Page) {
					d.audit.RecordContentReload(d.ctx, d.content.Dir(), p.Errors)
				})
			}
		}
	}

	if d.relay != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.checkRelay()
		}()
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.eventLoop.Run(d.ctx)
	}()

	logger.Info().Str("addr", d.server.Addr()).Msg("Daemon started successfully")

	return nil
}

// Stop stops the daemon service gracefully
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is not running")
	}
	d.running = false
	d.mu.Unlock()

	traceID := tracing.NewTraceID()
	logger := d.logger.GetZerolog().With().Str("trace_id", traceID).Logger()
	logger.Info().Msg("Stopping tinies daemon")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), seconds(d.config.Server.ShutdownTimeout))
	defer cancel()

	if err := d.server.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Failed to stop web server")
	}

	if err := d.cronService.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Failed to stop cron service")
	}
	logger.Info().Msg("Cron service stopped")

	if d.watcher != nil {
		if err := d.watcher.Stop(); err != nil {
			logger.Error().Err(err).Msg("Failed to stop content watcher")
		}
	}

	if d.limiter != nil {
		d.limiter.Stop()
	}

	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info().Msg("All goroutines stopped")
	case <-time.After(5 * time.Second):
		logger.Warn().Msg("Timeout waiting for goroutines to stop")
	}

	// Files still owned by live sessions
	for _, path := range d.sessions.Drain() {
		d.removeScratch(path)
	}

	if err := d.counter.Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to close counter store")
	}

	if d.audit != nil {
		if err := d.audit.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close audit log")
		}
	}

	if err := d.lifecycle.Stop(); err != nil {
		logger.Error().Err(err).Msg("Failed to stop lifecycle manager")
	}

	if d.tracingEnabled {
		tctx, tcancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := tracing.ShutdownOpenTelemetry(tctx); err != nil {
			logger.Error().Err(err).Msg("Failed to shutdown tracing")
		}
		tcancel()
		d.tracingEnabled = false
	}

	logger.Info().Msg("Daemon stopped successfully")

	return nil
}

func (d *Daemon) setStopped() {
	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
}

// Status returns the daemon status
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := Status{
		Running: d.running,
	}

	if d.running {
		status.Uptime = time.Since(d.startTime)
		status.StartTime = d.startTime
		status.Addr = d.server.Addr()
		status.Sessions = d.sessions.Len()
	}

	return status
}

// Status represents daemon status
type Status struct {
	Running   bool
	Uptime    time.Duration
	StartTime time.Time
	Addr      string
	Sessions  int
}

// Wait blocks until SIGINT or SIGTERM, then stops the daemon
func (d *Daemon) Wait() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	sig := <-sigChan
	d.logger.Info().Str("signal", sig.String()).Msg("Received signal")

	if err := d.Stop(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to stop daemon")
	}
}

// GetConfig returns the daemon configuration
func (d *Daemon) GetConfig() *config.Config {
	return d.config
}

// GetLogger returns the daemon logger
func (d *Daemon) GetLogger() *logger.Logger {
	return d.logger
}

// GetServer returns the web server
func (d *Daemon) GetServer() *web.Server {
	return d.server
}

// GetOrchestrator returns the generation orchestrator
func (d *Daemon) GetOrchestrator() *generation.Orchestrator {
	return d.orchestrator
}

// GetSessions returns the session registry
func (d *Daemon) GetSessions() *session.Registry {
	return d.sessions
}

// GetCronService returns the cron service
func (d *Daemon) GetCronService() *cron.Service {
	return d.cronService
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
