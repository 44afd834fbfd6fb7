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

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/harun/pdfbot/internal/admin"
	"github.com/harun/pdfbot/internal/config"
	"github.com/harun/pdfbot/internal/logger"
	"github.com/harun/pdfbot/internal/metrics"
	"github.com/harun/pdfbot/internal/observability"
	"github.com/harun/pdfbot/internal/telegram"
	"github.com/harun/pdfbot/internal/tracing"
	"github.com/harun/pdfbot/pkg/commandqueue"
	"github.com/harun/pdfbot/pkg/dispatcher"
	"github.com/harun/pdfbot/pkg/docops"
	"github.com/harun/pdfbot/pkg/scratch"
	"github.com/harun/pdfbot/pkg/session"
)

const (
	serviceName = "pdfbot"

	// drainTimeout bounds how long Stop waits for running operations
	drainTimeout = 30 * time.Second
)

// Daemon wires the bot, the conversation core and the background services
type Daemon struct {
	config     *config.Config
	configPath string
	logger     *logger.Logger

	// Core modules
	metrics    *metrics.Metrics
	audit      *observability.AuditLogger
	files      *scratch.Store
	codec      *docops.Codec
	sessions   *session.MemoryStore
	dispatcher *dispatcher.Dispatcher
	queue      *commandqueue.CommandQueue

	// Services
	telegramBot *telegram.Bot
	adminServer *admin.Server
	janitor     *Janitor
	watcher     *config.Watcher
	eventLoop   *EventLoop
	lifecycle   *LifecycleManager

	// Injected for tests
	telegramAPI  telegram.API
	telegramSelf tgbotapi.User
	runner       docops.Runner

	// State
	running        bool
	startTime      time.Time
	tracingEnabled bool
	mu             sync.RWMutex
	wg             sync.WaitGroup
	ctx            context.Context
	cancel         context.CancelFunc
}

// Option configures a Daemon
type Option func(*Daemon)

// WithConfigPath watches path and applies log level changes while running
func WithConfigPath(path string) Option {
	return func(d *Daemon) {
		d.configPath = path
	}
}

// WithTelegramAPI uses api instead of authenticating against Telegram
func WithTelegramAPI(api telegram.API, self tgbotapi.User) Option {
	return func(d *Daemon) {
		d.telegramAPI = api
		d.telegramSelf = self
	}
}

// WithRunner replaces the process runner of the presentation converter
func WithRunner(r docops.Runner) Option {
	return func(d *Daemon) {
		d.runner = r
	}
}

// New creates a new daemon instance
func New(cfg *config.Config, log *logger.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		config: cfg,
		logger: log,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(d)
	}

	if cfg.Tracing.Enabled {
		if err := tracing.InitOpenTelemetry(serviceName, cfg.Tracing.SampleRatio); err != nil {
			log.Warn().Err(err).Msg("Failed to initialize tracing, continuing without distributed tracing")
		} else {
			d.tracingEnabled = true
			log.Info().Float64("sample_ratio", cfg.Tracing.SampleRatio).Msg("Tracing initialized successfully")
		}
	}

	if err := d.initializeCoreModules(); err != nil {
		d.teardown()
		return nil, fmt.Errorf("failed to initialize core modules: %w", err)
	}

	if err := d.initializeServices(); err != nil {
		d.teardown()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	d.eventLoop = NewEventLoop(d)
	d.lifecycle = NewLifecycleManager(d)

	return d, nil
}

// initializeCoreModules builds the conversation core bottom-up
func (d *Daemon) initializeCoreModules() error {
	cfg := d.config

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	d.metrics = metrics.NewMetrics()

	audit, err := observability.NewAuditLogger(filepath.Join(cfg.DataDir, "audit.log"))
	if err != nil {
		return err
	}
	d.audit = audit

	files, err := scratch.New(cfg.Storage.WorkDir, cfg.MaxUploadBytes(), d.logger.Component("scratch"))
	if err != nil {
		return fmt.Errorf("failed to create scratch store: %w", err)
	}
	files.OnRemove(d.metrics.RecordCleanup)
	d.files = files

	var codecOpts []docops.Option
	if d.runner != nil {
		codecOpts = append(codecOpts, docops.WithRunner(d.runner))
	}
	codec, err := docops.New(codecConfig(cfg), d.logger.GetZerolog(), codecOpts...)
	if err != nil {
		return fmt.Errorf("failed to create document codec: %w", err)
	}
	d.codec = codec

	d.sessions = session.NewMemoryStore()
	d.dispatcher = dispatcher.New(d.sessions, d.files, d.codec, d.logger.GetZerolog(),
		dispatcher.WithMetrics(d.metrics),
		dispatcher.WithAudit(d.audit),
		dispatcher.WithNotifier(d.notify),
	)

	d.queue = commandqueue.New(commandqueue.Options{
		DedupTTL:       time.Duration(cfg.Telegram.DedupeTTLSeconds) * time.Second,
		WarnAfter:      30 * time.Second,
		OnLanesChanged: d.metrics.SetQueueLanes,
		Logger:         d.logger.GetZerolog(),
	})

	d.logger.Info().
		Str("work_dir", files.Root()).
		Str("max_upload", files.MaxSizeHuman()).
		Msg("Core modules initialized")

	return nil
}

// initializeServices creates the transport and background services
func (d *Daemon) initializeServices() error {
	cfg := d.config
	botOpts := []telegram.Option{
		telegram.WithMetrics(d.metrics),
		telegram.WithAudit(d.audit),
	}

	var err error
	if d.telegramAPI != nil {
		d.telegramBot, err = telegram.NewWithAPI(d.telegramAPI, d.telegramSelf, &cfg.Telegram,
			d.logger.GetZerolog(), d.dispatcher, d.queue, botOpts...)
	} else {
		d.telegramBot, err = telegram.New(&cfg.Telegram, d.logger, d.dispatcher, d.queue, botOpts...)
	}
	if err != nil {
		return fmt.Errorf("failed to create telegram bot: %w", err)
	}

	if cfg.Admin.Enabled {
		d.adminServer = admin.New(cfg.Admin, d.dispatcher, d.files, d.metrics.Handler(), d.logger.GetZerolog())
	}

	d.janitor, err = NewJanitor(cfg.Janitor.Schedule, cfg.IdleTimeout(), cfg.JanitorMaxAge(),
		d.dispatcher, d.files, d.metrics, d.logger.GetZerolog())
	if err != nil {
		return err
	}

	if d.configPath != "" {
		d.watcher, err = config.NewWatcher(d.configPath, d.onConfigChange, d.logger.GetZerolog())
		if err != nil {
			d.logger.Warn().Err(err).Msg("Config hot reload disabled")
			d.watcher = nil
		}
	}

	return nil
}

// codecConfig maps the config file onto transform settings
func codecConfig(cfg *config.Config) docops.Config {
	c := docops.DefaultConfig()
	if cfg.Converter.Binary != "" {
		c.ConverterBinaries = []string{cfg.Converter.Binary}
	}
	c.ConverterTimeout = cfg.ConverterTimeout()
	c.Watermark = docops.WatermarkStyle{
		FontName: cfg.Watermark.Font,
		Points:   cfg.Watermark.Points,
		Opacity:  cfg.Watermark.Opacity,
		Color:    cfg.Watermark.Color,
	}
	c.KeyLength = cfg.Protect.KeyLength
	return c
}

// notify forwards progress messages to the bot
func (d *Daemon) notify(ctx context.Context, conversationID, text string) {
	if d.telegramBot != nil {
		d.telegramBot.Notify(ctx, conversationID, text)
	}
}

// onConfigChange applies the settings that can change without a restart
func (d *Daemon) onConfigChange(cfg *config.Config) {
	if cfg.Logging.Level == d.logger.Level().String() {
		return
	}
	if err := d.logger.SetLevel(cfg.Logging.Level); err != nil {
		d.logger.Warn().Err(err).Msg("Ignoring invalid log level from config")
	}
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
	logger.Info().Msg("Starting pdfbot daemon")

	if err := d.lifecycle.Start(); err != nil {
		d.setStopped()
		return fmt.Errorf("failed to start lifecycle manager: %w", err)
	}

	if d.adminServer != nil {
		if err := d.adminServer.Start(); err != nil {
			_ = d.lifecycle.Stop()
			d.setStopped()
			return fmt.Errorf("failed to start admin server: %w", err)
		}
	}

	if err := d.janitor.Start(); err != nil {
		logger.Warn().Err(err).Msg("Failed to start janitor")
	}

	if d.watcher != nil {
		if err := d.watcher.Start(); err != nil {
			logger.Warn().Err(err).Msg("Failed to start config watcher")
		}
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.eventLoop.Run(d.ctx)
	}()

	if err := d.telegramBot.Start(); err != nil {
		logger.Error().Err(err).Msg("Failed to start telegram bot")
		_ = d.Stop()
		return fmt.Errorf("failed to start telegram bot: %w", err)
	}

	logger.Info().Msg("Daemon started successfully")

	return nil
}

func (d *Daemon) setStopped() {
	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
}

// Stop stops the daemon service gracefully. Updates already accepted are
// processed before the queue closes.
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
	logger.Info().Msg("Stopping pdfbot daemon")

	if d.telegramBot.IsRunning() {
		if err := d.telegramBot.Stop(); err != nil {
			logger.Error().Err(err).Msg("Failed to stop telegram bot")
		}
	}

	d.eventLoop.HandleShutdown(drainTimeout)

	if err := d.queue.Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to close command queue")
	}
	logger.Info().Msg("Command queue stopped")

	d.janitor.Stop()

	if d.watcher != nil {
		if err := d.watcher.Stop(); err != nil {
			logger.Error().Err(err).Msg("Failed to stop config watcher")
		}
	}

	if d.adminServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := d.adminServer.Stop(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Failed to stop admin server")
		}
		cancel()
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

	if err := d.lifecycle.Stop(); err != nil {
		logger.Error().Err(err).Msg("Failed to stop lifecycle manager")
	}

	d.teardown()

	logger.Info().Msg("Daemon stopped successfully")

	return nil
}

// teardown releases resources owned by the daemon
func (d *Daemon) teardown() {
	d.cancel()

	if err := d.audit.Close(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to close audit logger")
	}

	if d.tracingEnabled {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := tracing.ShutdownOpenTelemetry(shutdownCtx); err != nil {
			d.logger.Error().Err(err).Msg("Failed to shutdown tracing")
		}
		cancel()
		d.tracingEnabled = false
	}
}

// Status represents daemon status
type Status struct {
	Running   bool
	Uptime    time.Duration
	StartTime time.Time
	PID       int
	Sessions  int
	Lanes     int
}

// Status returns the daemon status
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := Status{
		Running:  d.running,
		PID:      os.Getpid(),
		Sessions: d.sessions.Len(),
		Lanes:    d.queue.Lanes(),
	}

	if d.running {
		status.Uptime = time.Since(d.startTime)
		status.StartTime = d.startTime
	}

	return status
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

// GetDispatcher returns the conversation dispatcher
func (d *Daemon) GetDispatcher() *dispatcher.Dispatcher {
	return d.dispatcher
}

// GetQueue returns the command queue
func (d *Daemon) GetQueue() *commandqueue.CommandQueue {
	return d.queue
}

// GetTelegramBot returns the Telegram bot
func (d *Daemon) GetTelegramBot() *telegram.Bot {
	return d.telegramBot
}

// GetAdminServer returns the admin server, nil when disabled
func (d *Daemon) GetAdminServer() *admin.Server {
	return d.adminServer
}

// GetJanitor returns the janitor
func (d *Daemon) GetJanitor() *Janitor {
	return d.janitor
}

// GetMetrics returns the metrics registry
func (d *Daemon) GetMetrics() *metrics.Metrics {
	return d.metrics
}
