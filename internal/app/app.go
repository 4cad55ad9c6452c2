package app

import (
	"context"
	"fmt"
	"time"

	"github.com/appetiteclub/apt"
	aptevents "github.com/appetiteclub/apt/events"
	"github.com/appetiteclub/apt/middleware"

	"github.com/appetiteclub/kiosk/internal/backend"
	"github.com/appetiteclub/kiosk/internal/kiosk"
	"github.com/appetiteclub/kiosk/internal/sqlite"
	"github.com/appetiteclub/kiosk/pkg"
)

const (
	AppName    = "kiosk"
	AppVersion = "0.1.0"

	DefaultSessionDBPath = "data/kiosk.db"
	MemorySessionStore   = "memory"
	DefaultNATSURL       = "nats://localhost:4222"
)

// Settings is the parsed kiosk configuration.
type Settings struct {
	APIURL          string
	APITimeout      time.Duration
	PollInterval    time.Duration
	Fallback        kiosk.FallbackPolicy
	MenuCacheTTL    time.Duration
	RecommendSettle time.Duration
	SessionDBPath   string
	NATSEnabled     bool
	NATSURL         string
}

// LoadSettings reads the kiosk keys from config, applying defaults for anything
// missing or unparsable.
func LoadSettings(config *apt.Config) Settings {
	return Settings{
		APIURL:          config.GetStringOrDef("api.url", backend.DefaultBaseURL),
		APITimeout:      Duration(config, "api.timeout", backend.DefaultTimeout),
		PollInterval:    Duration(config, "poll.interval", kiosk.DefaultPollInterval),
		Fallback:        kiosk.ParseFallbackPolicy(config.GetStringOrDef("poll.fallback", string(kiosk.FallbackSynthetic))),
		MenuCacheTTL:    Duration(config, "menu.cache.ttl", kiosk.DefaultMenuCacheTTL),
		RecommendSettle: Duration(config, "recommend.settle", kiosk.DefaultRecommendSettle),
		SessionDBPath:   config.GetStringOrDef("session.db.path", DefaultSessionDBPath),
		NATSEnabled:     config.GetStringOrDef("nats.enabled", "false") == "true",
		NATSURL:         config.GetStringOrDef("nats.url", DefaultNATSURL),
	}
}

// Duration reads key as a Go duration string.
func Duration(config *apt.Config, key string, def time.Duration) time.Duration {
	raw, _ := config.GetString(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return def
	}
	return d
}

// OpenSessionStore returns the SQLite store at path, or an in-process store when
// path is "memory".
func OpenSessionStore(path string, logger apt.Logger) (kiosk.SessionStore, func(context.Context) error, error) {
	if path == MemorySessionStore || path == "" {
		return kiosk.NewMemorySessionStore(), func(context.Context) error { return nil }, nil
	}
	store, err := sqlite.Open(path, logger)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Stop, nil
}

// App encapsulates the kiosk service application
type App struct {
	config     *apt.Config
	logger     apt.Logger
	settings   Settings
	micro      *apt.Micro
	controller *kiosk.Controller
}

func New(config *apt.Config, logger apt.Logger) (*App, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &App{
		config:   config,
		logger:   logger,
		settings: LoadSettings(config),
	}, nil
}

// Initialize sets up all dependencies and components
func (a *App) Initialize(ctx context.Context) error {
	s := a.settings

	store, closeStore, err := OpenSessionStore(s.SessionDBPath, a.logger)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}

	correlationID, err := store.CorrelationID(ctx)
	if err != nil {
		closeStore(ctx)
		return fmt.Errorf("load correlation id: %w", err)
	}
	logger := a.logger.With("correlation_id", correlationID)

	client := backend.NewHTTPClient(s.APIURL, s.APITimeout, correlationID)
	logger.Info("ordering backend configured", "url", client.BaseURL(), "timeout", s.APITimeout.String())

	var publisher aptevents.Publisher
	var lifecycles []interface{}

	if s.NATSEnabled {
		natsPublisher, err := pkg.NewNATSPublisher(s.NATSURL, AppName)
		if err != nil {
			closeStore(ctx)
			return err
		}
		publisher = natsPublisher
		lifecycles = append(lifecycles, apt.LifecycleHooks{
			OnStop: func(context.Context) error { return natsPublisher.Close() },
		})
		logger.Info("kiosk events enabled", "nats_url", s.NATSURL)
	}

	a.controller = kiosk.NewController(kiosk.ControllerDeps{
		Auth:            client,
		Store:           store,
		Catalog:         kiosk.NewMenuCatalog(client, s.MenuCacheTTL, logger),
		Orders:          client,
		Status:          client,
		Tickets:         client,
		Recommendations: client,
		Publisher:       publisher,
		Diagnostics:     client,
	}, kiosk.ControllerConfig{
		PollInterval:    s.PollInterval,
		Fallback:        s.Fallback,
		RecommendSettle: s.RecommendSettle,
		CorrelationID:   correlationID,
	}, logger)

	handler := kiosk.NewHandler(a.controller, a.config, logger)

	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger: logger,
	})

	lifecycles = append([]interface{}{a.controller}, lifecycles...)
	lifecycles = append(lifecycles, apt.LifecycleHooks{OnStop: closeStore})

	options := []apt.Option{
		apt.WithConfig(a.config),
		apt.WithLogger(logger),
		apt.WithHTTPMiddleware(stack...),
		apt.WithHTTPServerModules("web.port", handler),
		apt.WithLifecycle(lifecycles...),
		apt.WithHealthChecks(AppName),
	}

	a.micro = apt.NewMicro(options...)
	return nil
}

func (a *App) Run(ctx context.Context) error {
	a.logger.Infof("Starting %s(%s)", AppName, AppVersion)
	if err := a.micro.Run(ctx); err != nil {
		return err
	}
	a.logger.Infof("%s(%s) stopped", AppName, AppVersion)
	return nil
}

func (a *App) Controller() *kiosk.Controller {
	return a.controller
}
