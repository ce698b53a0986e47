// Package careswarm wires the clinic's conversational service: the
// relational store, session persistence, the model provider, the handler
// roster, the router, the HTTP transport, and the reminder scheduler.
package careswarm

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/careswarm/careswarm/internal/artifacts"
	"github.com/careswarm/careswarm/internal/clinic"
	"github.com/careswarm/careswarm/internal/handlers"
	"github.com/careswarm/careswarm/internal/llm"
	"github.com/careswarm/careswarm/internal/reminder"
	"github.com/careswarm/careswarm/internal/router"
	"github.com/careswarm/careswarm/internal/tools"
	"github.com/careswarm/careswarm/internal/transport"
	"github.com/careswarm/careswarm/pkg/config"
	"github.com/careswarm/careswarm/pkg/observability"
	"github.com/careswarm/careswarm/pkg/session"
)

// Version is set at build time via ldflags.
var Version = "dev"

// App is the assembled service.
type App struct {
	Config    *config.Config
	Clinic    *clinic.Store
	Sessions  session.Store
	Router    *router.Router
	Server    *transport.Server
	Reminders *reminder.Scheduler
	Health    *observability.HealthChecker
}

// NewApp builds the service from configuration. The clinic database is
// opened, migrated, and seeded if empty.
func NewApp(cfg *config.Config) (*App, error) {
	observability.InitMetrics()
	if err := observability.InitTracingFromEnv(); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	clinicStore, err := clinic.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open clinic database: %w", err)
	}
	if err := clinicStore.Seed(context.Background()); err != nil {
		_ = clinicStore.Close()
		return nil, fmt.Errorf("seed clinic database: %w", err)
	}

	sessions, err := newSessionStore(cfg)
	if err != nil {
		_ = clinicStore.Close()
		return nil, err
	}

	var mailer artifacts.Mailer
	smtp := artifacts.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}
	if smtp.Enabled() {
		mailer = artifacts.NewSMTPMailer(smtp)
	} else {
		log.Println("smtp not configured, mail delivery is log-only")
		mailer = artifacts.LogMailer{}
	}

	registry := tools.NewRegistry()
	if err := tools.RegisterClinicTools(registry, tools.Deps{
		Clinic:  clinicStore,
		Mailer:  mailer,
		BaseURL: cfg.Server.BaseURL,
	}); err != nil {
		_ = clinicStore.Close()
		return nil, fmt.Errorf("register tools: %w", err)
	}

	roster, err := handlers.NewRoster()
	if err != nil {
		_ = clinicStore.Close()
		return nil, err
	}

	provider, err := llm.New(cfg.Provider.Name, cfg.ProviderOptions())
	if err != nil {
		_ = clinicStore.Close()
		return nil, fmt.Errorf("build provider: %w", err)
	}

	rt, err := router.New(provider, registry, roster, sessions, router.Options{
		Model:         cfg.Provider.Model,
		Temperature:   cfg.Provider.Temperature,
		MaxTokens:     cfg.Provider.MaxTokens,
		MaxIterations: cfg.Router.MaxIterations,
	})
	if err != nil {
		_ = clinicStore.Close()
		return nil, fmt.Errorf("build router: %w", err)
	}

	health := observability.NewHealthChecker(Version)
	health.Register(&observability.HealthCheck{
		Name:      "clinic_db",
		CheckFunc: clinicStore.Ping,
		Critical:  true,
	})

	server := transport.New(transport.Config{
		Addr:      cfg.Server.Addr,
		GlobalRPS: cfg.Server.GlobalRPS,
		ClientRPS: cfg.Server.ClientRPS,
		Burst:     cfg.Server.Burst,
	}, rt, clinicStore, health)

	var reminders *reminder.Scheduler
	if cfg.Reminders.Enabled {
		reminders = reminder.New(clinicStore, mailer, cfg.Reminders.Schedule)
	}

	return &App{
		Config:    cfg,
		Clinic:    clinicStore,
		Sessions:  sessions,
		Router:    rt,
		Server:    server,
		Reminders: reminders,
		Health:    health,
	}, nil
}

func newSessionStore(cfg *config.Config) (session.Store, error) {
	switch cfg.Sessions.Backend {
	case "redis":
		store, err := session.NewRedisStore(session.RedisConfig{
			Addr:       cfg.Sessions.Redis.Addr,
			Password:   cfg.Sessions.Redis.Password,
			DB:         cfg.Sessions.Redis.DB,
			Prefix:     cfg.Sessions.Redis.Prefix,
			SessionTTL: cfg.Sessions.Redis.TTL(),
		})
		if err != nil {
			return nil, fmt.Errorf("connect redis session store: %w", err)
		}
		return store, nil
	default:
		return session.NewMemoryStore(), nil
	}
}

// Run serves until ctx is cancelled, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	if a.Reminders != nil {
		if err := a.Reminders.Start(); err != nil {
			return err
		}
		defer a.Reminders.Stop()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(a.Server.Start)
	g.Go(func() error {
		<-ctx.Done()
		return a.Server.Shutdown(context.Background())
	})

	err := g.Wait()
	if closeErr := a.Close(); err == nil {
		err = closeErr
	}
	return err
}

// Close releases the app's resources.
func (a *App) Close() error {
	var firstErr error
	if err := a.Sessions.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := a.Clinic.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := observability.ShutdownTracing(context.Background()); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
