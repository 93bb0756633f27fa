package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/blueplan/noteshare-go/internal/noteshare/api"
	"github.com/blueplan/noteshare-go/internal/noteshare/config"
	"github.com/blueplan/noteshare-go/internal/noteshare/llm"
	logx "github.com/blueplan/noteshare-go/internal/noteshare/log"
	"github.com/blueplan/noteshare-go/internal/noteshare/notes"
	"github.com/blueplan/noteshare-go/internal/noteshare/pool"
	"github.com/blueplan/noteshare-go/internal/noteshare/secrets"
)

const msgMissingKey = "AI service is not configured (GEMINI_API_KEY missing)"

// App 组装存储、服务、HTTP 服务器与清理任务
type App struct {
	Config  *config.Config
	Logger  *logx.Logger
	Service *notes.Service
	Server  *api.Server

	sweeper     *notes.Sweeper
	storeHealth api.HealthReporter
	closers     []func() error
}

// New builds every component from cfg. Nothing is started yet.
func New(ctx context.Context, cfg *config.Config, logger *logx.Logger) (*App, error) {
	if logger == nil {
		logger = logx.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	store, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Service = notes.NewService(notes.Options{
		Store:          store,
		Generator:      secrets.NewGenerator(cfg.Security.SecretBytes),
		Hasher:         secrets.NewBcryptHasher(cfg.Security.BcryptCost),
		Summarizer:     a.newSummarizer(ctx),
		Logger:         logger,
		SummaryTimeout: cfg.Gemini.Timeout,
	})
	a.Server = api.NewServer(cfg, a.Service, logger)
	if a.storeHealth != nil {
		a.Server.SetStoreHealth(a.storeHealth)
	}

	if purger, ok := store.(notes.Purger); ok {
		a.sweeper = notes.NewSweeper(purger, cfg.Store.SweepInterval, logger)
	}
	return a, nil
}

func (a *App) openStore(ctx context.Context) (notes.Store, error) {
	sc := a.Config.Store
	switch sc.Driver {
	case config.DriverMemory:
		a.Logger.Warn(ctx, "using in-memory note store; notes are lost on restart")
		s := notes.NewInmem(sc.Retention, nil)
		a.closers = append(a.closers, s.Close)
		return s, nil

	case config.DriverRedis:
		pm, err := pool.NewPoolManager(ctx, pool.Options{URL: sc.URL, PoolSize: sc.PoolSize}, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		a.closers = append(a.closers, pm.Close)
		a.storeHealth = pm.HealthCheck
		return notes.NewRedis(pm.Client(), sc.Retention, nil), nil

	case config.DriverSQLite:
		s, err := notes.NewSQLite(sc.URL, sc.Retention, nil)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		a.closers = append(a.closers, s.Close)
		a.Logger.Info(ctx, "sqlite note store ready", logx.KV("path", sc.URL))
		return s, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", sc.Driver)
	}
}

func (a *App) newSummarizer(ctx context.Context) llm.Summarizer {
	gc := a.Config.Gemini
	if gc.APIKey == "" {
		a.Logger.Warn(ctx, "GEMINI_API_KEY not set; summarization disabled")
		return llm.NewDisabled(msgMissingKey)
	}
	return llm.NewGeminiClient(llm.GeminiOptions{
		APIKey:      gc.APIKey,
		Model:       gc.Model,
		BaseURL:     gc.BaseURL,
		Timeout:     gc.Timeout,
		Temperature: gc.Temperature,
		MaxTokens:   gc.MaxTokens,
	}, a.Logger)
}

// StartBackground starts the expiry sweeper when the store needs one.
func (a *App) StartBackground(ctx context.Context) {
	if a.sweeper != nil {
		a.sweeper.Start(ctx)
	}
}

// SweepOnce purges expired notes once. Stores with native expiry report 0.
func (a *App) SweepOnce(ctx context.Context) (int, error) {
	if a.sweeper == nil {
		a.Logger.Info(ctx, "store expires notes natively; nothing to sweep", logx.KV("driver", a.Config.Store.Driver))
		return 0, nil
	}
	return a.sweeper.RunOnce(ctx)
}

// Shutdown drains HTTP traffic, stops the sweeper and closes the store.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.Server != nil {
		if err := a.Server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if a.sweeper != nil {
		a.sweeper.Stop()
	}
	if err := a.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Close releases store resources. Safe to call more than once.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
