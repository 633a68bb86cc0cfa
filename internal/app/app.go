// Package app wires config, local state, the backend client and the event
// bus into engines for the CLI and the view API.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	leavedesksdk "leavedesk/sdk/go"

	"leavedesk/internal/config"
	"leavedesk/internal/db"
	"leavedesk/internal/directory"
	"leavedesk/internal/engine"
	"leavedesk/internal/events"
	"leavedesk/internal/logging"
	"leavedesk/internal/migrate"
	"leavedesk/internal/repo"
	"leavedesk/internal/session"
)

// Options select the workspace and override config values from flags or
// the environment. Empty fields leave the file value alone.
type Options struct {
	Workspace  string
	ConfigPath string
	BaseURL    string
	LogLevel   string
	LogFormat  string
}

// App holds everything a command needs. Close releases it.
type App struct {
	Workspace string
	Config    *config.Config
	DB        *sql.DB
	Repo      repo.Repo
	Bus       *events.Bus
	Session   *session.Stored
	Client    *leavedesksdk.Client
	Cache     directory.Cache
	Log       zerolog.Logger

	closers []func() error
}

// Open loads config, opens and migrates the local store, restores the saved
// session and selects the directory cache.
func Open(ctx context.Context, opts Options) (*App, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	log := logging.Component("app")

	conn, err := db.Open(db.Config{Workspace: opts.Workspace})
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	a := &App{
		Workspace: opts.Workspace,
		Config:    cfg,
		DB:        conn,
		Repo:      repo.Repo{DB: conn},
		Bus:       events.NewBus(),
		Log:       log,
		closers:   []func() error{conn.Close},
	}
	if err := migrate.MigrateContext(ctx, conn); err != nil {
		a.Close()
		return nil, fmt.Errorf("migrate local store: %w", err)
	}
	if err := (events.Writer{Repo: a.Repo, Log: logging.Component("activity")}).Attach(a.Bus); err != nil {
		a.Close()
		return nil, err
	}
	a.Session = &session.Stored{Repo: a.Repo}
	if err := a.Session.Load(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if a.Session.Expired(time.Now()) {
		log.Info().Str("email", a.Session.UserEmail()).Msg("stored session expired")
		if err := a.Session.Clear(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("clear expired session: %w", err)
		}
	}
	a.Client = leavedesksdk.New(cfg.Backend.BaseURL)
	a.Client.Timeout = cfg.Backend.Timeout

	cache, err := a.openCache()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Cache = cache
	return a, nil
}

func loadConfig(opts Options) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.ConfigPath != "" {
		cfg, err = config.FromFile(opts.ConfigPath)
	} else {
		cfg, err = config.LoadOptional(opts.Workspace)
	}
	if err != nil {
		return nil, err
	}
	if v := strings.TrimSpace(opts.BaseURL); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := strings.TrimSpace(opts.LogLevel); v != "" {
		cfg.Log.Level = v
	}
	if v := strings.TrimSpace(opts.LogFormat); v != "" {
		cfg.Log.Format = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (a *App) openCache() (directory.Cache, error) {
	switch a.Config.Cache.Backend {
	case config.CacheNone:
		return directory.NoCache{}, nil
	case config.CacheRedis:
		client, err := directory.OpenRedis(a.Config.Cache.RedisAddr, a.Config.Cache.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("directory cache: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		return directory.RedisCache{Client: client}, nil
	default:
		return directory.SQLiteCache{Repo: a.Repo}, nil
	}
}

// NewEngine builds an engine authenticating with sess. Each engine gets its
// own in-memory directory; the configured cache is shared between them.
func (a *App) NewEngine(sess session.Session) *engine.Engine {
	var dir *directory.Directory
	if sess != nil {
		dir = directory.New(a.Client.WithTokens(sess), a.Cache, a.Config.Cache.TTL, logging.Component("directory"))
	}
	return engine.New(a.Client, sess, a.Bus, dir, logging.Component("engine"), engine.Options{
		Refresh: engine.RefreshConfig{
			Delay:       a.Config.Refresh.Delay,
			MaxAttempts: a.Config.Refresh.MaxAttempts,
			Backoff:     a.Config.Refresh.Backoff,
		},
		NameMax: a.Config.Views.NameMax,
	})
}

// Engine is the CLI engine, bound to the stored session.
func (a *App) Engine() *engine.Engine {
	return a.NewEngine(a.Session)
}

// Close releases resources in reverse order of acquisition.
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
