// Package app assembles the entryrev object graph from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kilupskalvis/entryrev/internal/config"
	"github.com/kilupskalvis/entryrev/internal/core"
	"github.com/kilupskalvis/entryrev/internal/entries"
	"github.com/kilupskalvis/entryrev/internal/hooks"
	"github.com/kilupskalvis/entryrev/internal/render"
	"github.com/kilupskalvis/entryrev/internal/security"
	"github.com/kilupskalvis/entryrev/internal/store"
	"github.com/kilupskalvis/entryrev/internal/textdiff"
	"github.com/kilupskalvis/entryrev/internal/weaviate"
)

var _ core.Host = (*entries.Service)(nil)

// App holds the services shared by the CLI and the server
type App struct {
	Config   *config.Config
	Store    store.RecordStore
	Bus      *hooks.Bus
	Entries  *entries.Service
	Manager  *core.Manager
	Restorer *core.Restorer
	Tokens   *security.Tokens
	Renderer *render.Renderer

	log *slog.Logger

	gateOnce sync.Once
	gate     *security.Gate
	ledger   *security.Ledger
	gateErr  error
}

// New opens the configured backend and wires revision tracking onto it
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	ttl, err := cfg.TokenTTLDuration()
	if err != nil {
		return nil, err
	}
	tokens, err := security.NewTokens(cfg.TokenSecret, ttl)
	if err != nil {
		return nil, err
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	bus := hooks.NewBus()
	svc := entries.NewService(st, bus, logger)
	manager := core.NewManager(svc, logger, loc)
	manager.Subscribe(bus)

	policy := core.Policy{
		RestoreMeta:        cfg.RestoreMeta,
		DeleteAfterRestore: cfg.DeleteAfterRestore,
	}
	restorer := core.NewRestorer(svc, manager, bus, policy, logger)

	diffOpts := textdiff.DefaultOptions()
	diffOpts.Threshold = cfg.DiffThreshold
	diffOpts.EmptyValue = cfg.EmptyValue

	renderer := render.New(svc, manager, tokens, actorDirectory(cfg), render.Config{
		BaseURL:  cfg.BaseURL,
		Location: loc,
		Diff:     diffOpts,
	})

	return &App{
		Config:   cfg,
		Store:    st,
		Bus:      bus,
		Entries:  svc,
		Manager:  manager,
		Restorer: restorer,
		Tokens:   tokens,
		Renderer: renderer,
		log:      logger,
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.RecordStore, error) {
	switch cfg.Backend {
	case config.BackendWeaviate:
		client, err := weaviate.NewClient(cfg.WeaviateURL)
		if err != nil {
			return nil, err
		}
		st := weaviate.NewStore(weaviate.NewRetryClient(client, nil), cfg.WeaviateClass, cfg.FormsClass)
		if err := st.Initialize(ctx); err != nil {
			return nil, fmt.Errorf("initialize weaviate store: %w", err)
		}
		return st, nil
	default:
		st, err := store.New(cfg.DatabasePath())
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		if err := st.Initialize(); err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to initialize store: %w", err)
		}
		return st, nil
	}
}

func actorDirectory(cfg *config.Config) render.StaticDirectory {
	dir := render.StaticDirectory{}
	for _, a := range cfg.Actors {
		dir[a.ID] = render.Actor{ID: a.ID, Name: a.Name, AvatarURL: a.AvatarURL}
	}
	return dir
}

// Gate returns the restore gate. The token ledger is opened on first use so
// read-only commands do not contend for its file lock.
func (a *App) Gate() (*security.Gate, error) {
	a.gateOnce.Do(func() {
		ledger, err := security.OpenLedger(a.Config.LedgerPath())
		if err != nil {
			a.gateErr = err
			return
		}
		a.ledger = ledger
		auth := security.StaticAuthorizer(a.Config.Capabilities)
		a.gate = security.NewGate(auth, a.Tokens, ledger, a.log)
	})
	return a.gate, a.gateErr
}

// Close releases the store and the token ledger
func (a *App) Close() error {
	var errs []error
	if a.ledger != nil {
		errs = append(errs, a.ledger.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}
