// Package ssbridge is the top-level entry point for the ssbridge server:
// an OpenAI-compatible chat-completion bridge in front of StackSpot AI's
// asynchronous Quick Command API.
//
// Use the Builder to compose a custom ssbridge application:
//
//	app, err := ssbridge.NewBuilder().Build()
//	app.Start(ctx)
//
// Or customize every component:
//
//	app, err := ssbridge.NewBuilder().
//	    WithStore(myStore).
//	    WithProvider(myProvider).
//	    Build()
package ssbridge

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/ssbridge/ssbridge/internal/config"
	"github.com/ssbridge/ssbridge/internal/server"
	"github.com/ssbridge/ssbridge/pkg/eventbus"
	"github.com/ssbridge/ssbridge/pkg/stackspot"
	"github.com/ssbridge/ssbridge/pkg/store"
	sqliteStore "github.com/ssbridge/ssbridge/pkg/store/sqlite"
)

// Builder constructs an ssbridge App.
type Builder struct {
	config   *config.Config
	store    store.CompletionStore
	bus      eventbus.Bus
	provider server.Provider
}

// NewBuilder creates a new Builder with sensible defaults.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithConfig sets the application configuration.
func (b *Builder) WithConfig(cfg *config.Config) *Builder {
	b.config = cfg
	return b
}

// WithStore sets the completion store implementation.
func (b *Builder) WithStore(s store.CompletionStore) *Builder {
	b.store = s
	return b
}

// WithBus sets the event bus implementation.
func (b *Builder) WithBus(bus eventbus.Bus) *Builder {
	b.bus = bus
	return b
}

// WithProvider sets the completion backend. When unset, a stackspot.Client
// is built from the configuration's credentials.
func (b *Builder) WithProvider(p server.Provider) *Builder {
	b.provider = p
	return b
}

// Build creates the App. Missing components are filled with defaults.
func (b *Builder) Build() (*App, error) {
	if b.config == nil {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		b.config = cfg
	}

	if b.store == nil {
		st, err := sqliteStore.New(b.config.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("initializing store: %w", err)
		}
		b.store = st
	}

	if b.bus == nil {
		b.bus = eventbus.NewInMemoryBus()
	}

	if b.provider == nil {
		client, err := stackspot.New(b.config.StackSpot)
		if err != nil {
			return nil, err
		}
		b.provider = client
	}

	return &App{
		config: b.config,
		store:  b.store,
		server: server.New(b.provider, b.store, b.bus),
	}, nil
}

// App is a running ssbridge application.
type App struct {
	config *config.Config
	store  store.CompletionStore
	server *server.Server
}

// Start runs the HTTP server. Blocks until ctx is done.
func (a *App) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:    a.config.ServerAddr,
		Handler: a.server.Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("ssbridge server listening on %s", a.config.ServerAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return a.store.Close()
}
