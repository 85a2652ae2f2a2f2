package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"chatmux/internal/janitor"
	"chatmux/pkg/api"
	"chatmux/pkg/classify"
	"chatmux/pkg/config"
	"chatmux/pkg/dispatch"
	"chatmux/pkg/emit"
	"chatmux/pkg/ingest"
	"chatmux/pkg/logger"
	"chatmux/pkg/registry"
	"chatmux/pkg/store"
	"chatmux/pkg/subscription"
	"chatmux/pkg/telemetry"
	"chatmux/pkg/transport"
)

// App encapsulates the server components and lifecycle.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	kv       *store.Pebble
	index    *subscription.Index
	registry *registry.StoreRegistry
	queue    *ingest.Queue
	consumer *ingest.Consumer
	api      *api.API

	janitorCancel context.CancelFunc
	srv           *http.Server
}

// New initializes resources that do not require a running context (DB,
// index, registry, queue, workers, runtime keys). It does not start the
// HTTP server; call Run to start it and block until shutdown.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	_ = godotenv.Load(".env")

	// validate effective config early and fail fast
	if err := validateConfig(eff); err != nil {
		return nil, err
	}

	// runtime keys
	runtimeCfg := &config.RuntimeConfig{BackendKeys: map[string]struct{}{}, AdminKeys: map[string]struct{}{}}
	for _, k := range eff.Config.Security.APIKeys.Backend {
		runtimeCfg.BackendKeys[k] = struct{}{}
	}
	for _, k := range eff.Config.Security.APIKeys.Admin {
		runtimeCfg.AdminKeys[k] = struct{}{}
	}
	config.SetRuntime(runtimeCfg)

	// open store
	kv, err := store.Open(eff.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", eff.DBPath, err)
	}

	cfg := eff.Config
	index := subscription.NewIndex(kv)
	reg := registry.NewStoreRegistry(kv)

	var emitter emit.Emitter = emit.LogEmitter{}
	if cfg.Emit.URL != "" {
		emitter = emit.NewHTTPEmitter(cfg.Emit.URL, cfg.Emit.BearerToken, cfg.Emit.Timeout.Duration())
	}

	classifier := classify.New(cfg.Bot.ID, nil)
	dispatcher := dispatch.New(index, reg, emitter)

	queue := ingest.NewQueue(cfg.Ingest.Queue.Capacity)
	consumer := ingest.NewConsumer(queue, classifier, dispatcher, cfg.Ingest.Workers)
	telemetry.RegisterQueueDepth(queue.Len)

	var tp transport.Transport
	if cfg.Platform.BaseURL != "" {
		tp = transport.NewClient(
			cfg.Platform.BaseURL,
			cfg.Platform.TokenURL,
			cfg.Platform.ClientID,
			cfg.Platform.ClientSecret,
			cfg.Platform.Scope,
			cfg.Platform.Timeout.Duration(),
		)
	} else {
		tp = unconfiguredTransport{}
	}

	a := &App{
		eff:       eff,
		version:   version,
		commit:    commit,
		buildDate: buildDate,
		kv:        kv,
		index:     index,
		registry:  reg,
		queue:     queue,
		consumer:  consumer,
		api:       &api.API{Queue: queue, Index: index, Registry: reg, Transport: tp},
	}
	return a, nil
}

// Run starts the workers, the janitor and the HTTP server, and blocks
// until ctx is canceled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	a.consumer.Start(ctx)

	cancel, err := janitor.Start(ctx, a.eff.Config.Janitor, a.index, a.registry)
	if err != nil {
		return err
	}
	a.janitorCancel = cancel

	a.printBanner()

	errCh := a.startHTTP(ctx)

	select {
	case <-ctx.Done():
		a.shutdown()
		return nil
	case err := <-errCh:
		a.shutdown()
		return err
	}
}

// shutdown stops components in dependency order: HTTP intake first, then
// the workers, then the store.
func (a *App) shutdown() {
	if a.srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_ = a.srv.Shutdown(sctx)
		cancel()
	}
	if a.janitorCancel != nil {
		a.janitorCancel()
	}
	a.consumer.Stop()
	a.queue.CloseAndDrain()
	if err := a.kv.Close(); err != nil {
		logger.Error("store_close_failed", "error", err)
	}
	logger.Info("shutdown_complete", "dropped", a.queue.Dropped())
}

// unconfiguredTransport rejects every outbound call with a clear error
// when no platform relay is configured.
type unconfiguredTransport struct{}

func (unconfiguredTransport) Send(context.Context, string, transport.Content) (string, error) {
	return "", fmt.Errorf("outbound relay not configured; set platform.base_url")
}

func (unconfiguredTransport) Update(context.Context, string, string, transport.Content) error {
	return fmt.Errorf("outbound relay not configured; set platform.base_url")
}

func (unconfiguredTransport) Delete(context.Context, string, string) error {
	return fmt.Errorf("outbound relay not configured; set platform.base_url")
}
