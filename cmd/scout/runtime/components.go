// Package runtime assembles the storage, billing, delivery and model routing a
// run needs. On the Apify platform every side effect goes through the Apify
// API; locally they land under the store path.
package runtime

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/harunnryd/scout/internal/apify"
	"github.com/harunnryd/scout/internal/billing"
	"github.com/harunnryd/scout/internal/config"
	"github.com/harunnryd/scout/internal/delivery"
	scoutErrors "github.com/harunnryd/scout/internal/errors"
	"github.com/harunnryd/scout/internal/logger"
	"github.com/harunnryd/scout/internal/model"
	"github.com/harunnryd/scout/internal/orchestrator"
	"github.com/harunnryd/scout/internal/store"
)

type RuntimeComponents struct {
	Config   *config.Config
	RunID    string
	Platform bool

	Apify  *apify.Client
	Local  *store.Local
	Sink   *delivery.Sink
	Router model.ModelRouter
	Driver *orchestrator.Driver

	ctx context.Context
}

// ResolveRunID uses the platform run id when present, a fresh one otherwise.
func ResolveRunID(cfg *config.Config) string {
	if cfg.Apify.OnPlatform() {
		return cfg.Apify.RunID
	}
	return orchestrator.NewRunID()
}

func NewRuntimeComponents(ctx context.Context, cfg *config.Config, runID string) (*RuntimeComponents, error) {
	ctx = logger.WithRunID(ctx, runID)

	if err := cfg.Validate(); err != nil {
		return nil, scoutErrors.Configuration(err.Error())
	}

	client, err := apify.NewClient(cfg.Apify)
	if err != nil {
		return nil, err
	}

	c := &RuntimeComponents{
		Config:   cfg,
		RunID:    runID,
		Platform: cfg.Apify.OnPlatform(),
		Apify:    client,
		ctx:      ctx,
	}

	var charger billing.Charger
	var opts []orchestrator.Option
	notifiers := delivery.NewNotifiers(cfg.Delivery)

	if c.Platform {
		c.Sink = &delivery.Sink{KV: client, Dataset: client, Status: client, Notifiers: notifiers}
		charger = billing.NewApifyCharger(client, cfg.Billing)
	} else {
		local, err := store.NewLocal(cfg.Store, runID)
		if err != nil {
			return nil, err
		}
		c.Local = local
		c.Sink = &delivery.Sink{KV: local, Dataset: local, Status: local, Notifiers: notifiers}
		charger = billing.NewLogCharger(cfg.Billing)
		opts = append(opts, orchestrator.WithTranscript(local))
	}

	router, err := model.NewModelRouter(cfg.Models)
	if err != nil {
		c.reportFailure(err)
		return nil, err
	}
	c.Router = router
	c.Driver = orchestrator.NewDriver(cfg, router, client, charger, c.Sink, opts...)

	slog.Debug("Runtime initialized", "run_id", runID, "platform", c.Platform, "models", router.ListModels())
	return c, nil
}

// Context returns the run-scoped context the components were built with.
func (c *RuntimeComponents) Context() context.Context {
	return c.ctx
}

// LoadInput reads the INPUT record of the run. Locally a missing record is
// not an error; the caller falls back to flags.
func (c *RuntimeComponents) LoadInput(ctx context.Context, path string) (orchestrator.Input, bool, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return orchestrator.Input{}, false, scoutErrors.Configuration("read input file: " + err.Error())
		}
		in, err := orchestrator.ParseInput(data)
		return in, err == nil, err
	}

	var (
		data []byte
		err  error
	)
	if c.Platform {
		data, err = c.Apify.GetRecord(ctx, store.InputKey)
	} else {
		data, err = c.Local.GetRecord(ctx, store.InputKey)
	}
	if errors.Is(err, scoutErrors.ErrNotFound) {
		return orchestrator.Input{}, false, nil
	}
	if err != nil {
		return orchestrator.Input{}, false, err
	}

	in, err := orchestrator.ParseInput(data)
	return in, err == nil, err
}

// Fail marks the run failed outside the driver, e.g. when the input cannot be read.
func (c *RuntimeComponents) Fail(ctx context.Context, reason error) error {
	if err := c.Sink.Fail(ctx, reason); err != nil {
		slog.Warn("Failed to report run failure", "run_id", c.RunID, "error", err)
	}
	return reason
}

func (c *RuntimeComponents) reportFailure(reason error) {
	if c.Sink == nil {
		return
	}
	_ = c.Fail(c.ctx, reason)
}
