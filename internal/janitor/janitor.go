// Package janitor periodically deletes subscription index entries whose
// subscriber handle no longer exists in the registry. This is hygiene
// only: the dispatch-time liveness filter keeps routing correct whether
// or not the sweep ever runs.
package janitor

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"chatmux/pkg/config"
	"chatmux/pkg/logger"
	"chatmux/pkg/models"
	"chatmux/pkg/registry"
	"chatmux/pkg/subscription"
)

// Start starts the janitor scheduler if enabled. Returns a cancel func.
func Start(ctx context.Context, cfg config.JanitorConfig, index *subscription.Index, reg *registry.StoreRegistry) (context.CancelFunc, error) {
	if !cfg.Enabled {
		logger.Info("janitor_disabled")
		return func() {}, nil
	}

	// map empty cron to default daily @03:00
	cronExpr := cfg.Cron
	if cronExpr == "" {
		cronExpr = "0 3 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("janitor_invalid_cron", "cron", cfg.Cron)
		return nil, fmt.Errorf("invalid janitor cron expression: %s", cfg.Cron)
	}

	logger.Info("janitor_enabled", "cron", cronExpr, "dry_run", cfg.DryRun)
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cfg, cronExpr, index, reg)
	return cancel, nil
}

// runScheduler uses gronx to compute the next tick for the configured
// cron expression and sleeps until that time.
func runScheduler(ctx context.Context, cfg config.JanitorConfig, cronExpr string, index *subscription.Index, reg *registry.StoreRegistry) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("janitor_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("janitor_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
		case <-ctx.Done():
			logger.Info("janitor_scheduler_stopping")
			return
		}

		if err := RunOnce(cfg, index, reg); err != nil {
			logger.Error("janitor_run_error", "error", err)
		}
	}
}

// RunOnce performs one sweep over both namespaces.
func RunOnce(cfg config.JanitorConfig, index *subscription.Index, reg *registry.StoreRegistry) error {
	start := time.Now()
	removed := 0
	for _, sweep := range []struct {
		ns  subscription.Namespace
		cap models.Capability
	}{
		{subscription.NamespaceEvents, models.CapabilitySender},
		{subscription.NamespaceReplies, models.CapabilityThread},
	} {
		live, err := liveSet(reg, sweep.cap)
		if err != nil {
			return err
		}
		keys, err := index.ListNamespace(sweep.ns)
		if err != nil {
			return err
		}
		for _, k := range keys {
			if _, ok := live[k.Subscriber]; ok {
				continue
			}
			if cfg.DryRun {
				logger.Info("janitor_would_remove",
					"namespace", string(k.Namespace), "anchor", k.Anchor, "subscriber", k.Subscriber)
				continue
			}
			if err := index.Remove(k); err != nil {
				return err
			}
			removed++
		}
	}
	logger.Info("janitor_sweep_done", "removed", removed, "elapsed", time.Since(start).String())
	return nil
}

func liveSet(reg *registry.StoreRegistry, cap models.Capability) (map[string]struct{}, error) {
	subs, err := reg.ListByCapability(cap)
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(subs))
	for _, s := range subs {
		out[s.ID] = struct{}{}
	}
	return out, nil
}
