// Package billing reports pay-per-event charges for a run.
package billing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/harunnryd/scout/internal/config"
	scoutErrors "github.com/harunnryd/scout/internal/errors"
	"github.com/harunnryd/scout/internal/logger"
)

// Charger meters a run: one start event, then one token event after success.
type Charger interface {
	ChargeStart(ctx context.Context) error
	ChargeTokens(ctx context.Context, model string, tokens int) error
}

// EventClient sends a single pay-per-event charge. apify.Client implements it.
type EventClient interface {
	Charge(ctx context.Context, eventName string, count int) error
}

type Charge struct {
	Event string
	Count int
}

// Units is the number of billable units for a token count, rounded up.
func Units(tokens, tokensPerUnit int) int {
	if tokensPerUnit <= 0 {
		tokensPerUnit = config.DefaultBillingTokensPerUnit
	}
	if tokens <= 0 {
		return 0
	}
	return (tokens + tokensPerUnit - 1) / tokensPerUnit
}

// TokenEvent formats the per-model token event name.
func TokenEvent(pattern, model string) string {
	if !strings.Contains(pattern, "%s") {
		pattern = config.DefaultBillingTokenEvent
	}
	return fmt.Sprintf(pattern, model)
}

type plan struct {
	cfg config.BillingConfig
}

func newPlan(cfg config.BillingConfig) plan {
	if strings.TrimSpace(cfg.StartEvent) == "" {
		cfg.StartEvent = config.DefaultBillingStartEvent
	}
	if strings.TrimSpace(cfg.TokenEvent) == "" {
		cfg.TokenEvent = config.DefaultBillingTokenEvent
	}
	if cfg.TokensPerUnit <= 0 {
		cfg.TokensPerUnit = config.DefaultBillingTokensPerUnit
	}
	return plan{cfg: cfg}
}

func (p plan) start() Charge {
	return Charge{Event: p.cfg.StartEvent, Count: 1}
}

func (p plan) tokens(model string, tokens int) (Charge, error) {
	if strings.TrimSpace(model) == "" {
		return Charge{}, scoutErrors.InvalidArgument("token charge requires a model name")
	}
	if tokens <= 0 {
		return Charge{}, scoutErrors.InvalidArgument(fmt.Sprintf("token charge requires a positive token count, got %d", tokens))
	}
	return Charge{
		Event: TokenEvent(p.cfg.TokenEvent, model),
		Count: Units(tokens, p.cfg.TokensPerUnit),
	}, nil
}

// ApifyCharger reports charges to the platform.
type ApifyCharger struct {
	client EventClient
	plan   plan
}

func NewApifyCharger(client EventClient, cfg config.BillingConfig) *ApifyCharger {
	return &ApifyCharger{client: client, plan: newPlan(cfg)}
}

func (c *ApifyCharger) ChargeStart(ctx context.Context) error {
	return c.send(ctx, c.plan.start())
}

func (c *ApifyCharger) ChargeTokens(ctx context.Context, model string, tokens int) error {
	charge, err := c.plan.tokens(model, tokens)
	if err != nil {
		return err
	}
	return c.send(ctx, charge)
}

func (c *ApifyCharger) send(ctx context.Context, charge Charge) error {
	slog.Info("Charging event", "run_id", logger.GetRunID(ctx), "event", charge.Event, "count", charge.Count)
	if err := c.client.Charge(ctx, charge.Event, charge.Count); err != nil {
		return scoutErrors.Wrap(err, fmt.Sprintf("charge %s", charge.Event))
	}
	return nil
}

// LogCharger is used outside the platform. It logs and records charges.
type LogCharger struct {
	plan plan

	mu      sync.Mutex
	charges []Charge
}

func NewLogCharger(cfg config.BillingConfig) *LogCharger {
	return &LogCharger{plan: newPlan(cfg)}
}

func (c *LogCharger) ChargeStart(ctx context.Context) error {
	c.record(ctx, c.plan.start())
	return nil
}

func (c *LogCharger) ChargeTokens(ctx context.Context, model string, tokens int) error {
	charge, err := c.plan.tokens(model, tokens)
	if err != nil {
		return err
	}
	c.record(ctx, charge)
	return nil
}

// Charges returns the charges recorded so far.
func (c *LogCharger) Charges() []Charge {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Charge, len(c.charges))
	copy(out, c.charges)
	return out
}

func (c *LogCharger) record(ctx context.Context, charge Charge) {
	c.mu.Lock()
	c.charges = append(c.charges, charge)
	c.mu.Unlock()
	slog.Debug("Charge recorded locally", "run_id", logger.GetRunID(ctx), "event", charge.Event, "count", charge.Count)
}
