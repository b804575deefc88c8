package runtime

import (
	"context"
	"testing"

	"github.com/harunnryd/scout/internal/config"
)

func TestNewRuntimeBuilder(t *testing.T) {
	builder := NewRuntimeBuilder()
	if builder == nil {
		t.Error("NewRuntimeBuilder() returned nil")
	}
}

func TestBuilder_WithMethods(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{}
	runID := "01TESTRUN" + t.Name()

	builder := NewRuntimeBuilder().
		WithContext(ctx).
		WithConfig(cfg).
		WithRunID(runID)

	impl, ok := builder.(*DefaultRuntimeBuilder)
	if !ok {
		t.Fatal("Builder is not DefaultRuntimeBuilder")
	}

	if impl.ctx != ctx {
		t.Error("WithContext did not set context")
	}
	if impl.cfg != cfg {
		t.Error("WithConfig did not set config")
	}
	if impl.runID != runID {
		t.Error("WithRunID did not set runID")
	}
}

func TestBuilder_RequiresConfig(t *testing.T) {
	if _, err := NewRuntimeBuilder().Build(); err == nil {
		t.Error("Build() without config should fail")
	}
}

func TestResolveRunID(t *testing.T) {
	platform := &config.Config{Apify: config.ApifyConfig{RunID: "apifyRun42"}}
	if got := ResolveRunID(platform); got != "apifyRun42" {
		t.Errorf("ResolveRunID() = %q, want platform run id", got)
	}

	local := &config.Config{}
	first, second := ResolveRunID(local), ResolveRunID(local)
	if len(first) != 26 || first == second {
		t.Errorf("ResolveRunID() = %q, %q, want distinct ulids", first, second)
	}
}
