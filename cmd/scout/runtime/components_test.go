package runtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/harunnryd/scout/internal/config"
	scoutErrors "github.com/harunnryd/scout/internal/errors"
	"github.com/harunnryd/scout/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Agent: config.AgentConfig{Scenario: config.DefaultAgentScenario, MaxTurns: 5, MaxParallelTools: 2},
		Models: config.ModelsConfig{
			Default:  "gpt-4o-mini",
			Registry: []config.ModelRegistry{{Name: "gpt-4o-mini", Provider: "openai", APIKey: "sk-test"}},
		},
		Billing: config.BillingConfig{
			StartEvent:    config.DefaultBillingStartEvent,
			TokenEvent:    config.DefaultBillingTokenEvent,
			TokensPerUnit: config.DefaultBillingTokensPerUnit,
		},
		Store: config.StoreConfig{Path: t.TempDir()},
	}
}

func TestNewRuntimeComponents_Local(t *testing.T) {
	cfg := testConfig(t)

	c, err := NewRuntimeBuilder().WithConfig(cfg).WithRunID("01LOCALRUN").Build()
	require.NoError(t, err)

	assert.False(t, c.Platform)
	assert.Equal(t, "01LOCALRUN", c.RunID)
	require.NotNil(t, c.Local)
	assert.NotNil(t, c.Driver)
	assert.True(t, c.Router.Supports("gpt-4o-mini"))
	assert.Same(t, c.Local, c.Sink.KV)
}

func TestLoadInput_Local(t *testing.T) {
	cfg := testConfig(t)
	c, err := NewRuntimeComponents(context.Background(), cfg, "01LOCALRUN")
	require.NoError(t, err)
	ctx := context.Background()

	_, found, err := c.LoadInput(ctx, "")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Local.SetRecord(ctx, store.InputKey, []byte(`{"query":"a tent","modelName":"gpt-4o"}`), "application/json"))
	in, found, err := c.LoadInput(ctx, "")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "a tent", in.Query)
	assert.Equal(t, "gpt-4o", in.ModelName)

	_, _, err = c.LoadInput(ctx, "/does/not/exist.json")
	assert.ErrorIs(t, err, scoutErrors.ErrConfiguration)
}

func TestLoadInput_Platform(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /key-value-stores/kv1/records/INPUT", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer apify-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"query":"best laptop","scenario":"products"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Apify = config.ApifyConfig{
		Token:                  "apify-token",
		BaseURL:                srv.URL,
		RunID:                  "run1",
		DefaultKeyValueStoreID: "kv1",
		DefaultDatasetID:       "ds1",
	}

	c, err := NewRuntimeComponents(context.Background(), cfg, ResolveRunID(cfg))
	require.NoError(t, err)
	assert.True(t, c.Platform)
	assert.Nil(t, c.Local)
	assert.Equal(t, "run1", c.RunID)

	in, found, err := c.LoadInput(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "best laptop", in.Query)
}

func TestNewRuntimeComponents_NoModelsReportsFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Models.Registry[0].APIKey = ""

	_, err := NewRuntimeComponents(context.Background(), cfg, "01NOMODELS")
	require.Error(t, err)
	assert.ErrorIs(t, err, scoutErrors.ErrConfiguration)

	local, err := store.NewLocal(cfg.Store, "01NOMODELS")
	require.NoError(t, err)
	status, err := local.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Terminal)
	assert.Contains(t, status.Message, "ConfigurationError")
}

func TestNewRuntimeComponents_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Agent.MaxTurns = 0

	_, err := NewRuntimeComponents(context.Background(), cfg, "01BADCONFIG")
	assert.ErrorIs(t, err, scoutErrors.ErrConfiguration)
}
