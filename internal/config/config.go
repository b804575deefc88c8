package config

import (
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
)

type Config struct {
	Log      LogConfig      `koanf:"log"`
	Agent    AgentConfig    `koanf:"agent"`
	Models   ModelsConfig   `koanf:"models"`
	Prompts  PromptsConfig  `koanf:"prompts"`
	Apify    ApifyConfig    `koanf:"apify"`
	Billing  BillingConfig  `koanf:"billing"`
	Store    StoreConfig    `koanf:"store"`
	Delivery DeliveryConfig `koanf:"delivery"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

type AgentConfig struct {
	Scenario         string `koanf:"scenario"`
	MaxTurns         int    `koanf:"max_turns"`
	TokenBudget      int    `koanf:"token_budget"`
	MaxParallelTools int    `koanf:"max_parallel_tools"`
}

type ModelsConfig struct {
	Default             string          `koanf:"default"`
	Fallback            string          `koanf:"fallback"`
	MaxFallbackAttempts int             `koanf:"max_fallback_attempts"`
	MaxOutputTokens     int             `koanf:"max_output_tokens"`
	Registry            []ModelRegistry `koanf:"registry"`
}

type ModelRegistry struct {
	Name     string `koanf:"name"`
	Provider string `koanf:"provider"`
	BaseURL  string `koanf:"base_url"`
	APIKey   string `koanf:"api_key"`
}

// PromptsConfig overrides the prompts a scenario ships with.
type PromptsConfig struct {
	Thinker ThinkerPromptConfig `koanf:"thinker"`
}

type ThinkerPromptConfig struct {
	System      string `koanf:"system"`
	Instruction string `koanf:"instruction"`
	Correction  string `koanf:"correction"`
}

type ApifyConfig struct {
	Token                  string `koanf:"token"`
	BaseURL                string `koanf:"base_url"`
	RunID                  string `koanf:"run_id"`
	DefaultKeyValueStoreID string `koanf:"default_key_value_store_id"`
	DefaultDatasetID       string `koanf:"default_dataset_id"`
	RequestTimeout         string `koanf:"request_timeout"`
	WaitForFinish          string `koanf:"wait_for_finish"`
	PollInterval           string `koanf:"poll_interval"`
	ProductsActor          string `koanf:"products_actor"`
	ReviewsActor           string `koanf:"reviews_actor"`
	PostsActor             string `koanf:"posts_actor"`
}

// OnPlatform reports whether the process runs inside an Apify actor run.
func (c ApifyConfig) OnPlatform() bool {
	return strings.TrimSpace(c.RunID) != ""
}

type BillingConfig struct {
	StartEvent    string `koanf:"start_event"`
	TokenEvent    string `koanf:"token_event"`
	TokensPerUnit int    `koanf:"tokens_per_unit"`
}

type StoreConfig struct {
	Path         string `koanf:"path"`
	LockTimeout  string `koanf:"lock_timeout"`
	LockRetry    string `koanf:"lock_retry"`
	LockMaxRetry int    `koanf:"lock_max_retry"`
}

type DeliveryConfig struct {
	Slack    SlackConfig    `koanf:"slack"`
	Telegram TelegramConfig `koanf:"telegram"`
}

type SlackConfig struct {
	Enabled  bool   `koanf:"enabled"`
	BotToken string `koanf:"bot_token"`
	Channel  string `koanf:"channel"`
}

type TelegramConfig struct {
	Enabled  bool   `koanf:"enabled"`
	BotToken string `koanf:"bot_token"`
	ChatID   int64  `koanf:"chat_id"`
}

const (
	DefaultLogLevel                 = "info"
	DefaultAgentScenario            = "products"
	DefaultAgentMaxTurns            = 25
	DefaultAgentTokenBudget         = 200000
	DefaultAgentMaxParallelTools    = 4
	DefaultModelDefault             = "gpt-4o-mini"
	DefaultModelMaxFallbackAttempts = 2
	DefaultModelMaxOutputTokens     = 4096
	DefaultOpenAIBaseURL            = "https://api.openai.com/v1"
	DefaultOllamaBaseURL            = "http://localhost:11434/v1"
	DefaultOllamaAPIKey             = "ollama"
	DefaultZaiBaseURL               = "https://api.z.ai/api/paas/v4/"
	DefaultThinkerInstructionPrompt = "Use the tools to gather the facts you need. When you have enough information, write the final answer for the user in markdown."
	DefaultThinkerCorrectionPrompt  = "Your last response could not be accepted as the final %s: %v. Continue the task and finish with a response that matches the required structure."
	DefaultApifyBaseURL             = "https://api.apify.com/v2"
	DefaultApifyRequestTimeout      = "90s"
	DefaultApifyWaitForFinish       = "60s"
	DefaultApifyPollInterval        = "2s"
	DefaultApifyProductsActor       = "junglee/Amazon-crawler"
	DefaultApifyReviewsActor        = "junglee/amazon-reviews-scraper"
	DefaultApifyPostsActor          = "apify/instagram-scraper"
	DefaultBillingStartEvent        = "actor-start"
	DefaultBillingTokenEvent        = "%s-100-tokens"
	DefaultBillingTokensPerUnit     = 100
	DefaultStoreLockTimeout         = "30s"
	DefaultStoreLockRetry           = "100ms"
	DefaultStoreLockMaxRetry        = 300
)

func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	// Hardcoded Defaults
	defaults := map[string]interface{}{
		"log.level":                    DefaultLogLevel,
		"agent.scenario":               DefaultAgentScenario,
		"agent.max_turns":              DefaultAgentMaxTurns,
		"agent.token_budget":           DefaultAgentTokenBudget,
		"agent.max_parallel_tools":     DefaultAgentMaxParallelTools,
		"models.default":               DefaultModelDefault,
		"models.fallback":              "",
		"models.max_fallback_attempts": DefaultModelMaxFallbackAttempts,
		"models.max_output_tokens":     DefaultModelMaxOutputTokens,
		"models.registry": []ModelRegistry{
			{Name: "gpt-4o-mini", Provider: "openai"},
			{Name: "gpt-4o", Provider: "openai"},
			{Name: "gpt-4.1-mini", Provider: "openai"},
			{Name: "claude-sonnet-4-0", Provider: "anthropic"},
			{Name: "gemini-2.5-flash", Provider: "gemini"},
		},
		"prompts.thinker.instruction": DefaultThinkerInstructionPrompt,
		"prompts.thinker.correction":  DefaultThinkerCorrectionPrompt,
		"apify.base_url":              DefaultApifyBaseURL,
		"apify.request_timeout":       DefaultApifyRequestTimeout,
		"apify.wait_for_finish":       DefaultApifyWaitForFinish,
		"apify.poll_interval":         DefaultApifyPollInterval,
		"apify.products_actor":        DefaultApifyProductsActor,
		"apify.reviews_actor":         DefaultApifyReviewsActor,
		"apify.posts_actor":           DefaultApifyPostsActor,
		"billing.start_event":         DefaultBillingStartEvent,
		"billing.token_event":         DefaultBillingTokenEvent,
		"billing.tokens_per_unit":     DefaultBillingTokensPerUnit,
		"store.path":                  filepath.Join(os.Getenv("HOME"), ".scout", "storage"),
		"store.lock_timeout":          DefaultStoreLockTimeout,
		"store.lock_retry":            DefaultStoreLockRetry,
		"store.lock_max_retry":        DefaultStoreLockMaxRetry,
		"delivery.slack.enabled":      false,
		"delivery.telegram.enabled":   false,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	// Config file loading
	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, err
		}
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			globalPath := filepath.Join(home, ".scout", "config.yaml")
			if err := k.Load(file.Provider(globalPath), yaml.Parser()); err != nil {
				slog.Debug("Global config not found or invalid", "path", globalPath, "error", err)
			}
		}
	}

	// Environment Variables: SCOUT_AGENT__MAX_TURNS -> agent.max_turns
	k.Load(env.Provider("SCOUT_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "SCOUT_")), "__", ".")
	}), nil)

	// CLI Flags
	if cmd != nil {
		k.Load(posflag.Provider(cmd.Flags(), ".", k), nil)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	for i, m := range cfg.Models.Registry {
		if m.Provider == "" {
			cfg.Models.Registry[i].Provider = "openai"
		}
	}

	storePath, err := expandPath(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if storePath != "" {
		cfg.Store.Path = storePath
	}

	// Post-Process: Inject standard Env Vars if missing
	injectProviderKey(&cfg, "openai", os.Getenv("OPENAI_API_KEY"))
	injectProviderKey(&cfg, "anthropic", os.Getenv("ANTHROPIC_API_KEY"))
	injectProviderKey(&cfg, "gemini", os.Getenv("GEMINI_API_KEY"))
	injectProviderKey(&cfg, "zai", os.Getenv("ZAI_API_KEY"))

	injectString(&cfg.Apify.Token, os.Getenv("APIFY_TOKEN"))
	injectString(&cfg.Apify.RunID, os.Getenv("APIFY_ACTOR_RUN_ID"))
	injectString(&cfg.Apify.DefaultKeyValueStoreID, os.Getenv("APIFY_DEFAULT_KEY_VALUE_STORE_ID"))
	injectString(&cfg.Apify.DefaultDatasetID, os.Getenv("APIFY_DEFAULT_DATASET_ID"))
	if base := strings.TrimSpace(os.Getenv("APIFY_API_BASE_URL")); base != "" && cfg.Apify.BaseURL == DefaultApifyBaseURL {
		cfg.Apify.BaseURL = strings.TrimSuffix(base, "/") + "/v2"
	}

	return &cfg, nil
}

// Validate checks settings that every run depends on.
func (c *Config) Validate() error {
	if c.Agent.MaxTurns <= 0 {
		return fmt.Errorf("agent.max_turns must be positive, got %d", c.Agent.MaxTurns)
	}
	if c.Agent.TokenBudget < 0 {
		return fmt.Errorf("agent.token_budget must not be negative, got %d", c.Agent.TokenBudget)
	}
	if c.Billing.TokensPerUnit <= 0 {
		return fmt.Errorf("billing.tokens_per_unit must be positive, got %d", c.Billing.TokensPerUnit)
	}
	if !strings.Contains(c.Billing.TokenEvent, "%s") {
		return fmt.Errorf("billing.token_event must contain %%s for the model name, got %q", c.Billing.TokenEvent)
	}
	if correction := c.Prompts.Thinker.Correction; strings.TrimSpace(correction) != "" && formatVerbs(correction) != 2 {
		return fmt.Errorf("prompts.thinker.correction must contain two format verbs, for the output name and the rejection reason, got %q", correction)
	}
	if c.Delivery.Slack.Enabled && (c.Delivery.Slack.BotToken == "" || c.Delivery.Slack.Channel == "") {
		return fmt.Errorf("delivery.slack requires bot_token and channel")
	}
	if c.Delivery.Telegram.Enabled && (c.Delivery.Telegram.BotToken == "" || c.Delivery.Telegram.ChatID == 0) {
		return fmt.Errorf("delivery.telegram requires bot_token and chat_id")
	}
	return nil
}

// formatVerbs counts the fmt verbs in s. "%%" is a literal percent sign.
func formatVerbs(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] != '%' {
			continue
		}
		if i+1 < len(s) && s[i+1] == '%' {
			i++
			continue
		}
		n++
	}
	return n
}

func injectProviderKey(cfg *Config, provider, key string) {
	if key == "" {
		return
	}
	for i, m := range cfg.Models.Registry {
		if m.Provider == provider && m.APIKey == "" {
			cfg.Models.Registry[i].APIKey = key
		}
	}
}

func injectString(dst *string, value string) {
	if strings.TrimSpace(*dst) == "" && strings.TrimSpace(value) != "" {
		*dst = strings.TrimSpace(value)
	}
}

// expandPath resolves environment variables and "~/" home shortcuts.
func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}

	expanded := os.ExpandEnv(trimmed)
	if expanded == "~" || strings.HasPrefix(expanded, "~/") {
		home, err := os.UserHomeDir()
		if err != nil || strings.TrimSpace(home) == "" {
			current, userErr := user.Current()
			if userErr != nil {
				return "", fmt.Errorf("resolve home dir: %w", userErr)
			}
			home = current.HomeDir
		}
		expanded = filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(expanded, "~"), "/"))
	}

	return filepath.Clean(expanded), nil
}
