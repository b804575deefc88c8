package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harunnryd/scout/internal/config"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func TestConfigInitCmd(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	home, _ := os.UserHomeDir()

	if err := configInitCmd.RunE(&cobra.Command{}, nil); err != nil {
		t.Fatalf("Config init failed: %v", err)
	}

	configPath := filepath.Join(home, ".scout", "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Config file not created at %s: %v", configPath, err)
	}

	var parsed map[string]interface{}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Embedded config is not valid yaml: %v", err)
	}
	if _, ok := parsed["agent"]; !ok {
		t.Error("Embedded config has no agent section")
	}

	if err := configInitCmd.RunE(&cobra.Command{}, nil); err != nil {
		t.Errorf("Config init should succeed when config exists: %v", err)
	}
}

func TestRedactConfigSecrets(t *testing.T) {
	original := &config.Config{
		Models: config.ModelsConfig{
			Registry: []config.ModelRegistry{
				{Name: "m1", APIKey: "sk-secret-123456"},
				{Name: "m2", APIKey: "abc"},
			},
		},
		Apify: config.ApifyConfig{Token: "apify_api_token"},
		Delivery: config.DeliveryConfig{
			Slack:    config.SlackConfig{BotToken: "xoxb-123"},
			Telegram: config.TelegramConfig{BotToken: "123:abc"},
		},
	}

	redacted := redactConfigSecrets(original)

	if redacted.Models.Registry[0].APIKey != "sk************56" {
		t.Errorf("unexpected masked key: %s", redacted.Models.Registry[0].APIKey)
	}
	if redacted.Models.Registry[1].APIKey != "****" {
		t.Errorf("short keys should be fully masked: %s", redacted.Models.Registry[1].APIKey)
	}
	if strings.Contains(redacted.Apify.Token, "api_tok") {
		t.Errorf("apify token not masked: %s", redacted.Apify.Token)
	}
	if redacted.Delivery.Slack.BotToken == original.Delivery.Slack.BotToken {
		t.Error("slack token not masked")
	}
	if redacted.Delivery.Telegram.BotToken == original.Delivery.Telegram.BotToken {
		t.Error("telegram token not masked")
	}

	if original.Models.Registry[0].APIKey != "sk-secret-123456" {
		t.Error("redaction modified the original config")
	}
}

func TestMaskSecret(t *testing.T) {
	tests := map[string]string{
		"":         "",
		"ab":       "****",
		"abcdef":   "ab**ef",
		"xoxb-123": "xo****23",
	}
	for in, want := range tests {
		if got := maskSecret(in); got != want {
			t.Errorf("maskSecret(%q) = %q, want %q", in, got, want)
		}
	}
}
