package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := defaults()

	if cfg.Instance.Name != "telebot" {
		t.Errorf("default instance.name = %q, want %q", cfg.Instance.Name, "telebot")
	}
	if cfg.Bot.WorkerCount != 4 {
		t.Errorf("default worker_count = %d, want 4", cfg.Bot.WorkerCount)
	}
	if cfg.Webhook.Listen != "0.0.0.0:8443" {
		t.Errorf("default webhook.listen = %q, want %q", cfg.Webhook.Listen, "0.0.0.0:8443")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default logging.level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoad_NoFile_FailsWithoutBotID(t *testing.T) {
	_, err := Load("/nonexistent/telebot.yaml")
	if err == nil {
		t.Fatal("expected validation error: defaults have no bot id")
	}
}

func TestLoad_NoFile_EnvSuppliesBotID(t *testing.T) {
	t.Setenv("TELEBOT_BOT_ID", "123:abc")
	cfg, err := Load("/nonexistent/telebot.yaml")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Bot.ID != "123:abc" {
		t.Errorf("bot.id = %q, want %q", cfg.Bot.ID, "123:abc")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "telebot.yaml")
	content := `
instance:
  name: test-bot
bot:
  id: "123:abc"
  worker_count: 8
webhook:
  listen: "127.0.0.1:9443"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Instance.Name != "test-bot" {
		t.Errorf("instance.name = %q, want %q", cfg.Instance.Name, "test-bot")
	}
	if cfg.Bot.WorkerCount != 8 {
		t.Errorf("worker_count = %d, want 8", cfg.Bot.WorkerCount)
	}
	// Values not in the file should retain defaults.
	if cfg.NATS.URL != "nats://localhost:4222" {
		t.Errorf("nats.url = %q, want default", cfg.NATS.URL)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "telebot.yaml")
	if err := os.WriteFile(path, []byte("not: valid: yaml: ["), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatal("Load should fail on invalid YAML")
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			"zero worker count",
			"bot:\n  id: \"x\"\n  worker_count: 0\n",
		},
		{
			"invalid log level",
			"bot:\n  id: \"x\"\nlogging:\n  level: trace\n",
		},
		{
			"invalid log format",
			"bot:\n  id: \"x\"\nlogging:\n  format: xml\n",
		},
		{
			"empty webhook listen",
			"bot:\n  id: \"x\"\nwebhook:\n  listen: \"\"\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "telebot.yaml")
			if err := os.WriteFile(path, []byte(tc.content), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TELEBOT_BOT_ID", "env-id")
	t.Setenv("TELEBOT_BOT_WORKER_COUNT", "16")
	t.Setenv("TELEBOT_LOGGING_LEVEL", "debug")

	cfg, err := Load("/nonexistent/telebot.yaml")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Bot.ID != "env-id" {
		t.Errorf("bot.id = %q, want %q", cfg.Bot.ID, "env-id")
	}
	if cfg.Bot.WorkerCount != 16 {
		t.Errorf("worker_count = %d, want 16", cfg.Bot.WorkerCount)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging.level = %q, want debug", cfg.Logging.Level)
	}
}
