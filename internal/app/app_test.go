package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/hkarel/telebot/internal/config"
	"github.com/hkarel/telebot/internal/mediagroup"
	"github.com/hkarel/telebot/internal/registry"
)

func writeTestFiles(t *testing.T, dir string) (triggers, chats, state string) {
	t.Helper()

	triggers = filepath.Join(dir, "triggers.yaml")
	chatsPath := filepath.Join(dir, "chats.yaml")
	statePath := filepath.Join(dir, "state.yaml")

	triggerYAML := `triggers:
  - name: no-links
    active: true
    type: link_disable
`
	chatsYAML := `group_chats:
  - id: 100
    name: Test Chat
    triggers: ["no-links"]
    user_spam_limit: 3
`
	stateYAML := `bot:
  spam_message:
    active: false
    text: "no spam please"
`
	if err := os.WriteFile(triggers, []byte(triggerYAML), 0o644); err != nil {
		t.Fatalf("writing triggers file: %v", err)
	}
	if err := os.WriteFile(chatsPath, []byte(chatsYAML), 0o644); err != nil {
		t.Fatalf("writing chats file: %v", err)
	}
	if err := os.WriteFile(statePath, []byte(stateYAML), 0o644); err != nil {
		t.Fatalf("writing state file: %v", err)
	}
	return triggers, chatsPath, statePath
}

func newTestConfig(t *testing.T, dir string) *config.Config {
	t.Helper()
	triggersFile, chatsFile, stateFile := writeTestFiles(t, dir)

	return &config.Config{
		Bot: config.BotConfig{
			ID:           "123:abc",
			WorkerCount:  1,
			QueueSize:    4,
			TriggersFile: triggersFile,
			ChatsFile:    chatsFile,
			StateFile:    stateFile,
		},
		Webhook: config.WebhookConfig{
			Listen: "127.0.0.1:0",
			Path:   "/webhook",
		},
		Admin: config.AdminConfig{
			Listen: "127.0.0.1:0",
		},
		Logging: config.LoggingConfig{Level: "info", Format: "json"},
	}
}

func TestNewWithoutOptionalBackendsFailsWithoutTLSKeypair(t *testing.T) {
	dir := t.TempDir()
	cfg := newTestConfig(t, dir)
	// No cert/key configured: ingress.New will fail to load a TLS keypair,
	// which is the expected outcome when the webhook section is left
	// unconfigured in a unit test — assert that specific, well-understood
	// failure rather than skip this path silently.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := New(context.Background(), cfg, logger)
	if err == nil {
		t.Fatal("expected an error building the webhook listener without a TLS keypair")
	}
}

func TestLoadConfigFilesPopulatesRegistryAndTriggers(t *testing.T) {
	dir := t.TempDir()
	cfg := newTestConfig(t, dir)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a := &App{cfg: cfg, logger: logger}
	a.registry = registry.New()
	a.groups = mediagroup.NewTracker(logger)

	if err := a.loadConfigFiles(); err != nil {
		t.Fatalf("loadConfigFiles: %v", err)
	}
	if a.registry.Len() != 1 {
		t.Fatalf("expected 1 chat, got %d", a.registry.Len())
	}
	if len(a.triggers.Load()) != 1 {
		t.Fatalf("expected 1 trigger, got %d", len(a.triggers.Load()))
	}
	active, text := a.state.SpamMessage()
	if active || text != "no spam please" {
		t.Fatalf("unexpected state: active=%v text=%q", active, text)
	}

	// A second load, simulating a reload, should not panic or duplicate
	// the trigger set.
	if err := a.loadConfigFiles(); err != nil {
		t.Fatalf("second loadConfigFiles: %v", err)
	}
	if len(a.triggers.Load()) != 1 {
		t.Fatalf("expected 1 trigger after reload, got %d", len(a.triggers.Load()))
	}
}
