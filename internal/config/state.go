package config

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// State is the small mutable part of the configuration the bot's own
// processing can flip at runtime — currently only the global spam-message
// toggle and text. It lives in its own file so the master-slave sync
// collaborator can push updates without touching triggers.yaml or
// chats.yaml.
type State struct {
	mu               sync.RWMutex
	spamMessageActive bool
	spamMessageText   string
	path              string
}

// stateDoc is the on-disk shape: a YAML map of which only
// bot.spam_message.active and bot.spam_message.text are read. Other keys
// are ignored, so an operator can extend the file for other collaborators
// without this package rejecting it. This package never writes the file.
type stateDoc struct {
	Bot struct {
		SpamMessage struct {
			Active bool   `yaml:"active"`
			Text   string `yaml:"text"`
		} `yaml:"spam_message"`
	} `yaml:"bot"`
}

// LoadState reads the state file at path. A missing file yields a State
// with the spam message disabled, since absence of the file is not an
// error — the state file is optional external-collaborator territory.
func LoadState(path string) (*State, error) {
	s := &State{path: path, spamMessageText: "Your message was removed for violating this chat's rules."}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("reading state file %q: %w", path, err)
	}

	var doc stateDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing state file %q: %w", path, err)
	}
	s.spamMessageActive = doc.Bot.SpamMessage.Active
	if doc.Bot.SpamMessage.Text != "" {
		s.spamMessageText = doc.Bot.SpamMessage.Text
	}
	return s, nil
}

// SpamMessage returns whether the global spam notice is enabled and its text.
func (s *State) SpamMessage() (active bool, text string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.spamMessageActive, s.spamMessageText
}

// Reload re-reads the state file in place, replacing the in-memory values
// atomically under the write lock. Meant to be called from the admin
// reload endpoint or a file-watch loop; a missing file on reload leaves
// the previous values untouched rather than resetting them.
func (s *State) Reload() error {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return nil
	}
	fresh, err := LoadState(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.spamMessageActive = fresh.spamMessageActive
	s.spamMessageText = fresh.spamMessageText
	s.mu.Unlock()
	return nil
}
