package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// defaultUserSpamLimit is how many strikes within the ledger's TTL window
// ban a user when a chat entry doesn't set user_spam_limit explicitly.
const defaultUserSpamLimit = 5

// chatDoc is the on-disk shape of one entry in chats.yaml. SkipAdmins uses
// a pointer so an absent field can default to true, distinct from an
// explicit "skip_admins: false".
type chatDoc struct {
	ID            int64    `yaml:"id"`
	Name          string   `yaml:"name"`
	Triggers      []string `yaml:"triggers"`
	SkipAdmins    *bool    `yaml:"skip_admins"`
	PremiumBan    bool     `yaml:"premium_ban"`
	WhiteUsers    []int64  `yaml:"white_users"`
	UserSpamLimit *int     `yaml:"user_spam_limit"`
	UserRestricts []int64  `yaml:"user_restricts"`
}

// ChatSeed is one configured group chat, as the registry's initial
// snapshot before live administrator/owner data is fetched from the
// platform. Triggers is the ordered, opt-in list of trigger names this
// chat runs — a trigger it doesn't list here never applies to it.
type ChatSeed struct {
	ID            int64
	Name          string
	Triggers      []string
	SkipAdmins    bool
	PremiumBan    bool
	WhiteUsers    []int64
	UserSpamLimit int
	UserRestricts []int64
}

type chatsFile struct {
	GroupChats []chatDoc `yaml:"group_chats"`
}

// LoadChats reads path and returns every well-formed chat seed. An entry
// missing a usable id is logged and skipped, counted the same way a
// malformed trigger is.
func LoadChats(path string, logger *slog.Logger) ([]ChatSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading chats file %q: %w", path, err)
	}

	var doc chatsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing chats file %q: %w", path, err)
	}

	out := make([]ChatSeed, 0, len(doc.GroupChats))
	for _, cd := range doc.GroupChats {
		if cd.ID == 0 {
			globalConfigParceErrors.Add(1)
			if logger != nil {
				logger.Error("skipping chat entry with no id", slog.String("name", cd.Name))
			}
			continue
		}

		skipAdmins := true
		if cd.SkipAdmins != nil {
			skipAdmins = *cd.SkipAdmins
		}

		userSpamLimit := defaultUserSpamLimit
		if cd.UserSpamLimit != nil {
			userSpamLimit = *cd.UserSpamLimit
		}

		out = append(out, ChatSeed{
			ID:            cd.ID,
			Name:          cd.Name,
			Triggers:      cd.Triggers,
			SkipAdmins:    skipAdmins,
			PremiumBan:    cd.PremiumBan,
			WhiteUsers:    cd.WhiteUsers,
			UserSpamLimit: userSpamLimit,
			UserRestricts: cd.UserRestricts,
		})
	}
	return out, nil
}
