// Package registry holds the live, per-chat configuration the worker pool
// consults on every message: the chat's own ordered, opt-in trigger list,
// its admin/whitelist gate, its spam threshold, and the cached
// administrator/owner id sets fetched from the platform.
package registry

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/hkarel/telebot/internal/config"
	"github.com/hkarel/telebot/internal/rules"
	"github.com/hkarel/telebot/internal/tgapi"
)

// Chat is one group chat's live configuration. The mutable fields
// (AdminIDs, OwnerIDs, Name) change independent of a config reload — the
// hourly tick refreshes the admin/owner sets and SetName sets the name —
// so they're guarded by their own mutex rather than the registry's.
type Chat struct {
	ID            int64
	Triggers      []*rules.Trigger
	SkipAdmins    bool
	WhiteUsers    map[int64]struct{}
	PremiumBan    bool
	UserSpamLimit int
	UserRestricts []int64

	mu       sync.RWMutex
	name     string
	adminIDs map[int64]struct{}
	ownerIDs map[int64]struct{}
}

// Name returns the chat's display name: the one it was built with by
// Replace, or the one last set with SetName.
func (c *Chat) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

// SetName updates the chat's display name.
func (c *Chat) SetName(name string) {
	c.mu.Lock()
	c.name = name
	c.mu.Unlock()
}

// IsAdmin reports whether userID currently administers this chat.
func (c *Chat) IsAdmin(userID int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.adminIDs[userID]
	return ok
}

// IsOwner reports whether userID currently owns this chat.
func (c *Chat) IsOwner(userID int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.ownerIDs[userID]
	return ok
}

// SetAdmins replaces the cached administrator id set from a fresh
// getChatAdministrators call, also recomputing the owner subset.
func (c *Chat) SetAdmins(members []tgapi.ChatMember) {
	admins := make(map[int64]struct{}, len(members))
	owners := make(map[int64]struct{})
	for _, m := range members {
		if m.User.ID == 0 {
			continue
		}
		admins[m.User.ID] = struct{}{}
		if m.Status == tgapi.StatusCreator {
			owners[m.User.ID] = struct{}{}
		}
	}
	c.mu.Lock()
	c.adminIDs = admins
	c.ownerIDs = owners
	c.mu.Unlock()
}

// AdminIDs returns the current administrator id set, for mirroring into
// an external cache.
func (c *Chat) AdminIDs() []int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]int64, 0, len(c.adminIDs))
	for id := range c.adminIDs {
		ids = append(ids, id)
	}
	return ids
}

// OwnerIDs returns the current owner id set, for mirroring into an
// external cache.
func (c *Chat) OwnerIDs() []int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]int64, 0, len(c.ownerIDs))
	for id := range c.ownerIDs {
		ids = append(ids, id)
	}
	return ids
}

// IsWhitelistedUser reports whether userID is exempt from every trigger in
// this chat, independent of any one trigger's own whitelist.
func (c *Chat) IsWhitelistedUser(userID int64) bool {
	if c.WhiteUsers == nil {
		return false
	}
	_, ok := c.WhiteUsers[userID]
	return ok
}

// Registry is the thread-safe collection of every configured chat. A
// config reload calls Replace with the freshly parsed seed list; existing
// admin/owner data for chats that survive the reload (same ID) is carried
// forward rather than reset, since that data isn't sourced from the config
// file. A non-empty name already held for that id is kept as well, so a
// name changed in the config file does not replace it.
type Registry struct {
	mu    sync.RWMutex
	chats map[int64]*Chat
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{chats: make(map[int64]*Chat)}
}

// Get returns the chat with the given id, or (nil, false) if it is not
// configured — the worker pool answers an update from an unconfigured
// chat only with the fallback notice.
func (r *Registry) Get(chatID int64) (*Chat, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.chats[chatID]
	return c, ok
}

// Snapshot returns every configured chat ordered by id, for the hourly
// admin-refresh tick to iterate over without holding the registry lock
// throughout.
func (r *Registry) Snapshot() []*Chat {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Chat, 0, len(r.chats))
	for _, c := range r.chats {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Replace installs a fresh chat list built from seeds, resolving each
// chat's trigger name list against triggers. A name with no matching
// trigger is logged and skipped; the chat is still produced with the
// triggers that did resolve, matching how a malformed single trigger
// reference doesn't invalidate the rest of the chat's rule set.
// Existing admin/owner/name data is inherited from any chat already
// present under the same id.
func (r *Registry) Replace(seeds []config.ChatSeed, triggers []*rules.Trigger, logger *slog.Logger) {
	byName := make(map[string]*rules.Trigger, len(triggers))
	for _, t := range triggers {
		byName[t.Name] = t
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[int64]*Chat, len(seeds))
	for _, seed := range seeds {
		resolved := make([]*rules.Trigger, 0, len(seed.Triggers))
		for _, name := range seed.Triggers {
			t, ok := byName[name]
			if !ok {
				if logger != nil {
					logger.Error("chat references unknown trigger",
						slog.Int64("chat_id", seed.ID),
						slog.String("trigger", name),
					)
				}
				continue
			}
			resolved = append(resolved, t)
		}

		whiteUsers := make(map[int64]struct{}, len(seed.WhiteUsers))
		for _, id := range seed.WhiteUsers {
			whiteUsers[id] = struct{}{}
		}

		chat := &Chat{
			ID:            seed.ID,
			Triggers:      resolved,
			SkipAdmins:    seed.SkipAdmins,
			WhiteUsers:    whiteUsers,
			PremiumBan:    seed.PremiumBan,
			UserSpamLimit: seed.UserSpamLimit,
			UserRestricts: seed.UserRestricts,
			name:          seed.Name,
		}
		if old, ok := r.chats[seed.ID]; ok {
			old.mu.RLock()
			chat.adminIDs = old.adminIDs
			chat.ownerIDs = old.ownerIDs
			if old.name != "" {
				chat.name = old.name
			}
			old.mu.RUnlock()
		}
		next[seed.ID] = chat
	}
	r.chats = next
}

// Len reports the number of configured chats.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.chats)
}
