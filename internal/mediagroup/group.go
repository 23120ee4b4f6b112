// Package mediagroup accumulates the messages belonging to one platform
// media_group_id so the worker can treat an album as a single decision
// unit instead of running triggers separately on each photo in it.
package mediagroup

import (
	"log/slog"
	"time"
)

// ttl is how long a media group stays alive without receiving a new
// message before it is evicted, per the platform's own album-close window.
const ttl = time.Hour

const maxGroups = 10000

// Group tracks one in-flight album: the chat it was first seen in, every
// message id seen so far, and whether any message in it has already
// tripped a trigger. Once IsBad is set it stays set for the life of the
// group, so a late-arriving clean photo in an album that already
// triggered still gets the group's action.
type Group struct {
	ChatID     int64
	MessageIDs map[int64]struct{}
	IsBad      bool
	Reason     string
}

// Tracker is the process-wide accumulator of in-flight media groups,
// keyed purely by media_group_id — the platform assigns that id
// independent of chat, and a group is only ever supposed to belong to one
// chat. ChatID is kept on Group precisely so a later touch claiming a
// different chat can be detected instead of silently merged.
type Tracker struct {
	cache  *ttlCache[*Group]
	logger *slog.Logger
}

// NewTracker builds a Tracker with the standard one-hour TTL.
func NewTracker(logger *slog.Logger) *Tracker {
	return &Tracker{cache: newTTLCache[*Group](ttl, maxGroups), logger: logger}
}

// Touch registers that a message belonging to mediaGroupID has been seen
// in chatID, creating the group on first touch, and returns it. If the
// group already exists under a different chat id, that is logged and the
// touch is recorded against the group's original chat rather than
// silently adopting the new one. The returned pointer is shared with
// every other caller touching the same group, so callers must hold their
// own synchronization if they mutate fields concurrently. Pool workers
// all read from one shared queue, so messages of one album can be handled
// by different workers.
func (t *Tracker) Touch(chatID int64, mediaGroupID string, messageID int64) *Group {
	g, ok := t.cache.get(mediaGroupID)
	if !ok {
		g = &Group{ChatID: chatID, MessageIDs: make(map[int64]struct{})}
	} else if g.ChatID != chatID {
		if t.logger != nil {
			t.logger.Error("media group seen under a second chat id",
				slog.String("media_group_id", mediaGroupID),
				slog.Int64("original_chat_id", g.ChatID),
				slog.Int64("new_chat_id", chatID),
			)
		}
	}
	g.MessageIDs[messageID] = struct{}{}
	t.cache.set(mediaGroupID, g)
	return g
}

// MarkBad flags the group (and every future Touch on the same
// media_group_id within the TTL) as having triggered, recording reason
// for the audit trail.
func (t *Tracker) MarkBad(chatID int64, mediaGroupID, reason string) {
	g, ok := t.cache.get(mediaGroupID)
	if !ok {
		g = &Group{ChatID: chatID, MessageIDs: make(map[int64]struct{})}
	}
	g.IsBad = true
	g.Reason = reason
	t.cache.set(mediaGroupID, g)
}

// Len reports the number of in-flight groups, for the ops metrics surface.
func (t *Tracker) Len() int {
	return t.cache.len()
}
