// Package tgapi defines the wire types and HTTP client for the upstream
// chat platform's Bot API (https://api.telegram.org/bot<token>/<method>).
// Types mirror the JSON shapes documented by the platform; only the fields
// the moderation core actually reads or writes are modeled.
package tgapi

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Update is one inbound event delivered by the webhook. Exactly one of the
// four payload fields is populated; Update is immutable after decode.
type Update struct {
	UpdateID           int64    `json:"update_id"`
	Message            *Message `json:"message,omitempty"`
	EditedMessage      *Message `json:"edited_message,omitempty"`
	ChannelPost        *Message `json:"channel_post,omitempty"`
	EditedChannelPost  *Message `json:"edited_channel_post,omitempty"`
}

// AnyMessage returns the message payload carried by the update, preferring
// a new message over its edited/channel-post counterparts, and reports
// whether the update carried a message at all.
func (u *Update) AnyMessage() (*Message, bool) {
	switch {
	case u.Message != nil:
		return u.Message, true
	case u.EditedMessage != nil:
		return u.EditedMessage, true
	case u.ChannelPost != nil:
		return u.ChannelPost, true
	case u.EditedChannelPost != nil:
		return u.EditedChannelPost, true
	default:
		return nil, false
	}
}

// Message carries a numeric id, chat and sender references, send time, and
// optional text/caption/entities. Messages are read-only in the core.
type Message struct {
	MessageID    int64     `json:"message_id"`
	From         *User     `json:"from,omitempty"`
	Chat         Chat      `json:"chat"`
	Date         int64     `json:"date"`
	Text         string    `json:"text,omitempty"`
	Caption      string    `json:"caption,omitempty"`
	MediaGroupID string    `json:"media_group_id,omitempty"`
	Entities     []Entity  `json:"entities,omitempty"`
	CaptionEntities []Entity `json:"caption_entities,omitempty"`
}

// EntityKind enumerates the entity types the core cares about. The platform
// defines more (bold, italic, ...); unrecognized kinds are preserved as-is
// but never activate a trigger.
const (
	EntityURL        = "url"
	EntityTextLink   = "text_link"
	EntityMention    = "mention"
	EntityBotCommand = "bot_command"
)

// Entity is a typed substring range inside Message.Text, measured in UTF-16
// code units as the platform wire format specifies.
type Entity struct {
	Type   string `json:"type"`
	Offset int    `json:"offset"`
	Length int    `json:"length"`
	URL    string `json:"url,omitempty"` // only for text_link
}

// User identifies a message sender or chat administrator.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// DisplayName returns "first last username" trimmed, the form the core
// uses as the `userName` half of clean text for regexp(analyze=username).
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	parts := make([]string, 0, 3)
	for _, p := range []string{u.FirstName, u.LastName, u.Username} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// Chat classification values. The worker pool processes messages only
// from group and supergroup chats and ignores the other types.
const (
	ChatPrivate    = "private"
	ChatGroup      = "group"
	ChatSupergroup = "supergroup"
	ChatChannel    = "channel"
)

// Chat is the wire representation of a chat as reported by the platform.
type Chat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title,omitempty"`
}

// ChatMember is one entry of a getChatAdministrators response.
type ChatMember struct {
	Status string `json:"status"` // "creator", "administrator", ...
	User   User   `json:"user"`
}

const StatusCreator = "creator"

// Response is the generic envelope every Bot API call responds with.
type Response struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
}

// ResponseError reports a non-OK Bot API response.
type ResponseError struct {
	Code        int
	Description string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("telegram api error %d: %s", e.Code, e.Description)
}

// Err returns a *ResponseError if the response reports failure, else nil.
func (r *Response) Err() error {
	if r.OK {
		return nil
	}
	return &ResponseError{Code: r.ErrorCode, Description: r.Description}
}

// ChatMembers decodes Result as a getChatAdministrators response.
func (r *Response) ChatMembers() ([]ChatMember, error) {
	var members []ChatMember
	if len(r.Result) == 0 {
		return members, nil
	}
	if err := json.Unmarshal(r.Result, &members); err != nil {
		return nil, fmt.Errorf("decoding chat members: %w", err)
	}
	return members, nil
}

