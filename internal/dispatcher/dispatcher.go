// Package dispatcher turns a worker's decision (delete this message, ban
// this user) into the outbound Bot API calls that carry it out, and owns
// the spam ledger that decides when a repeat offender escalates from a
// deleted message to a ban.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hkarel/telebot/internal/config"
	"github.com/hkarel/telebot/internal/registry"
	"github.com/hkarel/telebot/internal/tgapi"
)

// noticeDelay and banDelay are the async send/ban delays, indirected
// through package-level vars so a test can zero them out instead of
// actually waiting.
var (
	noticeDelay = time.Second
	banDelay    = 3 * time.Second
)

// Action is one outbound decision the worker pool hands to the dispatcher.
type Action struct {
	ChatID         int64
	MessageID      int64
	UserID         int64
	TriggerName    string
	Description    string
	Reason         string
	OriginalText   string
	IsOwner        bool
	ImmediatelyBan bool
}

// AuditSink receives a record of every action actually carried out.
// Satisfied by *audit.Sink; nil disables audit recording.
type AuditSink interface {
	Record(ctx context.Context, chatID, userID int64, trigger, action, reason string) error
}

// EventPublisher receives a copy of every action, decoupled from delivery.
// Satisfied by *eventbus.Bus; nil disables event publication.
type EventPublisher interface {
	PublishAction(ctx context.Context, ev ActionEvent) error
}

// ActionEvent is the primitive shape handed to an EventPublisher, kept
// free of any dependency on the eventbus wire envelope so this package
// never needs to import it.
type ActionEvent struct {
	ChatID      int64
	MessageID   int64
	UserID      int64
	TriggerName string
	Reason      string
	Result      string
}

// Dispatcher owns the Bot API client, the spam ledger, and the chat
// registry needed to decide ban thresholds and owner immunity.
type Dispatcher struct {
	client   *tgapi.Client
	ledger   *Ledger
	registry *registry.Registry
	state    *config.State
	logger   *slog.Logger
	audit    AuditSink
	events   EventPublisher
}

// New builds a Dispatcher.
func New(client *tgapi.Client, reg *registry.Registry, state *config.State, logger *slog.Logger, audit AuditSink, events EventPublisher) *Dispatcher {
	return &Dispatcher{
		client:   client,
		ledger:   NewLedger(),
		registry: reg,
		state:    state,
		logger:   logger,
		audit:    audit,
		events:   events,
	}
}

// Handle deletes the offending message and decides its punishment. An
// owner is never struck or banned, only deleted. A trigger flagged
// immediately-ban skips the strike ledger entirely and bans straight
// away; every other activation goes through the chat's strike ledger and
// only bans once the chat's user_spam_limit is crossed. The user's strikes
// are cleared as soon as that ban is decided, before the delayed
// banChatMember call is made; a failed ban is logged and the strikes are
// not restored. Either way, the explanatory notice is composed and sent.
func (d *Dispatcher) Handle(ctx context.Context, a Action) {
	if err := d.deleteMessage(ctx, a.ChatID, a.MessageID); err != nil {
		d.logger.Error("deleting message failed",
			slog.Int64("chat_id", a.ChatID),
			slog.Int64("message_id", a.MessageID),
			slog.String("error", err.Error()),
		)
	}

	result := "deleted"

	switch {
	case a.IsOwner:
		// Owner immunity: message already deleted above, never struck or banned.
	case a.ImmediatelyBan:
		result = "banned"
		d.banAfterDelay(a.ChatID, a.UserID)
	default:
		count := d.ledger.Strike(a.ChatID, a.UserID)
		limit := 0
		if chat, ok := d.registry.Get(a.ChatID); ok {
			limit = chat.UserSpamLimit
		}
		if ShouldBan(count, limit) {
			result = "banned"
			d.ledger.Reset(a.ChatID, a.UserID)
			d.banAfterDelay(a.ChatID, a.UserID)
		}
	}

	d.sendNoticeAfterDelay(a)
	d.recordAndPublish(ctx, a, result)
}

// banAfterDelay issues banChatMember after banDelay, matching the
// upstream bot's own staggered punishment rollout. The call runs
// detached from the request context, since the caller's context is
// typically gone long before the delay elapses.
func (d *Dispatcher) banAfterDelay(chatID, userID int64) {
	untilDate := time.Now().Unix()
	go func() {
		time.Sleep(banDelay)
		if err := d.banUser(context.Background(), chatID, userID, untilDate); err != nil {
			d.logger.Error("banning user failed",
				slog.Int64("chat_id", chatID),
				slog.Int64("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// sendNoticeAfterDelay composes and, after noticeDelay, sends the
// explanatory HTML notice for one activation.
func (d *Dispatcher) sendNoticeAfterDelay(a Action) {
	text := composeNotice(a)
	go func() {
		time.Sleep(noticeDelay)
		if err := d.sendMessage(context.Background(), a.ChatID, text); err != nil {
			d.logger.Error("sending notice failed",
				slog.Int64("chat_id", a.ChatID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

const noticeTemplate = "Сообщение удалено.\nТекст: %s\nПричина: %s\nТриггер: %s — %s"

// composeNotice builds the per-activation HTML notice substituting the
// original message text, the activation reason, the trigger's name, and
// its description. Only +, &lt; and &gt; are escaped, matching the
// upstream bot's own minimal escaping for an HTML parse_mode message.
func composeNotice(a Action) string {
	return fmt.Sprintf(noticeTemplate,
		escapeNoticeText(a.OriginalText),
		escapeNoticeText(a.Reason),
		escapeNoticeText(a.TriggerName),
		escapeNoticeText(a.Description),
	)
}

func escapeNoticeText(s string) string {
	s = strings.ReplaceAll(s, "+", "%2B")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// NotifyUnconfiguredChat sends the fallback spam notice, if one is
// currently active and non-empty, once to a chat that has no registry
// entry. There is no per-chat rule set to run against an unconfigured
// chat, so this is the only response it ever gets.
func (d *Dispatcher) NotifyUnconfiguredChat(ctx context.Context, chatID int64) {
	active, text := d.state.SpamMessage()
	if !active || text == "" {
		return
	}
	if err := d.sendMessage(ctx, chatID, text); err != nil {
		d.logger.Error("sending fallback notice failed",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()),
		)
	}
}

func (d *Dispatcher) recordAndPublish(ctx context.Context, a Action, result string) {
	if d.audit != nil {
		if err := d.audit.Record(ctx, a.ChatID, a.UserID, a.TriggerName, result, a.Reason); err != nil {
			d.logger.Error("audit record failed", slog.String("error", err.Error()))
		}
	}
	if d.events != nil {
		ev := ActionEvent{
			ChatID:      a.ChatID,
			MessageID:   a.MessageID,
			UserID:      a.UserID,
			TriggerName: a.TriggerName,
			Reason:      a.Reason,
			Result:      result,
		}
		if err := d.events.PublishAction(ctx, ev); err != nil {
			d.logger.Error("publishing action event failed", slog.String("error", err.Error()))
		}
	}
}

func (d *Dispatcher) deleteMessage(ctx context.Context, chatID, messageID int64) error {
	resp, err := d.client.Call(ctx, tgapi.MethodDeleteMessage, tgapi.DeleteMessageParams(chatID, messageID))
	if err != nil {
		return err
	}
	return resp.Err()
}

func (d *Dispatcher) banUser(ctx context.Context, chatID, userID, untilDate int64) error {
	resp, err := d.client.Call(ctx, tgapi.MethodBanChatMember, tgapi.BanChatMemberParams(chatID, userID, untilDate))
	if err != nil {
		return err
	}
	return resp.Err()
}

func (d *Dispatcher) sendMessage(ctx context.Context, chatID int64, text string) error {
	resp, err := d.client.Call(ctx, tgapi.MethodSendMessage, tgapi.SendMessageParams(chatID, text))
	if err != nil {
		return err
	}
	return resp.Err()
}

// RefreshAdmins fetches the current administrator list for chatID and
// updates the registry. Called from the hourly tick in internal/app.
func (d *Dispatcher) RefreshAdmins(ctx context.Context, chatID int64) error {
	chat, ok := d.registry.Get(chatID)
	if !ok {
		return nil
	}

	resp, err := d.client.Call(ctx, tgapi.MethodGetChatAdministrators, tgapi.GetChatAdministratorsParams(chatID))
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return err
	}

	members, err := resp.ChatMembers()
	if err != nil {
		return err
	}
	chat.SetAdmins(members)
	return nil
}
