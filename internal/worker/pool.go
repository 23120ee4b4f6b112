// Package worker runs the fixed-size pool of goroutines that turn queued
// webhook bodies into decoded updates, trigger evaluations and, on
// activation, handed-off dispatcher actions.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hkarel/telebot/internal/dispatcher"
	"github.com/hkarel/telebot/internal/mediagroup"
	"github.com/hkarel/telebot/internal/registry"
	"github.com/hkarel/telebot/internal/rules"
	"github.com/hkarel/telebot/internal/tgapi"
)

// TriggerSet is the atomically-swappable full trigger list a config reload
// installs. The worker pool itself no longer iterates it directly — each
// chat carries its own resolved, ordered trigger list — but app keeps one
// around to hand to registry.Replace on every reload and to report the
// total trigger count as a metric.
type TriggerSet struct {
	triggers atomic.Pointer[[]*rules.Trigger]
}

// NewTriggerSet builds a TriggerSet holding the given initial triggers.
func NewTriggerSet(initial []*rules.Trigger) *TriggerSet {
	ts := &TriggerSet{}
	ts.Store(initial)
	return ts
}

// Store atomically replaces the trigger list.
func (ts *TriggerSet) Store(triggers []*rules.Trigger) {
	ts.triggers.Store(&triggers)
}

// Load returns the current trigger list.
func (ts *TriggerSet) Load() []*rules.Trigger {
	p := ts.triggers.Load()
	if p == nil {
		return nil
	}
	return *p
}

// Pool is the fixed-size goroutine pool draining the update queue.
type Pool struct {
	queue      chan []byte
	count      int
	registry   *registry.Registry
	groups     *mediagroup.Tracker
	dispatcher *dispatcher.Dispatcher
	logger     *slog.Logger
	wg         sync.WaitGroup
}

// New builds a Pool. queueSize bounds how many raw bodies can be buffered
// before the ingress handler starts blocking the platform's webhook
// delivery, which is the intended backpressure mechanism.
func New(count, queueSize int, reg *registry.Registry, groups *mediagroup.Tracker, disp *dispatcher.Dispatcher, logger *slog.Logger) *Pool {
	return &Pool{
		queue:      make(chan []byte, queueSize),
		count:      count,
		registry:   reg,
		groups:     groups,
		dispatcher: disp,
		logger:     logger,
	}
}

// Enqueue hands a raw, unicode-unescaped webhook body to the pool. It
// blocks if the queue is full, which is the update-ordering and
// backpressure invariant: the ingress handler must not drop updates, and
// must not get ahead of itself either. Decoding happens on the worker
// goroutine, not here, so a malformed body never costs the ingress
// handler anything beyond the enqueue itself.
func (p *Pool) Enqueue(body []byte) {
	p.queue <- body
}

// QueueLen reports the number of bodies currently buffered, for the ops
// metrics surface.
func (p *Pool) QueueLen() int {
	return len(p.queue)
}

// Start launches the worker goroutines. They run until ctx is canceled,
// at which point Start's caller should call Wait to drain in-flight work.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.count; i++ {
		p.wg.Add(1)
		go p.run(ctx)
	}
}

// Wait blocks until every worker goroutine has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case body, ok := <-p.queue:
			if !ok {
				return
			}
			p.processBody(ctx, body)
		}
	}
}

// processBody decodes one raw webhook body, dropping it silently on a
// decode failure — a malformed update from the platform is not this
// worker's problem to report back, since the response was already sent.
func (p *Pool) processBody(ctx context.Context, body []byte) {
	var update tgapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		p.logger.Warn("dropping update that failed to decode", slog.String("error", err.Error()))
		return
	}
	p.process(ctx, &update)
}

func (p *Pool) process(ctx context.Context, u *tgapi.Update) {
	msg, ok := u.AnyMessage()
	if !ok {
		return
	}

	switch msg.Chat.Type {
	case tgapi.ChatGroup, tgapi.ChatSupergroup:
	default:
		return
	}

	chat, ok := p.registry.Get(msg.Chat.ID)
	if !ok {
		p.dispatcher.NotifyUnconfiguredChat(ctx, msg.Chat.ID)
		return
	}

	var group *mediagroup.Group
	if msg.MediaGroupID != "" {
		group = p.groups.Touch(msg.Chat.ID, msg.MediaGroupID, msg.MessageID)
		if group.IsBad {
			p.act(ctx, chat, msg, nil, group.Reason, group)
			return
		}
	}

	isAdmin := msg.From != nil && chat.IsAdmin(msg.From.ID)

	// Chat-wide gate: runs before any trigger is evaluated, independent of
	// the per-trigger SkipAdmins/whitelist checks below.
	if chat.SkipAdmins && isAdmin {
		return
	}
	if msg.From != nil && chat.IsWhitelistedUser(msg.From.ID) {
		return
	}

	text := buildText(msg)

	for _, trig := range chat.Triggers {
		if !trig.Active {
			continue
		}
		if trig.SkipAdmins && isAdmin {
			continue
		}
		if msg.From != nil && trig.IsWhitelistedUser(msg.From.ID) {
			continue
		}

		activated, reason := trig.IsActive(msg, text)
		if !activated {
			continue
		}

		p.logger.Info("trigger activated",
			slog.String("trigger", trig.Name),
			slog.Int64("chat_id", msg.Chat.ID),
			slog.Int64("message_id", msg.MessageID),
			slog.String("reason", reason),
		)

		if group != nil {
			p.groups.MarkBad(msg.Chat.ID, msg.MediaGroupID, reason)
		}
		p.act(ctx, chat, msg, trig, reason, group)
		return
	}
}

// act hands one activation off to the dispatcher. When group is non-nil,
// every message id collected for the album so far is actioned, not just
// the one that tripped the trigger.
func (p *Pool) act(ctx context.Context, chat *registry.Chat, msg *tgapi.Message, trig *rules.Trigger, reason string, group *mediagroup.Group) {
	var userID int64
	if msg.From != nil {
		userID = msg.From.ID
	}
	isOwner := msg.From != nil && chat.IsOwner(msg.From.ID)
	original := rawMessageText(msg)

	triggerName, description, immediatelyBan := "", "", false
	if trig != nil {
		triggerName, description, immediatelyBan = trig.Name, trig.Description, trig.ImmediatelyBan
	}

	if group == nil {
		p.dispatcher.Handle(ctx, dispatcher.Action{
			ChatID:         chat.ID,
			MessageID:      msg.MessageID,
			UserID:         userID,
			TriggerName:    triggerName,
			Description:    description,
			Reason:         reason,
			OriginalText:   original,
			IsOwner:        isOwner,
			ImmediatelyBan: immediatelyBan,
		})
		return
	}

	for messageID := range group.MessageIDs {
		p.dispatcher.Handle(ctx, dispatcher.Action{
			ChatID:         chat.ID,
			MessageID:      messageID,
			UserID:         userID,
			TriggerName:    triggerName,
			Description:    description,
			Reason:         reason,
			OriginalText:   original,
			IsOwner:        isOwner,
			ImmediatelyBan: immediatelyBan,
		})
	}
}

// buildText assembles the rules.Text pair a message is evaluated against:
// content is caption (url-stripped) and text (url-stripped) concatenated,
// caption first, joined by a newline when both are present — not an
// either/or fallback. username is the sender's display name.
func buildText(msg *tgapi.Message) rules.Text {
	content := tgapi.StripEntitiesOfType(msg.Text, msg.Entities, tgapi.EntityURL)
	content = strings.TrimSpace(content)

	caption := tgapi.StripEntitiesOfType(msg.Caption, msg.CaptionEntities, tgapi.EntityURL)
	caption = strings.TrimSpace(caption)

	if caption != "" {
		if content == "" {
			content = caption
		} else {
			content = caption + "\n" + content
		}
	}

	var userName string
	if msg.From != nil {
		userName = msg.From.DisplayName()
	}

	return rules.Text{Content: content, UserName: userName}
}

// rawMessageText reassembles the original, un-stripped text the
// explanatory notice quotes: caption then text, joined the same way as
// buildText's content, but without removing url entities.
func rawMessageText(msg *tgapi.Message) string {
	text := msg.Text
	if msg.Caption != "" {
		if text == "" {
			text = msg.Caption
		} else {
			text = msg.Caption + "\n" + text
		}
	}
	return text
}
