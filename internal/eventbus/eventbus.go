// Package eventbus publishes a record of every moderation action to NATS,
// decoupling the worker pool's decisions from anything that wants to
// observe them — the role the master-slave config sync collaborator plays
// for a deployment that needs one bot's decisions visible to another
// process, without the core knowing who's listening.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/hkarel/telebot/internal/dispatcher"
)

// SubjectAction is the subject every moderation action is published to.
// Subscribers filter on chat_id/trigger client-side; the core doesn't
// fan out to per-chat subjects since no feature here needs that.
const SubjectAction = "telebot.moderation.action"

// ActionEvent is the JSON envelope published for every dispatcher action.
type ActionEvent struct {
	ChatID      int64  `json:"chat_id"`
	MessageID   int64  `json:"message_id"`
	UserID      int64  `json:"user_id"`
	TriggerName string `json:"trigger_name"`
	Reason      string `json:"reason"`
	Result      string `json:"result"`
	Timestamp   int64  `json:"timestamp"`
}

// Bus wraps a NATS connection for publishing moderation action events.
type Bus struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// Connect dials the NATS server at url and returns a Bus. Reconnection is
// handled by the client library; a dropped connection logs and retries
// rather than surfacing to the caller, since losing the event bus must
// never block the moderation pipeline itself.
func Connect(url string, logger *slog.Logger) (*Bus, error) {
	opts := []nats.Option{
		nats.Name("telebot"),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(60),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			logger.Error("NATS error", slog.String("error", err.Error()))
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}

	logger.Info("NATS connection established", slog.String("url", nc.ConnectedUrl()))
	return &Bus{conn: nc, logger: logger}, nil
}

// Close closes the connection. It does not call Drain first.
func (b *Bus) Close() {
	b.conn.Close()
}

// Publish sends one ActionEvent to SubjectAction.
func (b *Bus) Publish(_ context.Context, ev ActionEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling action event: %w", err)
	}
	if err := b.conn.Publish(SubjectAction, data); err != nil {
		return fmt.Errorf("publishing action event: %w", err)
	}
	return nil
}

// PublishAction adapts a dispatcher.ActionEvent into the wire ActionEvent
// and publishes it, satisfying dispatcher.EventPublisher.
func (b *Bus) PublishAction(ctx context.Context, ev dispatcher.ActionEvent) error {
	return b.Publish(ctx, ActionEvent{
		ChatID:      ev.ChatID,
		MessageID:   ev.MessageID,
		UserID:      ev.UserID,
		TriggerName: ev.TriggerName,
		Reason:      ev.Reason,
		Result:      ev.Result,
		Timestamp:   time.Now().Unix(),
	})
}
