// Package worker mirrors broker-delivered notifications into the local
// store. Devices that were offline when a notification was published
// catch up through the queue instead of re-reading the whole collection.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kharcha/internal/amqp"
	"kharcha/internal/log"
	"kharcha/internal/store"
)

const notificationsCollection = "notifications"

// Consumer is the queue side the worker drains. *amqp.Client implements it.
type Consumer interface {
	ConsumeNotifications(ctx context.Context, handler func(*amqp.NotificationMessage) error) error
}

// NotificationWorker applies queued notification messages to the store.
type NotificationWorker struct {
	store    store.Store
	consumer Consumer
	logger   *log.Logger
}

func NewNotificationWorker(st store.Store, consumer Consumer) *NotificationWorker {
	return &NotificationWorker{
		store:    st,
		consumer: consumer,
		logger:   log.Component(log.ComponentWorker),
	}
}

// Run drains the queue until the context is cancelled.
func (w *NotificationWorker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "notification worker started")
	err := w.consumer.ConsumeNotifications(ctx, func(msg *amqp.NotificationMessage) error {
		return w.HandleMessage(ctx, msg)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("consume notifications: %w", err)
	}
	return nil
}

// HandleMessage upserts one notification. The write is idempotent: a
// message delivered twice lands on the same document id, and a merge
// write keeps a locally set read flag intact.
func (w *NotificationWorker) HandleMessage(ctx context.Context, msg *amqp.NotificationMessage) error {
	if msg.ID == "" {
		return fmt.Errorf("notification message without id")
	}

	createdAt := msg.Timestamp
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	fields := map[string]any{
		"message":   msg.Message,
		"createdBy": msg.CreatedBy,
		"createdAt": createdAt.UTC().Format(time.RFC3339),
	}
	if len(msg.GroupIDs) > 0 {
		fields["groupIds"] = msg.GroupIDs
	}

	if err := w.store.Set(ctx, notificationsCollection, msg.ID, fields, true); err != nil {
		return fmt.Errorf("store notification %s: %w", msg.ID, err)
	}

	w.logger.DebugContext(ctx, "stored queued notification", "id", msg.ID, "createdBy", msg.CreatedBy)
	return nil
}
