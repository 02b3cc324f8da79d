// Package notify stores and filters group-activity notifications. A
// notification is visible to its creator and to members of the groups it
// is tagged for; visibility is a read filter, not ownership.
package notify

import (
	"context"
	"fmt"
	"time"

	"kharcha/internal/core"
	"kharcha/internal/log"
	"kharcha/internal/store"
)

const notificationsCollection = "notifications"

// Publisher fans freshly created notifications out to a message broker so
// other devices can pick them up. Nil disables fan-out.
type Publisher interface {
	PublishNotification(ctx context.Context, n core.Notification) error
}

type Service struct {
	store     store.Store
	publisher Publisher
	logger    *log.Logger
}

func NewService(s store.Store, publisher Publisher) *Service {
	return &Service{
		store:     s,
		publisher: publisher,
		logger:    log.Component(log.ComponentNotify),
	}
}

// List returns the notifications visible to the viewer, newest first.
func (s *Service) List(ctx context.Context, viewer core.AppUser) ([]core.Notification, error) {
	docs, err := s.store.Query(ctx, store.Query{
		Collection: notificationsCollection,
		OrderBy:    "createdAt",
		Desc:       true,
	})
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	var out []core.Notification
	for _, doc := range docs {
		n := store.DecodeNotification(doc)
		if n.VisibleTo(viewer) {
			out = append(out, n)
		}
	}
	return out, nil
}

// Add stores a new unread notification and publishes it. A publish failure
// is logged but does not fail the write: the notification is persisted and
// other devices will see it on their next fetch.
func (s *Service) Add(ctx context.Context, message, createdBy string, groupIDs []string) (core.Notification, error) {
	n := core.Notification{
		Message:   message,
		Read:      false,
		CreatedAt: time.Now(),
		CreatedBy: createdBy,
		GroupIDs:  groupIDs,
	}
	id, err := s.store.Add(ctx, notificationsCollection, store.EncodeNotification(n))
	if err != nil {
		return core.Notification{}, fmt.Errorf("save notification: %w", err)
	}
	n.ID = id

	if s.publisher != nil {
		if err := s.publisher.PublishNotification(ctx, n); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish notification",
				"id", id, log.FieldError, err)
		}
	}
	return n, nil
}

// Activity implements the expense service's fan-out hook.
func (s *Service) Activity(ctx context.Context, message, createdBy string, groupIDs []string) error {
	_, err := s.Add(ctx, message, createdBy, groupIDs)
	return err
}

// MarkRead marks one notification as read, leaving other fields alone.
func (s *Service) MarkRead(ctx context.Context, id string) error {
	err := s.store.Set(ctx, notificationsCollection, id, map[string]any{"read": true}, true)
	if err != nil {
		return fmt.Errorf("mark notification %s read: %w", id, err)
	}
	return nil
}

// MarkAllRead marks every unread notification visible to the viewer.
func (s *Service) MarkAllRead(ctx context.Context, viewer core.AppUser) error {
	notifications, err := s.List(ctx, viewer)
	if err != nil {
		return err
	}
	for _, n := range notifications {
		if n.Read {
			continue
		}
		if err := s.MarkRead(ctx, n.ID); err != nil {
			return err
		}
	}
	return nil
}

// UnreadCount returns how many unread notifications the viewer has.
func (s *Service) UnreadCount(ctx context.Context, viewer core.AppUser) (int, error) {
	notifications, err := s.List(ctx, viewer)
	if err != nil {
		return 0, err
	}
	return UnreadCount(notifications), nil
}

// UnreadCount counts the unread entries of an already-filtered list.
func UnreadCount(notifications []core.Notification) int {
	count := 0
	for _, n := range notifications {
		if !n.Read {
			count++
		}
	}
	return count
}
