package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"learnquest/internal/logger"
	"learnquest/internal/models"
	"learnquest/internal/repository"
)

// Notifier receives the events produced by an activity completion
type Notifier interface {
	Notify(ctx context.Context, childID string, events []models.Event) error
}

// StoreNotifier writes each event to the notifications table
type StoreNotifier struct {
	notifications *repository.NotificationRepository
}

func NewStoreNotifier(notifications *repository.NotificationRepository) *StoreNotifier {
	return &StoreNotifier{notifications: notifications}
}

func (n *StoreNotifier) Notify(ctx context.Context, childID string, events []models.Event) error {
	var errs []error
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to encode %s event: %w", e.Kind, err))
			continue
		}
		title, message := Describe(e)
		err = n.notifications.Create(ctx, &models.Notification{
			ID:        uuid.NewString(),
			ChildID:   childID,
			Kind:      e.Kind,
			Title:     title,
			Message:   message,
			Payload:   string(payload),
			CreatedAt: e.OccurredAt,
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes each event to the structured log
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(ctx context.Context, childID string, events []models.Event) error {
	for _, e := range events {
		_, message := Describe(e)
		n.log.Info("activity event", "child_id", childID, "kind", string(e.Kind), "message", message)
	}
	return nil
}

// MultiNotifier fans events out to several notifiers. Failures are logged
// and never returned so one broken channel cannot affect the others.
type MultiNotifier struct {
	notifiers []Notifier
	log       *logger.Logger
}

func NewMultiNotifier(log *logger.Logger, notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers, log: log}
}

func (m *MultiNotifier) Notify(ctx context.Context, childID string, events []models.Event) error {
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, childID, events); err != nil {
			m.log.Warn("notifier failed", "notifier", fmt.Sprintf("%T", n), "child_id", childID, "error", err)
		}
	}
	return nil
}
