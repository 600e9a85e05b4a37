package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"learnquest/internal/models"
	"learnquest/internal/repository"
	"learnquest/internal/validation"
)

// NotificationService reads and acknowledges stored notifications and manages parent contacts
type NotificationService struct {
	notifications *repository.NotificationRepository
	contacts      *repository.ContactRepository
	now           func() time.Time
}

// NewNotificationService creates a new notification service
func NewNotificationService(notifications *repository.NotificationRepository, contacts *repository.ContactRepository) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		contacts:      contacts,
		now:           time.Now,
	}
}

// List returns a child's notifications, newest first
func (s *NotificationService) List(ctx context.Context, childID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	return s.notifications.ListByChild(ctx, childID, unreadOnly, limit)
}

// MarkRead acknowledges one notification
func (s *NotificationService) MarkRead(ctx context.Context, childID, id string) error {
	ok, err := s.notifications.MarkRead(ctx, childID, id, s.now().UTC())
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	return nil
}

// SetContact stores the parent email used for award emails
func (s *NotificationService) SetContact(ctx context.Context, contact *models.ParentContact) error {
	contact.Email = strings.TrimSpace(contact.Email)
	if contact.ChildID == "" || contact.UserID == "" {
		return fmt.Errorf("child and user ids are required: %w", ErrInvalidInput)
	}
	contact.Name = strings.TrimSpace(contact.Name)
	if contact.Email != "" {
		if err := validation.ValidateEmail(contact.Email); err != nil {
			return fmt.Errorf("%v: %w", err, ErrInvalidInput)
		}
	} else if contact.EmailOptIn {
		return fmt.Errorf("an email address is required to opt in: %w", ErrInvalidInput)
	}
	if contact.Name != "" {
		if err := validation.ValidateName(contact.Name); err != nil {
			return fmt.Errorf("%v: %w", err, ErrInvalidInput)
		}
	}
	existing, err := s.contacts.Get(ctx, contact.ChildID)
	if err != nil {
		return err
	}
	if existing != nil && existing.UserID != contact.UserID {
		return fmt.Errorf("contact for %s belongs to another user: %w", contact.ChildID, ErrForbidden)
	}
	contact.UpdatedAt = s.now().UTC()
	return s.contacts.Upsert(ctx, contact)
}

// GetContact returns the parent contact for a child, or ErrNotFound
func (s *NotificationService) GetContact(ctx context.Context, childID string) (*models.ParentContact, error) {
	contact, err := s.contacts.Get(ctx, childID)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		return nil, fmt.Errorf("contact for %s: %w", childID, ErrNotFound)
	}
	return contact, nil
}
