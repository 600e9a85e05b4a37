package repository

import (
	"context"
	"database/sql"
	"fmt"

	"learnquest/internal/database"
	"learnquest/internal/models"
)

// ContactRepository handles parent contact details used for award emails
type ContactRepository struct {
	db database.DBTX
}

// NewContactRepository creates a new contact repository
func NewContactRepository(db database.DBTX) *ContactRepository {
	return &ContactRepository{db: db}
}

// Upsert creates or replaces the contact for a child
func (r *ContactRepository) Upsert(ctx context.Context, c *models.ParentContact) error {
	insert := r.db.GetDialect().InsertIgnoreQuery("parent_contacts",
		"child_id", "user_id", "email", "name", "email_opt_in", "updated_at")
	if _, err := r.db.ExecContext(ctx, insert, c.ChildID, c.UserID, c.Email, c.Name, c.EmailOptIn, c.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert parent contact: %w", err)
	}

	update := `
		UPDATE parent_contacts
		SET user_id = ?, email = ?, name = ?, email_opt_in = ?, updated_at = ?
		WHERE child_id = ?
	`
	if _, err := r.db.ExecContext(ctx, update, c.UserID, c.Email, c.Name, c.EmailOptIn, c.UpdatedAt, c.ChildID); err != nil {
		return fmt.Errorf("failed to update parent contact: %w", err)
	}
	return nil
}

// Get returns the contact for a child, or nil if none is stored
func (r *ContactRepository) Get(ctx context.Context, childID string) (*models.ParentContact, error) {
	query := `
		SELECT child_id, user_id, email, name, email_opt_in, updated_at
		FROM parent_contacts
		WHERE child_id = ?
	`
	c := &models.ParentContact{}
	err := r.db.QueryRowContext(ctx, query, childID).Scan(&c.ChildID, &c.UserID, &c.Email, &c.Name, &c.EmailOptIn, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get parent contact: %w", err)
	}
	return c, nil
}
