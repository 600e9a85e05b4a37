package models

import "time"

// EventKind identifies something that happened while completing an activity
type EventKind string

const (
	EventStarsAwarded    EventKind = "stars_awarded"
	EventLevelUp         EventKind = "level_up"
	EventStreakMilestone EventKind = "streak_milestone"
	EventBadgeEarned     EventKind = "badge_earned"
)

// Event is returned to callers and handed to notifiers instead of being
// pushed to the UI from inside the evaluators.
type Event struct {
	Kind       EventKind        `json:"kind"`
	ChildID    string           `json:"child_id"`
	Stars      int              `json:"stars,omitempty"`
	Reason     string           `json:"reason,omitempty"`
	Level      int              `json:"level,omitempty"`
	Title      string           `json:"title,omitempty"`
	StreakDays int              `json:"streak_days,omitempty"`
	Badge      *BadgeDefinition `json:"badge,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// Notification is a stored, user-visible message derived from an Event
type Notification struct {
	ID        string     `json:"id"`
	ChildID   string     `json:"child_id"`
	Kind      EventKind  `json:"kind"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Payload   string     `json:"payload"`
	CreatedAt time.Time  `json:"created_at"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
}

// ParentContact is where award emails for a child are sent
type ParentContact struct {
	ChildID    string    `json:"child_id"`
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	EmailOptIn bool      `json:"email_opt_in"`
	UpdatedAt  time.Time `json:"updated_at"`
}
