package models

import "time"

// StarRecord is one star award. Records are never updated or deleted;
// the sum of a child's amounts is their star total.
type StarRecord struct {
	ID         int64     `json:"id"`
	ChildID    string    `json:"child_id"`
	ActivityID string    `json:"activity_id"`
	Amount     int       `json:"amount"`
	Subject    Subject   `json:"subject"`
	Reason     string    `json:"reason"`
	IsPerfect  bool      `json:"is_perfect"`
	CreatedAt  time.Time `json:"created_at"`
}

// AchievementKind selects which statistic a badge requirement is tested against
type AchievementKind string

const (
	AchievementTotalStars          AchievementKind = "total_stars"
	AchievementActivitiesCompleted AchievementKind = "activities_completed"
	AchievementStreakDays          AchievementKind = "streak_days"
	AchievementPerfectScore        AchievementKind = "perfect_score"
	AchievementSubjectActivities   AchievementKind = "subject_activities"
)

// BadgeDefinition is static reference data describing an earnable badge
type BadgeDefinition struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	Description         string          `json:"description"`
	Subject             Subject         `json:"subject"`
	Level               int             `json:"level"`
	RequiredAchievement AchievementKind `json:"required_achievement"`
	RequiredValue       int             `json:"required_value"`
	Icon                string          `json:"icon"`
}

// EarnedBadge records that a child holds a badge. At most one per (child, badge).
type EarnedBadge struct {
	ID       int64     `json:"id"`
	ChildID  string    `json:"child_id"`
	BadgeID  string    `json:"badge_id"`
	EarnedAt time.Time `json:"earned_at"`
}

// EarnedBadgeWithDefinition joins an earned badge with its definition
type EarnedBadgeWithDefinition struct {
	EarnedBadge
	Badge BadgeDefinition `json:"badge"`
}

// ChildLevel is the per-child aggregate row. Star and badge totals are derived
// from the ledgers; streak fields are owned by the streak updater.
type ChildLevel struct {
	ChildID          string    `json:"child_id"`
	CurrentLevel     int       `json:"current_level"`
	CurrentTitle     string    `json:"current_title"`
	TotalStars       int       `json:"total_stars"`
	TotalBadges      int       `json:"total_badges"`
	MathsLevel       int       `json:"maths_level"`
	EnglishLevel     int       `json:"english_level"`
	StreakDays       int       `json:"streak_days"`
	LongestStreak    int       `json:"longest_streak"`
	LastActivityDate string    `json:"last_activity_date,omitempty"`
	Version          int64     `json:"version"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ChildTotals are the ledger-derived parts of ChildLevel
type ChildTotals struct {
	TotalStars   int
	MathsStars   int
	EnglishStars int
	TotalBadges  int
}
