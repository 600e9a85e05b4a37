package models

import "time"

// Subject is the learning area an activity or badge belongs to
type Subject string

const (
	SubjectEnglish Subject = "English"
	SubjectMaths   Subject = "Maths"
	// SubjectGeneral is only used by badges that are not tied to one subject
	SubjectGeneral Subject = "General"
)

// IsActivitySubject reports whether an activity can be recorded against s
func (s Subject) IsActivitySubject() bool {
	return s == SubjectEnglish || s == SubjectMaths
}

// Difficulty of a learning activity
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// ActivityResult is the raw, append-only record of one completed activity
type ActivityResult struct {
	ID               int64      `json:"id"`
	ChildID          string     `json:"child_id"`
	UserID           string     `json:"user_id"`
	ActivityID       string     `json:"activity_id"`
	Subject          Subject    `json:"subject"`
	Score            int        `json:"score"`
	TimeTakenSeconds int        `json:"time_taken_seconds"`
	Topic            string     `json:"topic"`
	Difficulty       Difficulty `json:"difficulty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// SubjectSummary aggregates a child's activity results for one subject
type SubjectSummary struct {
	Subject      Subject `json:"subject"`
	Activities   int     `json:"activities"`
	AverageScore float64 `json:"average_score"`
}
