// Package notify delivers activity events to children and their parents.
package notify

import (
	"fmt"

	"learnquest/internal/models"
)

// Describe turns an event into a short title and message for display
func Describe(e models.Event) (string, string) {
	switch e.Kind {
	case models.EventStarsAwarded:
		return fmt.Sprintf("+%d stars!", e.Stars), fmt.Sprintf("You earned %d stars: %s", e.Stars, e.Reason)
	case models.EventLevelUp:
		return "Level up!", fmt.Sprintf("You reached level %d: %s", e.Level, e.Title)
	case models.EventStreakMilestone:
		return fmt.Sprintf("%d day streak!", e.StreakDays), fmt.Sprintf("You have learned %d days in a row. Keep it up!", e.StreakDays)
	case models.EventBadgeEarned:
		if e.Badge == nil {
			return "New badge!", "You earned a new badge"
		}
		return "New badge!", fmt.Sprintf("You earned the %s badge: %s", e.Badge.Name, e.Badge.Description)
	default:
		return string(e.Kind), ""
	}
}

// Notable reports whether an event is worth telling a parent about
func Notable(e models.Event) bool {
	switch e.Kind {
	case models.EventLevelUp, models.EventStreakMilestone, models.EventBadgeEarned:
		return true
	}
	return false
}
