package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"learnquest/internal/database"
	"learnquest/internal/logger"
	"learnquest/internal/models"
)

const backupVersion = "1.0"

// BackupData represents the complete gamification backup structure
type BackupData struct {
	Version       string                   `json:"version"`
	ExportedAt    time.Time                `json:"exported_at"`
	Activities    []models.ActivityResult  `json:"activity_results"`
	Stars         []models.StarRecord      `json:"stars"`
	BadgeTypes    []models.BadgeDefinition `json:"badge_types"`
	EarnedBadges  []models.EarnedBadge     `json:"earned_badges"`
	Levels        []models.ChildLevel      `json:"child_levels"`
	Notifications []models.Notification    `json:"notifications"`
	Contacts      []models.ParentContact   `json:"parent_contacts"`
}

// BackupCounts summarises how many rows an import inserted per table.
// Rows already present are skipped and not counted.
type BackupCounts map[string]int

// clearOrder deletes children before the tables they reference
var clearOrder = []string{
	"notifications",
	"parent_contacts",
	"earned_badges",
	"child_levels",
	"stars",
	"activity_results",
	"badge_types",
}

// BackupService handles database backup and restore operations
type BackupService struct {
	db  *database.DB
	log *logger.Logger
	now func() time.Time
}

// NewBackupService creates a new backup service
func NewBackupService(db *database.DB, log *logger.Logger) *BackupService {
	return &BackupService{db: db, log: log, now: time.Now}
}

// Export writes every gamification table to w as indented JSON
func (s *BackupService) Export(ctx context.Context, w io.Writer) (*BackupData, error) {
	backup := &BackupData{
		Version:    backupVersion,
		ExportedAt: s.now().UTC(),
	}

	steps := []struct {
		name string
		fn   func(context.Context, *BackupData) error
	}{
		{"activity results", s.exportActivities},
		{"stars", s.exportStars},
		{"badge types", s.exportBadgeTypes},
		{"earned badges", s.exportEarnedBadges},
		{"child levels", s.exportLevels},
		{"notifications", s.exportNotifications},
		{"parent contacts", s.exportContacts},
	}
	for _, step := range steps {
		if err := step.fn(ctx, backup); err != nil {
			return nil, fmt.Errorf("failed to export %s: %w", step.name, err)
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return nil, fmt.Errorf("failed to encode backup: %w", err)
	}

	s.log.Info("database exported",
		"activities", len(backup.Activities),
		"stars", len(backup.Stars),
		"badge_types", len(backup.BadgeTypes),
		"earned_badges", len(backup.EarnedBadges),
		"child_levels", len(backup.Levels),
		"notifications", len(backup.Notifications),
		"contacts", len(backup.Contacts),
	)
	return backup, nil
}

// Import restores a backup read from r inside one transaction. Rows whose
// primary key already exists are left untouched, so importing twice is a no-op.
// With wipe set, every gamification table is emptied first.
func (s *BackupService) Import(ctx context.Context, r io.Reader, wipe bool) (BackupCounts, error) {
	var backup BackupData
	if err := json.NewDecoder(r).Decode(&backup); err != nil {
		return nil, fmt.Errorf("failed to decode backup: %w", err)
	}
	if backup.Version != backupVersion {
		return nil, fmt.Errorf("%w: unsupported backup version %q", ErrInvalidInput, backup.Version)
	}

	s.log.Info("importing backup", "version", backup.Version, "exported_at", backup.ExportedAt)

	counts := BackupCounts{}
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		if wipe {
			for _, table := range clearOrder {
				if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
					return fmt.Errorf("failed to clear table %s: %w", table, err)
				}
			}
		}

		im := importer{ctx: ctx, tx: tx, counts: counts}
		// badge_types first: earned_badges references it
		for _, b := range backup.BadgeTypes {
			im.insert("badge_types",
				[]string{"id", "name", "description", "subject", "level", "required_achievement", "required_value", "icon"},
				b.ID, b.Name, b.Description, b.Subject, b.Level, b.RequiredAchievement, b.RequiredValue, b.Icon)
		}
		for _, a := range backup.Activities {
			im.insert("activity_results",
				[]string{"id", "child_id", "user_id", "activity_id", "subject", "score", "time_taken_seconds", "topic", "difficulty", "created_at"},
				a.ID, a.ChildID, a.UserID, a.ActivityID, a.Subject, a.Score, a.TimeTakenSeconds, a.Topic, a.Difficulty, a.CreatedAt)
		}
		for _, st := range backup.Stars {
			im.insert("stars",
				[]string{"id", "child_id", "activity_id", "amount", "subject", "reason", "is_perfect", "created_at"},
				st.ID, st.ChildID, st.ActivityID, st.Amount, st.Subject, st.Reason, st.IsPerfect, st.CreatedAt)
		}
		for _, e := range backup.EarnedBadges {
			im.insert("earned_badges",
				[]string{"id", "child_id", "badge_id", "earned_at"},
				e.ID, e.ChildID, e.BadgeID, e.EarnedAt)
		}
		for _, l := range backup.Levels {
			im.insert("child_levels",
				[]string{"child_id", "current_level", "current_title", "total_stars", "total_badges", "maths_level", "english_level",
					"streak_days", "longest_streak", "last_activity_date", "version", "updated_at"},
				l.ChildID, l.CurrentLevel, l.CurrentTitle, l.TotalStars, l.TotalBadges, l.MathsLevel, l.EnglishLevel,
				l.StreakDays, l.LongestStreak, nullIfEmpty(l.LastActivityDate), l.Version, l.UpdatedAt)
		}
		for _, n := range backup.Notifications {
			im.insert("notifications",
				[]string{"id", "child_id", "kind", "title", "message", "payload", "created_at", "read_at"},
				n.ID, n.ChildID, n.Kind, n.Title, n.Message, n.Payload, n.CreatedAt, nullTime(n.ReadAt))
		}
		for _, c := range backup.Contacts {
			im.insert("parent_contacts",
				[]string{"child_id", "user_id", "email", "name", "email_opt_in", "updated_at"},
				c.ChildID, c.UserID, c.Email, c.Name, c.EmailOptIn, c.UpdatedAt)
		}
		if im.err != nil {
			return im.err
		}
		return resetSequences(ctx, tx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to import backup: %w", err)
	}

	s.log.Info("database import completed", "inserted", map[string]int(counts))
	return counts, nil
}

// importer stops at the first failed insert and keeps the error
type importer struct {
	ctx    context.Context
	tx     *database.Tx
	counts BackupCounts
	err    error
}

func (im *importer) insert(table string, columns []string, args ...interface{}) {
	if im.err != nil {
		return
	}
	query := im.tx.GetDialect().InsertIgnoreQuery(table, columns...)
	res, err := im.tx.ExecContext(im.ctx, query, args...)
	if err != nil {
		im.err = fmt.Errorf("failed to import %s row %v: %w", table, args[0], err)
		return
	}
	n, err := res.RowsAffected()
	if err != nil {
		im.err = fmt.Errorf("failed to read affected rows for %s: %w", table, err)
		return
	}
	im.counts[table] += int(n)
}

// resetSequences moves PostgreSQL serial sequences past the imported ids
func resetSequences(ctx context.Context, tx *database.Tx) error {
	if tx.GetDialect().DriverName() != "postgres" {
		return nil
	}
	for _, table := range []string{"activity_results", "stars", "earned_badges"} {
		query := fmt.Sprintf("SELECT setval(pg_get_serial_sequence('%s', 'id'), COALESCE(MAX(id), 0) + 1, false) FROM %s", table, table)
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to reset sequence for %s: %w", table, err)
		}
	}
	return nil
}

func (s *BackupService) exportActivities(ctx context.Context, backup *BackupData) error {
	query := "SELECT id, child_id, user_id, activity_id, subject, score, time_taken_seconds, topic, difficulty, created_at FROM activity_results ORDER BY id"
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var a models.ActivityResult
		if err := rows.Scan(&a.ID, &a.ChildID, &a.UserID, &a.ActivityID, &a.Subject, &a.Score, &a.TimeTakenSeconds, &a.Topic, &a.Difficulty, &a.CreatedAt); err != nil {
			return err
		}
		backup.Activities = append(backup.Activities, a)
	}
	return rows.Err()
}

func (s *BackupService) exportStars(ctx context.Context, backup *BackupData) error {
	query := "SELECT id, child_id, activity_id, amount, subject, reason, is_perfect, created_at FROM stars ORDER BY id"
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var st models.StarRecord
		if err := rows.Scan(&st.ID, &st.ChildID, &st.ActivityID, &st.Amount, &st.Subject, &st.Reason, &st.IsPerfect, &st.CreatedAt); err != nil {
			return err
		}
		backup.Stars = append(backup.Stars, st)
	}
	return rows.Err()
}

func (s *BackupService) exportBadgeTypes(ctx context.Context, backup *BackupData) error {
	query := "SELECT id, name, description, subject, level, required_achievement, required_value, icon FROM badge_types ORDER BY id"
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var b models.BadgeDefinition
		if err := rows.Scan(&b.ID, &b.Name, &b.Description, &b.Subject, &b.Level, &b.RequiredAchievement, &b.RequiredValue, &b.Icon); err != nil {
			return err
		}
		backup.BadgeTypes = append(backup.BadgeTypes, b)
	}
	return rows.Err()
}

func (s *BackupService) exportEarnedBadges(ctx context.Context, backup *BackupData) error {
	query := "SELECT id, child_id, badge_id, earned_at FROM earned_badges ORDER BY id"
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var e models.EarnedBadge
		if err := rows.Scan(&e.ID, &e.ChildID, &e.BadgeID, &e.EarnedAt); err != nil {
			return err
		}
		backup.EarnedBadges = append(backup.EarnedBadges, e)
	}
	return rows.Err()
}

func (s *BackupService) exportLevels(ctx context.Context, backup *BackupData) error {
	query := `SELECT child_id, current_level, current_title, total_stars, total_badges, maths_level, english_level,
		streak_days, longest_streak, last_activity_date, version, updated_at FROM child_levels ORDER BY child_id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var l models.ChildLevel
		var lastDate sql.NullString
		if err := rows.Scan(&l.ChildID, &l.CurrentLevel, &l.CurrentTitle, &l.TotalStars, &l.TotalBadges, &l.MathsLevel, &l.EnglishLevel,
			&l.StreakDays, &l.LongestStreak, &lastDate, &l.Version, &l.UpdatedAt); err != nil {
			return err
		}
		l.LastActivityDate = lastDate.String
		backup.Levels = append(backup.Levels, l)
	}
	return rows.Err()
}

func (s *BackupService) exportNotifications(ctx context.Context, backup *BackupData) error {
	query := "SELECT id, child_id, kind, title, message, payload, created_at, read_at FROM notifications ORDER BY created_at, id"
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var n models.Notification
		var readAt sql.NullTime
		if err := rows.Scan(&n.ID, &n.ChildID, &n.Kind, &n.Title, &n.Message, &n.Payload, &n.CreatedAt, &readAt); err != nil {
			return err
		}
		if readAt.Valid {
			n.ReadAt = &readAt.Time
		}
		backup.Notifications = append(backup.Notifications, n)
	}
	return rows.Err()
}

func (s *BackupService) exportContacts(ctx context.Context, backup *BackupData) error {
	query := "SELECT child_id, user_id, email, name, email_opt_in, updated_at FROM parent_contacts ORDER BY child_id"
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var c models.ParentContact
		if err := rows.Scan(&c.ChildID, &c.UserID, &c.Email, &c.Name, &c.EmailOptIn, &c.UpdatedAt); err != nil {
			return err
		}
		backup.Contacts = append(backup.Contacts, c)
	}
	return rows.Err()
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
