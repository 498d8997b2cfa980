// Package storage persists user profiles and briefing history in Postgres.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"newsbrief/internal/domain"
	"newsbrief/internal/ports"
)

// PostgresRepository stores profiles and briefing records.
type PostgresRepository struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ ports.PreferenceStore = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// SaveProfile upserts the user's preferences.
func (r *PostgresRepository) SaveProfile(ctx context.Context, profile domain.Profile) error {
	if r.db == nil {
		return nil
	}

	query := `INSERT INTO profiles (user_id, name, topics, wants_audio, language)
              VALUES ($1, $2, $3, $4, $5)
              ON CONFLICT (user_id) DO UPDATE
              SET name = EXCLUDED.name,
                  topics = EXCLUDED.topics,
                  wants_audio = EXCLUDED.wants_audio,
                  language = EXCLUDED.language,
                  updated_at = NOW()`

	_, err := r.db.ExecContext(ctx, query,
		profile.UserID,
		profile.Name,
		pq.StringArray(profile.Topics),
		profile.WantsAudio,
		profile.Language,
	)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// LoadProfile returns the stored profile; the boolean reports presence.
func (r *PostgresRepository) LoadProfile(ctx context.Context, userID string) (domain.Profile, bool, error) {
	if r.db == nil {
		return domain.Profile{}, false, nil
	}

	query, args, err := r.sb.
		Select("user_id", "name", "topics", "wants_audio", "language").
		From("profiles").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return domain.Profile{}, false, fmt.Errorf("build profile query: %w", err)
	}

	var (
		profile domain.Profile
		topics  pq.StringArray
	)
	err = r.db.QueryRowContext(ctx, query, args...).Scan(
		&profile.UserID, &profile.Name, &topics, &profile.WantsAudio, &profile.Language,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Profile{}, false, nil
	}
	if err != nil {
		return domain.Profile{}, false, fmt.Errorf("load profile: %w", err)
	}

	profile.Topics = []string(topics)
	return profile, true, nil
}

// Profiles lists every stored profile with at least one topic. The daily
// scheduler uses this to know whom to brief.
func (r *PostgresRepository) Profiles(ctx context.Context) ([]domain.Profile, error) {
	if r.db == nil {
		return nil, nil
	}

	query, args, err := r.sb.
		Select("user_id", "name", "topics", "wants_audio", "language").
		From("profiles").
		Where("cardinality(topics) > 0").
		OrderBy("user_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build profiles query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		var (
			p      domain.Profile
			topics pq.StringArray
		)
		if err := rows.Scan(&p.UserID, &p.Name, &topics, &p.WantsAudio, &p.Language); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		p.Topics = []string(topics)
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return profiles, nil
}

// LogBriefing appends one briefing record.
func (r *PostgresRepository) LogBriefing(ctx context.Context, rec domain.BriefingRecord) error {
	if r.db == nil {
		return nil
	}

	query, args, err := r.sb.
		Insert("briefings").
		Columns("request_id", "user_id", "topics", "status", "chars", "delivered_at").
		Values(rec.RequestID, rec.UserID, pq.StringArray(rec.Topics), string(rec.Status), rec.Chars, rec.DeliveredAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build briefing insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert briefing: %w", err)
	}
	return nil
}

// BriefingStats counts total and fully-delivered briefings for the user.
func (r *PostgresRepository) BriefingStats(ctx context.Context, userID string) (int, int, error) {
	if r.db == nil {
		return 0, 0, nil
	}

	query, args, err := r.sb.
		Select("COUNT(*)", "COUNT(*) FILTER (WHERE status = 'delivered')").
		From("briefings").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return 0, 0, fmt.Errorf("build stats query: %w", err)
	}

	var total, delivered int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total, &delivered); err != nil {
		return 0, 0, fmt.Errorf("query stats: %w", err)
	}
	return total, delivered, nil
}

// ClearHistory deletes the user's briefing records, keeping the profile.
func (r *PostgresRepository) ClearHistory(ctx context.Context, userID string) error {
	if r.db == nil {
		return nil
	}

	query, args, err := r.sb.
		Delete("briefings").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build history delete: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	return nil
}
