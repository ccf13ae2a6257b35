package repository

import (
	"context"
	"fmt"

	"admindash/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ActivityRepository aggregates the engagement signals used to score trial leads.
type ActivityRepository interface {
	ListEngagement(ctx context.Context) (map[string]model.Engagement, error)
	// ListActivity returns one user's dated actions. Tracked events are limited to
	// the latest fifty.
	ListActivity(ctx context.Context, userID string) ([]model.ActivityRecord, error)
}

type activityRepo struct {
	pool *pgxpool.Pool
}

func NewActivityRepo(pool *pgxpool.Pool) ActivityRepository {
	return &activityRepo{pool: pool}
}

func (r *activityRepo) ListEngagement(ctx context.Context) (map[string]model.Engagement, error) {
	const q = `
        WITH quotes AS (
            SELECT user_id, COUNT(*) AS n FROM quotes GROUP BY user_id
        ), eics AS (
            SELECT user_id, COUNT(*) AS n FROM eic_schedules GROUP BY user_id
        ), study AS (
            SELECT user_id, COUNT(*) AS n FROM study_sessions GROUP BY user_id
        )
        SELECT p.id,
               COALESCE(a.points, 0),
               COALESCE(a.streak, 0),
               a.last_active_date,
               COALESCE(study.n, 0),
               COALESCE(quotes.n, 0),
               COALESCE(eics.n, 0),
               COALESCE(s.login_count, 0),
               COALESCE(s.page_view_count, 0),
               COALESCE(s.feature_use_count, 0),
               COALESCE(s.active_days, 0),
               COALESCE(s.total_seconds_tracked, 0),
               COALESCE(s.unique_pages_visited, 0),
               s.last_activity
        FROM profiles p
        LEFT JOIN user_activity a ON a.user_id = p.id
        LEFT JOIN user_activity_summary s ON s.user_id = p.id
        LEFT JOIN quotes ON quotes.user_id = p.id
        LEFT JOIN eics ON eics.user_id = p.id
        LEFT JOIN study ON study.user_id = p.id
    `
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying engagement: %w", err)
	}
	defer rows.Close()

	out := make(map[string]model.Engagement)
	for rows.Next() {
		var e model.Engagement
		if err := rows.Scan(
			&e.UserID,
			&e.Points,
			&e.Streak,
			&e.LastActiveDate,
			&e.StudySessions,
			&e.Quotes,
			&e.EICs,
			&e.LoginCount,
			&e.PageViewCount,
			&e.FeatureUseCount,
			&e.ActiveDays,
			&e.TotalSecondsTracked,
			&e.UniquePagesVisited,
			&e.LastActivity,
		); err != nil {
			return nil, fmt.Errorf("scanning engagement: %w", err)
		}
		out[e.UserID] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating engagement: %w", err)
	}
	return out, nil
}

func (r *activityRepo) ListActivity(ctx context.Context, userID string) ([]model.ActivityRecord, error) {
	const q = `
        SELECT 'quote', id::text, COALESCE(status, ''), COALESCE(quote_number::text, ''), '',
               COALESCE(total, 0)::float8, 0, created_at
        FROM quotes WHERE user_id = $1
        UNION ALL
        SELECT 'eic', id::text, COALESCE(status, ''), COALESCE(installation_address, ''), '',
               0, 0, created_at
        FROM eic_schedules WHERE user_id = $1
        UNION ALL
        SELECT 'study', id::text, COALESCE(activity, resource_type, ''), COALESCE(course_slug, ''), '',
               0, 0, created_at
        FROM study_sessions WHERE user_id = $1
        UNION ALL
        SELECT 'time_track', id::text, COALESCE(activity_type, ''), COALESCE(course_slug, ''), '',
               0, COALESCE(duration, 0)::int, created_at
        FROM time_tracking_sessions WHERE user_id = $1
        UNION ALL
        (SELECT 'event', id::text, event_type, COALESCE(event_name, ''), COALESCE(page_path, ''),
                0, 0, created_at
         FROM user_events
         WHERE user_id = $1 AND event_type IN ('login', 'page_view', 'feature_use', 'session_start')
         ORDER BY created_at DESC
         LIMIT 50)
    `
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("querying activity for user %s: %w", userID, err)
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.ActivityRecord, error) {
		var a model.ActivityRecord
		err := row.Scan(&a.Source, &a.ID, &a.Kind, &a.Label, &a.Path, &a.Amount, &a.Minutes, &a.CreatedAt)
		return a, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning activity for user %s: %w", userID, err)
	}
	return records, nil
}
