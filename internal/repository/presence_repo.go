package repository

import (
	"context"
	"fmt"
	"time"

	"admindash/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PresenceRepository interface {
	// ListRecent returns the most recently seen presence rows with profiles.
	ListRecent(ctx context.Context, limit int) ([]model.OnlineUser, error)
	CountActiveSince(ctx context.Context, since time.Time) (int, error)
	// Upsert records a heartbeat. session_started_at is kept from the first beat.
	Upsert(ctx context.Context, hb model.Heartbeat) error
}

type presenceRepo struct {
	pool *pgxpool.Pool
}

func NewPresenceRepo(pool *pgxpool.Pool) PresenceRepository {
	return &presenceRepo{pool: pool}
}

func (r *presenceRepo) ListRecent(ctx context.Context, limit int) ([]model.OnlineUser, error) {
	const q = `
        SELECT up.user_id,
               up.last_seen,
               COALESCE(up.status, ''),
               up.session_started_at,
               COALESCE(up.current_page, ''),
               COALESCE(up.device_info, ''),
               COALESCE(p.full_name, ''),
               COALESCE(p.role, ''),
               COALESCE(p.avatar_url, '')
        FROM user_presence up
        LEFT JOIN profiles p ON p.id = up.user_id
        ORDER BY up.last_seen DESC
        LIMIT $1
    `
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("querying presence: %w", err)
	}
	defer rows.Close()

	var users []model.OnlineUser
	for rows.Next() {
		var u model.OnlineUser
		if err := rows.Scan(
			&u.UserID,
			&u.LastSeen,
			&u.Status,
			&u.SessionStartedAt,
			&u.CurrentPage,
			&u.DeviceInfo,
			&u.Profile.FullName,
			&u.Profile.Role,
			&u.Profile.AvatarURL,
		); err != nil {
			return nil, fmt.Errorf("scanning presence: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating presence: %w", err)
	}
	return users, nil
}

func (r *presenceRepo) CountActiveSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	const q = `SELECT COUNT(*) FROM user_presence WHERE last_seen >= $1`
	if err := r.pool.QueryRow(ctx, q, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting active users: %w", err)
	}
	return count, nil
}

func (r *presenceRepo) Upsert(ctx context.Context, hb model.Heartbeat) error {
	const q = `
        INSERT INTO user_presence (user_id, last_seen, status, session_started_at, current_page, device_info)
        VALUES ($1, $2, $3, $2, $4, $5)
        ON CONFLICT (user_id) DO UPDATE
        SET last_seen = EXCLUDED.last_seen,
            status = EXCLUDED.status,
            current_page = EXCLUDED.current_page,
            device_info = EXCLUDED.device_info,
            session_started_at = COALESCE(user_presence.session_started_at, EXCLUDED.session_started_at)
    `
	if _, err := r.pool.Exec(ctx, q, hb.UserID, hb.SeenAt, hb.Status, hb.CurrentPage, hb.DeviceInfo); err != nil {
		return fmt.Errorf("upserting presence for user %s: %w", hb.UserID, err)
	}
	return nil
}
