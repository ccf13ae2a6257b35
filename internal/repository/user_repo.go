package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"admindash/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository reads profiles joined with their auth records.
type UserRepository interface {
	// ListUsers returns every user, newest signup first.
	ListUsers(ctx context.Context) ([]model.User, error)
	CountUsers(ctx context.Context) (int, error)
	CountSignupsSince(ctx context.Context, since time.Time) (int, error)
	// CountExpiringTrials counts unsubscribed users without free access whose signup
	// falls in [from, to).
	CountExpiringTrials(ctx context.Context, from, to time.Time) (int, error)
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

type userRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) UserRepository {
	return &userRepo{pool: pool}
}

func (r *userRepo) ListUsers(ctx context.Context) ([]model.User, error) {
	const q = `
        SELECT p.id,
               COALESCE(p.full_name, ''),
               COALESCE(p.username, ''),
               COALESCE(u.email, ''),
               COALESCE(p.role, ''),
               COALESCE(p.subscribed, false),
               COALESCE(p.free_access_granted, false),
               p.created_at,
               u.last_sign_in_at
        FROM profiles p
        LEFT JOIN auth.users u ON u.id = p.id
        ORDER BY p.created_at DESC
    `
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(
			&u.ID,
			&u.FullName,
			&u.Username,
			&u.Email,
			&u.Role,
			&u.Subscribed,
			&u.FreeAccessGranted,
			&u.CreatedAt,
			&u.LastSignInAt,
		); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}
	return users, nil
}

func (r *userRepo) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

func (r *userRepo) CountSignupsSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	const q = `SELECT COUNT(*) FROM profiles WHERE created_at >= $1`
	if err := r.pool.QueryRow(ctx, q, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting signups since %s: %w", since.Format(time.RFC3339), err)
	}
	return count, nil
}

func (r *userRepo) CountExpiringTrials(ctx context.Context, from, to time.Time) (int, error) {
	var count int
	const q = `
        SELECT COUNT(*)
        FROM profiles
        WHERE created_at >= $1
          AND created_at < $2
          AND COALESCE(subscribed, false) = false
          AND COALESCE(free_access_granted, false) = false
    `
	if err := r.pool.QueryRow(ctx, q, from, to).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting expiring trials: %w", err)
	}
	return count, nil
}

func (r *userRepo) IsAdmin(ctx context.Context, userID string) (bool, error) {
	var role string
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(role, '') FROM profiles WHERE id = $1`, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("fetch role for user %s: %w", userID, err)
	}
	return role == "admin", nil
}
