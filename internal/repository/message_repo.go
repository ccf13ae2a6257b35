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

var ErrMessageNotFound = errors.New("message not found")

type MessageRepository interface {
	// ListInbox returns the newest messages addressed to recipientID.
	ListInbox(ctx context.Context, recipientID string, limit int) ([]model.SupportMessage, error)
	CountUnread(ctx context.Context, recipientID string) (int, error)
	Get(ctx context.Context, id string) (*model.SupportMessage, error)
	// MarkRead sets read_at only while it is still null. It reports whether a row
	// was written.
	MarkRead(ctx context.Context, id string, at time.Time) (bool, error)
	CreateReply(ctx context.Context, reply model.Reply) (*model.SupportMessage, error)
}

type messageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) MessageRepository {
	return &messageRepo{pool: pool}
}

const messageColumns = `
        m.id,
        m.sender_id,
        m.recipient_id,
        COALESCE(m.subject, ''),
        COALESCE(m.message, ''),
        m.read_at,
        m.created_at,
        COALESCE(p.full_name, ''),
        COALESCE(p.role, ''),
        COALESCE(p.avatar_url, '')
`

func scanMessage(row pgx.Row) (model.SupportMessage, error) {
	var m model.SupportMessage
	err := row.Scan(
		&m.ID,
		&m.SenderID,
		&m.RecipientID,
		&m.Subject,
		&m.Message,
		&m.ReadAt,
		&m.CreatedAt,
		&m.Sender.FullName,
		&m.Sender.Role,
		&m.Sender.AvatarURL,
	)
	return m, err
}

func (r *messageRepo) ListInbox(ctx context.Context, recipientID string, limit int) ([]model.SupportMessage, error) {
	q := `SELECT` + messageColumns + `
        FROM admin_messages m
        LEFT JOIN profiles p ON p.id = m.sender_id
        WHERE m.recipient_id = $1
        ORDER BY m.created_at DESC
        LIMIT $2
    `
	rows, err := r.pool.Query(ctx, q, recipientID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying inbox for %s: %w", recipientID, err)
	}
	defer rows.Close()

	var msgs []model.SupportMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating inbox: %w", err)
	}
	return msgs, nil
}

func (r *messageRepo) CountUnread(ctx context.Context, recipientID string) (int, error) {
	var count int
	const q = `SELECT COUNT(*) FROM admin_messages WHERE recipient_id = $1 AND read_at IS NULL`
	if err := r.pool.QueryRow(ctx, q, recipientID).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting unread messages for %s: %w", recipientID, err)
	}
	return count, nil
}

func (r *messageRepo) Get(ctx context.Context, id string) (*model.SupportMessage, error) {
	q := `SELECT` + messageColumns + `
        FROM admin_messages m
        LEFT JOIN profiles p ON p.id = m.sender_id
        WHERE m.id = $1
    `
	m, err := scanMessage(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("getting message %s: %w", id, err)
	}
	return &m, nil
}

func (r *messageRepo) MarkRead(ctx context.Context, id string, at time.Time) (bool, error) {
	const q = `UPDATE admin_messages SET read_at = $2 WHERE id = $1 AND read_at IS NULL`
	tag, err := r.pool.Exec(ctx, q, id, at)
	if err != nil {
		return false, fmt.Errorf("marking message %s read: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *messageRepo) CreateReply(ctx context.Context, reply model.Reply) (*model.SupportMessage, error) {
	const q = `
        INSERT INTO admin_messages (sender_id, recipient_id, subject, message)
        VALUES ($1, $2, $3, $4)
        RETURNING id, sender_id, recipient_id, subject, message, read_at, created_at
    `
	var m model.SupportMessage
	err := r.pool.QueryRow(ctx, q, reply.SenderID, reply.RecipientID, reply.Subject, reply.Message).Scan(
		&m.ID,
		&m.SenderID,
		&m.RecipientID,
		&m.Subject,
		&m.Message,
		&m.ReadAt,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating reply to %s: %w", reply.RecipientID, err)
	}
	return &m, nil
}
