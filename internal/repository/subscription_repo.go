package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SubscriptionRepository reads the database's copy of Stripe subscriptions.
type SubscriptionRepository interface {
	// ListActiveStripeSubscriptionIDs returns Stripe IDs the database considers active.
	ListActiveStripeSubscriptionIDs(ctx context.Context) ([]string, error)
}

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

// NewSubscriptionRepo creates a new SubscriptionRepository.
func NewSubscriptionRepo(pool *pgxpool.Pool) SubscriptionRepository {
	return &subscriptionRepo{pool: pool}
}

func (r *subscriptionRepo) ListActiveStripeSubscriptionIDs(ctx context.Context) ([]string, error) {
	const q = `
        SELECT stripe_subscription_id
        FROM user_subscriptions
        WHERE stripe_subscription_id IS NOT NULL
          AND status IN ('active', 'trialing', 'past_due')
    `
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying active stripe subscriptions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning stripe subscription id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stripe subscriptions: %w", err)
	}
	return ids, nil
}
