package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"admindash/internal/model"
	"admindash/internal/repository"
	"admindash/internal/util"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	subscriptionpkg "github.com/stripe/stripe-go/v82/subscription"
)

// ErrUnauthenticated is returned when a privileged report is requested without a
// valid session.
var ErrUnauthenticated = errors.New("unauthenticated")

const (
	canceledLookback = 30 * 24 * time.Hour
	unknownTier      = "unknown"
)

// SubscriptionLister reads subscriptions from Stripe.
type SubscriptionLister interface {
	ListActive(ctx context.Context) ([]*stripe.Subscription, error)
	ListCanceledSince(ctx context.Context, since time.Time) ([]*stripe.Subscription, error)
}

type stripeSubscriptionLister struct{}

// NewStripeSubscriptionLister sets the Stripe key and lists through the API.
func NewStripeSubscriptionLister(secretKey string) SubscriptionLister {
	stripe.Key = secretKey
	return stripeSubscriptionLister{}
}

func (stripeSubscriptionLister) list(ctx context.Context, status string, keep func(*stripe.Subscription) bool) ([]*stripe.Subscription, error) {
	params := &stripe.SubscriptionListParams{Status: stripe.String(status)}
	params.Context = ctx
	params.Limit = stripe.Int64(100)

	var out []*stripe.Subscription
	it := subscriptionpkg.List(params)
	for it.Next() {
		sub := it.Subscription()
		if keep == nil || keep(sub) {
			out = append(out, sub)
		}
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("list %s subscriptions: %w", status, err)
	}
	return out, nil
}

func (l stripeSubscriptionLister) ListActive(ctx context.Context) ([]*stripe.Subscription, error) {
	return l.list(ctx, string(stripe.SubscriptionStatusActive), nil)
}

func (l stripeSubscriptionLister) ListCanceledSince(ctx context.Context, since time.Time) ([]*stripe.Subscription, error) {
	cutoff := since.Unix()
	return l.list(ctx, string(stripe.SubscriptionStatusCanceled), func(s *stripe.Subscription) bool {
		return s.CanceledAt >= cutoff
	})
}

// StripeStatsService builds the subscription report shown on the admin dashboard.
type StripeStatsService struct {
	lister     SubscriptionLister
	subRepo    repository.SubscriptionRepository
	tierPrices map[string]string
	now        func() time.Time
	logger     zerolog.Logger
}

func NewStripeStatsService(lister SubscriptionLister, subRepo repository.SubscriptionRepository, tierPrices map[string]string, logger zerolog.Logger) *StripeStatsService {
	return &StripeStatsService{
		lister:     lister,
		subRepo:    subRepo,
		tierPrices: tierPrices,
		now:        time.Now,
		logger:     logger.With().Str("service", "StripeStatsService").Logger(),
	}
}

// Generate lists subscriptions from Stripe and reconciles them with the database.
func (s *StripeStatsService) Generate(ctx context.Context) (*model.StripeStats, error) {
	now := s.now()

	active, err := s.lister.ListActive(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list active Stripe subscriptions")
		return nil, err
	}
	canceled, err := s.lister.ListCanceledSince(ctx, now.Add(-canceledLookback))
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list canceled Stripe subscriptions")
		return nil, err
	}
	dbIDs, err := s.subRepo.ListActiveStripeSubscriptionIDs(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list database subscriptions")
		return nil, err
	}

	stats := &model.StripeStats{
		ActiveSubscriptions: len(active),
		CanceledLast30Days:  len(canceled),
		TierCounts:          make(map[string]int),
		GeneratedAt:         now,
	}

	var mrr float64
	for _, sub := range active {
		stats.TierCounts[s.tierOf(sub)]++
		mrr += MonthlyAmount(sub)
	}
	stats.MRR = math.Round(mrr*100) / 100
	stats.Discrepancies = reconcile(active, dbIDs)

	if stats.Discrepancies.Difference != 0 {
		s.logger.Warn().
			Int("stripe_active", stats.Discrepancies.StripeActive).
			Int("database_active", stats.Discrepancies.DatabaseActive).
			Msg("Stripe and database subscription counts differ")
	}
	return stats, nil
}

func (s *StripeStatsService) tierOf(sub *stripe.Subscription) string {
	if sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0].Price == nil {
		return unknownTier
	}
	price := sub.Items.Data[0].Price
	if tier, ok := s.tierPrices[price.ID]; ok {
		return tier
	}
	if price.Nickname != "" {
		return price.Nickname
	}
	return unknownTier
}

// MonthlyAmount is the subscription's recurring revenue per month in pounds.
func MonthlyAmount(sub *stripe.Subscription) float64 {
	if sub.Items == nil {
		return 0
	}
	var total float64
	for _, item := range sub.Items.Data {
		if item.Price == nil || item.Price.Recurring == nil {
			continue
		}
		qty := item.Quantity
		if qty == 0 {
			qty = 1
		}
		amount := float64(item.Price.UnitAmount*qty) / 100

		count := float64(item.Price.Recurring.IntervalCount)
		if count == 0 {
			count = 1
		}
		switch item.Price.Recurring.Interval {
		case stripe.PriceRecurringIntervalYear:
			amount /= 12 * count
		case stripe.PriceRecurringIntervalMonth:
			amount /= count
		case stripe.PriceRecurringIntervalWeek:
			amount = amount * 52 / 12 / count
		case stripe.PriceRecurringIntervalDay:
			amount = amount * 365 / 12 / count
		}
		total += amount
	}
	return total
}

func reconcile(active []*stripe.Subscription, dbIDs []string) model.Discrepancies {
	known := make(map[string]struct{}, len(dbIDs))
	for _, id := range dbIDs {
		known[id] = struct{}{}
	}
	missing := []string{}
	for _, sub := range active {
		if _, ok := known[sub.ID]; !ok {
			missing = append(missing, sub.ID)
		}
	}
	sort.Strings(missing)
	return model.Discrepancies{
		StripeActive:      len(active),
		DatabaseActive:    len(dbIDs),
		Difference:        len(active) - len(dbIDs),
		MissingInDatabase: missing,
	}
}

// SubscriptionStatsFunction guards the report behind a valid bearer token.
type SubscriptionStatsFunction struct {
	stats     *StripeStatsService
	jwtSecret string
}

func NewSubscriptionStatsFunction(stats *StripeStatsService, jwtSecret string) *SubscriptionStatsFunction {
	return &SubscriptionStatsFunction{stats: stats, jwtSecret: jwtSecret}
}

func (f *SubscriptionStatsFunction) SubscriptionStats(ctx context.Context, bearer string) (*model.StripeStats, error) {
	if bearer == "" {
		return nil, ErrUnauthenticated
	}
	if _, err := util.ValidateJWT(bearer, f.jwtSecret); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	return f.stats.Generate(ctx)
}
