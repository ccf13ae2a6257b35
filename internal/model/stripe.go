package model

import "time"

// StripeStats is the subscription report produced by the stats function.
// Money amounts are in pounds.
type StripeStats struct {
	ActiveSubscriptions int            `json:"activeSubscriptions"`
	CanceledLast30Days  int            `json:"canceledLast30Days"`
	TierCounts          map[string]int `json:"tierCounts"`
	MRR                 float64        `json:"mrr"`
	Discrepancies       Discrepancies  `json:"discrepancies"`
	GeneratedAt         time.Time      `json:"generatedAt"`
}

// Discrepancies compares Stripe's view of active subscriptions with the database's.
type Discrepancies struct {
	StripeActive      int      `json:"stripeActive"`
	DatabaseActive    int      `json:"databaseActive"`
	Difference        int      `json:"difference"`
	MissingInDatabase []string `json:"missingInDatabase"`
}
