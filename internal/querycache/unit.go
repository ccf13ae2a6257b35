package querycache

import (
	"context"
	"time"
)

// Key identifies one logical query within a Cache.
type Key string

// Policy controls how long a result is served without a refetch and how often it is
// refreshed in the background.
type Policy struct {
	StaleTime    time.Duration
	PollInterval time.Duration
}

// Unit is one independently scheduled data fetch.
type Unit[T any] interface {
	Key() Key
	Policy() Policy
	Fetch(ctx context.Context) (T, error)
}

// FuncUnit adapts a plain function to a Unit.
type FuncUnit[T any] struct {
	K Key
	P Policy
	F func(ctx context.Context) (T, error)
}

func (u FuncUnit[T]) Key() Key       { return u.K }
func (u FuncUnit[T]) Policy() Policy { return u.P }

func (u FuncUnit[T]) Fetch(ctx context.Context) (T, error) {
	return u.F(ctx)
}

// State is the observable condition of a cached key.
type State string

const (
	StateEmpty    State = "empty"
	StateFresh    State = "fresh"
	StateStale    State = "stale"
	StateFetching State = "fetching"
	StateFailed   State = "failed"
)

// Snapshot is a point-in-time view of a key, read without triggering a fetch.
type Snapshot[T any] struct {
	Value     T
	HasValue  bool
	State     State
	Err       error
	FetchedAt time.Time
}
