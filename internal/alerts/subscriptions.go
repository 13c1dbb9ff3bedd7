package alerts

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"clearsky/internal/types"
)

// Query selects which alerts a subscription observes. Zero value observes
// all alerts; at most one selector should be set.
type Query struct {
	ID     string
	Status *types.AlertStatus
	Type   *types.AlertType
}

// broadcaster implements in-process live queries. Every mutation re-runs
// each subscriber's query and emits only when the result changed, so
// subscribers see the same duplicate-suppressed stream a reactive database
// query would give them.
type broadcaster struct {
	store  AlertStore
	logger *slog.Logger

	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]*subscription
}

type subscription struct {
	query Query
	ch    chan []*types.WeatherAlert
	// last is the JSON fingerprint of the previous emission, used for
	// duplicate suppression.
	last string
}

func newBroadcaster(store AlertStore, logger *slog.Logger) *broadcaster {
	return &broadcaster{
		store:  store,
		logger: logger,
		subs:   make(map[uint64]*subscription),
	}
}

// subscribe registers a query and emits its current result immediately.
func (b *broadcaster) subscribe(ctx context.Context, q Query) (<-chan []*types.WeatherAlert, func(), error) {
	initial, err := b.run(ctx, q)
	if err != nil {
		return nil, nil, err
	}

	sub := &subscription{
		query: q,
		ch:    make(chan []*types.WeatherAlert, 1),
		last:  fingerprint(initial),
	}
	sub.ch <- initial

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if s, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(s.ch)
		}
		b.mu.Unlock()
	}
	return sub.ch, cancel, nil
}

// publish re-runs every subscribed query after a mutation. A failing query
// skips that subscriber for this round; the subscription stays registered
// and catches up on the next mutation.
func (b *broadcaster) publish(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		result, err := b.run(ctx, sub.query)
		if err != nil {
			b.logger.ErrorContext(ctx, "subscription query failed",
				"query", sub.query.String(),
				"error", err,
			)
			continue
		}
		fp := fingerprint(result)
		if fp == sub.last {
			continue
		}
		sub.last = fp

		// Buffered channel of size one: a slow subscriber keeps only the
		// newest result, never blocking the mutating caller.
		select {
		case sub.ch <- result:
		default:
			select {
			case <-sub.ch:
			default:
			}
			sub.ch <- result
		}
	}
}

// run executes the query against the store.
func (b *broadcaster) run(ctx context.Context, q Query) ([]*types.WeatherAlert, error) {
	switch {
	case q.ID != "":
		a, err := b.store.GetByID(ctx, q.ID)
		if err != nil {
			return nil, err
		}
		if a == nil {
			return nil, nil
		}
		return []*types.WeatherAlert{a}, nil
	case q.Status != nil:
		return b.store.ByStatus(ctx, *q.Status)
	case q.Type != nil:
		return b.store.ByType(ctx, *q.Type)
	default:
		return b.store.All(ctx)
	}
}

// fingerprint serializes a result set for change detection. Marshal errors
// cannot occur for WeatherAlert; an empty fingerprint would only force an
// extra emission.
func fingerprint(alerts []*types.WeatherAlert) string {
	data, err := json.Marshal(alerts)
	if err != nil {
		return ""
	}
	return string(data)
}
