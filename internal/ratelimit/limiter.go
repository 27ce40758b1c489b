// Package ratelimit is a per-actor, per-operation sliding-window
// counter backed by the document store. The check-and-increment runs in
// one transaction, so two concurrent calls can never both slip past the
// limit on a stale read.
package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/ensemble-works/mpa-server/internal/apperr"
	"github.com/ensemble-works/mpa-server/internal/docstore"
)

const collection = "ratelimits"

type Limiter struct {
	store  docstore.Store
	window time.Duration
	limit  int
	now    func() time.Time
}

func New(store docstore.Store, window time.Duration, limit int) *Limiter {
	return &Limiter{store: store, window: window, limit: limit, now: time.Now}
}

type counter struct {
	WindowStart int64 `json:"window_start"`
	Count       int   `json:"count"`
}

// Allow records one call for actor+op. Returns ResourceExhausted when
// the window is full; the rejected increment is rolled back with the
// transaction, so rejected calls do not consume quota.
func (l *Limiter) Allow(ctx context.Context, actorUID, op string) error {
	if l == nil || l.limit <= 0 {
		return nil
	}
	id := actorUID + ":" + op
	return l.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		var c counter
		err := tx.Get(ctx, collection, id, &c)
		if err != nil && !errors.Is(err, docstore.ErrNotFound) {
			return err
		}
		now := l.now().Unix()
		if err != nil || now-c.WindowStart > int64(l.window.Seconds()) {
			c = counter{WindowStart: now, Count: 1}
		} else {
			c.Count++
			if c.Count > l.limit {
				return apperr.Newf(apperr.ResourceExhausted,
					"rate limit exceeded for %s (max %d per %s)", op, l.limit, l.window)
			}
		}
		return tx.Set(collection, id, &c)
	})
}
