// Package scheduler runs periodic background work for the auction server.
package scheduler

import (
	"context"
	"time"

	"auction-core/utils"
)

// Closer closes every auction whose end date has passed
type Closer interface {
	CloseExpired(ctx context.Context) (int, error)
}

// ExpiryCloser invokes a Closer on a fixed interval
type ExpiryCloser struct {
	closer   Closer
	interval time.Duration
}

func NewExpiryCloser(closer Closer, interval time.Duration) *ExpiryCloser {
	return &ExpiryCloser{closer: closer, interval: interval}
}

// Run sweeps once immediately and then on every tick until ctx is done
func (e *ExpiryCloser) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	utils.Info("expiry closer started", map[string]any{"interval": e.interval.String()})
	for {
		e.sweep(ctx)
		select {
		case <-ctx.Done():
			utils.Info("expiry closer stopped", nil)
			return
		case <-ticker.C:
		}
	}
}

func (e *ExpiryCloser) sweep(ctx context.Context) {
	closed, err := e.closer.CloseExpired(ctx)
	if err != nil && ctx.Err() == nil {
		utils.Error("expiry sweep failed", map[string]any{"closed": closed, "error": err.Error()})
		return
	}
	if closed > 0 {
		utils.Info("expired auctions closed", map[string]any{"closed": closed})
	}
}
