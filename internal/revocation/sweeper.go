package revocation

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

const DefaultSweepInterval = 5 * time.Minute

type sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// Sweeper purges expired revocations on a fixed interval, independently of
// request handling. A failed tick is logged and retried on the next one.
type Sweeper struct {
	store    sweeper
	interval time.Duration
}

func NewSweeper(store sweeper, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{store: store, interval: interval}
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	go s.Run(ctx)
}

func (s *Sweeper) tick(ctx context.Context) {
	deleted, err := s.store.Sweep(ctx)
	if err != nil {
		log.Errorf("🔴 Revoked token cleanup failed: %v", err)
		return
	}
	if deleted > 0 {
		log.Infof("🧹 Cleaned up %d expired revoked tokens", deleted)
	}
}
