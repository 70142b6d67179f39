package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/freshpress/api/internal/repositories"
)

const (
	defaultExpiryTTL       = 24 * time.Hour
	defaultSweepInterval   = time.Hour
	defaultSweepBatchSize  = 100
	expiredPaymentReason   = "payment window expired"
	initialSweepStartDelay = time.Minute
)

// ExpirySweeperDeps wires the dependencies required by the expiry sweeper.
type ExpirySweeperDeps struct {
	Transactions repositories.TransactionRepository
	TTL          time.Duration
	Interval     time.Duration
	BatchSize    int
	Logger       *zap.Logger
	Clock        func() time.Time
}

// ExpirySweeper periodically fails transactions stuck in pending beyond the
// payment window. A buyer who abandons the gateway page never triggers a
// callback, so without the sweep those records would stay pending forever.
type ExpirySweeper struct {
	transactions repositories.TransactionRepository
	ttl          time.Duration
	interval     time.Duration
	batchSize    int
	logger       *zap.Logger
	now          func() time.Time
}

// NewExpirySweeper constructs an ExpirySweeper validating required dependencies.
func NewExpirySweeper(deps ExpirySweeperDeps) (*ExpirySweeper, error) {
	if deps.Transactions == nil {
		return nil, errors.New("expiry sweeper: transaction repository is required")
	}

	ttl := deps.TTL
	if ttl <= 0 {
		ttl = defaultExpiryTTL
	}
	interval := deps.Interval
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	batchSize := deps.BatchSize
	if batchSize <= 0 {
		batchSize = defaultSweepBatchSize
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &ExpirySweeper{
		transactions: deps.Transactions,
		ttl:          ttl,
		interval:     interval,
		batchSize:    batchSize,
		logger:       logger.Named("expiry_sweeper"),
		now: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

// Run executes sweeps on the configured interval until the context is
// cancelled. Intended to be launched from main in its own goroutine.
func (s *ExpirySweeper) Run(ctx context.Context) {
	// Let the server finish starting before the first pass.
	select {
	case <-ctx.Done():
		return
	case <-time.After(initialSweepStartDelay):
	}

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// SweepOnce runs a single pass and returns how many transactions expired.
func (s *ExpirySweeper) SweepOnce(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.ttl)
	return s.transactions.ExpirePending(ctx, cutoff, expiredPaymentReason, s.batchSize)
}

func (s *ExpirySweeper) sweep(ctx context.Context) {
	expired, err := s.SweepOnce(ctx)
	if err != nil {
		s.logger.Warn("pending transaction sweep failed", zap.Error(err))
		return
	}
	if expired > 0 {
		s.logger.Info("expired pending transactions", zap.Int("count", expired))
	}
}
