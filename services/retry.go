package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"instant-win-system/store"

	"github.com/rs/zerolog/log"
)

// Options tunes the services. Zero values fall back to defaults.
type Options struct {
	MaxTxAttempts  int           // attempts per transaction before ErrTransientFailure
	TxRetryBackoff time.Duration // base delay between attempts, grows linearly
	MaxBatchDraws  int           // cap on chances consumed by one multi-draw call
	Random         RandomSource
	Now            func() time.Time
	Metrics        *Metrics
}

const (
	defaultMaxTxAttempts  = 5
	defaultTxRetryBackoff = 20 * time.Millisecond
	defaultMaxBatchDraws  = 10
)

func (o Options) withDefaults() Options {
	if o.MaxTxAttempts <= 0 {
		o.MaxTxAttempts = defaultMaxTxAttempts
	}
	if o.TxRetryBackoff < 0 {
		o.TxRetryBackoff = 0
	} else if o.TxRetryBackoff == 0 {
		o.TxRetryBackoff = defaultTxRetryBackoff
	}
	if o.MaxBatchDraws <= 0 {
		o.MaxBatchDraws = defaultMaxBatchDraws
	}
	if o.Random == nil {
		o.Random = DefaultRandom()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// txRunner retries store transactions that fail with store.ErrConflict.
type txRunner struct {
	store       store.Store
	maxAttempts int
	backoff     time.Duration
	metrics     *Metrics
}

func (r *txRunner) run(ctx context.Context, op string, fn func(tx store.Tx) error) error {
	var err error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		err = r.store.WithinTx(ctx, fn)
		if !errors.Is(err, store.ErrConflict) {
			return err
		}

		r.metrics.txConflict(op)
		log.Debug().Str("op", op).Int("attempt", attempt).Err(err).Msg("🔁 [TX] write conflict, retrying")

		if attempt == r.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.backoff * time.Duration(attempt)):
		}
	}

	r.metrics.txExhausted(op)
	log.Warn().Str("op", op).Int("attempts", r.maxAttempts).Err(err).Msg("❌ [TX] retry budget exhausted")
	return fmt.Errorf("%s: %w: %w", op, ErrTransientFailure, err)
}

// base is embedded by every service.
type base struct {
	store   store.Store
	tx      *txRunner
	now     func() time.Time
	metrics *Metrics
}

func newBase(st store.Store, opts Options) base {
	return base{
		store: st,
		tx: &txRunner{
			store:       st,
			maxAttempts: opts.MaxTxAttempts,
			backoff:     opts.TxRetryBackoff,
			metrics:     opts.Metrics,
		},
		now:     opts.Now,
		metrics: opts.Metrics,
	}
}
