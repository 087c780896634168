package maintenance

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/openfedx/offering-service/pkg/logger"
)

const (
	defaultRevocationSpec   = "@every 5m"
	defaultTokenRefreshSpec = "@hourly"
)

// RevocationSweeper retries remote revocations that failed at retirement time.
type RevocationSweeper interface {
	ReconcilePendingRevocations(ctx context.Context) (int, error)
}

// TokenRefresher renews the outbound service-account token ahead of expiry.
type TokenRefresher interface {
	Refresh(ctx context.Context) error
}

// Reconciler coordinates background jobs: sweeping records whose remote revoke
// is still pending, and keeping the outbound token warm. Any nil dependency
// results in the corresponding job being skipped.
type Reconciler struct {
	sweeper   RevocationSweeper
	refresher TokenRefresher
	cron      *cron.Cron
	log       *zap.Logger
	enabled   bool

	revocationSchedule   string
	tokenRefreshSchedule string
}

// Option customises the Reconciler.
type Option func(*Reconciler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(r *Reconciler) {
		if c != nil {
			r.cron = c
		}
	}
}

// WithRevocationSchedule overrides the cron specification for the revocation sweep.
func WithRevocationSchedule(spec string) Option {
	return func(r *Reconciler) {
		if spec != "" {
			r.revocationSchedule = spec
		}
	}
}

// WithTokenRefreshSchedule overrides the cron specification for token renewal.
func WithTokenRefreshSchedule(spec string) Option {
	return func(r *Reconciler) {
		if spec != "" {
			r.tokenRefreshSchedule = spec
		}
	}
}

// NewReconciler constructs a Reconciler with sensible defaults.
func NewReconciler(sweeper RevocationSweeper, refresher TokenRefresher, opts ...Option) *Reconciler {
	r := &Reconciler{
		sweeper:              sweeper,
		refresher:            refresher,
		revocationSchedule:   defaultRevocationSpec,
		tokenRefreshSchedule: defaultTokenRefreshSpec,
		log:                  logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.cron == nil {
		r.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	r.enabled = r.sweeper != nil || r.refresher != nil
	return r
}

// Start registers the jobs with the cron scheduler and launches it if at least
// one job is enabled.
func (r *Reconciler) Start() error {
	if !r.enabled {
		return nil
	}

	if r.sweeper != nil {
		if _, err := r.cron.AddFunc(r.revocationSchedule, func() {
			ctx := context.Background()
			reconciled, err := r.sweeper.ReconcilePendingRevocations(ctx)
			if err != nil {
				r.log.Warn("revocation sweep incomplete",
					zap.Int("reconciled", reconciled), zap.Error(err))
				return
			}
			if reconciled > 0 {
				r.log.Info("revocation sweep finished", zap.Int("reconciled", reconciled))
			}
		}); err != nil {
			return err
		}
	}

	if r.refresher != nil {
		if _, err := r.cron.AddFunc(r.tokenRefreshSchedule, func() {
			ctx := context.Background()
			if err := r.refresher.Refresh(ctx); err != nil {
				r.log.Warn("service account refresh failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	r.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (r *Reconciler) Stop() context.Context {
	if r.cron == nil {
		return context.Background()
	}
	return r.cron.Stop()
}

// RunOnce executes all configured jobs sequentially. Primarily used in tests
// and during graceful shutdown.
func (r *Reconciler) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if r.sweeper != nil {
		if _, err := r.sweeper.ReconcilePendingRevocations(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if r.refresher != nil {
		if err := r.refresher.Refresh(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}
