package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	// DefaultBaseInterval is the first wait between status checks.
	DefaultBaseInterval = time.Second

	// DefaultMaxInterval caps the wait between status checks.
	DefaultMaxInterval = 1800 * time.Second

	// DefaultBudget bounds the total time spent polling one batch,
	// measured from the first check.
	DefaultBudget = 86400 * time.Second
)

// Clock is the time source used by the poller. Its After method satisfies
// retry-go's Timer so waits can be simulated in tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// PollConfig configures a Poller. Zero values take the defaults above.
type PollConfig struct {
	BaseInterval time.Duration
	MaxInterval  time.Duration
	Budget       time.Duration
	Clock        Clock
	Logger       *slog.Logger
}

// Poller waits for a batch job to reach a terminal state.
type Poller struct {
	provider     Provider
	baseInterval time.Duration
	maxInterval  time.Duration
	budget       time.Duration
	clock        Clock
	logger       *slog.Logger
}

// NewPoller creates a poller over provider.
func NewPoller(provider Provider, cfg PollConfig) *Poller {
	if cfg.BaseInterval <= 0 {
		cfg.BaseInterval = DefaultBaseInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = DefaultMaxInterval
	}
	if cfg.MaxInterval < cfg.BaseInterval {
		cfg.MaxInterval = cfg.BaseInterval
	}
	if cfg.Budget <= 0 {
		cfg.Budget = DefaultBudget
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Poller{
		provider:     provider,
		baseInterval: cfg.BaseInterval,
		maxInterval:  cfg.MaxInterval,
		budget:       cfg.Budget,
		clock:        cfg.Clock,
		logger:       cfg.Logger,
	}
}

// Check queries the job once and tags the result with its poller state.
func (p *Poller) Check(ctx context.Context, jobID string) (Check, error) {
	job, err := p.provider.GetBatch(ctx, jobID)
	if err != nil {
		return Check{}, fmt.Errorf("failed to get batch %s: %w", jobID, err)
	}
	if job == nil {
		return Check{}, fmt.Errorf("provider returned no batch for %s", jobID)
	}
	return Check{State: job.State(), Job: job}, nil
}

// errPending keeps the retry loop going while a job is not terminal. It
// never leaves Wait.
var errPending = errors.New("batch pending")

// Wait checks the job until it is completed or failed, sleeping with
// exponential backoff between checks. A job still pending once the budget
// has elapsed yields *BatchTimeoutError. Errors from the status query end
// polling immediately.
func (p *Poller) Wait(ctx context.Context, jobID string) (*Job, error) {
	start := p.clock.Now()
	checks := 0

	job, err := retry.DoWithData(
		func() (*Job, error) {
			checks++
			p.logger.Info("checking batch status", "batch_id", jobID, "check", checks)

			c, err := p.Check(ctx, jobID)
			if err != nil {
				return nil, err
			}

			if c.State.Terminal() {
				p.logger.Info("batch reached terminal state",
					"batch_id", jobID,
					"status", c.Job.Status,
					"checks", checks,
					"elapsed", p.clock.Now().Sub(start),
				)
				return c.Job, nil
			}

			elapsed := p.clock.Now().Sub(start)
			if elapsed >= p.budget {
				return nil, &BatchTimeoutError{
					JobID:      jobID,
					LastStatus: c.Job.Status,
					Elapsed:    elapsed,
					Budget:     p.budget,
				}
			}
			p.logger.Debug("batch not ready", "batch_id", jobID, "status", c.Job.Status, "elapsed", elapsed)
			return nil, errPending
		},
		retry.Context(ctx),
		retry.Attempts(0),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, errPending)
		}),
		retry.DelayType(p.delay),
		retry.MaxDelay(p.maxInterval),
		retry.WithTimer(p.clock),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		var timeoutErr *BatchTimeoutError
		if errors.As(err, &timeoutErr) {
			p.logger.Error("batch polling budget exceeded",
				"batch_id", jobID,
				"status", timeoutErr.LastStatus,
				"elapsed", timeoutErr.Elapsed,
			)
			return nil, timeoutErr
		}
		return nil, err
	}
	return job, nil
}

// delay returns the wait before retry n: base, 2*base, 4*base, ... capped
// at the max interval.
func (p *Poller) delay(n uint, _ error, _ *retry.Config) time.Duration {
	return backoffDelay(p.baseInterval, p.maxInterval, n)
}

func backoffDelay(base, maxDelay time.Duration, n uint) time.Duration {
	if n == 0 {
		n = 1
	}
	shift := n - 1
	if shift >= 62 {
		return maxDelay
	}
	d := base << shift
	if d <= 0 || d > maxDelay || d>>shift != base {
		return maxDelay
	}
	return d
}
