package chain

import (
	"context"
	"errors"
	"time"

	"rps_arena/internal/domain"
	"rps_arena/internal/logger"

	"github.com/lestrrat-go/backoff/v2"
)

var ErrPollExhausted = errors.New("condition not observed before retries ran out")

// CheckFunc reports whether the awaited condition holds. Errors are logged
// and polling continues; the condition is treated as unknown, not false.
type CheckFunc func(ctx context.Context) (done bool, err error)

// Poller re-runs a check with bounded exponential backoff until it succeeds,
// the context ends or retries are exhausted.
type Poller struct {
	policy backoff.Policy
}

func NewPoller(minInterval, maxInterval time.Duration, maxRetries int) *Poller {
	if minInterval <= 0 {
		minInterval = time.Second
	}
	if maxInterval < minInterval {
		maxInterval = minInterval
	}
	return &Poller{
		policy: backoff.Exponential(
			backoff.WithMinInterval(minInterval),
			backoff.WithMaxInterval(maxInterval),
			backoff.WithJitterFactor(0.1),
			backoff.WithMaxRetries(maxRetries),
		),
	}
}

func (p *Poller) Until(ctx context.Context, name string, check CheckFunc) error {
	b := p.policy.Start(ctx)
	attempt := 0
	for backoff.Continue(b) {
		attempt++
		done, err := check(ctx)
		if err != nil {
			logger.WithContext(ctx).Warn("poll check failed", "poll", name, "attempt", attempt, "error", err)
			continue
		}
		if done {
			return nil
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return ErrPollExhausted
}

// DepositSource reads escrow deposit flags.
type DepositSource interface {
	Deposits(ctx context.Context, appID uint64) (domain.DepositState, error)
}

// AwaitDeposits polls until both players have funded the escrow.
func AwaitDeposits(ctx context.Context, p *Poller, src DepositSource, appID uint64) (domain.DepositState, error) {
	var last domain.DepositState
	err := p.Until(ctx, "deposits", func(ctx context.Context) (bool, error) {
		ds, err := src.Deposits(ctx, appID)
		if err != nil {
			return false, err
		}
		last = ds
		return ds.Both(), nil
	})
	return last, err
}
