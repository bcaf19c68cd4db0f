package worker

import (
	"context"
	"time"

	"rps_arena/internal/logger"

	"github.com/go-co-op/gocron/v2"
)

// Retrier settles matches left unpaid by earlier failures.
type Retrier interface {
	RetryUnsettled(ctx context.Context, limit int) (int, error)
}

// SettlementRetry periodically re-runs settlement for unpaid decisive matches.
type SettlementRetry struct {
	retrier Retrier
	sched   gocron.Scheduler
	batch   int
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

func NewSettlementRetry(r Retrier, every time.Duration, batch int) (*SettlementRetry, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	if batch <= 0 {
		batch = 20
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &SettlementRetry{
		retrier: r,
		sched:   sched,
		batch:   batch,
		timeout: every,
		ctx:     ctx,
		cancel:  cancel,
	}

	_, err = sched.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(w.RunOnce),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("settlement-retry"),
	)
	if err != nil {
		cancel()
		return nil, err
	}
	return w, nil
}

// RunOnce performs one retry pass.
func (w *SettlementRetry) RunOnce() {
	ctx, cancel := context.WithTimeout(w.ctx, w.timeout)
	defer cancel()

	paid, err := w.retrier.RetryUnsettled(ctx, w.batch)
	if err != nil {
		logger.Warn("settlement retry pass failed", "error", err)
		return
	}
	if paid > 0 {
		logger.Info("settlement retry paid matches", "count", paid)
	}
}

func (w *SettlementRetry) Start() {
	w.sched.Start()
	logger.Info("settlement retry worker started")
}

// Stop cancels an in-flight pass and waits for the scheduler to exit.
func (w *SettlementRetry) Stop() error {
	w.cancel()
	return w.sched.Shutdown()
}
