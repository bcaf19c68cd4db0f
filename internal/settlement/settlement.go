// Package settlement pays out decisive matches exactly once.
//
// Settlers on any node claim the match with a Locker, re-read the index
// after the claim, and only then move the record to completed and call
// the escrow. The payout is marked started in the index before the escrow
// group is sent, so neither a recorded nor a started payout is sent again,
// even by a process that restarted in between.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"rps_arena/internal/domain"
	"rps_arena/internal/logger"
)

// Index is the match index the trigger reads and advances.
type Index interface {
	GetByMatchID(ctx context.Context, matchID int64) (*domain.GameRecord, error)
	MarkInProgress(ctx context.Context, matchID int64) error
	MarkCompleted(ctx context.Context, matchID int64, winner domain.Verdict, winnerAddress string) error
	MarkPaid(ctx context.Context, matchID int64, txID string) error

	BeginPayout(ctx context.Context, matchID int64) (bool, error)
	ReleasePayout(ctx context.Context, matchID int64) error
	MarkPayoutPending(ctx context.Context, matchID int64, txID string) error
}

// Escrow designates the winner and releases the pot as one atomic group.
// An error with a non-empty txID means the group was submitted but its
// confirmation was not observed.
type Escrow interface {
	Payout(ctx context.Context, appID uint64, winnerAddress string) (txID string, err error)
}

type OutcomeKind string

const (
	OutcomePaid           OutcomeKind = "paid"
	OutcomeDraw           OutcomeKind = "draw"
	OutcomeAlreadySettled OutcomeKind = "already_settled"
)

type SettleRequest struct {
	MatchID        int64
	Verdict        domain.Verdict
	Player1Address string
	Player2Address string
}

type Outcome struct {
	MatchID       int64          `json:"match_id"`
	Kind          OutcomeKind    `json:"kind"`
	Verdict       domain.Verdict `json:"verdict"`
	WinnerAddress string         `json:"winner_address,omitempty"`
	TxID          string         `json:"tx_id,omitempty"`
}

type Trigger struct {
	index   Index
	escrow  Escrow
	locker  Locker
	lockTTL time.Duration

	// paid remembers payouts whose index write failed, so this process still
	// reports them as settled with their transaction id.
	paid sync.Map
}

func NewTrigger(index Index, escrow Escrow, locker Locker, lockTTL time.Duration) *Trigger {
	if lockTTL <= 0 {
		lockTTL = time.Minute
	}
	return &Trigger{index: index, escrow: escrow, locker: locker, lockTTL: lockTTL}
}

func (t *Trigger) fetch(ctx context.Context, matchID int64) (*domain.GameRecord, error) {
	rec, err := t.index.GetByMatchID(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("%w: match %d: %v", ErrExternalStateFetch, matchID, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %d", ErrMatchNotFound, matchID)
	}
	return rec, nil
}

func (t *Trigger) settled(rec *domain.GameRecord) (string, bool) {
	if rec.Paid() {
		return *rec.PayoutTxID, true
	}
	if v, ok := t.paid.Load(rec.MatchID); ok {
		return v.(string), true
	}
	return "", false
}

// Settle acts on a verdict. Draws reopen the match for replay. Decisive
// verdicts complete the record and pay the winner. Payout failures return a
// *SettlementFailedError and leave the match retryable. A payout that was
// started but never recorded returns ErrPayoutUnconfirmed and is not sent again.
func (t *Trigger) Settle(ctx context.Context, req SettleRequest) (*Outcome, error) {
	if !req.Verdict.Valid() {
		return nil, ErrNoVerdict
	}
	log := logger.ForMatch(ctx, req.MatchID).With("verdict", req.Verdict)

	rec, err := t.fetch(ctx, req.MatchID)
	if err != nil {
		SettleAttempts.WithLabelValues("fetch_error").Inc()
		return nil, err
	}
	if txID, ok := t.settled(rec); ok {
		SettleAttempts.WithLabelValues(string(OutcomeAlreadySettled)).Inc()
		return &Outcome{MatchID: req.MatchID, Kind: OutcomeAlreadySettled, Verdict: req.Verdict, TxID: txID}, nil
	}

	if req.Verdict == domain.VerdictDraw {
		return t.settleDraw(ctx, rec, req)
	}

	winner, _ := req.Verdict.Winner()
	winnerAddr := req.Player1Address
	if winner == domain.SidePlayer2 {
		winnerAddr = req.Player2Address
	}
	if winnerAddr == "" {
		winnerAddr = rec.AddressOf(winner)
	}
	if winnerAddr == "" {
		return nil, fmt.Errorf("%w: match %d %s", ErrMissingAddress, req.MatchID, winner)
	}

	lock, err := t.locker.Acquire(ctx, "settle:"+strconv.FormatInt(req.MatchID, 10), t.lockTTL)
	if errors.Is(err, ErrLockHeld) {
		SettleAttempts.WithLabelValues("contended").Inc()
		return nil, fmt.Errorf("%w: match %d", ErrSettlementInProgress, req.MatchID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: claim match %d: %v", ErrExternalStateFetch, req.MatchID, err)
	}
	defer func() {
		// release must outlive a cancelled request
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := lock.Release(rctx); err != nil {
			log.Warn("release settlement claim failed", "error", err)
		}
	}()

	// another settler may have finished while we waited for the claim
	rec, err = t.fetch(ctx, req.MatchID)
	if err != nil {
		SettleAttempts.WithLabelValues("fetch_error").Inc()
		return nil, err
	}
	if txID, ok := t.settled(rec); ok {
		SettleAttempts.WithLabelValues(string(OutcomeAlreadySettled)).Inc()
		return &Outcome{MatchID: req.MatchID, Kind: OutcomeAlreadySettled, Verdict: req.Verdict, TxID: txID}, nil
	}
	if rec.Status == domain.GameStatusCompleted && rec.Winner != nil && *rec.Winner != req.Verdict {
		return nil, fmt.Errorf("%w: match %d completed as %s", ErrVerdictMismatch, req.MatchID, *rec.Winner)
	}

	if rec.Status != domain.GameStatusCompleted {
		if err := t.index.MarkCompleted(ctx, req.MatchID, req.Verdict, winnerAddr); err != nil {
			SettleAttempts.WithLabelValues("failed").Inc()
			return nil, &SettlementFailedError{MatchID: req.MatchID, Stage: "mark_completed", Err: err}
		}
	}

	if rec.PayoutUnconfirmed() {
		SettleAttempts.WithLabelValues("unconfirmed").Inc()
		return nil, unconfirmed(req.MatchID, rec.PayoutPendingTx)
	}
	started, err := t.index.BeginPayout(ctx, req.MatchID)
	if err != nil {
		SettleAttempts.WithLabelValues("failed").Inc()
		return nil, &SettlementFailedError{MatchID: req.MatchID, Stage: "begin_payout", Err: err}
	}
	if !started {
		SettleAttempts.WithLabelValues("unconfirmed").Inc()
		return nil, unconfirmed(req.MatchID, nil)
	}

	txID, err := t.escrow.Payout(ctx, rec.EscrowAppID(), winnerAddr)
	if err != nil && txID != "" {
		SettleAttempts.WithLabelValues("unconfirmed").Inc()
		log.Error("payout submitted but not confirmed", "tx_id", txID, "error", err)
		if perr := t.index.MarkPayoutPending(ctx, req.MatchID, txID); perr != nil {
			log.Error("record pending payout failed", "tx_id", txID, "error", perr)
		}
		return nil, fmt.Errorf("%w: match %d tx %s: %v", ErrPayoutUnconfirmed, req.MatchID, txID, err)
	}
	if err != nil {
		SettleAttempts.WithLabelValues("failed").Inc()
		log.Error("escrow payout failed", "error", err)
		if rerr := t.index.ReleasePayout(ctx, req.MatchID); rerr != nil {
			// the marker stays, so this match now needs manual reconciliation
			log.Error("release payout marker failed", "error", rerr)
		}
		return nil, &SettlementFailedError{MatchID: req.MatchID, Stage: "payout", Err: err}
	}
	t.paid.Store(req.MatchID, txID)
	PayoutsTotal.Inc()

	if err := t.index.MarkPaid(ctx, req.MatchID, txID); err != nil {
		log.Error("payout sent but not recorded", "tx_id", txID, "error", err)
	} else {
		t.paid.Delete(req.MatchID)
	}

	SettleAttempts.WithLabelValues(string(OutcomePaid)).Inc()
	log.Info("match settled", "winner_address", winnerAddr, "tx_id", txID)
	return &Outcome{
		MatchID:       req.MatchID,
		Kind:          OutcomePaid,
		Verdict:       req.Verdict,
		WinnerAddress: winnerAddr,
		TxID:          txID,
	}, nil
}

func unconfirmed(matchID int64, pendingTx *string) error {
	if pendingTx != nil && *pendingTx != "" {
		return fmt.Errorf("%w: match %d tx %s", ErrPayoutUnconfirmed, matchID, *pendingTx)
	}
	return fmt.Errorf("%w: match %d", ErrPayoutUnconfirmed, matchID)
}

func (t *Trigger) settleDraw(ctx context.Context, rec *domain.GameRecord, req SettleRequest) (*Outcome, error) {
	// completed never reverts
	if rec.Status != domain.GameStatusCompleted {
		if err := t.index.MarkInProgress(ctx, req.MatchID); err != nil {
			SettleAttempts.WithLabelValues("failed").Inc()
			return nil, &SettlementFailedError{MatchID: req.MatchID, Stage: "mark_in_progress", Err: err}
		}
	}
	SettleAttempts.WithLabelValues(string(OutcomeDraw)).Inc()
	logger.ForMatch(ctx, req.MatchID).Info("match drawn, open for replay")
	return &Outcome{MatchID: req.MatchID, Kind: OutcomeDraw, Verdict: req.Verdict}, nil
}
