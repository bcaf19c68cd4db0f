package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"rps_arena/internal/chain"
	"rps_arena/internal/domain"
	"rps_arena/internal/logger"
	"rps_arena/internal/repository"
	"rps_arena/internal/settlement"
)

var (
	ErrMatchNotFound  = errors.New("match not found")
	ErrNotParticipant = errors.New("address is not a player in this match")
	ErrMatchFull      = errors.New("match already has two players")
	ErrMatchClosed    = errors.New("match is completed")
)

const (
	minMatchID   = 100_000_000
	matchIDRange = 900_000_000
	createTries  = 5
)

// MatchIndex is the games table as the service sees it.
type MatchIndex interface {
	settlement.Index
	Create(ctx context.Context, g *domain.GameRecord) error
	SetPlayer2(ctx context.Context, matchID int64, address string) (bool, error)
	List(ctx context.Context, limit int) ([]*domain.GameRecord, error)
	ListUnpaid(ctx context.Context, limit int) ([]*domain.GameRecord, error)
}

// MatchStore is the coordination record store.
type MatchStore interface {
	GetOrCreate(ctx context.Context, id int64) (*domain.Match, error)
	Join(ctx context.Context, id int64, side domain.Side) (*domain.Match, error)
	SubmitMove(ctx context.Context, id int64, side domain.Side, move domain.Move) (*domain.Match, error)
	Reset(ctx context.Context, id int64) (*domain.Match, error)
	Peek(ctx context.Context, id int64) (*domain.Match, error)
	Reveal(m *domain.Match) (domain.MatchView, error)
}

type Settler interface {
	Settle(ctx context.Context, req settlement.SettleRequest) (*settlement.Outcome, error)
}

// MatchAuditor records match lifecycle events.
type MatchAuditor interface {
	LogMatch(ctx context.Context, address string, matchID int64, action, category string, details map[string]interface{})
}

// MatchState is what clients receive for a match.
type MatchState struct {
	Record          *domain.GameRecord  `json:"record"`
	Match           domain.MatchView    `json:"match"`
	Side            domain.Side         `json:"side,omitempty"`
	Settlement      *settlement.Outcome `json:"settlement,omitempty"`
	SettlementError string              `json:"settlement_error,omitempty"`
}

type MatchService struct {
	index    MatchIndex
	store    MatchStore
	settler  Settler
	deposits chain.DepositSource
	poller   *chain.Poller
	audit    MatchAuditor

	// matches whose last settlement attempt failed and should be retried
	pending sync.Map
}

func NewMatchService(index MatchIndex, store MatchStore, settler Settler, deposits chain.DepositSource, poller *chain.Poller, audit MatchAuditor) *MatchService {
	return &MatchService{
		index:    index,
		store:    store,
		settler:  settler,
		deposits: deposits,
		poller:   poller,
		audit:    audit,
	}
}

func (s *MatchService) record(ctx context.Context, action, category, address string, matchID int64, details map[string]interface{}) {
	if s.audit != nil {
		s.audit.LogMatch(ctx, address, matchID, action, category, details)
	}
}

func (s *MatchService) lookup(ctx context.Context, id int64) (*domain.GameRecord, error) {
	rec, err := s.index.GetByMatchID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chain.ErrExternalStateFetch, err)
	}
	if rec == nil {
		return nil, ErrMatchNotFound
	}
	return rec, nil
}

func (s *MatchService) state(rec *domain.GameRecord, m *domain.Match, side domain.Side) (*MatchState, error) {
	view, err := s.store.Reveal(m)
	if err != nil {
		return nil, err
	}
	return &MatchState{Record: rec, Match: view, Side: side}, nil
}

func randomMatchID() (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(matchIDRange))
	if err != nil {
		return 0, err
	}
	return minMatchID + n.Int64(), nil
}

// CreateMatch indexes a new match with creator as player1. With appID set the
// match id is the escrow application id; otherwise a random 9-digit id is drawn.
func (s *MatchService) CreateMatch(ctx context.Context, creator string, appID uint64, contractAddress string) (*MatchState, error) {
	rec := &domain.GameRecord{
		AppID:           appID,
		ContractAddress: contractAddress,
		Player1Address:  creator,
		Status:          domain.GameStatusCreated,
	}
	if appID > 0 && contractAddress == "" {
		rec.ContractAddress = chain.ApplicationAddress(appID)
	}

	for try := 0; ; try++ {
		if appID > 0 {
			rec.MatchID = int64(appID)
		} else {
			id, err := randomMatchID()
			if err != nil {
				return nil, err
			}
			rec.MatchID = id
		}

		err := s.index.Create(ctx, rec)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrMatchExists) || appID > 0 || try+1 >= createTries {
			return nil, err
		}
	}

	if _, err := s.store.GetOrCreate(ctx, rec.MatchID); err != nil {
		return nil, err
	}
	m, err := s.store.Join(ctx, rec.MatchID, domain.SidePlayer1)
	if err != nil {
		return nil, err
	}

	s.record(ctx, domain.AuditActionMatchCreate, domain.AuditCategoryMatch, creator, rec.MatchID, map[string]interface{}{"app_id": appID})
	logger.ForMatch(ctx, rec.MatchID).Info("match created", "player1", creator, "app_id", appID)
	return s.state(rec, m, domain.SidePlayer1)
}

// JoinMatch seats address. Player1 rejoining, or player2 joining again, is idempotent.
func (s *MatchService) JoinMatch(ctx context.Context, id int64, address string) (*MatchState, error) {
	rec, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	side, ok := rec.SideOf(address)
	if !ok {
		if rec.Player2Address != nil {
			return nil, ErrMatchFull
		}
		if rec.Status == domain.GameStatusCompleted {
			return nil, ErrMatchClosed
		}
		seated, err := s.index.SetPlayer2(ctx, id, address)
		if err != nil {
			return nil, err
		}
		// re-read in both cases: a concurrent joiner may have taken the seat
		if rec, err = s.lookup(ctx, id); err != nil {
			return nil, err
		}
		if side, ok = rec.SideOf(address); !ok {
			return nil, ErrMatchFull
		}
		if seated {
			s.record(ctx, domain.AuditActionMatchJoin, domain.AuditCategoryMatch, address, id, nil)
			logger.ForMatch(ctx, id).Info("player2 joined", "player2", address)
		}
	}

	m, err := s.store.Join(ctx, id, side)
	if err != nil {
		return nil, err
	}
	return s.state(rec, m, side)
}

func (s *MatchService) participant(ctx context.Context, id int64, address string) (*domain.GameRecord, domain.Side, error) {
	rec, err := s.lookup(ctx, id)
	if err != nil {
		return nil, "", err
	}
	side, ok := rec.SideOf(address)
	if !ok {
		return nil, "", ErrNotParticipant
	}
	return rec, side, nil
}

// SubmitMove records address's move and, once the match resolves, settles it.
// A settlement failure does not fail the move; it is reported in the state and retried later.
func (s *MatchService) SubmitMove(ctx context.Context, id int64, address string, move domain.Move) (*MatchState, error) {
	rec, side, err := s.participant(ctx, id, address)
	if err != nil {
		return nil, err
	}

	before, err := s.store.Peek(ctx, id)
	if err != nil {
		return nil, err
	}
	m, err := s.store.SubmitMove(ctx, id, side, move)
	if err != nil {
		return nil, err
	}
	if before.Slot(side) == "" {
		s.record(ctx, domain.AuditActionMatchMove, domain.AuditCategoryMatch, address, id, map[string]interface{}{"side": side})
	}

	st, err := s.state(rec, m, side)
	if err != nil {
		return nil, err
	}
	if m.Resolved() && !before.Resolved() {
		s.settleInto(ctx, st, rec, m.Verdict)
	}
	return st, nil
}

func (s *MatchService) settleInto(ctx context.Context, st *MatchState, rec *domain.GameRecord, verdict domain.Verdict) {
	out, err := s.settle(ctx, rec, verdict)
	if err != nil {
		st.SettlementError = err.Error()
	}
	st.Settlement = out
	if fresh, ferr := s.index.GetByMatchID(ctx, rec.MatchID); ferr == nil && fresh != nil {
		st.Record = fresh
	}
}

func (s *MatchService) settle(ctx context.Context, rec *domain.GameRecord, verdict domain.Verdict) (*settlement.Outcome, error) {
	out, err := s.settler.Settle(ctx, settlement.SettleRequest{
		MatchID:        rec.MatchID,
		Verdict:        verdict,
		Player1Address: rec.Player1Address,
		Player2Address: rec.AddressOf(domain.SidePlayer2),
	})
	if err != nil {
		if settlement.Retryable(err) {
			s.pending.Store(rec.MatchID, struct{}{})
		} else {
			s.pending.Delete(rec.MatchID)
		}
		s.record(ctx, domain.AuditActionSettleFailed, domain.AuditCategorySettlement, "", rec.MatchID, map[string]interface{}{"error": err.Error()})
		logger.ForMatch(ctx, rec.MatchID).Warn("settlement failed", "error", err)
		return nil, err
	}
	s.pending.Delete(rec.MatchID)

	switch out.Kind {
	case settlement.OutcomePaid:
		s.record(ctx, domain.AuditActionSettlePaid, domain.AuditCategorySettlement, out.WinnerAddress, rec.MatchID, map[string]interface{}{"tx_id": out.TxID, "verdict": out.Verdict})
	case settlement.OutcomeDraw:
		s.record(ctx, domain.AuditActionSettleDraw, domain.AuditCategorySettlement, "", rec.MatchID, nil)
	}
	return out, nil
}

// Settle re-runs settlement. A completed record's winner is authoritative;
// otherwise the verdict comes from the match store.
func (s *MatchService) Settle(ctx context.Context, id int64) (*settlement.Outcome, error) {
	rec, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	verdict := domain.VerdictNone
	if rec.Status == domain.GameStatusCompleted && rec.Winner != nil {
		verdict = *rec.Winner
	} else {
		m, err := s.store.Peek(ctx, id)
		if err != nil {
			return nil, err
		}
		verdict = m.Verdict
	}
	if verdict == domain.VerdictNone {
		return nil, settlement.ErrNoVerdict
	}
	return s.settle(ctx, rec, verdict)
}

// Reset clears the moves so the players can replay. The index record is
// untouched. A completed match keeps its moves, paid or not.
func (s *MatchService) Reset(ctx context.Context, id int64, address string) (*MatchState, error) {
	rec, side, err := s.participant(ctx, id, address)
	if err != nil {
		return nil, err
	}
	if rec.Status == domain.GameStatusCompleted {
		return nil, ErrMatchClosed
	}
	m, err := s.store.Reset(ctx, id)
	if err != nil {
		return nil, err
	}
	s.record(ctx, domain.AuditActionMatchReset, domain.AuditCategoryMatch, address, id, nil)
	return s.state(rec, m, side)
}

// Get returns the match as seen by address, which may be empty for spectators.
func (s *MatchService) Get(ctx context.Context, id int64, address string) (*MatchState, error) {
	rec, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	m, err := s.store.Peek(ctx, id)
	if err != nil {
		return nil, err
	}
	side, _ := rec.SideOf(address)
	return s.state(rec, m, side)
}

func (s *MatchService) List(ctx context.Context, limit int) ([]*domain.GameRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.index.List(ctx, limit)
}

// Deposits reads the escrow deposit flags once.
func (s *MatchService) Deposits(ctx context.Context, id int64) (domain.DepositState, error) {
	rec, err := s.lookup(ctx, id)
	if err != nil {
		return domain.DepositState{}, err
	}
	return s.deposits.Deposits(ctx, rec.EscrowAppID())
}

// AwaitDeposits polls the escrow until both sides have deposited.
func (s *MatchService) AwaitDeposits(ctx context.Context, id int64) (domain.DepositState, error) {
	rec, err := s.lookup(ctx, id)
	if err != nil {
		return domain.DepositState{}, err
	}
	return chain.AwaitDeposits(ctx, s.poller, s.deposits, rec.EscrowAppID())
}

// AwaitVerdict polls the store until the match resolves.
func (s *MatchService) AwaitVerdict(ctx context.Context, id int64) (*domain.Match, error) {
	var m *domain.Match
	err := s.poller.Until(ctx, "verdict", func(ctx context.Context) (bool, error) {
		cur, err := s.store.Peek(ctx, id)
		if err != nil {
			return false, err
		}
		m = cur
		return cur.Resolved(), nil
	})
	return m, err
}

// RetryUnsettled settles completed-but-unpaid matches and matches whose last
// attempt failed. It returns how many were paid.
func (s *MatchService) RetryUnsettled(ctx context.Context, limit int) (int, error) {
	ids := make(map[int64]struct{})
	recs, err := s.index.ListUnpaid(ctx, limit)
	if err != nil {
		return 0, err
	}
	for _, r := range recs {
		ids[r.MatchID] = struct{}{}
	}
	s.pending.Range(func(k, _ any) bool {
		ids[k.(int64)] = struct{}{}
		return true
	})

	paid := 0
	for id := range ids {
		if ctx.Err() != nil {
			return paid, ctx.Err()
		}
		out, err := s.Settle(ctx, id)
		if err != nil {
			if errors.Is(err, settlement.ErrNoVerdict) || errors.Is(err, ErrMatchNotFound) {
				s.pending.Delete(id)
			}
			continue
		}
		if out.Kind == settlement.OutcomePaid {
			paid++
		}
	}
	return paid, nil
}
