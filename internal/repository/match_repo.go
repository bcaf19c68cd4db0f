package repository

import (
	"context"
	"errors"

	"rps_arena/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrMatchExists = errors.New("match already indexed")

// MatchRepository is the games index mirroring escrow contract state.
type MatchRepository struct {
	db *pgxpool.Pool
}

func NewMatchRepository(db *pgxpool.Pool) *MatchRepository {
	return &MatchRepository{db: db}
}

const gameColumns = `id, match_id, app_id, contract_address, player1_address, player2_address,
	status, winner, winner_address, payout_tx_id, paid_at, payout_started_at, payout_pending_tx,
	created_at, updated_at`

func scanGame(row pgx.Row) (*domain.GameRecord, error) {
	var g domain.GameRecord
	var appID int64
	var status string
	var winner *string
	if err := row.Scan(
		&g.ID, &g.MatchID, &appID, &g.ContractAddress, &g.Player1Address, &g.Player2Address,
		&status, &winner, &g.WinnerAddress, &g.PayoutTxID, &g.PaidAt,
		&g.PayoutStartedAt, &g.PayoutPendingTx, &g.CreatedAt, &g.UpdatedAt,
	); err != nil {
		return nil, err
	}
	g.AppID = uint64(appID)
	g.Status = domain.GameStatus(status)
	if winner != nil {
		v := domain.Verdict(*winner)
		g.Winner = &v
	}
	return &g, nil
}

// Create inserts a new index row in status created
func (r *MatchRepository) Create(ctx context.Context, g *domain.GameRecord) error {
	if g.Status == "" {
		g.Status = domain.GameStatusCreated
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO games (match_id, app_id, contract_address, player1_address, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (match_id) DO NOTHING
		RETURNING id, created_at, updated_at
	`, g.MatchID, int64(g.AppID), g.ContractAddress, g.Player1Address, string(g.Status),
	).Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt)
	if err == pgx.ErrNoRows {
		return ErrMatchExists
	}
	return err
}

// GetByMatchID returns nil, nil when the match is not indexed
func (r *MatchRepository) GetByMatchID(ctx context.Context, matchID int64) (*domain.GameRecord, error) {
	g, err := scanGame(r.db.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE match_id = $1`, matchID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return g, err
}

// SetPlayer2 seats the second player once. Returns false if the seat was taken.
func (r *MatchRepository) SetPlayer2(ctx context.Context, matchID int64, address string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE games
		SET player2_address = $2, status = 'in_progress', updated_at = NOW()
		WHERE match_id = $1 AND player2_address IS NULL AND status <> 'completed'
	`, matchID, address)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkInProgress reopens a match for play. Completed rows are left alone.
func (r *MatchRepository) MarkInProgress(ctx context.Context, matchID int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE games
		SET status = 'in_progress', updated_at = NOW()
		WHERE match_id = $1 AND status <> 'completed'
	`, matchID)
	return err
}

// MarkCompleted records the winner. The transition happens at most once.
func (r *MatchRepository) MarkCompleted(ctx context.Context, matchID int64, winner domain.Verdict, winnerAddress string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE games
		SET status = 'completed', winner = $2, winner_address = $3, updated_at = NOW()
		WHERE match_id = $1 AND status <> 'completed'
	`, matchID, string(winner), winnerAddress)
	return err
}

// MarkPaid records the payout transaction. An existing payout is never overwritten.
func (r *MatchRepository) MarkPaid(ctx context.Context, matchID int64, txID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE games
		SET payout_tx_id = $2, paid_at = NOW(), updated_at = NOW()
		WHERE match_id = $1 AND payout_tx_id IS NULL
	`, matchID, txID)
	return err
}

// BeginPayout marks the payout as started. It returns false when a payout was
// already started or recorded, in which case the caller must not send one.
func (r *MatchRepository) BeginPayout(ctx context.Context, matchID int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE games
		SET payout_started_at = NOW(), updated_at = NOW()
		WHERE match_id = $1 AND payout_started_at IS NULL AND payout_tx_id IS NULL
	`, matchID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ReleasePayout clears the start marker after a payout that never reached the network.
func (r *MatchRepository) ReleasePayout(ctx context.Context, matchID int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE games
		SET payout_started_at = NULL, updated_at = NOW()
		WHERE match_id = $1 AND payout_tx_id IS NULL
	`, matchID)
	return err
}

// MarkPayoutPending keeps the start marker and stores the submitted transaction
// whose confirmation was not observed.
func (r *MatchRepository) MarkPayoutPending(ctx context.Context, matchID int64, txID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE games
		SET payout_pending_tx = $2, updated_at = NOW()
		WHERE match_id = $1 AND payout_tx_id IS NULL
	`, matchID, txID)
	return err
}

// List returns the newest matches first
func (r *MatchRepository) List(ctx context.Context, limit int) ([]*domain.GameRecord, error) {
	rows, err := r.db.Query(ctx, `SELECT `+gameColumns+` FROM games ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanGames(rows)
}

// ListUnpaid returns completed matches with a decisive winner and no payout
// recorded or started
func (r *MatchRepository) ListUnpaid(ctx context.Context, limit int) ([]*domain.GameRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+gameColumns+` FROM games
		WHERE status = 'completed' AND payout_tx_id IS NULL AND payout_started_at IS NULL
		  AND winner IN ('player1', 'player2')
		ORDER BY updated_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanGames(rows)
}

func scanGames(rows pgx.Rows) ([]*domain.GameRecord, error) {
	var res []*domain.GameRecord
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, g)
	}
	return res, rows.Err()
}
