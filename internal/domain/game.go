package domain

import (
	"strings"
	"time"
)

// GameStatus mirrors the escrow contract lifecycle in the match index.
type GameStatus string

const (
	GameStatusCreated    GameStatus = "created"
	GameStatusInProgress GameStatus = "in_progress"
	GameStatusCompleted  GameStatus = "completed"
)

// GameRecord is a row of the games index table.
type GameRecord struct {
	ID              int64      `db:"id" json:"id"`
	MatchID         int64      `db:"match_id" json:"match_id"`
	AppID           uint64     `db:"app_id" json:"app_id,omitempty"`
	ContractAddress string     `db:"contract_address" json:"contract_address"`
	Player1Address  string     `db:"player1_address" json:"player1_address"`
	Player2Address  *string    `db:"player2_address" json:"player2_address,omitempty"`
	Status          GameStatus `db:"status" json:"status"`
	Winner          *Verdict   `db:"winner" json:"winner,omitempty"`
	WinnerAddress   *string    `db:"winner_address" json:"winner_address,omitempty"`
	PayoutTxID      *string    `db:"payout_tx_id" json:"payout_tx_id,omitempty"`
	PaidAt          *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	PayoutStartedAt *time.Time `db:"payout_started_at" json:"payout_started_at,omitempty"`
	PayoutPendingTx *string    `db:"payout_pending_tx" json:"payout_pending_tx,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// Paid reports whether a payout has been recorded for the game.
func (g *GameRecord) Paid() bool {
	return g.PayoutTxID != nil && *g.PayoutTxID != ""
}

// PayoutUnconfirmed reports a payout that was started and never recorded as paid.
func (g *GameRecord) PayoutUnconfirmed() bool {
	return g.PayoutStartedAt != nil && !g.Paid()
}

// EscrowAppID is the on-chain application backing the match.
// Matches created without one use their match id.
func (g *GameRecord) EscrowAppID() uint64 {
	if g.AppID != 0 {
		return g.AppID
	}
	return uint64(g.MatchID)
}

// SideOf maps a wallet address to its side in the game.
func (g *GameRecord) SideOf(address string) (Side, bool) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", false
	}
	if address == g.Player1Address {
		return SidePlayer1, true
	}
	if g.Player2Address != nil && address == *g.Player2Address {
		return SidePlayer2, true
	}
	return "", false
}

// AddressOf returns the wallet address seated on side.
func (g *GameRecord) AddressOf(side Side) string {
	if side == SidePlayer1 {
		return g.Player1Address
	}
	if g.Player2Address != nil {
		return *g.Player2Address
	}
	return ""
}

// DepositState reports which sides have funded the escrow.
type DepositState struct {
	AppID   uint64 `json:"app_id"`
	Player1 bool   `json:"player1"`
	Player2 bool   `json:"player2"`
}

func (d DepositState) Both() bool {
	return d.Player1 && d.Player2
}
