package domain

import "errors"

var ErrInvalidMove = errors.New("invalid move")

// Move is a plaintext rock/paper/scissors choice.
type Move string

const (
	MoveRock     Move = "rock"
	MovePaper    Move = "paper"
	MoveScissors Move = "scissors"
)

func (m Move) Valid() bool {
	switch m {
	case MoveRock, MovePaper, MoveScissors:
		return true
	}
	return false
}

// Side identifies a player slot in a match.
type Side string

const (
	SidePlayer1 Side = "player1"
	SidePlayer2 Side = "player2"
)

func (s Side) Valid() bool {
	return s == SidePlayer1 || s == SidePlayer2
}

// Verdict is the resolved outcome of a match. The empty value means unresolved.
type Verdict string

const (
	VerdictNone    Verdict = ""
	VerdictPlayer1 Verdict = "player1"
	VerdictPlayer2 Verdict = "player2"
	VerdictDraw    Verdict = "draw"
)

// Winner returns the winning side for a decisive verdict.
func (v Verdict) Winner() (Side, bool) {
	switch v {
	case VerdictPlayer1:
		return SidePlayer1, true
	case VerdictPlayer2:
		return SidePlayer2, true
	}
	return "", false
}

func (v Verdict) Valid() bool {
	switch v {
	case VerdictPlayer1, VerdictPlayer2, VerdictDraw:
		return true
	}
	return false
}

// CipherText is an encrypted move as produced by the move cipher.
type CipherText string

// Match is the mutable per-match coordination record.
// Move slots only ever hold ciphertext.
type Match struct {
	ID               int64      `json:"id"`
	Player1Move      CipherText `json:"player1_move,omitempty"`
	Player2Move      CipherText `json:"player2_move,omitempty"`
	Player1Connected bool       `json:"player1_connected"`
	Player2Connected bool       `json:"player2_connected"`
	Verdict          Verdict    `json:"verdict,omitempty"`
}

// Slot returns the ciphertext stored for side.
func (m *Match) Slot(side Side) CipherText {
	if side == SidePlayer1 {
		return m.Player1Move
	}
	return m.Player2Move
}

func (m *Match) SetSlot(side Side, ct CipherText) {
	if side == SidePlayer1 {
		m.Player1Move = ct
	} else {
		m.Player2Move = ct
	}
}

func (m *Match) Connected(side Side) bool {
	if side == SidePlayer1 {
		return m.Player1Connected
	}
	return m.Player2Connected
}

func (m *Match) SetConnected(side Side) {
	if side == SidePlayer1 {
		m.Player1Connected = true
	} else {
		m.Player2Connected = true
	}
}

func (m *Match) BothMoved() bool {
	return m.Player1Move != "" && m.Player2Move != ""
}

func (m *Match) Resolved() bool {
	return m.Verdict != VerdictNone
}

func (m *Match) Clone() *Match {
	if m == nil {
		return nil
	}
	c := *m
	return &c
}

// MatchView is the client facing projection of a Match.
// Moves are only filled in once a verdict exists.
type MatchView struct {
	ID               int64   `json:"id"`
	Player1Moved     bool    `json:"player1_moved"`
	Player2Moved     bool    `json:"player2_moved"`
	Player1Connected bool    `json:"player1_connected"`
	Player2Connected bool    `json:"player2_connected"`
	Verdict          Verdict `json:"verdict,omitempty"`
	Player1Move      Move    `json:"player1_move,omitempty"`
	Player2Move      Move    `json:"player2_move,omitempty"`
}

// View builds the masked projection of m without revealing moves.
func (m *Match) View() MatchView {
	return MatchView{
		ID:               m.ID,
		Player1Moved:     m.Player1Move != "",
		Player2Moved:     m.Player2Move != "",
		Player1Connected: m.Player1Connected,
		Player2Connected: m.Player2Connected,
		Verdict:          m.Verdict,
	}
}
