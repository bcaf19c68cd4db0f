package game

import (
	"fmt"
	"strings"

	"rps_arena/internal/domain"
)

// beats maps each move to the move it defeats.
var beats = map[domain.Move]domain.Move{
	domain.MoveRock:     domain.MoveScissors,
	domain.MoveScissors: domain.MovePaper,
	domain.MovePaper:    domain.MoveRock,
}

// Resolve decides the match from player1's and player2's moves.
func Resolve(move1, move2 domain.Move) domain.Verdict {
	if move1 == move2 {
		return domain.VerdictDraw
	}
	if beats[move1] == move2 {
		return domain.VerdictPlayer1
	}
	return domain.VerdictPlayer2
}

// ParseMove accepts rock, paper or scissors in any case.
func ParseMove(s string) (domain.Move, error) {
	m := domain.Move(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidMove, s)
	}
	return m, nil
}

// ParseSide accepts player1 or player2.
func ParseSide(s string) (domain.Side, error) {
	side := domain.Side(strings.ToLower(strings.TrimSpace(s)))
	if !side.Valid() {
		return "", fmt.Errorf("invalid side %q", s)
	}
	return side, nil
}
