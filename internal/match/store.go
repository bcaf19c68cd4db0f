// Package match owns the per-match coordination record: encrypted move
// slots, connection flags and the verdict.
package match

import (
	"context"
	"errors"
	"fmt"

	"rps_arena/internal/cipher"
	"rps_arena/internal/domain"
	"rps_arena/internal/game"
	"rps_arena/internal/logger"
)

var ErrInvalidSide = errors.New("invalid side")

// Cipher hides moves before they reach the backend.
type Cipher interface {
	Encrypt(domain.Move) (domain.CipherText, error)
	Decrypt(domain.CipherText) (domain.Move, error)
}

// Notifier receives every record the store mutates.
type Notifier interface {
	MatchUpdated(m *domain.Match)
}

type Store struct {
	backend  Backend
	cipher   Cipher
	locks    *keyMutex
	notifier Notifier
}

func NewStore(backend Backend, c Cipher) *Store {
	return &Store{backend: backend, cipher: c, locks: newKeyMutex()}
}

// SetNotifier installs n. Must be called before the store is shared.
func (s *Store) SetNotifier(n Notifier) {
	s.notifier = n
}

func (s *Store) notify(m *domain.Match) {
	if s.notifier != nil && m != nil {
		s.notifier.MatchUpdated(m.Clone())
	}
}

// update serialises same-match writers locally, then applies fn through the backend.
// Subscribers are notified only when fn reports a change.
func (s *Store) update(ctx context.Context, id int64, fn UpdateFunc) (*domain.Match, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	changed := false
	m, err := s.backend.Update(ctx, id, func(m *domain.Match, exists bool) (bool, error) {
		c, err := fn(m, exists)
		changed = c
		return c, err
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.notify(m)
	}
	return m, nil
}

// GetOrCreate returns the match, creating the zero-value record on first access.
func (s *Store) GetOrCreate(ctx context.Context, id int64) (*domain.Match, error) {
	return s.update(ctx, id, func(_ *domain.Match, exists bool) (bool, error) {
		return !exists, nil
	})
}

// Peek reads the match without creating it.
func (s *Store) Peek(ctx context.Context, id int64) (*domain.Match, error) {
	m, exists, err := s.backend.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return &domain.Match{ID: id}, nil
	}
	return m, nil
}

// Join marks side as connected.
func (s *Store) Join(ctx context.Context, id int64, side domain.Side) (*domain.Match, error) {
	if !side.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSide, side)
	}
	return s.update(ctx, id, func(m *domain.Match, exists bool) (bool, error) {
		if m.Connected(side) {
			return !exists, nil
		}
		m.SetConnected(side)
		return true, nil
	})
}

// SubmitMove records side's move if its slot is empty, and resolves the match
// once both slots are filled. A repeated submission for a filled slot returns
// the stored state without encrypting or resolving again. If either move cannot
// be decrypted the attempt fails with cipher.ErrDecryption and nothing is written.
func (s *Store) SubmitMove(ctx context.Context, id int64, side domain.Side, move domain.Move) (*domain.Match, error) {
	if !side.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSide, side)
	}
	if !move.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidMove, move)
	}

	log := logger.ForMatch(ctx, id)
	return s.update(ctx, id, func(m *domain.Match, exists bool) (bool, error) {
		if m.Slot(side) != "" || m.Resolved() {
			MovesTotal.WithLabelValues("duplicate").Inc()
			return !exists, nil
		}

		ct, err := s.cipher.Encrypt(move)
		if err != nil {
			MovesTotal.WithLabelValues("rejected").Inc()
			return false, err
		}
		m.SetSlot(side, ct)

		if m.BothMoved() {
			verdict, err := s.resolve(m)
			if err != nil {
				MovesTotal.WithLabelValues("rejected").Inc()
				DecryptFailures.Inc()
				log.Error("cannot determine result", "error", err)
				return false, err
			}
			m.Verdict = verdict
			ResolutionsTotal.WithLabelValues(string(verdict)).Inc()
			log.Info("match resolved", "verdict", verdict)
		}

		MovesTotal.WithLabelValues("accepted").Inc()
		log.Debug("move recorded", "side", side)
		return true, nil
	})
}

func (s *Store) resolve(m *domain.Match) (domain.Verdict, error) {
	m1, err := s.cipher.Decrypt(m.Player1Move)
	if err != nil {
		return domain.VerdictNone, fmt.Errorf("player1 move: %w", err)
	}
	m2, err := s.cipher.Decrypt(m.Player2Move)
	if err != nil {
		return domain.VerdictNone, fmt.Errorf("player2 move: %w", err)
	}
	return game.Resolve(m1, m2), nil
}

// Reset clears both move slots and the verdict. Connection flags are kept.
func (s *Store) Reset(ctx context.Context, id int64) (*domain.Match, error) {
	return s.update(ctx, id, func(m *domain.Match, exists bool) (bool, error) {
		if m.Player1Move == "" && m.Player2Move == "" && !m.Resolved() {
			return !exists, nil
		}
		m.Player1Move = ""
		m.Player2Move = ""
		m.Verdict = domain.VerdictNone
		logger.ForMatch(ctx, id).Info("match reset")
		return true, nil
	})
}

// Reveal projects m for clients. Moves are decrypted only after a verdict exists.
func (s *Store) Reveal(m *domain.Match) (domain.MatchView, error) {
	v := m.View()
	if !m.Resolved() {
		return v, nil
	}
	m1, err := s.cipher.Decrypt(m.Player1Move)
	if err != nil {
		return v, err
	}
	m2, err := s.cipher.Decrypt(m.Player2Move)
	if err != nil {
		return v, err
	}
	v.Player1Move, v.Player2Move = m1, m2
	return v, nil
}

// IsDecryptionFailure reports whether err means the result cannot be determined.
func IsDecryptionFailure(err error) bool {
	return errors.Is(err, cipher.ErrDecryption)
}
