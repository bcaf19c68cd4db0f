package match

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"rps_arena/internal/cipher"
	"rps_arena/internal/domain"
)

// countingCipher wraps the real cipher and counts primitive calls.
type countingCipher struct {
	inner    *cipher.MoveCipher
	encrypts atomic.Int32
	decrypts atomic.Int32
	failNext atomic.Bool
}

func (c *countingCipher) Encrypt(m domain.Move) (domain.CipherText, error) {
	c.encrypts.Add(1)
	return c.inner.Encrypt(m)
}

func (c *countingCipher) Decrypt(ct domain.CipherText) (domain.Move, error) {
	c.decrypts.Add(1)
	if c.failNext.Swap(false) {
		return "", cipher.ErrDecryption
	}
	return c.inner.Decrypt(ct)
}

type recordingNotifier struct {
	mu      sync.Mutex
	updates []*domain.Match
}

func (n *recordingNotifier) MatchUpdated(m *domain.Match) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updates = append(n.updates, m)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.updates)
}

func newTestStore(t *testing.T) (*Store, *countingCipher) {
	t.Helper()
	mc, err := cipher.New(bytes.Repeat([]byte{9}, cipher.KeySize))
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}
	cc := &countingCipher{inner: mc}
	return NewStore(NewMemoryBackend(), cc), cc
}

func TestGetOrCreateLazyInit(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	m, err := s.GetOrCreate(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if m.ID != 1 || m.Player1Move != "" || m.Player2Move != "" || m.Player1Connected || m.Player2Connected || m.Resolved() {
		t.Fatalf("expected zero-value record, got %+v", m)
	}
	if n := s.backend.(*MemoryBackend).Len(); n != 1 {
		t.Fatalf("expected record to be persisted, have %d", n)
	}
}

func TestPeekDoesNotCreate(t *testing.T) {
	s, _ := newTestStore(t)
	m, err := s.Peek(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if m.ID != 5 || m.Resolved() {
		t.Fatalf("unexpected record %+v", m)
	}
	if n := s.backend.(*MemoryBackend).Len(); n != 0 {
		t.Fatalf("peek persisted a record")
	}
}

func TestSubmitMoveStoresCiphertext(t *testing.T) {
	s, _ := newTestStore(t)
	m, err := s.SubmitMove(context.Background(), 3, domain.SidePlayer1, domain.MoveRock)
	if err != nil {
		t.Fatal(err)
	}
	if m.Player1Move == "" || string(m.Player1Move) == string(domain.MoveRock) {
		t.Fatalf("move not encrypted: %q", m.Player1Move)
	}
	if m.Resolved() {
		t.Fatalf("verdict set with one move")
	}
}

func TestFirstWriteWins(t *testing.T) {
	s, cc := newTestStore(t)
	ctx := context.Background()

	first, err := s.SubmitMove(ctx, 10, domain.SidePlayer1, domain.MoveRock)
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.SubmitMove(ctx, 10, domain.SidePlayer1, domain.MovePaper)
	if err != nil {
		t.Fatal(err)
	}
	if first.Player1Move != second.Player1Move {
		t.Fatalf("slot overwritten")
	}
	if got := cc.encrypts.Load(); got != 1 {
		t.Fatalf("expected 1 encryption, got %d", got)
	}
	mv, err := cc.inner.Decrypt(second.Player1Move)
	if err != nil || mv != domain.MoveRock {
		t.Fatalf("expected rock, got %s (%v)", mv, err)
	}
}

func TestDuplicateSubmitAfterVerdictDoesNotResolveAgain(t *testing.T) {
	s, cc := newTestStore(t)
	ctx := context.Background()

	if _, err := s.SubmitMove(ctx, 11, domain.SidePlayer1, domain.MoveRock); err != nil {
		t.Fatal(err)
	}
	m, err := s.SubmitMove(ctx, 11, domain.SidePlayer2, domain.MovePaper)
	if err != nil {
		t.Fatal(err)
	}
	if m.Verdict != domain.VerdictPlayer2 {
		t.Fatalf("expected player2, got %s", m.Verdict)
	}
	decrypts := cc.decrypts.Load()

	for _, side := range []domain.Side{domain.SidePlayer1, domain.SidePlayer2} {
		again, err := s.SubmitMove(ctx, 11, side, domain.MoveScissors)
		if err != nil {
			t.Fatal(err)
		}
		if again.Verdict != domain.VerdictPlayer2 {
			t.Fatalf("verdict changed to %s", again.Verdict)
		}
	}
	if cc.decrypts.Load() != decrypts {
		t.Fatalf("duplicate submit triggered another resolution")
	}
}

func TestScenario42(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	m, err := s.SubmitMove(ctx, 42, domain.SidePlayer1, domain.MoveRock)
	if err != nil {
		t.Fatal(err)
	}
	if m.Resolved() {
		t.Fatalf("verdict after first move")
	}
	m, err = s.SubmitMove(ctx, 42, domain.SidePlayer2, domain.MoveScissors)
	if err != nil {
		t.Fatal(err)
	}
	if !m.BothMoved() || m.Verdict != domain.VerdictPlayer1 {
		t.Fatalf("expected player1 verdict, got %+v", m)
	}

	v, err := s.Reveal(m)
	if err != nil {
		t.Fatal(err)
	}
	if v.Player1Move != domain.MoveRock || v.Player2Move != domain.MoveScissors {
		t.Fatalf("reveal mismatch: %+v", v)
	}
}

func TestRevealHidesMovesBeforeVerdict(t *testing.T) {
	s, _ := newTestStore(t)
	m, err := s.SubmitMove(context.Background(), 12, domain.SidePlayer1, domain.MovePaper)
	if err != nil {
		t.Fatal(err)
	}
	v, err := s.Reveal(m)
	if err != nil {
		t.Fatal(err)
	}
	if v.Player1Move != "" || !v.Player1Moved || v.Player2Moved {
		t.Fatalf("unexpected view %+v", v)
	}
}

func TestDecryptionFailureWritesNothing(t *testing.T) {
	s, cc := newTestStore(t)
	ctx := context.Background()

	if _, err := s.SubmitMove(ctx, 13, domain.SidePlayer1, domain.MoveRock); err != nil {
		t.Fatal(err)
	}
	cc.failNext.Store(true)
	_, err := s.SubmitMove(ctx, 13, domain.SidePlayer2, domain.MovePaper)
	if !errors.Is(err, cipher.ErrDecryption) || !IsDecryptionFailure(err) {
		t.Fatalf("expected ErrDecryption, got %v", err)
	}

	m, err := s.Peek(ctx, 13)
	if err != nil {
		t.Fatal(err)
	}
	if m.Player2Move != "" || m.Resolved() {
		t.Fatalf("failed attempt left state behind: %+v", m)
	}
}

func TestResetKeepsConnectionFlags(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Join(ctx, 14, domain.SidePlayer1); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Join(ctx, 14, domain.SidePlayer2); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SubmitMove(ctx, 14, domain.SidePlayer1, domain.MovePaper); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SubmitMove(ctx, 14, domain.SidePlayer2, domain.MovePaper); err != nil {
		t.Fatal(err)
	}

	m, err := s.Reset(ctx, 14)
	if err != nil {
		t.Fatal(err)
	}
	if m.Player1Move != "" || m.Player2Move != "" || m.Resolved() {
		t.Fatalf("reset left moves: %+v", m)
	}
	if !m.Player1Connected || !m.Player2Connected {
		t.Fatalf("reset cleared connection flags: %+v", m)
	}

	// replay after reset resolves again
	if _, err := s.SubmitMove(ctx, 14, domain.SidePlayer1, domain.MoveRock); err != nil {
		t.Fatal(err)
	}
	m, err = s.SubmitMove(ctx, 14, domain.SidePlayer2, domain.MovePaper)
	if err != nil {
		t.Fatal(err)
	}
	if m.Verdict != domain.VerdictPlayer2 {
		t.Fatalf("expected player2 after replay, got %s", m.Verdict)
	}
}

func TestConcurrentDuplicateSubmits(t *testing.T) {
	s, cc := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			mv := domain.MoveRock
			if i%2 == 1 {
				mv = domain.MovePaper
			}
			if _, err := s.SubmitMove(ctx, 15, domain.SidePlayer1, mv); err != nil {
				t.Errorf("submit: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if got := cc.encrypts.Load(); got != 1 {
		t.Fatalf("expected exactly one encryption, got %d", got)
	}
}

func TestNotifierSeesChangesOnly(t *testing.T) {
	s, _ := newTestStore(t)
	n := &recordingNotifier{}
	s.SetNotifier(n)
	ctx := context.Background()

	if _, err := s.SubmitMove(ctx, 16, domain.SidePlayer1, domain.MoveRock); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SubmitMove(ctx, 16, domain.SidePlayer1, domain.MoveRock); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Peek(ctx, 16); err != nil {
		t.Fatal(err)
	}
	if got := n.count(); got != 1 {
		t.Fatalf("expected 1 notification, got %d", got)
	}
}

func TestInvalidInput(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	if _, err := s.SubmitMove(ctx, 1, domain.Side("player3"), domain.MoveRock); !errors.Is(err, ErrInvalidSide) {
		t.Fatalf("expected ErrInvalidSide, got %v", err)
	}
	if _, err := s.SubmitMove(ctx, 1, domain.SidePlayer1, domain.Move("lizard")); !errors.Is(err, domain.ErrInvalidMove) {
		t.Fatalf("expected ErrInvalidMove, got %v", err)
	}
}
