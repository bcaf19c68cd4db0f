package match

import (
	"bytes"
	"context"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"rps_arena/internal/cipher"
	"rps_arena/internal/domain"

	redis "github.com/redis/go-redis/v9"
)

// Integration-style test: runs only if REDIS_ADDR env is set.
func TestRedisBackendIntegration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping integration test")
	}
	db := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			db = n
		}
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASSWORD"), DB: db})
	defer rdb.Close()

	ctx := context.Background()
	id := time.Now().UnixNano() % 1_000_000_000
	backend := NewRedisBackend(rdb, time.Minute)
	defer rdb.Del(ctx, backend.key(id))

	mc, err := cipher.New(bytes.Repeat([]byte{3}, cipher.KeySize))
	if err != nil {
		t.Fatal(err)
	}
	s := NewStore(backend, mc)

	m, err := s.Peek(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if m.Resolved() {
		t.Fatalf("fresh match resolved")
	}
	if _, exists, _ := backend.Load(ctx, id); exists {
		t.Fatalf("peek persisted record")
	}

	var wg sync.WaitGroup
	for _, side := range []domain.Side{domain.SidePlayer1, domain.SidePlayer2} {
		wg.Add(1)
		go func(side domain.Side) {
			defer wg.Done()
			mv := domain.MoveRock
			if side == domain.SidePlayer2 {
				mv = domain.MoveScissors
			}
			if _, err := s.SubmitMove(ctx, id, side, mv); err != nil {
				t.Errorf("submit %s: %v", side, err)
			}
		}(side)
	}
	wg.Wait()

	m, err = s.Peek(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if m.Verdict != domain.VerdictPlayer1 {
		t.Fatalf("expected player1, got %q", m.Verdict)
	}
}
