package integration

import (
	"context"
	"crypto/rand"
	"math/big"
	"os"
	"testing"

	"rps_arena/internal/migrations"

	"github.com/jackc/pgx/v5/pgxpool"
)

// openDB connects to DATABASE_URL and applies the embedded migrations, or skips.
func openDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	db, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)

	if _, err := migrations.Apply(context.Background(), db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db
}

// freshMatchID picks an id outside the 9-digit range the service draws from,
// so reruns against the same database never collide.
func freshMatchID(t *testing.T) int64 {
	t.Helper()
	n, err := rand.Int(rand.Reader, big.NewInt(1<<40))
	if err != nil {
		t.Fatal(err)
	}
	return 10_000_000_000 + n.Int64()
}
