package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"rps_arena/internal/db"
	"rps_arena/internal/logger"
	"rps_arena/internal/migrations"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	logger.Init(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_JSON") == "true")

	apply := flag.Bool("apply", false, "apply pending migrations (default: list them)")
	flag.Parse()

	if !*apply {
		names, err := migrations.Names()
		if err != nil {
			logger.Fatal("list migrations", "error", err)
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Fatal("DATABASE_URL not set")
	}
	pool := db.Connect(dsn)
	defer pool.Close()

	applied, err := migrations.Apply(context.Background(), pool)
	if err != nil {
		logger.Fatal("migration failed", "error", err, "applied", applied)
	}
	for _, name := range applied {
		fmt.Printf("applied %s\n", name)
	}
	logger.Info("migrations up to date", "applied", len(applied))
}
