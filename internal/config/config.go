package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"rps_arena/internal/chain"
	"rps_arena/internal/logger"

	"github.com/joho/godotenv"
)

// Match state backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Config struct {
	AppPort       string
	DatabaseURL   string
	JWTSecret     string
	AllowedOrigin string
	AuthDomain    string

	LogLevel string
	LogJSON  bool

	// Move cipher key, base64 encoded 32 bytes
	MoveCipherKey string

	// Algorand escrow
	AlgodURL            string
	AlgodToken          string
	IndexerURL          string
	IndexerToken        string
	EscrowAdminMnemonic string
	EscrowFeeMicroAlgos uint64
	EscrowWaitRounds    uint64

	// Redis (rate limiting, match state, settlement locks)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MatchBackend string
	MatchTTL     time.Duration

	// Polling for deposits / verdicts
	PollMinInterval time.Duration
	PollMaxInterval time.Duration
	PollMaxRetries  int

	SettleLockTTL       time.Duration
	SettleRetryInterval time.Duration

	APIRateLimit  int
	APIRateWindow time.Duration
	MoveRateLimit int
}

// Load reads configuration from the environment (and .env if present)
func Load() *Config {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal("DATABASE_URL is not set")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Fatal("JWT_SECRET is not set")
	}

	cipherKey := os.Getenv("MOVE_CIPHER_KEY")
	if cipherKey == "" {
		logger.Fatal("MOVE_CIPHER_KEY is not set")
	}

	mnemonic := strings.TrimSpace(os.Getenv("ESCROW_ADMIN_MNEMONIC"))
	if mnemonic == "" {
		logger.Fatal("ESCROW_ADMIN_MNEMONIC is not set")
	}

	backend := strings.ToLower(envString("MATCH_BACKEND", BackendMemory))
	if backend != BackendMemory && backend != BackendRedis {
		logger.Fatal("unknown MATCH_BACKEND", "value", backend)
	}
	redisAddr := os.Getenv("REDIS_ADDR")
	if backend == BackendRedis && redisAddr == "" {
		logger.Fatal("MATCH_BACKEND=redis requires REDIS_ADDR")
	}

	return &Config{
		AppPort:       envString("APP_PORT", "8080"),
		DatabaseURL:   dbURL,
		JWTSecret:     jwtSecret,
		AllowedOrigin: os.Getenv("ALLOWED_ORIGIN"),
		AuthDomain:    envString("AUTH_DOMAIN", "localhost"),

		LogLevel: envString("LOG_LEVEL", "info"),
		LogJSON:  os.Getenv("LOG_JSON") == "true",

		MoveCipherKey: cipherKey,

		AlgodURL:            envString("ALGOD_URL", chain.AlgodTestnet),
		AlgodToken:          os.Getenv("ALGOD_TOKEN"),
		IndexerURL:          envString("INDEXER_URL", chain.IndexerTestnet),
		IndexerToken:        os.Getenv("INDEXER_TOKEN"),
		EscrowAdminMnemonic: mnemonic,
		EscrowFeeMicroAlgos: uint64(envInt("ESCROW_FEE_MICROALGOS", chain.DefaultFlatFee)),
		EscrowWaitRounds:    uint64(envInt("ESCROW_WAIT_ROUNDS", chain.DefaultWaitRounds)),

		RedisAddr:     redisAddr,
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),

		MatchBackend: backend,
		MatchTTL:     time.Duration(envInt("MATCH_TTL_HOURS", 24)) * time.Hour,

		PollMinInterval: time.Duration(envInt("POLL_MIN_INTERVAL_MS", 2000)) * time.Millisecond,
		PollMaxInterval: time.Duration(envInt("POLL_MAX_INTERVAL_MS", 15000)) * time.Millisecond,
		PollMaxRetries:  envInt("POLL_MAX_RETRIES", 40),

		SettleLockTTL:       time.Duration(envInt("SETTLE_LOCK_TTL_SECONDS", 60)) * time.Second,
		SettleRetryInterval: time.Duration(envInt("SETTLE_RETRY_INTERVAL_SECONDS", 30)) * time.Second,

		APIRateLimit:  envInt("API_RATE_LIMIT", 120),
		APIRateWindow: time.Duration(envInt("API_RATE_WINDOW_SECONDS", 60)) * time.Second,
		MoveRateLimit: envInt("MOVE_RATE_LIMIT", 30),
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envInt returns a positive integer from env, or def when unset or invalid
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		logger.Warn("ignoring invalid integer env", "key", key, "value", v)
		return def
	}
	return n
}
