package chain

import (
	"encoding/base64"
	"time"
)

const (
	// DefaultFlatFee is the fee paid per transaction in the payout group
	DefaultFlatFee = 1000

	// DefaultWaitRounds is how many rounds Payout waits for confirmation
	DefaultWaitRounds = 4

	// ProofTTL is how long a wallet ownership proof is valid
	ProofTTL = 15 * time.Minute

	// ProofPrefix namespaces signed login messages
	ProofPrefix = "rps-arena-proof/"
)

// Escrow contract ABI
const (
	MethodSetWinner = "setWinner(address)void"
	MethodSendFunds = "sendFunds(address)void"
)

// Global state keys the escrow sets when a side deposits, as returned by the indexer.
var (
	Player1DepositKey = base64.StdEncoding.EncodeToString([]byte("player1"))
	Player2DepositKey = base64.StdEncoding.EncodeToString([]byte("player2"))
)

// Default public testnet endpoints
const (
	AlgodTestnet   = "https://testnet-api.algonode.cloud"
	IndexerTestnet = "https://testnet-idx.algonode.cloud"
)
