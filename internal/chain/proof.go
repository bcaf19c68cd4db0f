package chain

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/types"
)

var (
	ErrProofExpired   = errors.New("proof expired")
	ErrProofDomain    = errors.New("proof domain mismatch")
	ErrProofPayload   = errors.New("unknown or reused proof payload")
	ErrProofSignature = errors.New("invalid proof signature")
	ErrInvalidAddress = errors.New("invalid algorand address")
)

// WalletProof is what a wallet returns after signing a login payload.
// The message signed is ProofMessage(domain, timestamp, payload), using the
// wallet's arbitrary-bytes signing ("MX" prefixed).
type WalletProof struct {
	Address   string `json:"address"`
	Timestamp int64  `json:"timestamp"`
	Domain    string `json:"domain"`
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
}

// ProofMessage builds the bytes a wallet signs to prove account ownership
func ProofMessage(domain string, timestamp int64, payload string) []byte {
	return []byte(ProofPrefix + domain + "/" + strconv.FormatInt(timestamp, 10) + "/" + payload)
}

// ValidateAddress checks the checksum of an Algorand address
func ValidateAddress(address string) bool {
	_, err := types.DecodeAddress(address)
	return err == nil
}

// VerifyProof verifies that proof was signed by the key behind proof.Address
func VerifyProof(proof WalletProof, allowedDomain string, now time.Time) error {
	ts := time.Unix(proof.Timestamp, 0)
	if now.Sub(ts) > ProofTTL || ts.Sub(now) > time.Minute {
		return ErrProofExpired
	}
	if proof.Domain != allowedDomain {
		return fmt.Errorf("%w: expected %s, got %s", ErrProofDomain, allowedDomain, proof.Domain)
	}

	addr, err := types.DecodeAddress(proof.Address)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}

	sig, err := base64.StdEncoding.DecodeString(proof.Signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProofSignature, err)
	}
	if len(sig) != ed25519.SignatureSize {
		return ErrProofSignature
	}

	msg := ProofMessage(proof.Domain, proof.Timestamp, proof.Payload)
	if !crypto.VerifyBytes(ed25519.PublicKey(addr[:]), msg, sig) {
		return ErrProofSignature
	}
	return nil
}

// PayloadIssuer hands out single-use login payloads
type PayloadIssuer struct {
	mu     sync.Mutex
	issued map[string]time.Time
	ttl    time.Duration
}

func NewPayloadIssuer(ttl time.Duration) *PayloadIssuer {
	if ttl <= 0 {
		ttl = ProofTTL
	}
	return &PayloadIssuer{issued: make(map[string]time.Time), ttl: ttl}
}

// Issue returns a fresh random payload
func (p *PayloadIssuer) Issue() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	payload := hex.EncodeToString(b)

	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	for k, exp := range p.issued {
		if now.After(exp) {
			delete(p.issued, k)
		}
	}
	p.issued[payload] = now.Add(p.ttl)
	return payload, nil
}

// Consume reports whether payload was issued and not yet used, and burns it
func (p *PayloadIssuer) Consume(payload string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	exp, ok := p.issued[payload]
	if !ok {
		return false
	}
	delete(p.issued, payload)
	return time.Now().Before(exp)
}
