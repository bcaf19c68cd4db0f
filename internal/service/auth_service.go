package service

import (
	"context"
	"errors"
	"time"

	"rps_arena/internal/chain"
	"rps_arena/internal/logger"
)

var ErrUnknownPayload = errors.New("unknown or reused payload")

// LoginRecorder is told about every successful login.
type LoginRecorder interface {
	LogLogin(ctx context.Context, address, ip, userAgent string)
}

// AuthService exchanges wallet ownership proofs for session tokens.
type AuthService struct {
	payloads *chain.PayloadIssuer
	domain   string
	audit    LoginRecorder
	now      func() time.Time
}

func NewAuthService(domain string, audit LoginRecorder) *AuthService {
	return &AuthService{
		payloads: chain.NewPayloadIssuer(chain.ProofTTL),
		domain:   domain,
		audit:    audit,
		now:      time.Now,
	}
}

// Payload issues a single-use payload for the wallet to sign.
func (s *AuthService) Payload() (string, error) {
	return s.payloads.Issue()
}

// Login verifies proof and returns a JWT for the proven address.
func (s *AuthService) Login(ctx context.Context, proof chain.WalletProof, ip, userAgent string) (string, error) {
	if err := chain.VerifyProof(proof, s.domain, s.now()); err != nil {
		return "", err
	}
	if !s.payloads.Consume(proof.Payload) {
		return "", ErrUnknownPayload
	}

	token, err := GenerateJWT(proof.Address)
	if err != nil {
		return "", err
	}
	if s.audit != nil {
		s.audit.LogLogin(ctx, proof.Address, ip, userAgent)
	}
	logger.Info("wallet login", "address", proof.Address)
	return token, nil
}
