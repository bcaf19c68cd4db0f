package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"rps_arena/internal/chain"
	"rps_arena/internal/cipher"
	"rps_arena/internal/domain"
	"rps_arena/internal/http/middleware"
	"rps_arena/internal/logger"
	"rps_arena/internal/match"
	"rps_arena/internal/repository"
	"rps_arena/internal/service"
	"rps_arena/internal/settlement"

	"github.com/gin-gonic/gin"
)

// AuditTrail reads the audit log.
type AuditTrail interface {
	MatchTrail(ctx context.Context, matchID int64, limit int) ([]*domain.AuditLog, error)
	AddressTrail(ctx context.Context, address string, limit int) ([]*domain.AuditLog, error)
}

type Handler struct {
	Matches *service.MatchService
	AuthSvc *service.AuthService
	Audit   AuditTrail
}

func NewHandler(matches *service.MatchService, auth *service.AuthService, audit AuditTrail) *Handler {
	return &Handler{Matches: matches, AuthSvc: auth, Audit: audit}
}

// matchID parses the :id path parameter.
func matchID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid match id"})
		return 0, false
	}
	return id, true
}

// address returns the wallet address set by the JWT middleware.
func address(c *gin.Context) (string, bool) {
	addr, ok := middleware.Address(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
	return addr, ok
}

// respondError maps domain errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	status, msg := http.StatusInternalServerError, "internal error"
	retryable := false

	switch {
	case errors.Is(err, cipher.ErrDecryption):
		status, msg = http.StatusUnprocessableEntity, "cannot determine result"
	case errors.Is(err, settlement.ErrPayoutUnconfirmed):
		status, msg = http.StatusBadGateway, "payout unconfirmed"
	case errors.Is(err, settlement.ErrSettlementFailed):
		status, msg, retryable = http.StatusBadGateway, "settlement failed", true
	case errors.Is(err, settlement.ErrSettlementInProgress):
		status, msg, retryable = http.StatusServiceUnavailable, "settlement in progress", true
	case errors.Is(err, chain.ErrExternalStateFetch), errors.Is(err, settlement.ErrExternalStateFetch):
		status, msg, retryable = http.StatusServiceUnavailable, "external state unavailable", true
	case errors.Is(err, match.ErrConflict):
		status, msg, retryable = http.StatusServiceUnavailable, "match busy", true
	case errors.Is(err, chain.ErrPollExhausted), errors.Is(err, context.DeadlineExceeded):
		status, msg, retryable = http.StatusGatewayTimeout, "timed out waiting", true
	case errors.Is(err, domain.ErrInvalidMove), errors.Is(err, match.ErrInvalidSide), errors.Is(err, chain.ErrInvalidAddress):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, chain.ErrProofExpired), errors.Is(err, chain.ErrProofDomain),
		errors.Is(err, chain.ErrProofPayload), errors.Is(err, chain.ErrProofSignature),
		errors.Is(err, service.ErrUnknownPayload):
		status, msg = http.StatusUnauthorized, err.Error()
	case errors.Is(err, service.ErrNotParticipant):
		status, msg = http.StatusForbidden, err.Error()
	case errors.Is(err, service.ErrMatchNotFound), errors.Is(err, settlement.ErrMatchNotFound):
		status, msg = http.StatusNotFound, "match not found"
	case errors.Is(err, repository.ErrMatchExists), errors.Is(err, service.ErrMatchFull),
		errors.Is(err, service.ErrMatchClosed), errors.Is(err, settlement.ErrNoVerdict),
		errors.Is(err, settlement.ErrVerdictMismatch), errors.Is(err, settlement.ErrMissingAddress):
		status, msg = http.StatusConflict, err.Error()
	}

	if status >= http.StatusInternalServerError {
		logger.WithContext(c.Request.Context()).Error("request failed", "path", c.FullPath(), "status", status, "error", err)
	}

	body := gin.H{"error": msg}
	if retryable {
		body["retryable"] = true
	}
	c.JSON(status, body)
}
