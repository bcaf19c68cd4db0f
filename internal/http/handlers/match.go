package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"rps_arena/internal/domain"
	"rps_arena/internal/game"

	"github.com/gin-gonic/gin"
)

// longest a request may block in a ?wait=1 poll
const maxWait = 2 * time.Minute

type createMatchRequest struct {
	AppID           uint64 `json:"app_id"`
	ContractAddress string `json:"contract_address"`
}

type moveRequest struct {
	Move string `json:"move" binding:"required"`
}

func (h *Handler) CreateMatch(c *gin.Context) {
	addr, ok := address(c)
	if !ok {
		return
	}
	var req createMatchRequest
	// an empty body creates a match without an escrow app
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
			return
		}
	}

	st, err := h.Matches.CreateMatch(c.Request.Context(), addr, req.AppID, req.ContractAddress)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

func (h *Handler) ListMatches(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	recs, err := h.Matches.List(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": recs})
}

// GetMatch returns the record and the masked match. With ?wait=1 it blocks
// until the match has a verdict.
func (h *Handler) GetMatch(c *gin.Context) {
	id, ok := matchID(c)
	if !ok {
		return
	}
	addr, ok := address(c)
	if !ok {
		return
	}

	if c.Query("wait") == "1" {
		ctx, cancel := context.WithTimeout(c.Request.Context(), maxWait)
		defer cancel()
		if _, err := h.Matches.AwaitVerdict(ctx, id); err != nil {
			respondError(c, err)
			return
		}
	}

	st, err := h.Matches.Get(c.Request.Context(), id, addr)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) JoinMatch(c *gin.Context) {
	id, ok := matchID(c)
	if !ok {
		return
	}
	addr, ok := address(c)
	if !ok {
		return
	}

	st, err := h.Matches.JoinMatch(c.Request.Context(), id, addr)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) SubmitMove(c *gin.Context) {
	id, ok := matchID(c)
	if !ok {
		return
	}
	addr, ok := address(c)
	if !ok {
		return
	}

	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "move is required"})
		return
	}
	move, err := game.ParseMove(req.Move)
	if err != nil {
		respondError(c, err)
		return
	}

	st, err := h.Matches.SubmitMove(c.Request.Context(), id, addr, move)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) ResetMatch(c *gin.Context) {
	id, ok := matchID(c)
	if !ok {
		return
	}
	addr, ok := address(c)
	if !ok {
		return
	}

	st, err := h.Matches.Reset(c.Request.Context(), id, addr)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// SettleMatch re-runs settlement from the stored verdict. Safe to call repeatedly.
func (h *Handler) SettleMatch(c *gin.Context) {
	id, ok := matchID(c)
	if !ok {
		return
	}

	out, err := h.Matches.Settle(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Deposits reports which players funded the escrow. With ?wait=1 it polls until both have.
func (h *Handler) Deposits(c *gin.Context) {
	id, ok := matchID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var (
		ds  domain.DepositState
		err error
	)
	if c.Query("wait") == "1" {
		wctx, cancel := context.WithTimeout(ctx, maxWait)
		defer cancel()
		ds, err = h.Matches.AwaitDeposits(wctx, id)
	} else {
		ds, err = h.Matches.Deposits(ctx, id)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ds)
}

// AuditTrail lists the recorded events of a match, oldest first.
func (h *Handler) AuditTrail(c *gin.Context) {
	id, ok := matchID(c)
	if !ok {
		return
	}
	if h.Audit == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "audit log disabled"})
		return
	}

	logs, err := h.Audit.MatchTrail(c.Request.Context(), id, auditLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": logs})
}

// MyAudit lists the caller's own recorded events, newest first.
func (h *Handler) MyAudit(c *gin.Context) {
	addr, ok := address(c)
	if !ok {
		return
	}
	if h.Audit == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "audit log disabled"})
		return
	}

	logs, err := h.Audit.AddressTrail(c.Request.Context(), addr, auditLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": logs})
}

func auditLimit(c *gin.Context) int {
	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return limit
}
