package handlers

import (
	"net/http"

	"rps_arena/internal/chain"

	"github.com/gin-gonic/gin"
)

// AuthPayload issues a single-use payload for the wallet to sign.
func (h *Handler) AuthPayload(c *gin.Context) {
	payload, err := h.AuthSvc.Payload()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payload": payload})
}

// Auth exchanges a signed wallet proof for a session token.
func (h *Handler) Auth(c *gin.Context) {
	var req chain.WalletProof
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	if req.Address == "" || req.Signature == "" || req.Payload == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address, signature and payload are required"})
		return
	}

	token, err := h.AuthSvc.Login(c.Request.Context(), req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":   token,
		"address": req.Address,
	})
}
