package middleware

import (
	"net/http"
	"strings"

	"rps_arena/internal/service"

	"github.com/gin-gonic/gin"
)

// AddressKey is the gin context key holding the authenticated wallet address.
const AddressKey = "address"

// JWT requires "Authorization: Bearer <token>" and stores the token subject under AddressKey.
func JWT() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		address, err := service.ParseJWT(strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(AddressKey, address)
		c.Next()
	}
}

// Address returns the wallet address set by JWT.
func Address(c *gin.Context) (string, bool) {
	v, ok := c.Get(AddressKey)
	if !ok {
		return "", false
	}
	address, ok := v.(string)
	return address, ok && address != ""
}
