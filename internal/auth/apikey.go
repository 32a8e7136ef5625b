// Package auth guards the HTTP surface with a single shared key. Both
// the operator API and the camera webhook endpoint sit behind it, so
// the key is accepted from X-API-Key or a bearer token.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const keyHeader = "X-API-Key"

// RequireKey rejects requests that do not carry the configured key.
// An empty key leaves the surface open for local setups.
func RequireKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}

		got := presentedKey(c)
		if got == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing API key",
			})
			return
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "invalid API key",
			})
			return
		}

		c.Next()
	}
}

// presentedKey pulls the key from X-API-Key, falling back to a bearer
// token for senders that can only set an Authorization header.
func presentedKey(c *gin.Context) string {
	if k := c.GetHeader(keyHeader); k != "" {
		return k
	}
	if tok, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok {
		return tok
	}
	return ""
}
