package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Identity headers. Authentication is handled upstream (gateway or proxy);
// this service trusts the forwarded identity and enforces the tenant
// boundary with it.
const (
	userIDHeader   = "X-User-ID"
	clientIDHeader = "X-Client-ID"

	userIDKey   = "userID"
	clientIDKey = "clientID"
)

// Identity extracts the caller's user and tenant identity from the request
// headers and stores them in the Gin context. Requests without both headers
// are rejected with 401 before reaching any handler.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetHeader(userIDHeader)
		cid := c.GetHeader(clientIDHeader)
		if uid == "" || cid == "" {
			rid, _ := c.Get(requestIDKey)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": asString(rid),
				"code":       "unauthenticated",
				"message":    "missing identity headers",
			})
			return
		}
		c.Set(userIDKey, uid)
		c.Set(clientIDKey, cid)
		c.Next()
	}
}

// UserID returns the authenticated user's ID, or "" when absent.
func UserID(c *gin.Context) string {
	v, _ := c.Get(userIDKey)
	return asString(v)
}

// ClientID returns the caller's tenant ID, or "" when absent.
func ClientID(c *gin.Context) string {
	v, _ := c.Get(clientIDKey)
	return asString(v)
}
