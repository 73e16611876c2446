package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
)

// callerIDKey is the key used to store the authenticated caller's ID.
const callerIDKey = contextKey("callerID")

// GetCallerIDFromCtx retrieves the authenticated caller ID from the context.
// It returns the ID and a boolean indicating if it was found.
func GetCallerIDFromCtx(ctx context.Context) (string, bool) {
	callerID, ok := ctx.Value(callerIDKey).(string)
	return callerID, ok
}

// GetCallerIDFromGin retrieves the authenticated caller ID for handlers that
// only hold the Gin context.
func GetCallerIDFromGin(c *gin.Context) (string, bool) {
	return GetCallerIDFromCtx(c.Request.Context())
}
