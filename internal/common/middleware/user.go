package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"budget-bubble-backend/internal/common/errors"
	"budget-bubble-backend/internal/common/validation"
)

// UserIDHeader carries the caller's identity. Authentication happens in
// front of this service.
const UserIDHeader = "X-User-ID"

const userIDKey = "user_id"

// RequireUser rejects requests without a well-formed user id header
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(UserIDHeader))
		if userID == "" {
			SendError(c, errors.NewUnauthorizedError("missing "+UserIDHeader+" header"))
			return
		}
		if err := validation.ValidateUserID(userID); err != nil {
			SendError(c, errors.NewValidationError("user_id", err.Error()))
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// GetUserID returns the id stored by RequireUser
func GetUserID(c *gin.Context) string {
	if v, ok := c.Get(userIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
