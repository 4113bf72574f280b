package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/quickride/quickride/pkg/common"
)

const (
	// UserIDHeader carries the authenticated caller's ID, set by the edge proxy.
	UserIDHeader = "X-User-ID"
	// UserRoleHeader carries the caller's role, set by the edge proxy.
	UserRoleHeader = "X-User-Role"

	userIDKey   = "user_id"
	userRoleKey = "user_role"
)

// Caller roles.
const (
	RolePassenger = "passenger"
	RoleDriver    = "driver"
)

// Identity extracts the caller identity headers and rejects requests
// without a valid user ID. Authentication itself happens upstream.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		rawID := strings.TrimSpace(c.GetHeader(UserIDHeader))
		userID, err := uuid.Parse(rawID)
		if err != nil {
			common.ErrorResponse(c, http.StatusUnauthorized, "Missing or invalid user identity")
			c.Abort()
			return
		}

		role := strings.ToLower(strings.TrimSpace(c.GetHeader(UserRoleHeader)))
		if role != RolePassenger && role != RoleDriver {
			common.ErrorResponse(c, http.StatusUnauthorized, "Missing or invalid user role")
			c.Abort()
			return
		}

		c.Set(userIDKey, userID)
		c.Set(userRoleKey, role)

		c.Next()
	}
}

// GetUserID returns the caller's ID stored by Identity.
func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(userIDKey)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// GetUserRole returns the caller's role stored by Identity.
func GetUserRole(c *gin.Context) string {
	v, exists := c.Get(userRoleKey)
	if !exists {
		return ""
	}
	role, _ := v.(string)
	return role
}

// RequireRole aborts with 403 unless the caller has the given role.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetUserRole(c) != role {
			common.ErrorResponse(c, http.StatusForbidden, "Insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}
