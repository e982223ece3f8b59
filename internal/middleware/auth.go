package middleware

import (
	"strings"

	"hospital-inventory/internal/access"
	"hospital-inventory/pkg/apperror"
	"hospital-inventory/pkg/response"
	"hospital-inventory/pkg/token"

	"github.com/gin-gonic/gin"
)

// Gin context keys set by RequireAuth.
const (
	ContextUserID   = "userID"
	ContextUserRole = "userRole"
	ContextUsername = "username"
)

func abortWithError(c *gin.Context, err error) {
	status, res := response.FromError(err)
	c.AbortWithStatusJSON(status, res)
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", apperror.New(apperror.CodeUnauthorized, "authorization is missing")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", apperror.New(apperror.CodeUnauthorized, "invalid authorization format, expected 'Bearer <token>'")
	}
	return strings.TrimSpace(parts[1]), nil
}

// RequireAuth validates the bearer token and stores the caller on the context.
func RequireAuth(tokens *token.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := bearerToken(c)
		if err != nil {
			abortWithError(c, err)
			return
		}

		claims, err := tokens.Parse(raw)
		if err != nil {
			abortWithError(c, apperror.Wrap(apperror.CodeUnauthorized, err, "invalid or expired token"))
			return
		}

		c.Set(ContextUserID, claims.Subject)
		c.Set(ContextUserRole, claims.Role)
		c.Set(ContextUsername, claims.Username)
		c.Next()
	}
}

// RequireCapability must run after RequireAuth.
func RequireCapability(action access.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ContextUserRole)
		if role == "" {
			abortWithError(c, apperror.New(apperror.CodeUnauthorized, "authentication required"))
			return
		}
		if !access.CanPerform(role, action) {
			abortWithError(c, apperror.Newf(apperror.CodeForbidden, "access denied: missing permission '%s'", action))
			return
		}
		c.Next()
	}
}
