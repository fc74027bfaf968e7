// internal/middleware/auth.go
package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stockpics/backend/internal/i18n"
	"github.com/stockpics/backend/internal/models"
	"github.com/stockpics/backend/internal/utils"
)

// AuthRequired verifies the session token from the Authorization header.
// When allowQueryToken is set, a ?token= parameter is accepted too so that
// plain links (downloads) can authenticate.
func AuthRequired(tokens *utils.TokenManager, allowQueryToken bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := utils.GetLangFromContext(c)

		token, ok := extractToken(c, allowQueryToken)
		if !ok {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthRequired))
			c.Abort()
			return
		}

		claims, err := tokens.Verify(token)
		if err != nil {
			key := i18n.KeyAuthInvalidToken
			if errors.Is(err, utils.ErrTokenExpired) {
				key = i18n.KeyAuthTokenExpired
			}
			utils.UnauthorizedResponse(c, i18n.T(lang, key))
			c.Abort()
			return
		}

		setIdentity(c, claims)
		c.Next()
	}
}

// UserLookup loads the stored account behind a session.
type UserLookup interface {
	GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

// AdminRequired checks the stored role rather than the token claim, so a
// demoted admin loses access before the token expires.
func AdminRequired(users UserLookup) gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		userID, exists := utils.GetUserIDFromContext(c)
		if !exists {
			utils.ForbiddenResponse(c, "")
			c.Abort()
			return
		}

		user, err := users.GetUser(c.Request.Context(), userID)
		if err != nil && !utils.IsCode(err, utils.CodeNotFound) {
			utils.HandleError(c, err)
			c.Abort()
			return
		}
		if err != nil || !user.IsAdmin() {
			utils.ForbiddenResponse(c, "")
			c.Abort()
			return
		}

		c.Next()
	})
}

func extractToken(c *gin.Context, allowQueryToken bool) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", false
		}
		return strings.TrimSpace(parts[1]), true
	}

	if allowQueryToken {
		if token := c.Query("token"); token != "" {
			return token, true
		}
	}
	return "", false
}

func setIdentity(c *gin.Context, claims *utils.JWTClaims) {
	// Verify guarantees a parseable subject.
	userID, _ := uuid.Parse(claims.UserID)
	c.Set("user_id", userID)
	c.Set("user_email", claims.Email)
}
