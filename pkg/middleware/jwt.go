package middleware

import (
	"bitwise74/user-api/internal/model"
	"bitwise74/user-api/internal/store"
	"bitwise74/user-api/pkg/security"
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserLookup fetches the current row for a user id
type UserLookup interface {
	FindByID(ctx context.Context, id uint) (*model.User, error)
}

// NewJWTMiddleware guards every protected route. The token only proves who
// the caller is, the user row is fetched again on every request so a block
// or delete takes effect immediately.
func NewJWTMiddleware(tokens *security.SessionTokens, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetString("requestID")

		tokenStr, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":     "No token provided. Please login",
				"requestID": requestID,
			})
			return
		}

		claims, err := tokens.Parse(tokenStr)
		if err != nil {
			msg := "Invalid token. Please login again"
			if errors.Is(err, security.ErrTokenExpired) {
				msg = "Session expired. Please login again"
			}

			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":     msg,
				"redirect":  true,
				"requestID": requestID,
			})
			return
		}

		user, err := users.FindByID(c.Request.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error":     "User account not found. Please login again",
					"redirect":  true,
					"requestID": requestID,
				})
				return
			}

			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":     "Internal server error",
				"requestID": requestID,
			})

			zap.L().Error("Failed to check if user exists", zap.Error(err), zap.String("requestID", requestID))
			return
		}

		if user.Status == model.StatusBlocked {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":     "Your account has been blocked. Please contact administrator",
				"redirect":  true,
				"requestID": requestID,
			})
			return
		}

		c.Set("userID", user.ID)
		c.Set("userEmail", user.Email)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	return token, token != ""
}
