package middleware

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/triloka-construction-api/config"
	"github.com/kendall-kelly/triloka-construction-api/models"
	"github.com/kendall-kelly/triloka-construction-api/services"
)

const (
	currentUserKey = "current_user"
	tokenIDKey     = "token_id"
)

// BearerToken returns the token from the Authorization header, or "" when absent
func BearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func abortUnauthorized(c *gin.Context, code, message string) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
	c.Abort()
}

// Authenticate checks the bearer token (or the admin session cookie) and
// stores the active user and token id in the request context.
func Authenticate(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := BearerToken(c)
		if raw == "" && cfg.AdminSessionCookie != "" {
			if cookie, err := c.Cookie(cfg.AdminSessionCookie); err == nil {
				raw = cookie
			}
		}
		if raw == "" {
			abortUnauthorized(c, "UNAUTHENTICATED", "Authentication required")
			return
		}

		tokens := services.NewTokenService(config.GetDB(), cfg.JWTSecret, cfg.TokenTTL)
		user, record, err := tokens.Authenticate(raw)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrInactiveUser):
				c.JSON(http.StatusForbidden, gin.H{
					"success": false,
					"error": gin.H{
						"code":    "ACCOUNT_INACTIVE",
						"message": "Your account is inactive",
					},
				})
				c.Abort()
			case errors.Is(err, services.ErrInvalidToken):
				abortUnauthorized(c, "INVALID_TOKEN", "Invalid or expired token")
			default:
				log.Printf("Failed to authenticate request: %v", err)
				c.JSON(http.StatusInternalServerError, gin.H{
					"success": false,
					"error": gin.H{
						"code":    "INTERNAL_ERROR",
						"message": "Failed to authenticate request",
					},
				})
				c.Abort()
			}
			return
		}

		SetCurrentUser(c, user, record.TokenID)
		c.Next()
	}
}

// SetCurrentUser stores the authenticated user for the rest of the request
func SetCurrentUser(c *gin.Context, user *models.User, tokenID string) {
	c.Set(currentUserKey, user)
	c.Set(tokenIDKey, tokenID)
}

// CurrentUser extracts the authenticated user from the Gin context
func CurrentUser(c *gin.Context) (*models.User, error) {
	value, exists := c.Get(currentUserKey)
	if !exists {
		return nil, &AuthError{Code: "MISSING_USER", Message: "User not found in context"}
	}

	user, ok := value.(*models.User)
	if !ok || user == nil {
		return nil, &AuthError{Code: "INVALID_USER", Message: "User is not in the expected format"}
	}

	return user, nil
}

// CurrentTokenID returns the id of the token that authenticated the request
func CurrentTokenID(c *gin.Context) string {
	return c.GetString(tokenIDKey)
}

// ActorFrom builds the service-layer caller for the request
func ActorFrom(c *gin.Context) services.Actor {
	user, _ := CurrentUser(c)
	return services.Actor{
		User:      user,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// RequireRole is a middleware that checks the authenticated user's role
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := CurrentUser(c)
		if err != nil {
			abortUnauthorized(c, "UNAUTHENTICATED", "Authentication required")
			return
		}

		if user.Role != role {
			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "FORBIDDEN",
					"message": "Insufficient permissions to access this resource",
				},
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// AuthError represents an authentication error
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}
