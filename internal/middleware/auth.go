package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/drivehub-api/internal/models"
	"github.com/noah-isme/drivehub-api/internal/service"
	appErrors "github.com/noah-isme/drivehub-api/pkg/errors"
	"github.com/noah-isme/drivehub-api/pkg/response"
)

// ContextPrincipalKey is the gin context key storing the resolved principal.
const ContextPrincipalKey = "currentPrincipal"

// JWT protects routes by requiring a valid access token.
func JWT(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := claimsFromHeader(c, authService)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Set(ContextPrincipalKey, claims.Principal())
		c.Next()
	}
}

// OptionalJWT attaches a principal when a valid token is present, and the
// anonymous principal otherwise. Used on the public share routes, where an
// authenticated visit should still see the caller's identity in logs.
func OptionalJWT(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := claimsFromHeader(c, authService)
		if err != nil {
			c.Set(ContextPrincipalKey, models.AnonymousPrincipal)
			c.Next()
			return
		}
		c.Set(ContextPrincipalKey, claims.Principal())
		c.Next()
	}
}

// RequireAdmin blocks non-admin principals. Must run after JWT.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := CurrentPrincipal(c)
		if principal.Anonymous || !principal.Admin {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "admin access required"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentPrincipal extracts the principal set by the auth middleware,
// defaulting to anonymous.
func CurrentPrincipal(c *gin.Context) models.Principal {
	value, ok := c.Get(ContextPrincipalKey)
	if !ok {
		return models.AnonymousPrincipal
	}
	principal, ok := value.(models.Principal)
	if !ok {
		return models.AnonymousPrincipal
	}
	return principal
}

func claimsFromHeader(c *gin.Context, authService *service.AuthService) (*models.JWTClaims, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authorization header required")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header")
	}
	return authService.ValidateToken(parts[1])
}
