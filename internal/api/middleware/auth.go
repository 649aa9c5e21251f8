package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"paynotify-system/internal/domain"
)

const identityContextKey = "identity"

// BearerAuth resolves the Authorization header to a subject identity and
// stores it on the request context. Token issuance is not this service's
// concern; only verification happens here.
func BearerAuth(verifier domain.TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing authorization header"})
			}

			token := strings.TrimPrefix(header, "Bearer ")
			if token == header {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "malformed authorization header"})
			}

			identity, err := verifier.Verify(token)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			}

			c.Set(identityContextKey, identity)
			return next(c)
		}
	}
}

// IdentityFrom returns the identity stored by BearerAuth, or nil.
func IdentityFrom(c echo.Context) *domain.Identity {
	identity, _ := c.Get(identityContextKey).(*domain.Identity)
	return identity
}
