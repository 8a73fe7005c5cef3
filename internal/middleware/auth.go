package middleware

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/apperr"
)

const ClaimsKey = "admin_claims"

// AdminAuth accepts HS256 bearer tokens signed with secret. An empty secret
// locks the admin routes entirely.
func AdminAuth(secret string) echo.MiddlewareFunc {
	key := []byte(secret)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if len(key) == 0 {
				return fmt.Errorf("admin api disabled: %w", apperr.ErrAuthenticationFailed)
			}

			parts := strings.Fields(c.Request().Header.Get(echo.HeaderAuthorization))
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return fmt.Errorf("missing bearer token: %w", apperr.ErrAuthenticationFailed)
			}

			token, err := jwt.Parse(parts[1], func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return key, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid {
				return fmt.Errorf("invalid admin token: %w", apperr.ErrAuthenticationFailed)
			}

			c.Set(ClaimsKey, token.Claims)
			return next(c)
		}
	}
}
