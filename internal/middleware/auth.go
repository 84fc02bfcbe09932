package middleware

import (
	"errors"
	"net/http"
	"strings"

	"fleetdesk/internal/model"
	"fleetdesk/pkg/jwtutil"
	"fleetdesk/pkg/logger"
	"fleetdesk/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Authenticate parses the Authorization header when present, loads the user
// and stores it in the context under "user". Requests without a token pass
// through unauthenticated so that tenant resolution still runs for public
// endpoints; requests with a bad token are rejected.
func Authenticate(db *gorm.DB) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return next(c)
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				log.Error("Invalid Authorization header format")
				prometheus.RecordAuthError("invalid_auth_format")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid authorization format, expected Bearer token"})
			}

			claims, err := jwtutil.ValidateToken(parts[1])
			if err != nil {
				log.Error("Invalid JWT token", zap.Error(err))
				prometheus.RecordAuthError("invalid_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}

			var user model.User
			if err := db.WithContext(c.Request().Context()).First(&user, "id = ?", claims.UserID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					log.Error("Token subject no longer exists", zap.String("user_id", claims.UserID.String()))
					prometheus.RecordAuthError("unknown_user")
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
				}
				log.Error("Failed to load user", zap.Error(err))
				prometheus.RecordAuthError("db_error")
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
			}

			c.Set("user", &user)
			log.Debug("Request authenticated",
				zap.String("user_id", user.ID.String()),
				zap.String("email", user.Email))

			return next(c)
		}
	}
}

// RequireAuth rejects requests that did not authenticate.
func RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if CurrentUser(c) == nil {
			prometheus.RecordAuthError("missing_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
		}
		return next(c)
	}
}

// CurrentUser returns the authenticated user stored by Authenticate, or nil.
func CurrentUser(c echo.Context) *model.User {
	user, _ := c.Get("user").(*model.User)
	return user
}
