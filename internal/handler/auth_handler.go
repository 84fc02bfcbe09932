package handler

import (
	"net/http"
	"time"

	"fleetdesk/internal/audit"
	"fleetdesk/internal/middleware"
	"fleetdesk/internal/model"
	"fleetdesk/pkg/jwtutil"
	"fleetdesk/pkg/logger"
	"fleetdesk/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Register creates a new user account
func Register(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RegisterCounter.Inc()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
		Phone    string `json:"phone,omitempty"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse registration request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.Email == "" || req.Password == "" {
		prometheus.RecordAuthError("incomplete_registration")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password are required"})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	user := model.User{
		Email:    req.Email,
		Password: string(hashed),
		Name:     req.Name,
		Phone:    req.Phone,
	}

	if err := db.WithContext(c.Request().Context()).Create(&user).Error; err != nil {
		log.Error("Failed to create user", zap.String("email", req.Email), zap.Error(err))
		prometheus.RecordAuthError("registration_failed")
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
	}

	log.Info("User registered", zap.String("email", user.Email), zap.String("user_id", user.ID.String()))

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "User registered successfully",
		"user":    user,
	})
}

// Login authenticates a user and issues a JWT
func Login(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.LoginCounter.Inc()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse login request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var user model.User
	if err := db.WithContext(c.Request().Context()).First(&user, "email = ?", req.Email).Error; err != nil {
		log.Error("User not found", zap.String("email", req.Email))
		prometheus.RecordAuthError("user_not_found")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		log.Error("Invalid password", zap.String("email", req.Email))
		prometheus.RecordAuthError("invalid_password")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	// Carry the user's last selected tenant into the token when it still
	// resolves to a membership
	var role string
	ctx := c.Request().Context()
	if user.CurrentTenantID != nil {
		if m, err := memberships.GetActive(ctx, user.ID, *user.CurrentTenantID); err == nil {
			role = m.Role
		} else {
			user.CurrentTenantID = nil
		}
	}

	token, err := jwtutil.GenerateTokenWithTenant(user.Email, user.ID, user.Superuser, user.CurrentTenantID, role)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	recorder.Record(ctx, audit.Entry{
		TenantID:  user.CurrentTenantID,
		UserID:    &user.ID,
		Action:    model.AuditActionLogin,
		ModelName: "User",
		ObjectID:  user.ID.String(),
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	})

	log.Info("User logged in", zap.String("email", user.Email))

	return c.JSON(http.StatusOK, echo.Map{
		"token": token,
		"user":  user,
	})
}

// Logout records the logout and clears the tenant session
func Logout(c echo.Context) error {
	log := logger.FromContext(c)
	user := middleware.CurrentUser(c)

	entry := audit.Entry{
		Action:    model.AuditActionLogout,
		ModelName: "User",
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}
	if user != nil {
		entry.UserID = &user.ID
		entry.ObjectID = user.ID.String()
	}
	recorder.Record(c.Request().Context(), entry)

	sessions.ClearTenantID(c)

	if user != nil {
		log.Info("User logged out", zap.String("email", user.Email))
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "Logged out"})
}

// GetProfile returns the authenticated user's profile
func GetProfile(c echo.Context) error {
	user := middleware.CurrentUser(c)
	return c.JSON(http.StatusOK, user)
}
