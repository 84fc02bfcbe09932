package handler

import (
	"errors"
	"net/http"
	"time"

	"fleetdesk/internal/middleware"
	"fleetdesk/internal/model"
	"fleetdesk/internal/tenant"
	"fleetdesk/pkg/logger"
	"fleetdesk/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// CreateInvitation issues an invitation to join the current tenant
func CreateInvitation(c echo.Context) error {
	log := logger.FromContext(c)
	user := middleware.CurrentUser(c)
	t := middleware.CurrentTenant(c)

	var req struct {
		Email string `json:"email"`
		Role  string `json:"role,omitempty"`
	}

	if err := c.Bind(&req); err != nil || req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email is required"})
	}
	if req.Role == "" {
		req.Role = model.RoleUser
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	inv, err := invitations.Create(c.Request().Context(), t.ID, user, req.Email, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, tenant.ErrValidation):
			prometheus.RecordInvitation("rejected")
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		case errors.Is(err, tenant.ErrForbidden):
			prometheus.RecordInvitation("rejected")
			return c.JSON(http.StatusForbidden, echo.Map{"error": "insufficient permissions to invite"})
		default:
			log.Error("Failed to create invitation", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "invitation failed"})
		}
	}

	prometheus.RecordInvitation("created")
	log.Info("Invitation created",
		zap.String("tenant_id", t.ID.String()),
		zap.String("email", req.Email),
		zap.String("role", req.Role))

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Invitation sent",
		"invitation": echo.Map{
			"id":         inv.ID,
			"email":      inv.Email,
			"role":       inv.Role,
			"token":      inv.Token,
			"expires_at": inv.ExpiresAt,
		},
	})
}

// GetInvitation lets the recipient preview an invitation before accepting
func GetInvitation(c echo.Context) error {
	token := c.Param("token")
	if token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token is required"})
	}

	inv, err := invitations.FindByToken(c.Request().Context(), token)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "invitation not found"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"tenant":     echo.Map{"slug": inv.Tenant.Slug, "name": inv.Tenant.Name},
		"email":      inv.Email,
		"role":       inv.Role,
		"expires_at": inv.ExpiresAt,
		"valid":      inv.IsValid(),
	})
}

// AcceptInvitation turns a valid invitation into a membership. The caller
// must be authenticated as the invited address.
func AcceptInvitation(c echo.Context) error {
	log := logger.FromContext(c)
	user := middleware.CurrentUser(c)

	token := c.Param("token")
	if token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token is required"})
	}

	ctx := c.Request().Context()

	inv, err := invitations.FindByToken(ctx, token)
	if err != nil {
		prometheus.RecordInvitation("rejected")
		return c.JSON(http.StatusNotFound, echo.Map{"error": "invitation not found"})
	}

	m, err := invitations.Accept(ctx, inv, user)
	if err != nil {
		switch {
		case errors.Is(err, tenant.ErrAlreadyUsed):
			prometheus.RecordInvitation("rejected")
			return c.JSON(http.StatusGone, echo.Map{"error": "invitation already used"})
		case errors.Is(err, tenant.ErrExpired):
			prometheus.RecordInvitation("expired")
			return c.JSON(http.StatusGone, echo.Map{"error": "invitation expired"})
		case errors.Is(err, tenant.ErrEmailMismatch):
			prometheus.RecordInvitation("rejected")
			return c.JSON(http.StatusForbidden, echo.Map{"error": "invitation was issued to a different address"})
		default:
			log.Error("Failed to accept invitation", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "acceptance failed"})
		}
	}

	prometheus.RecordInvitation("accepted")
	log.Info("Invitation accepted",
		zap.String("tenant_id", inv.TenantID.String()),
		zap.String("user_id", user.ID.String()))

	return c.JSON(http.StatusOK, echo.Map{
		"message": "Invitation accepted",
		"tenant": echo.Map{
			"id":   inv.Tenant.ID,
			"slug": inv.Tenant.Slug,
			"name": inv.Tenant.Name,
		},
		"role": m.Role,
	})
}
