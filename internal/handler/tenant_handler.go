package handler

import (
	"errors"
	"net/http"
	"time"

	"fleetdesk/internal/middleware"
	"fleetdesk/internal/model"
	"fleetdesk/internal/tenant"
	"fleetdesk/pkg/jwtutil"
	"fleetdesk/pkg/logger"
	"fleetdesk/prometheus"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// CreateTenant registers a new organization with the requester as first owner
func CreateTenant(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordTenantOperation("create")
	user := middleware.CurrentUser(c)

	var req struct {
		Slug      string `json:"slug"`
		Name      string `json:"name"`
		LegalName string `json:"legal_name"`
		Document  string `json:"document"`
		Email     string `json:"email"`
		Phone     string `json:"phone,omitempty"`
		Address   string `json:"address,omitempty"`
		Plan      string `json:"plan,omitempty"`
		Settings  string `json:"settings,omitempty"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse tenant creation request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.Slug == "" || req.Name == "" || req.Document == "" || req.Email == "" {
		log.Error("Invalid tenant data", zap.String("slug", req.Slug))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "slug, name, document and email are required"})
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	t, err := registry.Create(c.Request().Context(), tenant.NewTenant{
		Slug:      req.Slug,
		Name:      req.Name,
		LegalName: req.LegalName,
		Document:  req.Document,
		Email:     req.Email,
		Phone:     req.Phone,
		Address:   req.Address,
		Plan:      req.Plan,
		Settings:  req.Settings,
		OwnerID:   user.ID,
	})
	if err != nil {
		if errors.Is(err, tenant.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "slug, document or email already in use"})
		}
		log.Error("Failed to create tenant", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "tenant creation failed"})
	}

	// The new tenant becomes the user's active context
	sessions.SetTenantID(c, t.ID)
	if err := db.WithContext(c.Request().Context()).Model(&model.User{}).
		Where("id = ?", user.ID).Update("current_tenant_id", t.ID).Error; err != nil {
		log.Error("Failed to update user's current tenant", zap.Error(err))
	}

	prometheus.ActiveTenantsGauge.Inc()

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Tenant created successfully",
		"tenant":  t,
	})
}

// GetTenant retrieves tenant details
func GetTenant(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordTenantOperation("access")
	user := middleware.CurrentUser(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tenant ID"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	ctx := c.Request().Context()
	ok, err := memberships.HasPermission(ctx, user, id, "")
	if err != nil {
		log.Error("Membership check failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if !ok {
		// Same denial for "doesn't exist" and "exists but no access"
		log.Warn("Unauthorized tenant access attempt",
			zap.String("user_id", user.ID.String()),
			zap.String("tenant_id", id.String()))
		return c.JSON(http.StatusForbidden, echo.Map{"error": "access denied"})
	}

	t, err := registry.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, tenant.ErrNotFound) {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "access denied"})
		}
		log.Error("Failed to load tenant", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	return c.JSON(http.StatusOK, t)
}

// ListUserTenants retrieves all tenants associated with the authenticated user
func ListUserTenants(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordTenantOperation("list")
	user := middleware.CurrentUser(c)

	defer prometheus.TrackDBOperation("query")(time.Now())

	ms, err := memberships.ListForUser(c.Request().Context(), user.ID)
	if err != nil {
		log.Error("Failed to retrieve user's tenants", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve tenants"})
	}

	type TenantResponse struct {
		ID       uuid.UUID `json:"id"`
		Slug     string    `json:"slug"`
		Name     string    `json:"name"`
		Role     string    `json:"role"`
		IsOwner  bool      `json:"is_owner"`
		JoinedAt time.Time `json:"joined_at"`
	}

	response := make([]TenantResponse, 0, len(ms))
	for _, m := range ms {
		response = append(response, TenantResponse{
			ID:       m.TenantID,
			Slug:     m.Tenant.Slug,
			Name:     m.Tenant.Name,
			Role:     m.Role,
			IsOwner:  m.IsOwner,
			JoinedAt: m.JoinedAt,
		})
	}

	return c.JSON(http.StatusOK, response)
}

// SelectTenant makes a tenant the user's active context and issues a token
// carrying it
func SelectTenant(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordTenantOperation("select")
	user := middleware.CurrentUser(c)

	var req struct {
		TenantID uuid.UUID `json:"tenant_id"`
	}

	if err := c.Bind(&req); err != nil || req.TenantID == uuid.Nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "tenant_id is required"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	ctx := c.Request().Context()

	m, err := memberships.GetActive(ctx, user.ID, req.TenantID)
	if err != nil {
		log.Warn("Unauthorized tenant selection attempt",
			zap.String("user_id", user.ID.String()),
			zap.String("tenant_id", req.TenantID.String()))
		return c.JSON(http.StatusForbidden, echo.Map{"error": "access denied to requested tenant"})
	}

	t, err := registry.FindActiveByID(ctx, req.TenantID)
	if err != nil {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "access denied to requested tenant"})
	}

	token, err := jwtutil.GenerateTokenWithTenant(user.Email, user.ID, user.Superuser, &t.ID, m.Role)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	sessions.SetTenantID(c, t.ID)
	if err := db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", user.ID).Update("current_tenant_id", t.ID).Error; err != nil {
		log.Error("Failed to update user's current tenant", zap.Error(err))
	}
	if err := memberships.TouchLastAccess(ctx, user.ID, t.ID); err != nil {
		log.Error("Failed to record tenant access", zap.Error(err))
	}

	log.Info("User selected tenant",
		zap.String("user_id", user.ID.String()),
		zap.String("tenant_id", t.ID.String()))

	return c.JSON(http.StatusOK, echo.Map{
		"token": token,
		"tenant": echo.Map{
			"id":   t.ID,
			"slug": t.Slug,
			"name": t.Name,
			"role": m.Role,
		},
	})
}

// AddMember adds an existing user to the current tenant
func AddMember(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordTenantOperation("add_member")
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
	if !model.ValidRole(req.Role) || req.Role == model.RoleOwner {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid role"})
	}

	ctx := c.Request().Context()

	ok, err := memberships.HasPermission(ctx, user, t.ID, "invite")
	if err != nil {
		log.Error("Membership check failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "insufficient permissions"})
	}

	var target model.User
	if err := db.WithContext(ctx).First(&target, "email = ?", req.Email).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	m, err := memberships.AddMember(ctx, t.ID, target.ID, req.Role, false, &user.ID)
	if err != nil {
		log.Error("Failed to add member", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to add member"})
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"message":    "Member added successfully",
		"membership": m,
	})
}

// RemoveMember soft-removes a membership from the current tenant
func RemoveMember(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordTenantOperation("remove_member")
	user := middleware.CurrentUser(c)
	t := middleware.CurrentTenant(c)

	membershipID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid membership ID"})
	}

	ctx := c.Request().Context()

	ok, err := memberships.HasPermission(ctx, user, t.ID, "delete")
	if err != nil {
		log.Error("Membership check failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "insufficient permissions"})
	}

	// The membership must belong to the current tenant
	var target model.Membership
	if err := db.WithContext(ctx).First(&target, "id = ? AND tenant_id = ?", membershipID, t.ID).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "membership not found"})
	}

	if err := memberships.RemoveMember(ctx, membershipID); err != nil {
		switch {
		case errors.Is(err, tenant.ErrLastOwner):
			return c.JSON(http.StatusConflict, echo.Map{"error": "cannot remove the last owner"})
		case errors.Is(err, tenant.ErrMembershipNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "membership not found"})
		default:
			log.Error("Failed to remove member", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to remove member"})
		}
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "Member removed successfully"})
}

// DeactivateTenant takes a tenant out of service. Only owners (or
// superusers) may do this; the rows stay for audit purposes.
func DeactivateTenant(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordTenantOperation("deactivate")
	user := middleware.CurrentUser(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tenant ID"})
	}

	ctx := c.Request().Context()

	if !user.Superuser {
		m, err := memberships.GetActive(ctx, user.ID, id)
		if err != nil || !m.IsOwner {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "only owners can deactivate a tenant"})
		}
	}

	if err := registry.Deactivate(ctx, id); err != nil {
		if errors.Is(err, tenant.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "tenant not found"})
		}
		log.Error("Failed to deactivate tenant", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "deactivation failed"})
	}

	prometheus.ActiveTenantsGauge.Dec()
	sessions.ClearTenantID(c)

	return c.JSON(http.StatusOK, echo.Map{"message": "Tenant deactivated"})
}
