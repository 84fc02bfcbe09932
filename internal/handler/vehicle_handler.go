package handler

import (
	"errors"
	"net/http"
	"time"

	"fleetdesk/internal/model"
	"fleetdesk/pkg/logger"
	"fleetdesk/prometheus"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreateVehicle registers a vehicle in the current tenant's fleet
func CreateVehicle(c echo.Context) error {
	log := logger.FromContext(c)

	var req struct {
		Plate             string `json:"plate"`
		Brand             string `json:"brand"`
		Model             string `json:"model"`
		Year              int    `json:"year"`
		Color             string `json:"color,omitempty"`
		Odometer          uint   `json:"odometer,omitempty"`
		NextMaintenanceKm *uint  `json:"next_maintenance_km,omitempty"`
	}

	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Plate == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "plate is required"})
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	ctx := c.Request().Context()

	// Plates are unique within a tenant, not globally
	var count int64
	if err := db.WithContext(ctx).Model(&model.Vehicle{}).
		Scopes(model.ScopedToContext(ctx)).
		Where("plate = ?", req.Plate).Count(&count).Error; err != nil {
		log.Error("Failed to check plate uniqueness", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if count > 0 {
		return c.JSON(http.StatusConflict, echo.Map{"error": "plate already registered"})
	}

	v := model.Vehicle{
		Plate:             req.Plate,
		Brand:             req.Brand,
		Model:             req.Model,
		Year:              req.Year,
		Color:             req.Color,
		Status:            model.VehicleStatusAvailable,
		Odometer:          req.Odometer,
		NextMaintenanceKm: req.NextMaintenanceKm,
	}

	if err := db.WithContext(ctx).Create(&v).Error; err != nil {
		log.Error("Failed to create vehicle", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create vehicle"})
	}

	return c.JSON(http.StatusCreated, v)
}

// ListVehicles retrieves the current tenant's fleet
func ListVehicles(c echo.Context) error {
	log := logger.FromContext(c)

	defer prometheus.TrackDBOperation("query")(time.Now())
	ctx := c.Request().Context()

	q := db.WithContext(ctx).Scopes(model.ScopedToContext(ctx))
	if status := c.QueryParam("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var vehicles []model.Vehicle
	if err := q.Order("plate").Find(&vehicles).Error; err != nil {
		log.Error("Failed to list vehicles", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve vehicles"})
	}

	return c.JSON(http.StatusOK, vehicles)
}

// GetVehicle retrieves one vehicle from the current tenant's fleet
func GetVehicle(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid vehicle ID"})
	}

	ctx := c.Request().Context()

	var v model.Vehicle
	err = db.WithContext(ctx).Scopes(model.ScopedToContext(ctx)).
		First(&v, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "vehicle not found"})
		}
		logger.FromContext(c).Error("Failed to load vehicle", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	return c.JSON(http.StatusOK, v)
}

// UpdateVehicle updates mutable vehicle attributes
func UpdateVehicle(c echo.Context) error {
	log := logger.FromContext(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid vehicle ID"})
	}

	var req struct {
		Color    *string `json:"color,omitempty"`
		Status   *string `json:"status,omitempty"`
		Odometer *uint   `json:"odometer,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	ctx := c.Request().Context()

	var v model.Vehicle
	if err := db.WithContext(ctx).Scopes(model.ScopedToContext(ctx)).
		First(&v, "id = ?", id).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "vehicle not found"})
	}

	updates := map[string]interface{}{}
	if req.Color != nil {
		updates["color"] = *req.Color
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	if req.Odometer != nil {
		if *req.Odometer < v.Odometer {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "odometer cannot decrease"})
		}
		updates["odometer"] = *req.Odometer
	}
	if len(updates) == 0 {
		return c.JSON(http.StatusOK, v)
	}

	if err := db.WithContext(ctx).Model(&v).Updates(updates).Error; err != nil {
		log.Error("Failed to update vehicle", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}

	return c.JSON(http.StatusOK, v)
}
