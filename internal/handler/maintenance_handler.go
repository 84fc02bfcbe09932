package handler

import (
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

// ScheduleMaintenance creates a maintenance entry for a vehicle
func ScheduleMaintenance(c echo.Context) error {
	log := logger.FromContext(c)

	var req struct {
		VehicleID       uuid.UUID `json:"vehicle_id"`
		MaintenanceType string    `json:"maintenance_type"`
		ScheduledDate   time.Time `json:"scheduled_date"`
		Description     string    `json:"description,omitempty"`
		ServiceProvider string    `json:"service_provider,omitempty"`
	}

	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.VehicleID == uuid.Nil || req.MaintenanceType == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "vehicle_id and maintenance_type are required"})
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	ctx := c.Request().Context()

	var v model.Vehicle
	if err := db.WithContext(ctx).Scopes(model.ScopedToContext(ctx)).
		First(&v, "id = ?", req.VehicleID).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "vehicle not found"})
	}

	rec := model.MaintenanceRecord{
		VehicleID:       v.ID,
		MaintenanceType: req.MaintenanceType,
		Status:          model.MaintenanceStatusScheduled,
		ScheduledDate:   req.ScheduledDate,
		Description:     req.Description,
		ServiceProvider: req.ServiceProvider,
	}

	if err := db.WithContext(ctx).Create(&rec).Error; err != nil {
		log.Error("Failed to schedule maintenance", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "scheduling failed"})
	}

	return c.JSON(http.StatusCreated, rec)
}

// ListMaintenance retrieves maintenance records, optionally per vehicle or status
func ListMaintenance(c echo.Context) error {
	log := logger.FromContext(c)

	defer prometheus.TrackDBOperation("query")(time.Now())
	ctx := c.Request().Context()

	q := db.WithContext(ctx).Scopes(model.ScopedToContext(ctx))
	if vid := c.QueryParam("vehicle_id"); vid != "" {
		id, err := uuid.Parse(vid)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid vehicle_id"})
		}
		q = q.Where("vehicle_id = ?", id)
	}
	if status := c.QueryParam("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var records []model.MaintenanceRecord
	if err := q.Order("scheduled_date DESC").Find(&records).Error; err != nil {
		log.Error("Failed to list maintenance records", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve records"})
	}

	return c.JSON(http.StatusOK, records)
}

// CompleteMaintenance closes a maintenance entry and rolls the vehicle's
// maintenance counters forward
func CompleteMaintenance(c echo.Context) error {
	log := logger.FromContext(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid maintenance ID"})
	}

	var req struct {
		OdometerReading   uint   `json:"odometer_reading"`
		NextMaintenanceKm *uint  `json:"next_maintenance_km,omitempty"`
		Cost              *int64 `json:"cost_cents,omitempty"`
		PartsReplaced     string `json:"parts_replaced,omitempty"`
		Notes             string `json:"notes,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	ctx := c.Request().Context()

	var rec model.MaintenanceRecord
	if err := db.WithContext(ctx).Scopes(model.ScopedToContext(ctx)).
		First(&rec, "id = ?", id).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "maintenance record not found"})
	}
	if rec.Status == model.MaintenanceStatusCompleted {
		return c.JSON(http.StatusConflict, echo.Map{"error": "maintenance already completed"})
	}

	now := time.Now()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":           model.MaintenanceStatusCompleted,
			"completed_date":   &now,
			"odometer_reading": req.OdometerReading,
			"parts_replaced":   req.PartsReplaced,
			"notes":            req.Notes,
		}
		if req.NextMaintenanceKm != nil {
			updates["next_maintenance_km"] = req.NextMaintenanceKm
		}
		if req.Cost != nil {
			updates["cost"] = req.Cost
		}
		if err := tx.Model(&rec).Updates(updates).Error; err != nil {
			return err
		}

		vehicleUpdates := map[string]interface{}{
			"last_maintenance_km": req.OdometerReading,
		}
		if req.NextMaintenanceKm != nil {
			vehicleUpdates["next_maintenance_km"] = req.NextMaintenanceKm
		}
		return tx.Model(&model.Vehicle{}).
			Scopes(model.ScopedToContext(ctx)).
			Where("id = ?", rec.VehicleID).
			Updates(vehicleUpdates).Error
	})
	if err != nil {
		log.Error("Failed to complete maintenance", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "completion failed"})
	}

	return c.JSON(http.StatusOK, rec)
}
