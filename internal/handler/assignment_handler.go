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

// CreateAssignment puts a driver behind the wheel of an available vehicle
func CreateAssignment(c echo.Context) error {
	log := logger.FromContext(c)

	var req struct {
		VehicleID  uuid.UUID `json:"vehicle_id"`
		EmployeeID uuid.UUID `json:"employee_id"`
		StartDate  string    `json:"start_date"`
		Notes      string    `json:"notes,omitempty"`
	}

	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.VehicleID == uuid.Nil || req.EmployeeID == uuid.Nil || req.StartDate == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "vehicle_id, employee_id and start_date are required"})
	}
	if _, err := time.Parse("2006-01-02", req.StartDate); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "start_date must be YYYY-MM-DD"})
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	ctx := c.Request().Context()

	var assignment model.VehicleAssignment
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var v model.Vehicle
		if err := tx.Scopes(model.ScopedToContext(ctx)).
			First(&v, "id = ?", req.VehicleID).Error; err != nil {
			return echo.NewHTTPError(http.StatusNotFound, "vehicle not found")
		}
		if !v.IsAvailable() {
			return echo.NewHTTPError(http.StatusConflict, "vehicle is not available")
		}

		var e model.Employee
		if err := tx.Scopes(model.ScopedToContext(ctx)).
			Preload("DriverProfile").
			First(&e, "id = ?", req.EmployeeID).Error; err != nil {
			return echo.NewHTTPError(http.StatusNotFound, "employee not found")
		}
		if e.EmployeeType != model.EmployeeTypeDriver || !e.IsActive() {
			return echo.NewHTTPError(http.StatusBadRequest, "employee is not an active driver")
		}
		if !e.HasDriverProfile() || !e.DriverProfile.LicenseValid() {
			return echo.NewHTTPError(http.StatusBadRequest, "driver license is missing or expired")
		}

		assignment = model.VehicleAssignment{
			VehicleID:  v.ID,
			EmployeeID: e.ID,
			StartDate:  req.StartDate,
			Notes:      req.Notes,
		}
		if err := tx.Create(&assignment).Error; err != nil {
			return err
		}

		return tx.Model(&v).Update("status", model.VehicleStatusAssigned).Error
	})
	if err != nil {
		if he, ok := err.(*echo.HTTPError); ok {
			return c.JSON(he.Code, echo.Map{"error": he.Message})
		}
		log.Error("Failed to create assignment", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "assignment failed"})
	}

	return c.JSON(http.StatusCreated, assignment)
}

// ListAssignments retrieves assignments, active ones by default
func ListAssignments(c echo.Context) error {
	log := logger.FromContext(c)

	defer prometheus.TrackDBOperation("query")(time.Now())
	ctx := c.Request().Context()

	q := db.WithContext(ctx).Scopes(model.ScopedToContext(ctx)).
		Preload("Vehicle").Preload("Employee")
	if c.QueryParam("all") != "true" {
		q = q.Where("end_date IS NULL")
	}
	if vid := c.QueryParam("vehicle_id"); vid != "" {
		id, err := uuid.Parse(vid)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid vehicle_id"})
		}
		q = q.Where("vehicle_id = ?", id)
	}

	var assignments []model.VehicleAssignment
	if err := q.Order("start_date DESC").Find(&assignments).Error; err != nil {
		log.Error("Failed to list assignments", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve assignments"})
	}

	return c.JSON(http.StatusOK, assignments)
}

// EndAssignment closes an active assignment and frees the vehicle
func EndAssignment(c echo.Context) error {
	log := logger.FromContext(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid assignment ID"})
	}

	var req struct {
		EndDate string `json:"end_date,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.EndDate == "" {
		req.EndDate = time.Now().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", req.EndDate); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "end_date must be YYYY-MM-DD"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	ctx := c.Request().Context()

	var a model.VehicleAssignment
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Scopes(model.ScopedToContext(ctx)).
			First(&a, "id = ?", id).Error; err != nil {
			return echo.NewHTTPError(http.StatusNotFound, "assignment not found")
		}
		if !a.IsActive() {
			return echo.NewHTTPError(http.StatusConflict, "assignment already ended")
		}

		if err := tx.Model(&a).Update("end_date", req.EndDate).Error; err != nil {
			return err
		}

		// Free the vehicle unless another active assignment still holds it
		var active int64
		if err := tx.Model(&model.VehicleAssignment{}).
			Scopes(model.ScopedToContext(ctx)).
			Where("vehicle_id = ? AND end_date IS NULL AND id <> ?", a.VehicleID, a.ID).
			Count(&active).Error; err != nil {
			return err
		}
		if active == 0 {
			return tx.Model(&model.Vehicle{}).
				Scopes(model.ScopedToContext(ctx)).
				Where("id = ? AND status = ?", a.VehicleID, model.VehicleStatusAssigned).
				Update("status", model.VehicleStatusAvailable).Error
		}
		return nil
	})
	if err != nil {
		if he, ok := err.(*echo.HTTPError); ok {
			return c.JSON(he.Code, echo.Map{"error": he.Message})
		}
		log.Error("Failed to end assignment", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to end assignment"})
	}

	return c.JSON(http.StatusOK, a)
}
