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

// CreateEmployee registers a personnel record in the current tenant
func CreateEmployee(c echo.Context) error {
	log := logger.FromContext(c)

	var req struct {
		EmployeeType string     `json:"employee_type"`
		FullName     string     `json:"full_name"`
		Document     string     `json:"document,omitempty"`
		BirthDate    *time.Time `json:"birth_date,omitempty"`
		Phone        string     `json:"phone,omitempty"`
		Email        string     `json:"email,omitempty"`
		Address      string     `json:"address,omitempty"`
		HireDate     *time.Time `json:"hire_date,omitempty"`
	}

	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.FullName == "" || req.EmployeeType == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "full_name and employee_type are required"})
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	ctx := c.Request().Context()

	e := model.Employee{
		EmployeeType: req.EmployeeType,
		Status:       model.EmployeeStatusActive,
		FullName:     req.FullName,
		Document:     req.Document,
		BirthDate:    req.BirthDate,
		Phone:        req.Phone,
		Email:        req.Email,
		Address:      req.Address,
		HireDate:     req.HireDate,
	}

	if err := db.WithContext(ctx).Create(&e).Error; err != nil {
		log.Error("Failed to create employee", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create employee"})
	}

	return c.JSON(http.StatusCreated, e)
}

// ListEmployees retrieves the current tenant's personnel
func ListEmployees(c echo.Context) error {
	log := logger.FromContext(c)

	defer prometheus.TrackDBOperation("query")(time.Now())
	ctx := c.Request().Context()

	q := db.WithContext(ctx).Scopes(model.ScopedToContext(ctx)).
		Preload("DriverProfile")
	if t := c.QueryParam("type"); t != "" {
		q = q.Where("employee_type = ?", t)
	}
	if status := c.QueryParam("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var employees []model.Employee
	if err := q.Order("full_name").Find(&employees).Error; err != nil {
		log.Error("Failed to list employees", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve employees"})
	}

	return c.JSON(http.StatusOK, employees)
}

// GetEmployee retrieves one employee, driver profile included when present
func GetEmployee(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid employee ID"})
	}

	ctx := c.Request().Context()

	var e model.Employee
	err = db.WithContext(ctx).Scopes(model.ScopedToContext(ctx)).
		Preload("DriverProfile").
		First(&e, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "employee not found"})
		}
		logger.FromContext(c).Error("Failed to load employee", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	return c.JSON(http.StatusOK, e)
}

// UpsertDriverProfile creates or updates the driver extension of an employee
func UpsertDriverProfile(c echo.Context) error {
	log := logger.FromContext(c)

	employeeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid employee ID"})
	}

	var req struct {
		LicenseNumber     string     `json:"license_number"`
		LicenseCategory   string     `json:"license_category,omitempty"`
		LicenseIssueDate  *time.Time `json:"license_issue_date,omitempty"`
		LicenseExpiryDate *time.Time `json:"license_expiry_date,omitempty"`
	}
	if err := c.Bind(&req); err != nil || req.LicenseNumber == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "license_number is required"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	ctx := c.Request().Context()

	var e model.Employee
	if err := db.WithContext(ctx).Scopes(model.ScopedToContext(ctx)).
		First(&e, "id = ?", employeeID).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "employee not found"})
	}
	if e.EmployeeType != model.EmployeeTypeDriver {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "only drivers carry a driver profile"})
	}

	var p model.DriverProfile
	err = db.WithContext(ctx).Scopes(model.ScopedToContext(ctx)).
		First(&p, "employee_id = ?", employeeID).Error
	switch {
	case err == nil:
		updates := map[string]interface{}{
			"license_number":   req.LicenseNumber,
			"license_category": req.LicenseCategory,
		}
		if req.LicenseIssueDate != nil {
			updates["license_issue_date"] = req.LicenseIssueDate
		}
		if req.LicenseExpiryDate != nil {
			updates["license_expiry_date"] = req.LicenseExpiryDate
		}
		if err := db.WithContext(ctx).Model(&p).Updates(updates).Error; err != nil {
			log.Error("Failed to update driver profile", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
		}
		return c.JSON(http.StatusOK, p)
	case errors.Is(err, gorm.ErrRecordNotFound):
		p = model.DriverProfile{
			EmployeeID:        employeeID,
			LicenseNumber:     req.LicenseNumber,
			LicenseCategory:   req.LicenseCategory,
			LicenseIssueDate:  req.LicenseIssueDate,
			LicenseExpiryDate: req.LicenseExpiryDate,
		}
		if err := db.WithContext(ctx).Create(&p).Error; err != nil {
			log.Error("Failed to create driver profile", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "creation failed"})
		}
		return c.JSON(http.StatusCreated, p)
	default:
		log.Error("Failed to load driver profile", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

// TerminateEmployee ends an employment relationship
func TerminateEmployee(c echo.Context) error {
	log := logger.FromContext(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid employee ID"})
	}

	ctx := c.Request().Context()

	var e model.Employee
	if err := db.WithContext(ctx).Scopes(model.ScopedToContext(ctx)).
		First(&e, "id = ?", id).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "employee not found"})
	}
	if e.Status == model.EmployeeStatusTerminated {
		return c.JSON(http.StatusConflict, echo.Map{"error": "employee already terminated"})
	}

	now := time.Now()
	if err := db.WithContext(ctx).Model(&e).Updates(map[string]interface{}{
		"status":           model.EmployeeStatusTerminated,
		"termination_date": &now,
	}).Error; err != nil {
		log.Error("Failed to terminate employee", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "termination failed"})
	}

	return c.JSON(http.StatusOK, e)
}
