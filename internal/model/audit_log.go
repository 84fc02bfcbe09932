package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Audit actions
const (
	AuditActionCreate           = "create"
	AuditActionUpdate           = "update"
	AuditActionDelete           = "delete"
	AuditActionLogin            = "login"
	AuditActionLogout           = "logout"
	AuditActionPermissionChange = "permission_change"
)

// AuditLog records tenant-related operations for the audit trail. Rows are
// written by the audit recorder and never updated or deleted.
type AuditLog struct {
	ID       uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID *uuid.UUID `json:"tenant_id,omitempty" gorm:"type:uuid;index:idx_audit_tenant_time"`
	UserID   *uuid.UUID `json:"user_id,omitempty" gorm:"type:uuid;index"`

	Action    string `json:"action" gorm:"type:varchar(30);not null"`
	ModelName string `json:"model_name" gorm:"type:varchar(100)"`
	ObjectID  string `json:"object_id,omitempty" gorm:"type:varchar(255)"`
	Changes   string `json:"changes,omitempty" gorm:"type:jsonb"`

	IPAddress string `json:"ip_address,omitempty" gorm:"type:varchar(45)"`
	UserAgent string `json:"user_agent,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at" gorm:"index:idx_audit_tenant_time"`
}

// BeforeCreate assigns the id for new audit rows
func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
