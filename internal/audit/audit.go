// Package audit writes the tenant audit trail. Recording is fire-and-forget
// from the caller's perspective: a failed audit write is logged and never
// fails the primary operation.
package audit

import (
	"context"
	"encoding/json"

	"fleetdesk/internal/model"
	"fleetdesk/internal/tenantctx"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Entry describes one auditable operation.
type Entry struct {
	TenantID  *uuid.UUID
	UserID    *uuid.UUID
	Action    string
	ModelName string
	ObjectID  string
	Changes   interface{}
	IPAddress string
	UserAgent string
}

// Recorder persists audit entries.
type Recorder struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewRecorder creates an audit recorder.
func NewRecorder(db *gorm.DB, log *zap.Logger) *Recorder {
	return &Recorder{db: db, log: log}
}

// Record writes one audit row. Tenant and user fall back to the values
// carried by ctx when the entry leaves them unset. Errors are swallowed
// after logging.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	row := model.AuditLog{
		TenantID:  e.TenantID,
		UserID:    e.UserID,
		Action:    e.Action,
		ModelName: e.ModelName,
		ObjectID:  e.ObjectID,
		IPAddress: e.IPAddress,
		UserAgent: e.UserAgent,
	}

	if row.TenantID == nil {
		if t, ok := tenantctx.TenantFrom(ctx); ok {
			id := t.ID
			row.TenantID = &id
		}
	}
	if row.UserID == nil {
		if a, ok := tenantctx.ActorFrom(ctx); ok && a.Authenticated {
			id := a.ID
			row.UserID = &id
		}
	}

	if e.Changes != nil {
		b, err := json.Marshal(e.Changes)
		if err != nil {
			r.log.Warn("Failed to encode audit changes",
				zap.String("action", e.Action),
				zap.String("model", e.ModelName),
				zap.Error(err))
		} else {
			row.Changes = string(b)
		}
	}

	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		r.log.Warn("Failed to write audit log",
			zap.String("action", e.Action),
			zap.String("model", e.ModelName),
			zap.String("object_id", e.ObjectID),
			zap.Error(err))
	}
}
