package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InvitationTTL is how long an invitation stays redeemable.
const InvitationTTL = 7 * 24 * time.Hour

// Invitation is a token-based, time-limited offer for an email address to
// join a tenant with a specific role. Terminal states are accepted
// (AcceptedAt set) or expired; there is no revoke state.
type Invitation struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID    uuid.UUID `json:"tenant_id" gorm:"type:uuid;not null;index:idx_invitations_tenant_email"`
	InvitedByID uuid.UUID `json:"invited_by" gorm:"type:uuid;not null"`

	Email string `json:"email" gorm:"type:varchar(100);not null;index:idx_invitations_tenant_email"`
	Role  string `json:"role" gorm:"type:varchar(30);not null;default:'user'"`
	Token string `json:"-" gorm:"type:varchar(128);uniqueIndex"`

	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    time.Time  `json:"expires_at"`
	AcceptedAt   *time.Time `json:"accepted_at,omitempty"`
	AcceptedByID *uuid.UUID `json:"accepted_by,omitempty" gorm:"type:uuid"`

	// Relations
	Tenant Tenant `json:"tenant,omitempty" gorm:"foreignKey:TenantID"`
}

// BeforeCreate assigns the id and default expiry for new invitations
func (i *Invitation) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	if i.ExpiresAt.IsZero() {
		i.ExpiresAt = time.Now().Add(InvitationTTL)
	}
	return nil
}

// IsValid reports whether the invitation can still be accepted:
// not yet accepted and not past its expiry.
func (i *Invitation) IsValid() bool {
	return i.AcceptedAt == nil && time.Now().Before(i.ExpiresAt)
}
