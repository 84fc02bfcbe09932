package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Membership roles, ordered by privilege
const (
	RoleOwner   = "owner"
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleUser    = "user"
	RoleViewer  = "viewer"
)

// PermissionAll is the wildcard granted to owners.
const PermissionAll = "all"

// rolePermissions maps each role to its base permission set.
var rolePermissions = map[string][]string{
	RoleOwner:   {PermissionAll},
	RoleAdmin:   {"read", "write", "delete", "invite"},
	RoleManager: {"read", "write", "invite"},
	RoleUser:    {"read", "write"},
	RoleViewer:  {"read"},
}

// ValidRole reports whether the role is one of the known membership roles.
func ValidRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}

// PermissionList stores ad-hoc permission strings as a JSON array column.
type PermissionList []string

// Value implements driver.Valuer
func (p PermissionList) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (p *PermissionList) Scan(value interface{}) error {
	if value == nil {
		*p = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("unsupported permission list type %T", value)
	}
}

// Membership represents the association between a user and a tenant.
// The (user, tenant) pair is unique; memberships are soft-deleted via the
// Active flag to preserve the audit trail.
type Membership struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	UserID   uuid.UUID `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_memberships_user_tenant;index:idx_memberships_user_active"`
	TenantID uuid.UUID `json:"tenant_id" gorm:"type:uuid;not null;uniqueIndex:idx_memberships_user_tenant;index:idx_memberships_tenant_active"`

	Role        string         `json:"role" gorm:"type:varchar(30);not null;default:'user'"`
	IsOwner     bool           `json:"is_owner" gorm:"default:false"`
	Permissions PermissionList `json:"permissions" gorm:"type:jsonb"`

	Active     bool       `json:"active" gorm:"default:true;index:idx_memberships_user_active;index:idx_memberships_tenant_active"`
	JoinedAt   time.Time  `json:"joined_at" gorm:"autoCreateTime"`
	LastAccess *time.Time `json:"last_access,omitempty"`

	InvitedByID *uuid.UUID `json:"invited_by,omitempty" gorm:"type:uuid"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	User   User   `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Tenant Tenant `json:"tenant,omitempty" gorm:"foreignKey:TenantID"`
}

// BeforeCreate assigns the id for new memberships
func (m *Membership) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// EffectivePermissions returns the union of the role's base permission set
// and the membership's ad-hoc permissions.
func (m *Membership) EffectivePermissions() []string {
	seen := make(map[string]bool)
	perms := make([]string, 0, len(m.Permissions)+4)
	for _, p := range rolePermissions[m.Role] {
		if !seen[p] {
			seen[p] = true
			perms = append(perms, p)
		}
	}
	for _, p := range m.Permissions {
		if !seen[p] {
			seen[p] = true
			perms = append(perms, p)
		}
	}
	return perms
}

// HasPermission reports whether the membership grants the given permission.
func (m *Membership) HasPermission(permission string) bool {
	for _, p := range m.EffectivePermissions() {
		if p == PermissionAll || p == permission {
			return true
		}
	}
	return false
}
