package model

import (
	"time"

	"github.com/google/uuid"
)

// Tenant plan tiers, ordered by level
const (
	PlanFree       = "free"
	PlanBasic      = "basic"
	PlanPremium    = "premium"
	PlanEnterprise = "enterprise"
)

var planLevels = map[string]int{
	PlanFree:       0,
	PlanBasic:      1,
	PlanPremium:    2,
	PlanEnterprise: 3,
}

// Tenant represents an organization whose data and membership are isolated
// from all others. The slug is the routing key for subdomain resolution and
// never changes once assigned.
type Tenant struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Slug      string    `json:"slug" gorm:"type:varchar(50);uniqueIndex"`
	Name      string    `json:"name" gorm:"type:varchar(200)"`
	LegalName string    `json:"legal_name" gorm:"type:varchar(200)"`
	Document  string    `json:"document" gorm:"type:varchar(30);uniqueIndex"`
	Email     string    `json:"email" gorm:"type:varchar(100);uniqueIndex"`
	Phone     string    `json:"phone" gorm:"type:varchar(30)"`
	Address   string    `json:"address,omitempty" gorm:"type:varchar(250)"`

	Active   bool   `json:"active" gorm:"default:true;index:idx_tenants_active_plan"`
	Plan     string `json:"plan" gorm:"type:varchar(20);default:'free';index:idx_tenants_active_plan"`
	Settings string `json:"settings,omitempty" gorm:"type:jsonb"`

	SubscriptionExpiresAt *time.Time `json:"subscription_expires_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// PlanLevel returns the ordinal of the tenant's plan tier, -1 for unknown plans.
func (t *Tenant) PlanLevel() int {
	if level, ok := planLevels[t.Plan]; ok {
		return level
	}
	return -1
}
