// Package tenant implements the tenancy core: the tenant registry, the
// membership store and the invitation engine. All mutations go through here
// so that uniqueness conflicts and ownership invariants are enforced in one
// place.
package tenant

import (
	"context"
	"errors"
	"time"

	"fleetdesk/internal/audit"
	"fleetdesk/internal/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NewTenant holds the attributes for registering a tenant. OwnerID is the
// user who becomes the first owner membership.
type NewTenant struct {
	Slug      string
	Name      string
	LegalName string
	Document  string
	Email     string
	Phone     string
	Address   string
	Plan      string
	Settings  string
	OwnerID   uuid.UUID
}

// Registry manages tenant records. Tenants are soft-disabled via the Active
// flag and never hard-deleted while members or records reference them.
type Registry struct {
	db    *gorm.DB
	audit *audit.Recorder
	log   *zap.Logger
}

// NewRegistry creates a tenant registry.
func NewRegistry(db *gorm.DB, rec *audit.Recorder, log *zap.Logger) *Registry {
	return &Registry{db: db, audit: rec, log: log}
}

// Create registers a new tenant together with its first owner membership in
// one transaction. Duplicate slug, document or email yields ErrConflict.
func (r *Registry) Create(ctx context.Context, nt NewTenant) (*model.Tenant, error) {
	plan := nt.Plan
	if plan == "" {
		plan = model.PlanFree
	}

	t := model.Tenant{
		ID:        uuid.New(),
		Slug:      nt.Slug,
		Name:      nt.Name,
		LegalName: nt.LegalName,
		Document:  nt.Document,
		Email:     nt.Email,
		Phone:     nt.Phone,
		Address:   nt.Address,
		Active:    true,
		Plan:      plan,
		Settings:  nt.Settings,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&t).Error; err != nil {
			return err
		}

		membership := model.Membership{
			UserID:   nt.OwnerID,
			TenantID: t.ID,
			Role:     model.RoleOwner,
			IsOwner:  true,
			Active:   true,
			JoinedAt: time.Now(),
		}
		return tx.Create(&membership).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrConflict
		}
		return nil, err
	}

	r.audit.Record(ctx, audit.Entry{
		TenantID:  &t.ID,
		UserID:    &nt.OwnerID,
		Action:    model.AuditActionCreate,
		ModelName: "Tenant",
		ObjectID:  t.ID.String(),
		Changes:   map[string]string{"slug": t.Slug, "name": t.Name},
	})

	r.log.Info("Tenant created",
		zap.String("slug", t.Slug),
		zap.String("tenant_id", t.ID.String()),
		zap.String("owner_id", nt.OwnerID.String()))

	return &t, nil
}

// FindByID finds a tenant by id regardless of the active flag.
func (r *Registry) FindByID(ctx context.Context, id uuid.UUID) (*model.Tenant, error) {
	var t model.Tenant
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// FindBySlug finds a tenant by its slug regardless of the active flag.
func (r *Registry) FindBySlug(ctx context.Context, slug string) (*model.Tenant, error) {
	var t model.Tenant
	if err := r.db.WithContext(ctx).First(&t, "slug = ?", slug).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// FindActiveByID finds an active tenant by id.
func (r *Registry) FindActiveByID(ctx context.Context, id uuid.UUID) (*model.Tenant, error) {
	var t model.Tenant
	if err := r.db.WithContext(ctx).First(&t, "id = ? AND active = ?", id, true).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// FindActiveBySlug finds an active tenant by its slug.
func (r *Registry) FindActiveBySlug(ctx context.Context, slug string) (*model.Tenant, error) {
	var t model.Tenant
	if err := r.db.WithContext(ctx).First(&t, "slug = ? AND active = ?", slug, true).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// ListActive returns all active tenants.
func (r *Registry) ListActive(ctx context.Context) ([]model.Tenant, error) {
	var tenants []model.Tenant
	if err := r.db.WithContext(ctx).Where("active = ?", true).Order("created_at").Find(&tenants).Error; err != nil {
		return nil, err
	}
	return tenants, nil
}

// Deactivate soft-disables a tenant. Memberships and records stay in place
// for referential integrity; resolution simply stops matching the tenant.
func (r *Registry) Deactivate(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Model(&model.Tenant{}).Where("id = ?", id).Update("active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	r.audit.Record(ctx, audit.Entry{
		TenantID:  &id,
		Action:    model.AuditActionUpdate,
		ModelName: "Tenant",
		ObjectID:  id.String(),
		Changes:   map[string]bool{"active": false},
	})

	return nil
}
