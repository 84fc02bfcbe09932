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
	"gorm.io/gorm/clause"
)

// Memberships is the membership store: the user↔tenant association with
// role, ownership flag and the derived permission set.
type Memberships struct {
	db    *gorm.DB
	audit *audit.Recorder
	log   *zap.Logger
}

// NewMemberships creates a membership store.
func NewMemberships(db *gorm.DB, rec *audit.Recorder, log *zap.Logger) *Memberships {
	return &Memberships{db: db, audit: rec, log: log}
}

type memberOutcome int

const (
	memberExisting memberOutcome = iota
	memberCreated
	memberRejoined
)

// addMemberTx is the write path shared by AddMember and invitation
// acceptance, usable on an open transaction handle. The (user, tenant) pair
// is unique and removal is a soft delete, so a previously removed membership
// is reactivated in place with the new role rather than re-inserted.
func addMemberTx(db *gorm.DB, tenantID, userID uuid.UUID, role string, isOwner bool, invitedBy *uuid.UUID) (*model.Membership, memberOutcome, error) {
	var existing model.Membership
	err := db.
		Where("user_id = ? AND tenant_id = ?", userID, tenantID).
		First(&existing).Error
	switch {
	case err == nil && existing.Active:
		return &existing, memberExisting, nil
	case err == nil:
		now := time.Now()
		updates := map[string]interface{}{
			"active":        true,
			"role":          role,
			"is_owner":      isOwner,
			"joined_at":     now,
			"invited_by_id": invitedBy,
		}
		if err := db.Model(&existing).Updates(updates).Error; err != nil {
			return nil, memberExisting, err
		}
		existing.Active = true
		existing.Role = role
		existing.IsOwner = isOwner
		existing.JoinedAt = now
		existing.InvitedByID = invitedBy
		return &existing, memberRejoined, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, memberExisting, err
	}

	m := model.Membership{
		UserID:      userID,
		TenantID:    tenantID,
		Role:        role,
		IsOwner:     isOwner,
		Active:      true,
		JoinedAt:    time.Now(),
		InvitedByID: invitedBy,
	}

	if err := db.Create(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost the race against a concurrent add for the same pair
			if err := db.
				Where("user_id = ? AND tenant_id = ?", userID, tenantID).
				First(&existing).Error; err != nil {
				return nil, memberExisting, err
			}
			return &existing, memberExisting, nil
		}
		return nil, memberExisting, err
	}
	return &m, memberCreated, nil
}

// AddMember adds a user to a tenant with the given role. The operation is
// idempotent on the (user, tenant) pair: an existing active membership is
// returned as-is instead of erroring, a soft-removed one is reactivated with
// the requested role, and a concurrent insert losing the uniqueness race
// falls back to reading the winner's row.
func (s *Memberships) AddMember(ctx context.Context, tenantID, userID uuid.UUID, role string, isOwner bool, invitedBy *uuid.UUID) (*model.Membership, error) {
	m, outcome, err := addMemberTx(s.db.WithContext(ctx), tenantID, userID, role, isOwner, invitedBy)
	if err != nil {
		return nil, err
	}

	switch outcome {
	case memberCreated:
		s.audit.Record(ctx, audit.Entry{
			TenantID:  &tenantID,
			UserID:    invitedBy,
			Action:    model.AuditActionCreate,
			ModelName: "Membership",
			ObjectID:  m.ID.String(),
			Changes:   map[string]interface{}{"user_id": userID, "role": role, "is_owner": isOwner},
		})
		s.log.Info("Member added to tenant",
			zap.String("tenant_id", tenantID.String()),
			zap.String("user_id", userID.String()),
			zap.String("role", role))
	case memberRejoined:
		s.audit.Record(ctx, audit.Entry{
			TenantID:  &tenantID,
			UserID:    invitedBy,
			Action:    model.AuditActionUpdate,
			ModelName: "Membership",
			ObjectID:  m.ID.String(),
			Changes:   map[string]interface{}{"user_id": userID, "role": role, "active": true},
		})
		s.log.Info("Member reactivated in tenant",
			zap.String("tenant_id", tenantID.String()),
			zap.String("user_id", userID.String()),
			zap.String("role", role))
	}

	return m, nil
}

// Get returns the membership for a (user, tenant) pair, active or not.
func (s *Memberships) Get(ctx context.Context, userID, tenantID uuid.UUID) (*model.Membership, error) {
	var m model.Membership
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND tenant_id = ?", userID, tenantID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMembershipNotFound
		}
		return nil, err
	}
	return &m, nil
}

// GetActive returns the active membership for a (user, tenant) pair.
func (s *Memberships) GetActive(ctx context.Context, userID, tenantID uuid.UUID) (*model.Membership, error) {
	var m model.Membership
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND tenant_id = ? AND active = ?", userID, tenantID, true).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMembershipNotFound
		}
		return nil, err
	}
	return &m, nil
}

// ListForUser returns the user's active memberships with tenants preloaded.
func (s *Memberships) ListForUser(ctx context.Context, userID uuid.UUID) ([]model.Membership, error) {
	var memberships []model.Membership
	err := s.db.WithContext(ctx).
		Preload("Tenant").
		Where("user_id = ? AND active = ?", userID, true).
		Find(&memberships).Error
	if err != nil {
		return nil, err
	}
	return memberships, nil
}

// HasPermission checks whether the user can act in the tenant. Superusers
// always pass. With an empty permission the check only confirms an active
// membership exists; otherwise the membership's effective permission set
// must contain the permission (or the "all" wildcard).
func (s *Memberships) HasPermission(ctx context.Context, user *model.User, tenantID uuid.UUID, permission string) (bool, error) {
	if user.Superuser {
		return true, nil
	}

	m, err := s.GetActive(ctx, user.ID, tenantID)
	if err != nil {
		if errors.Is(err, ErrMembershipNotFound) {
			return false, nil
		}
		return false, err
	}

	if permission == "" {
		return true, nil
	}
	return m.HasPermission(permission), nil
}

// RemoveMember soft-deletes a membership. Removing the tenant's last active
// owner is refused: a tenant with members must always retain at least one.
func (s *Memberships) RemoveMember(ctx context.Context, membershipID uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m model.Membership
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&m, "id = ?", membershipID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMembershipNotFound
			}
			return err
		}

		if m.IsOwner && m.Active {
			// Lock the remaining owner rows so two concurrent removals
			// cannot both pass the count and leave the tenant ownerless
			var owners []model.Membership
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("tenant_id = ? AND is_owner = ? AND active = ? AND id <> ?", m.TenantID, true, true, m.ID).
				Find(&owners).Error; err != nil {
				return err
			}
			if len(owners) == 0 {
				return ErrLastOwner
			}
		}

		if err := tx.Model(&m).Update("active", false).Error; err != nil {
			return err
		}

		s.audit.Record(ctx, audit.Entry{
			TenantID:  &m.TenantID,
			Action:    model.AuditActionDelete,
			ModelName: "Membership",
			ObjectID:  m.ID.String(),
			Changes:   map[string]interface{}{"user_id": m.UserID, "active": false},
		})
		return nil
	})
	return err
}

// TouchLastAccess records when the member last acted inside the tenant.
func (s *Memberships) TouchLastAccess(ctx context.Context, userID, tenantID uuid.UUID) error {
	return s.db.WithContext(ctx).Model(&model.Membership{}).
		Where("user_id = ? AND tenant_id = ?", userID, tenantID).
		Update("last_access", time.Now()).Error
}
