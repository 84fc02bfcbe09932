package tenant

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"fleetdesk/internal/audit"
	"fleetdesk/internal/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const tokenBytes = 32

// Invitations is the invitation engine: it issues, validates and redeems the
// time-limited tokens that convert into memberships.
type Invitations struct {
	db          *gorm.DB
	memberships *Memberships
	audit       *audit.Recorder
	log         *zap.Logger
}

// NewInvitations creates an invitation engine.
func NewInvitations(db *gorm.DB, memberships *Memberships, rec *audit.Recorder, log *zap.Logger) *Invitations {
	return &Invitations{db: db, memberships: memberships, audit: rec, log: log}
}

// newToken returns a URL-safe token with cryptographically strong randomness.
func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate invitation token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Create issues an invitation for email to join the tenant with the given
// role. The inviter needs the "invite" permission; owners can never be
// invited; an email with an active membership or an outstanding unexpired
// invitation cannot be invited again.
func (s *Invitations) Create(ctx context.Context, tenantID uuid.UUID, inviter *model.User, email, role string) (*model.Invitation, error) {
	if role == model.RoleOwner || !model.ValidRole(role) {
		return nil, fmt.Errorf("%w: role %q is not invitable", ErrValidation, role)
	}

	ok, err := s.memberships.HasPermission(ctx, inviter, tenantID, "invite")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}

	// A user already holding an active membership cannot be invited again
	var members int64
	err = s.db.WithContext(ctx).Model(&model.Membership{}).
		Joins("JOIN users ON users.id = memberships.user_id").
		Where("memberships.tenant_id = ? AND memberships.active = ? AND users.email = ?", tenantID, true, email).
		Count(&members).Error
	if err != nil {
		return nil, err
	}
	if members > 0 {
		return nil, fmt.Errorf("%w: %s is already a member of this tenant", ErrValidation, email)
	}

	// At most one outstanding invitation per (tenant, email)
	var pending int64
	err = s.db.WithContext(ctx).Model(&model.Invitation{}).
		Where("tenant_id = ? AND email = ? AND accepted_at IS NULL AND expires_at > ?", tenantID, email, time.Now()).
		Count(&pending).Error
	if err != nil {
		return nil, err
	}
	if pending > 0 {
		return nil, fmt.Errorf("%w: a pending invitation already exists for %s", ErrValidation, email)
	}

	// Retry on the vanishingly unlikely token collision
	var inv model.Invitation
	for attempt := 0; attempt < 3; attempt++ {
		token, err := newToken()
		if err != nil {
			return nil, err
		}

		inv = model.Invitation{
			TenantID:    tenantID,
			InvitedByID: inviter.ID,
			Email:       email,
			Role:        role,
			Token:       token,
		}

		err = s.db.WithContext(ctx).Create(&inv).Error
		if err == nil {
			break
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, err
		}
		if attempt == 2 {
			return nil, ErrConflict
		}
	}

	s.audit.Record(ctx, audit.Entry{
		TenantID:  &tenantID,
		UserID:    &inviter.ID,
		Action:    model.AuditActionCreate,
		ModelName: "Invitation",
		ObjectID:  inv.ID.String(),
		Changes:   map[string]string{"email": email, "role": role},
	})

	s.log.Info("Invitation created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("email", email),
		zap.String("role", role))

	return &inv, nil
}

// FindByToken resolves an invitation from its token.
func (s *Invitations) FindByToken(ctx context.Context, token string) (*model.Invitation, error) {
	var inv model.Invitation
	err := s.db.WithContext(ctx).Preload("Tenant").First(&inv, "token = ?", token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvitationNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// Accept redeems the invitation for the user: it stamps the acceptance
// fields and creates the membership atomically. The caller is responsible
// for making the new tenant the user's active context afterwards.
func (s *Invitations) Accept(ctx context.Context, inv *model.Invitation, user *model.User) (*model.Membership, error) {
	if inv.AcceptedAt != nil {
		return nil, ErrAlreadyUsed
	}
	if !time.Now().Before(inv.ExpiresAt) {
		return nil, ErrExpired
	}
	if user.Email != inv.Email {
		return nil, ErrEmailMismatch
	}

	var membership *model.Membership
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		// Guard against a concurrent accept of the same token
		result := tx.Model(&model.Invitation{}).
			Where("id = ? AND accepted_at IS NULL", inv.ID).
			Updates(map[string]interface{}{"accepted_at": now, "accepted_by_id": user.ID})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrAlreadyUsed
		}
		inv.AcceptedAt = &now
		inv.AcceptedByID = &user.ID

		// The invitee may hold a soft-removed membership from an earlier
		// stint in the tenant; the shared write path reactivates it with
		// the invited role instead of tripping the uniqueness index.
		m, _, err := addMemberTx(tx, inv.TenantID, user.ID, inv.Role, false, &inv.InvitedByID)
		if err != nil {
			return err
		}
		membership = m
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrConflict
		}
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		TenantID:  &inv.TenantID,
		UserID:    &user.ID,
		Action:    model.AuditActionCreate,
		ModelName: "Membership",
		ObjectID:  membership.ID.String(),
		Changes:   map[string]string{"via": "invitation", "role": inv.Role},
	})

	s.log.Info("Invitation accepted",
		zap.String("tenant_id", inv.TenantID.String()),
		zap.String("user_id", user.ID.String()),
		zap.String("role", inv.Role))

	return membership, nil
}
