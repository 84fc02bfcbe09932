package tenant

import (
	"context"
	"testing"
	"time"

	"fleetdesk/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func invitationFixture(t *testing.T) (*testCore, *model.Tenant, *model.User) {
	t.Helper()
	tc := newTestCore(t)
	owner := tc.createUser(t, "owner@acme.test")
	created, err := tc.registry.Create(context.Background(), NewTenant{
		Slug: "acme", Name: "Acme", Document: "111", Email: "a@acme.test", OwnerID: owner.ID,
	})
	require.NoError(t, err)
	return tc, created, owner
}

func TestInvitationLifecycle(t *testing.T) {
	tc, created, owner := invitationFixture(t)
	ctx := context.Background()

	inv, err := tc.invitations.Create(ctx, created.ID, owner, "new@acme.test", model.RoleManager)
	require.NoError(t, err)
	assert.NotEmpty(t, inv.Token)
	assert.True(t, inv.IsValid())
	assert.WithinDuration(t, time.Now().Add(model.InvitationTTL), inv.ExpiresAt, time.Minute)

	found, err := tc.invitations.FindByToken(ctx, inv.Token)
	require.NoError(t, err)
	assert.Equal(t, "acme", found.Tenant.Slug)

	invitee := tc.createUser(t, "new@acme.test")
	m, err := tc.invitations.Accept(ctx, found, invitee)
	require.NoError(t, err)
	assert.Equal(t, model.RoleManager, m.Role)
	assert.False(t, m.IsOwner)
	require.NotNil(t, m.InvitedByID)
	assert.Equal(t, owner.ID, *m.InvitedByID)

	active, err := tc.memberships.GetActive(ctx, invitee.ID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleManager, active.Role)
}

func TestInvitationOwnerRoleRejected(t *testing.T) {
	tc, created, owner := invitationFixture(t)

	_, err := tc.invitations.Create(context.Background(), created.ID, owner, "x@acme.test", model.RoleOwner)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = tc.invitations.Create(context.Background(), created.ID, owner, "x@acme.test", "emperor")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestInvitationRequiresInvitePermission(t *testing.T) {
	tc, created, owner := invitationFixture(t)
	ctx := context.Background()

	viewer := tc.createUser(t, "viewer@acme.test")
	_, err := tc.memberships.AddMember(ctx, created.ID, viewer.ID, model.RoleViewer, false, &owner.ID)
	require.NoError(t, err)

	_, err = tc.invitations.Create(ctx, created.ID, viewer, "x@acme.test", model.RoleUser)
	assert.ErrorIs(t, err, ErrForbidden)

	outsider := tc.createUser(t, "outsider@other.test")
	_, err = tc.invitations.Create(ctx, created.ID, outsider, "x@acme.test", model.RoleUser)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestInvitationExistingMemberRejected(t *testing.T) {
	tc, created, owner := invitationFixture(t)

	_, err := tc.invitations.Create(context.Background(), created.ID, owner, "owner@acme.test", model.RoleUser)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestInvitationPendingDuplicateRejected(t *testing.T) {
	tc, created, owner := invitationFixture(t)
	ctx := context.Background()

	_, err := tc.invitations.Create(ctx, created.ID, owner, "new@acme.test", model.RoleUser)
	require.NoError(t, err)

	_, err = tc.invitations.Create(ctx, created.ID, owner, "new@acme.test", model.RoleUser)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestInvitationExpiredAfterAcceptableWindow(t *testing.T) {
	tc, created, owner := invitationFixture(t)
	ctx := context.Background()

	inv, err := tc.invitations.Create(ctx, created.ID, owner, "late@acme.test", model.RoleUser)
	require.NoError(t, err)

	require.NoError(t, tc.db.Model(&model.Invitation{}).Where("id = ?", inv.ID).
		Update("expires_at", time.Now().Add(-time.Hour)).Error)

	found, err := tc.invitations.FindByToken(ctx, inv.Token)
	require.NoError(t, err)
	assert.False(t, found.IsValid())

	invitee := tc.createUser(t, "late@acme.test")
	_, err = tc.invitations.Accept(ctx, found, invitee)
	assert.ErrorIs(t, err, ErrExpired)

	// Once the previous invite expired a fresh one can be issued
	_, err = tc.invitations.Create(ctx, created.ID, owner, "late@acme.test", model.RoleUser)
	assert.NoError(t, err)
}

func TestInvitationRejoinAfterRemoval(t *testing.T) {
	tc, created, owner := invitationFixture(t)
	ctx := context.Background()

	member := tc.createUser(t, "back@acme.test")
	m, err := tc.memberships.AddMember(ctx, created.ID, member.ID, model.RoleUser, false, &owner.ID)
	require.NoError(t, err)
	require.NoError(t, tc.memberships.RemoveMember(ctx, m.ID))

	// Removal is a soft delete, so a fresh invitation is permitted and
	// accepting it must reactivate the old row rather than collide with it
	inv, err := tc.invitations.Create(ctx, created.ID, owner, "back@acme.test", model.RoleManager)
	require.NoError(t, err)

	got, err := tc.invitations.Accept(ctx, inv, member)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
	assert.True(t, got.Active)
	assert.Equal(t, model.RoleManager, got.Role)
	assert.NotNil(t, inv.AcceptedAt)

	active, err := tc.memberships.GetActive(ctx, member.ID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleManager, active.Role)
}

func TestInvitationEmailMismatch(t *testing.T) {
	tc, created, owner := invitationFixture(t)
	ctx := context.Background()

	inv, err := tc.invitations.Create(ctx, created.ID, owner, "right@acme.test", model.RoleUser)
	require.NoError(t, err)

	wrong := tc.createUser(t, "wrong@acme.test")
	_, err = tc.invitations.Accept(ctx, inv, wrong)
	assert.ErrorIs(t, err, ErrEmailMismatch)
}

func TestInvitationSingleUse(t *testing.T) {
	tc, created, owner := invitationFixture(t)
	ctx := context.Background()

	inv, err := tc.invitations.Create(ctx, created.ID, owner, "once@acme.test", model.RoleUser)
	require.NoError(t, err)

	invitee := tc.createUser(t, "once@acme.test")
	_, err = tc.invitations.Accept(ctx, inv, invitee)
	require.NoError(t, err)

	reloaded, err := tc.invitations.FindByToken(ctx, inv.Token)
	require.NoError(t, err)
	_, err = tc.invitations.Accept(ctx, reloaded, invitee)
	assert.ErrorIs(t, err, ErrAlreadyUsed)
}

func TestInvitationUnknownToken(t *testing.T) {
	tc, _, _ := invitationFixture(t)

	_, err := tc.invitations.FindByToken(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, ErrInvitationNotFound)
}
