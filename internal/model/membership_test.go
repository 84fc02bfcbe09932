package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEffectivePermissions(t *testing.T) {
	owner := Membership{Role: RoleOwner}
	assert.Equal(t, []string{PermissionAll}, owner.EffectivePermissions())

	// Ad-hoc grants extend the role set without duplicates
	m := Membership{Role: RoleUser, Permissions: PermissionList{"export", "read"}}
	assert.ElementsMatch(t, []string{"read", "write", "export"}, m.EffectivePermissions())
}

func TestMembershipHasPermission(t *testing.T) {
	cases := []struct {
		role       string
		permission string
		want       bool
	}{
		{RoleOwner, "anything-at-all", true},
		{RoleAdmin, "delete", true},
		{RoleAdmin, "invite", true},
		{RoleManager, "invite", true},
		{RoleManager, "delete", false},
		{RoleUser, "write", true},
		{RoleUser, "invite", false},
		{RoleViewer, "read", true},
		{RoleViewer, "write", false},
	}
	for _, tt := range cases {
		m := Membership{Role: tt.role}
		assert.Equal(t, tt.want, m.HasPermission(tt.permission), "%s/%s", tt.role, tt.permission)
	}
}

func TestValidRole(t *testing.T) {
	for _, role := range []string{RoleOwner, RoleAdmin, RoleManager, RoleUser, RoleViewer} {
		assert.True(t, ValidRole(role))
	}
	assert.False(t, ValidRole("emperor"))
	assert.False(t, ValidRole(""))
}
