package tenant

import (
	"testing"

	"fleetdesk/internal/audit"
	"fleetdesk/internal/model"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testCore struct {
	db          *gorm.DB
	registry    *Registry
	memberships *Memberships
	invitations *Invitations
}

func newTestCore(t *testing.T) *testCore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Tenant{},
		&model.Membership{},
		&model.Invitation{},
		&model.AuditLog{},
	))

	log := zap.NewNop()
	rec := audit.NewRecorder(db, log)
	memberships := NewMemberships(db, rec, log)

	return &testCore{
		db:          db,
		registry:    NewRegistry(db, rec, log),
		memberships: memberships,
		invitations: NewInvitations(db, memberships, rec, log),
	}
}

func (tc *testCore) createUser(t *testing.T, email string) *model.User {
	t.Helper()
	u := model.User{Email: email, Password: "hashed", Name: email}
	require.NoError(t, tc.db.Create(&u).Error)
	return &u
}

func (tc *testCore) createSuperuser(t *testing.T, email string) *model.User {
	t.Helper()
	u := model.User{Email: email, Password: "hashed", Name: email, Superuser: true}
	require.NoError(t, tc.db.Create(&u).Error)
	return &u
}
