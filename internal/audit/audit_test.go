package audit

import (
	"context"
	"testing"

	"fleetdesk/internal/model"
	"fleetdesk/internal/tenantctx"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testRecorder(t *testing.T) (*Recorder, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.AuditLog{}))
	return NewRecorder(db, zap.NewNop()), db
}

func TestRecordExplicitEntry(t *testing.T) {
	rec, db := testRecorder(t)
	tenantID := uuid.New()
	userID := uuid.New()

	rec.Record(context.Background(), Entry{
		TenantID:  &tenantID,
		UserID:    &userID,
		Action:    model.AuditActionCreate,
		ModelName: "Vehicle",
		ObjectID:  "abc",
		Changes:   map[string]string{"plate": "ABC1234"},
		IPAddress: "10.0.0.1",
	})

	var row model.AuditLog
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, tenantID, *row.TenantID)
	assert.Equal(t, userID, *row.UserID)
	assert.Equal(t, model.AuditActionCreate, row.Action)
	assert.JSONEq(t, `{"plate":"ABC1234"}`, row.Changes)
	assert.Equal(t, "10.0.0.1", row.IPAddress)
}

func TestRecordFallsBackToContext(t *testing.T) {
	rec, db := testRecorder(t)
	tenantID := uuid.New()
	actorID := uuid.New()

	ctx := tenantctx.WithTenant(context.Background(), tenantctx.Tenant{ID: tenantID})
	ctx = tenantctx.WithActor(ctx, tenantctx.Actor{ID: actorID, Authenticated: true})

	rec.Record(ctx, Entry{Action: model.AuditActionUpdate, ModelName: "Tenant"})

	var row model.AuditLog
	require.NoError(t, db.First(&row).Error)
	require.NotNil(t, row.TenantID)
	assert.Equal(t, tenantID, *row.TenantID)
	require.NotNil(t, row.UserID)
	assert.Equal(t, actorID, *row.UserID)
}

func TestRecordWithoutContextLeavesNils(t *testing.T) {
	rec, db := testRecorder(t)

	rec.Record(context.Background(), Entry{Action: model.AuditActionLogout, ModelName: "User"})

	var row model.AuditLog
	require.NoError(t, db.First(&row).Error)
	assert.Nil(t, row.TenantID)
	assert.Nil(t, row.UserID)
}
