package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"fleetdesk/internal/audit"
	"fleetdesk/internal/model"
	"fleetdesk/internal/session"
	"fleetdesk/internal/tenant"
	"fleetdesk/internal/tenantctx"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type resolverFixture struct {
	db          *gorm.DB
	registry    *tenant.Registry
	memberships *tenant.Memberships
	sessions    *session.Store
	cfg         TenantResolverConfig
	echo        *echo.Echo
}

func newResolverFixture(t *testing.T) *resolverFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{}, &model.Tenant{}, &model.Membership{}, &model.AuditLog{},
	))

	log := zap.NewNop()
	rec := audit.NewRecorder(db, log)
	registry := tenant.NewRegistry(db, rec, log)
	memberships := tenant.NewMemberships(db, rec, log)
	sessions := session.NewStore("tenant_id")

	return &resolverFixture{
		db:          db,
		registry:    registry,
		memberships: memberships,
		sessions:    sessions,
		cfg: TenantResolverConfig{
			Registry:           registry,
			Memberships:        memberships,
			Sessions:           sessions,
			ReservedSubdomains: []string{"www", "api", "admin", "static"},
			PublicPaths:        []string{"/auth/login", "/auth/register", "/auth/logout", "/invitations/accept", "/health"},
			TenantHeader:       "X-Tenant-ID",
		},
		echo: echo.New(),
	}
}

func (f *resolverFixture) createUser(t *testing.T, email string) *model.User {
	t.Helper()
	u := model.User{Email: email, Password: "hashed", Name: email}
	require.NoError(t, f.db.Create(&u).Error)
	return &u
}

func (f *resolverFixture) createTenant(t *testing.T, slug string, owner *model.User) *model.Tenant {
	t.Helper()
	created, err := f.registry.Create(context.Background(), tenant.NewTenant{
		Slug:     slug,
		Name:     slug,
		Document: uuid.NewString(),
		Email:    slug + "@" + slug + ".test",
		OwnerID:  owner.ID,
	})
	require.NoError(t, err)
	return created
}

// run sends a request through the resolver and reports what the innermost
// handler observed.
func (f *resolverFixture) run(t *testing.T, req *http.Request, user *model.User) (*httptest.ResponseRecorder, *model.Tenant, context.Context) {
	t.Helper()

	rec := httptest.NewRecorder()
	c := f.echo.NewContext(req, rec)
	c.Set("logger", zap.NewNop())
	if user != nil {
		c.Set("user", user)
	}

	var seen *model.Tenant
	var seenCtx context.Context
	handler := TenantResolver(f.cfg)(func(c echo.Context) error {
		seen = CurrentTenant(c)
		seenCtx = c.Request().Context()
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))
	return rec, seen, seenCtx
}

func TestResolveFromSubdomain(t *testing.T) {
	f := newResolverFixture(t)
	owner := f.createUser(t, "owner@acme.test")
	created := f.createTenant(t, "acme", owner)

	req := httptest.NewRequest(http.MethodGet, "http://acme.fleetdesk.test/api/vehicles", nil)
	rec, seen, ctx := f.run(t, req, owner)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, created.ID, seen.ID)

	ct, ok := tenantctx.TenantFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, created.ID, ct.ID)
}

func TestSubdomainBeatsHeader(t *testing.T) {
	f := newResolverFixture(t)
	owner := f.createUser(t, "owner@both.test")
	sub := f.createTenant(t, "acme", owner)
	other := f.createTenant(t, "globex", owner)

	req := httptest.NewRequest(http.MethodGet, "http://acme.fleetdesk.test/api/vehicles", nil)
	req.Header.Set("X-Tenant-ID", other.ID.String())
	_, seen, _ := f.run(t, req, owner)

	require.NotNil(t, seen)
	assert.Equal(t, sub.ID, seen.ID)
}

func TestResolveFromHeader(t *testing.T) {
	f := newResolverFixture(t)
	owner := f.createUser(t, "owner@acme.test")
	created := f.createTenant(t, "acme", owner)

	req := httptest.NewRequest(http.MethodGet, "http://fleetdesk.test/api/vehicles", nil)
	req.Header.Set("X-Tenant-ID", created.ID.String())
	_, seen, _ := f.run(t, req, owner)

	require.NotNil(t, seen)
	assert.Equal(t, created.ID, seen.ID)
}

func TestHeaderWithGarbageIgnored(t *testing.T) {
	f := newResolverFixture(t)
	owner := f.createUser(t, "owner@acme.test")

	req := httptest.NewRequest(http.MethodGet, "http://fleetdesk.test/api/vehicles", nil)
	req.Header.Set("X-Tenant-ID", "not-a-uuid")
	rec, seen, _ := f.run(t, req, owner)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, seen)
}

func TestResolveFromSessionCookie(t *testing.T) {
	f := newResolverFixture(t)
	owner := f.createUser(t, "owner@acme.test")
	created := f.createTenant(t, "acme", owner)

	req := httptest.NewRequest(http.MethodGet, "http://fleetdesk.test/api/vehicles", nil)
	req.AddCookie(&http.Cookie{Name: "tenant_id", Value: created.ID.String()})
	_, seen, _ := f.run(t, req, owner)

	require.NotNil(t, seen)
	assert.Equal(t, created.ID, seen.ID)
}

func TestSessionIgnoredForAnonymous(t *testing.T) {
	f := newResolverFixture(t)
	owner := f.createUser(t, "owner@acme.test")
	created := f.createTenant(t, "acme", owner)

	req := httptest.NewRequest(http.MethodGet, "http://fleetdesk.test/health", nil)
	req.AddCookie(&http.Cookie{Name: "tenant_id", Value: created.ID.String()})
	_, seen, _ := f.run(t, req, nil)

	assert.Nil(t, seen, "session strategy only applies to authenticated users")
}

func TestStaleSessionClearedAndFallsThrough(t *testing.T) {
	f := newResolverFixture(t)
	owner := f.createUser(t, "owner@acme.test")
	gone := f.createTenant(t, "gone", owner)
	fallback := f.createTenant(t, "fallback", owner)
	require.NoError(t, f.registry.Deactivate(context.Background(), gone.ID))

	owner.CurrentTenantID = &fallback.ID

	req := httptest.NewRequest(http.MethodGet, "http://fleetdesk.test/api/vehicles", nil)
	req.AddCookie(&http.Cookie{Name: "tenant_id", Value: gone.ID.String()})
	rec, seen, _ := f.run(t, req, owner)

	require.NotNil(t, seen)
	assert.Equal(t, fallback.ID, seen.ID, "resolution falls through to the user's tenant")

	cleared := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == "tenant_id" && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared, "stale cookie must be deleted")
}

func TestResolveFromUserCurrentTenant(t *testing.T) {
	f := newResolverFixture(t)
	owner := f.createUser(t, "owner@acme.test")
	created := f.createTenant(t, "acme", owner)
	owner.CurrentTenantID = &created.ID

	req := httptest.NewRequest(http.MethodGet, "http://fleetdesk.test/api/vehicles", nil)
	_, seen, _ := f.run(t, req, owner)

	require.NotNil(t, seen)
	assert.Equal(t, created.ID, seen.ID)
}

func TestNoStrategyResolvesTenantless(t *testing.T) {
	f := newResolverFixture(t)
	user := f.createUser(t, "drifter@nowhere.test")

	req := httptest.NewRequest(http.MethodGet, "http://fleetdesk.test/api/vehicles", nil)
	rec, seen, ctx := f.run(t, req, user)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, seen)
	_, ok := tenantctx.TenantFrom(ctx)
	assert.False(t, ok)
}

func TestNonMemberForbidden(t *testing.T) {
	f := newResolverFixture(t)
	owner := f.createUser(t, "owner@acme.test")
	f.createTenant(t, "acme", owner)
	outsider := f.createUser(t, "outsider@other.test")

	req := httptest.NewRequest(http.MethodGet, "http://acme.fleetdesk.test/api/vehicles", nil)
	rec, _, _ := f.run(t, req, outsider)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestNonMemberAllowedOnPublicPath(t *testing.T) {
	f := newResolverFixture(t)
	owner := f.createUser(t, "owner@acme.test")
	f.createTenant(t, "acme", owner)
	outsider := f.createUser(t, "outsider@other.test")

	req := httptest.NewRequest(http.MethodGet, "http://acme.fleetdesk.test/auth/logout", nil)
	rec, _, _ := f.run(t, req, outsider)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSuperuserBypassesMembership(t *testing.T) {
	f := newResolverFixture(t)
	owner := f.createUser(t, "owner@acme.test")
	created := f.createTenant(t, "acme", owner)

	super := model.User{Email: "root@fleetdesk.test", Password: "x", Name: "root", Superuser: true}
	require.NoError(t, f.db.Create(&super).Error)

	req := httptest.NewRequest(http.MethodGet, "http://acme.fleetdesk.test/api/vehicles", nil)
	rec, seen, _ := f.run(t, req, &super)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, created.ID, seen.ID)
}

func TestAnonymousSubdomainResolves(t *testing.T) {
	f := newResolverFixture(t)
	owner := f.createUser(t, "owner@acme.test")
	created := f.createTenant(t, "acme", owner)

	req := httptest.NewRequest(http.MethodGet, "http://acme.fleetdesk.test/auth/login", nil)
	rec, seen, _ := f.run(t, req, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, created.ID, seen.ID)
}

func TestConcurrentRequestsStayIsolated(t *testing.T) {
	f := newResolverFixture(t)
	owner := f.createUser(t, "owner@both.test")
	acme := f.createTenant(t, "acme", owner)
	globex := f.createTenant(t, "globex", owner)

	hosts := map[string]uuid.UUID{
		"acme.fleetdesk.test":   acme.ID,
		"globex.fleetdesk.test": globex.ID,
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		for host, want := range hosts {
			wg.Add(1)
			go func(host string, want uuid.UUID) {
				defer wg.Done()
				req := httptest.NewRequest(http.MethodGet, "http://"+host+"/api/vehicles", nil)
				_, seen, ctx := f.run(t, req, owner)
				if assert.NotNil(t, seen) {
					assert.Equal(t, want, seen.ID)
				}
				ct, ok := tenantctx.TenantFrom(ctx)
				assert.True(t, ok)
				assert.Equal(t, want, ct.ID)
			}(host, want)
		}
	}
	wg.Wait()
}

func TestSubdomainSlug(t *testing.T) {
	reserved := map[string]bool{"www": true, "api": true}

	cases := []struct {
		host string
		want string
		ok   bool
	}{
		{"acme.fleetdesk.test", "acme", true},
		{"acme.fleetdesk.test:8080", "acme", true},
		{"ACME.fleetdesk.test", "acme", true},
		{"fleetdesk.test", "", false},
		{"localhost", "", false},
		{"www.fleetdesk.test", "", false},
		{"api.fleetdesk.test", "", false},
		{".fleetdesk.test", "", false},
	}
	for _, tt := range cases {
		got, ok := subdomainSlug(tt.host, reserved)
		assert.Equal(t, tt.ok, ok, tt.host)
		assert.Equal(t, tt.want, got, tt.host)
	}
}

func TestRequireTenantContext(t *testing.T) {
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/api/vehicles", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := RequireTenantContext(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.Set("tenant", &model.Tenant{ID: uuid.New()})
	require.NoError(t, handler(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}
