package session

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContext(req *http.Request) (echo.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func TestSetAndReadTenantID(t *testing.T) {
	store := NewStore("tenant_id")
	id := uuid.New()

	c, rec := newContext(httptest.NewRequest(http.MethodGet, "/", nil))
	store.SetTenantID(c, id)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	cookie := cookies[0]
	assert.Equal(t, "tenant_id", cookie.Name)
	assert.Equal(t, id.String(), cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Positive(t, cookie.MaxAge)

	// The browser sends it back on the next request
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	c, _ = newContext(req)

	got, ok := store.TenantID(c)
	require.True(t, ok)
	assert.Equal(t, id, got)
}

func TestTenantIDAbsent(t *testing.T) {
	store := NewStore("tenant_id")
	c, _ := newContext(httptest.NewRequest(http.MethodGet, "/", nil))

	_, ok := store.TenantID(c)
	assert.False(t, ok)
}

func TestTenantIDMalformed(t *testing.T) {
	store := NewStore("tenant_id")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "tenant_id", Value: "not-a-uuid"})
	c, _ := newContext(req)

	_, ok := store.TenantID(c)
	assert.False(t, ok)
}

func TestClearTenantID(t *testing.T) {
	store := NewStore("tenant_id")
	c, rec := newContext(httptest.NewRequest(http.MethodGet, "/", nil))
	store.ClearTenantID(c)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Negative(t, cookies[0].MaxAge)
	assert.Empty(t, cookies[0].Value)
}
