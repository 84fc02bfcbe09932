package tenantctx

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenantRoundTrip(t *testing.T) {
	ctx := context.Background()

	_, ok := TenantFrom(ctx)
	assert.False(t, ok, "empty context should carry no tenant")

	want := Tenant{ID: uuid.New(), Slug: "acme", Name: "Acme Corp", Active: true}
	ctx = WithTenant(ctx, want)

	got, ok := TenantFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestActorRoundTrip(t *testing.T) {
	ctx := context.Background()

	_, ok := ActorFrom(ctx)
	assert.False(t, ok)

	want := Actor{ID: uuid.New(), Email: "a@acme.test", Superuser: true, Authenticated: true}
	ctx = WithActor(ctx, want)

	got, ok := ActorFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestSkipTenantCheck(t *testing.T) {
	ctx := context.Background()
	assert.False(t, SkipTenantCheck(ctx))
	assert.True(t, SkipTenantCheck(WithSkipTenantCheck(ctx)))
}

func TestDerivedContextDoesNotMutateParent(t *testing.T) {
	parent := WithTenant(context.Background(), Tenant{ID: uuid.New(), Slug: "parent"})
	child := WithTenant(parent, Tenant{ID: uuid.New(), Slug: "child"})

	pt, _ := TenantFrom(parent)
	ct, _ := TenantFrom(child)
	assert.Equal(t, "parent", pt.Slug)
	assert.Equal(t, "child", ct.Slug)
}

// Concurrent requests each carry their own context; none may observe another
// request's tenant.
func TestConcurrentContextsAreIsolated(t *testing.T) {
	const n = 100

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := uuid.New()
			ctx := WithTenant(context.Background(), Tenant{ID: id, Slug: id.String()})

			got, ok := TenantFrom(ctx)
			assert.True(t, ok)
			assert.Equal(t, id, got.ID)
		}()
	}
	wg.Wait()
}
