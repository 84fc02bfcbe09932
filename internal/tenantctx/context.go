// Package tenantctx carries the resolved tenant and acting user through a
// request's context.Context. Every data access that needs the current tenant
// reads it from here instead of a shared mutable variable, so concurrent
// requests can never observe each other's tenant.
package tenantctx

import (
	"context"

	"github.com/google/uuid"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey int

const (
	tenantContextKey contextKey = iota
	actorContextKey
	skipTenantCheckKey
)

// Tenant is the minimal tenant information stored in context. The full
// tenant record can be fetched from the database when needed.
type Tenant struct {
	ID     uuid.UUID
	Slug   string
	Name   string
	Active bool
}

// Actor is the minimal acting-user information stored in context.
type Actor struct {
	ID            uuid.UUID
	Email         string
	Superuser     bool
	Authenticated bool
}

// WithTenant returns a context carrying the resolved tenant.
func WithTenant(ctx context.Context, t Tenant) context.Context {
	return context.WithValue(ctx, tenantContextKey, t)
}

// TenantFrom returns the tenant carried by the context, if any.
func TenantFrom(ctx context.Context) (Tenant, bool) {
	t, ok := ctx.Value(tenantContextKey).(Tenant)
	return t, ok
}

// WithActor returns a context carrying the acting user.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, a)
}

// ActorFrom returns the actor carried by the context, if any.
func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorContextKey).(Actor)
	return a, ok
}

// WithSkipTenantCheck marks the context as allowed to persist records
// without a tenant. Reserved for trusted system code: migrations, fixtures
// and cloning utilities.
func WithSkipTenantCheck(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipTenantCheckKey, true)
}

// SkipTenantCheck reports whether the missing-tenant guard is bypassed.
func SkipTenantCheck(ctx context.Context) bool {
	v, _ := ctx.Value(skipTenantCheckKey).(bool)
	return v
}
