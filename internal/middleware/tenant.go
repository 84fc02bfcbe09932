package middleware

import (
	"net/http"
	"strings"

	"fleetdesk/internal/model"
	"fleetdesk/internal/session"
	"fleetdesk/internal/tenant"
	"fleetdesk/internal/tenantctx"
	"fleetdesk/pkg/logger"
	"fleetdesk/prometheus"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Tenant resolution sources, in precedence order.
const (
	ResolvedFromSubdomain = "subdomain"
	ResolvedFromHeader    = "header"
	ResolvedFromSession   = "session"
	ResolvedFromUser      = "user"
	ResolvedFromNone      = "none"
)

// TenantResolverConfig wires the resolver to the tenancy core and the static
// allow-lists it consults.
type TenantResolverConfig struct {
	Registry    *tenant.Registry
	Memberships *tenant.Memberships
	Sessions    *session.Store

	// Subdomain labels that can never be tenant slugs
	ReservedSubdomains []string
	// Path prefixes reachable without tenant membership
	PublicPaths []string
	// Header carrying an explicit tenant id for API clients
	TenantHeader string
}

// TenantResolver determines the active tenant for each request through an
// ordered, short-circuiting strategy chain (subdomain, header, session,
// user's last selected tenant), validates the requester's membership in it,
// and places tenant and actor into the request context for downstream data
// access. Requests resolving no tenant proceed tenant-less; login,
// registration and the other public paths stay reachable either way.
func TenantResolver(cfg TenantResolverConfig) echo.MiddlewareFunc {
	reserved := make(map[string]bool, len(cfg.ReservedSubdomains))
	for _, s := range cfg.ReservedSubdomains {
		reserved[s] = true
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)
			user := CurrentUser(c)

			resolved, source := resolveTenant(c, cfg, reserved, user)
			prometheus.RecordTenantResolution(source)

			ctx := c.Request().Context()

			if user != nil {
				ctx = tenantctx.WithActor(ctx, tenantctx.Actor{
					ID:            user.ID,
					Email:         user.Email,
					Superuser:     user.Superuser,
					Authenticated: true,
				})
			}

			if resolved != nil {
				// Membership validation: superusers bypass, unauthenticated
				// requests only reach public paths anyway, everyone else
				// must hold an active membership unless the path is public
				if user != nil && !user.Superuser {
					ok, err := cfg.Memberships.HasPermission(ctx, user, resolved.ID, "")
					if err != nil {
						log.Error("Membership check failed", zap.Error(err))
						return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
					}
					if !ok && !isPublicPath(c.Request().URL.Path, cfg.PublicPaths) {
						log.Warn("Tenant access denied",
							zap.String("user_id", user.ID.String()),
							zap.String("tenant_id", resolved.ID.String()),
							zap.String("source", source))
						return c.JSON(http.StatusForbidden, echo.Map{"error": "access denied"})
					}
				}

				ctx = tenantctx.WithTenant(ctx, tenantctx.Tenant{
					ID:     resolved.ID,
					Slug:   resolved.Slug,
					Name:   resolved.Name,
					Active: resolved.Active,
				})
				c.Set("tenant", resolved)

				log.Debug("Tenant resolved",
					zap.String("tenant_id", resolved.ID.String()),
					zap.String("slug", resolved.Slug),
					zap.String("source", source))
			}

			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// resolveTenant walks the strategy chain and returns the first active tenant
// it finds along with the winning strategy name.
func resolveTenant(c echo.Context, cfg TenantResolverConfig, reserved map[string]bool, user *model.User) (*model.Tenant, string) {
	ctx := c.Request().Context()

	// Strategy 1: subdomain
	if slug, ok := subdomainSlug(c.Request().Host, reserved); ok {
		if t, err := cfg.Registry.FindActiveBySlug(ctx, slug); err == nil {
			return t, ResolvedFromSubdomain
		}
	}

	// Strategy 2: explicit header (API clients)
	if raw := c.Request().Header.Get(cfg.TenantHeader); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			if t, err := cfg.Registry.FindActiveByID(ctx, id); err == nil {
				return t, ResolvedFromHeader
			}
		}
	}

	// Strategy 3: session (authenticated users)
	if user != nil {
		if id, ok := cfg.Sessions.TenantID(c); ok {
			if t, err := cfg.Registry.FindActiveByID(ctx, id); err == nil {
				return t, ResolvedFromSession
			}
			// Stale reference: the stored tenant is gone or inactive
			cfg.Sessions.ClearTenantID(c)
		}
	}

	// Strategy 4: user's last selected tenant
	if user != nil && user.CurrentTenantID != nil {
		if t, err := cfg.Registry.FindActiveByID(ctx, *user.CurrentTenantID); err == nil {
			return t, ResolvedFromUser
		}
	}

	return nil, ResolvedFromNone
}

// subdomainSlug extracts a candidate tenant slug from the leftmost host
// label. Hosts with two or fewer labels have no subdomain; reserved labels
// are never slugs.
func subdomainSlug(host string, reserved map[string]bool) (string, bool) {
	hostname := strings.ToLower(host)
	if i := strings.IndexByte(hostname, ':'); i >= 0 {
		hostname = hostname[:i]
	}

	parts := strings.Split(hostname, ".")
	if len(parts) <= 2 {
		return "", false
	}

	slug := parts[0]
	if slug == "" || reserved[slug] {
		return "", false
	}
	return slug, true
}

func isPublicPath(path string, publicPaths []string) bool {
	for _, p := range publicPaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// CurrentTenant returns the tenant resolved for this request, or nil.
func CurrentTenant(c echo.Context) *model.Tenant {
	t, _ := c.Get("tenant").(*model.Tenant)
	return t
}

// RequireTenantContext rejects requests for which no tenant was resolved.
// Applied to route groups that operate on tenant-scoped records.
func RequireTenantContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if CurrentTenant(c) == nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "no tenant selected"})
		}
		return next(c)
	}
}
