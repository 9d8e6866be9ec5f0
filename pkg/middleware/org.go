package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/covault/covault/pkg/authz"
	"github.com/covault/covault/pkg/httputil"
	"github.com/covault/covault/pkg/orgcache"
	"github.com/covault/covault/pkg/orgs"
)

// MemberStore resolves the caller's membership in an organization
type MemberStore interface {
	GetOrgUserByOrganizationAndUser(ctx context.Context, orgID, userID uuid.UUID) (*orgs.OrgUser, error)
	GetConfirmedProviderUsers(ctx context.Context, orgID uuid.UUID) ([]*orgs.ProviderUser, error)
}

// AbilityGetter loads cached organization flags
type AbilityGetter interface {
	Get(ctx context.Context, orgID uuid.UUID) (*orgcache.OrgAbility, error)
}

// PrincipalMiddleware resolves the acting principal for organization-scoped
// routes: the caller's membership row (claims only if confirmed), or their
// provider relationship, against the {orgID} path parameter.
type PrincipalMiddleware struct {
	store     MemberStore
	abilities AbilityGetter
}

// NewPrincipalMiddleware creates a new principal resolution middleware
func NewPrincipalMiddleware(store MemberStore, abilities AbilityGetter) *PrincipalMiddleware {
	return &PrincipalMiddleware{store: store, abilities: abilities}
}

// Handler wraps an organization-scoped handler, requiring authentication
// upstream and a usable organization
func (m *PrincipalMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := IdentityFrom(r)
		if identity == nil {
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}
		orgID, ok := httputil.ParsePathUUIDOrError(w, r, "orgID")
		if !ok {
			return
		}

		ability, err := m.abilities.Get(r.Context(), orgID)
		if err != nil {
			httputil.WriteServiceError(w, err)
			return
		}
		if !ability.Enabled {
			httputil.WriteForbidden(w, "organization is disabled")
			return
		}

		member, err := m.store.GetOrgUserByOrganizationAndUser(r.Context(), orgID, identity.UserID)
		if err != nil && !orgs.IsNotFound(err) {
			httputil.WriteServiceError(w, err)
			return
		}

		providerUser := false
		if member == nil {
			providerUsers, err := m.store.GetConfirmedProviderUsers(r.Context(), orgID)
			if err != nil {
				httputil.WriteServiceError(w, err)
				return
			}
			for _, pu := range providerUsers {
				if pu.Enabled && pu.UserID != nil && *pu.UserID == identity.UserID {
					providerUser = true
					break
				}
			}
			if !providerUser {
				httputil.WriteForbidden(w, "you are not a member of this organization")
				return
			}
		}

		p := authz.NewPrincipal(identity.UserID, orgID, member, providerUser)
		ctx := context.WithValue(r.Context(), principalKey, p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// PrincipalFrom extracts the acting principal from the request
func PrincipalFrom(r *http.Request) (authz.ActingPrincipal, bool) {
	p, ok := r.Context().Value(principalKey).(authz.ActingPrincipal)
	return p, ok
}
