package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/covault/covault/pkg/authz"
	"github.com/covault/covault/pkg/collections"
	"github.com/covault/covault/pkg/httputil"
	"github.com/covault/covault/pkg/membership"
	"github.com/covault/covault/pkg/middleware"
	"github.com/covault/covault/pkg/observability"
	"github.com/covault/covault/pkg/orgs"
)

// MembershipService is the slice of the membership service the HTTP layer
// calls into.
type MembershipService interface {
	SignUp(ctx context.Context, req membership.SignUpRequest) (*orgs.Organization, *orgs.OrgUser, error)
	UpdateOrganization(ctx context.Context, org *orgs.Organization) error
	DeleteOrganization(ctx context.Context, orgID uuid.UUID) error
	UpdateSubscription(ctx context.Context, orgID uuid.UUID, seatAdjustment int, maxAutoscaleSeats *int) error

	InviteUsers(ctx context.Context, p authz.ActingPrincipal, orgID uuid.UUID, invites []membership.InviteRequest) ([]*orgs.OrgUser, error)
	ResendInvite(ctx context.Context, orgID, orgUserID uuid.UUID) error
	ResendInvites(ctx context.Context, orgID uuid.UUID, orgUserIDs []uuid.UUID) ([]membership.BulkResult, error)
	AcceptInvite(ctx context.Context, userID, orgUserID uuid.UUID, token string) (*orgs.OrgUser, error)
	ConfirmUser(ctx context.Context, p authz.ActingPrincipal, orgID, orgUserID uuid.UUID, key string) (*orgs.OrgUser, error)
	ConfirmUsers(ctx context.Context, p authz.ActingPrincipal, orgID uuid.UUID, keys map[uuid.UUID]string) ([]membership.BulkResult, error)
	SaveUser(ctx context.Context, p authz.ActingPrincipal, user *orgs.OrgUser, access []collections.AccessSelection) error
	DeleteUser(ctx context.Context, p authz.ActingPrincipal, orgID, orgUserID uuid.UUID) error
	DeleteUsers(ctx context.Context, p authz.ActingPrincipal, orgID uuid.UUID, orgUserIDs []uuid.UUID) ([]membership.BulkResult, error)
	RevokeUser(ctx context.Context, p authz.ActingPrincipal, orgID, orgUserID uuid.UUID) error
	RevokeUsers(ctx context.Context, p authz.ActingPrincipal, orgID uuid.UUID, orgUserIDs []uuid.UUID) ([]membership.BulkResult, error)
	RestoreUser(ctx context.Context, p authz.ActingPrincipal, orgID, orgUserID uuid.UUID) error
	RestoreUsers(ctx context.Context, p authz.ActingPrincipal, orgID uuid.UUID, orgUserIDs []uuid.UUID) ([]membership.BulkResult, error)
	UpdateResetPasswordEnrollment(ctx context.Context, orgID, userID uuid.UUID, resetPasswordKey string) error
}

// MemberDirectory serves the read-only listing endpoints
type MemberDirectory interface {
	GetOrganization(ctx context.Context, id uuid.UUID) (*orgs.Organization, error)
	GetOrgUser(ctx context.Context, id uuid.UUID) (*orgs.OrgUser, error)
	GetOrgUsersByOrganization(ctx context.Context, orgID uuid.UUID) ([]*orgs.OrgUser, error)
}

// Server represents our API server
type Server struct {
	router    *mux.Router
	service   MembershipService
	directory MemberDirectory
	logger    *observability.Logger
}

// NewServer creates a new API server and wires up all routes. The rate
// limiter is optional; pass nil to serve without one.
func NewServer(service MembershipService, directory MemberDirectory, auth *middleware.AuthMiddleware, principal *middleware.PrincipalMiddleware, limiter *middleware.RateLimiter, logger *observability.Logger) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		service:   service,
		directory: directory,
		logger:    logger,
	}
	s.setupRoutes(auth, principal, limiter)
	return s
}

// Router exposes the configured handler for mounting into an http.Server
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRoutes(auth *middleware.AuthMiddleware, principal *middleware.PrincipalMiddleware, limiter *middleware.RateLimiter) {
	s.router.Use(httputil.RecoveryMiddleware(s.logger))
	s.router.Use(httputil.LoggingMiddleware(s.logger))

	authed := s.router.NewRoute().Subrouter()
	authed.Use(auth.Handler)
	if limiter != nil {
		authed.Use(limiter.Handler)
	}

	// Sign-up and invite acceptance happen before the caller holds any
	// membership in the organization, so they skip principal resolution.
	authed.HandleFunc("/organizations", s.signUp).Methods("POST")
	authed.HandleFunc("/organizations/{orgID}/users/{userID}/accept", s.acceptInvite).Methods("POST")

	org := authed.PathPrefix("/organizations/{orgID}").Subrouter()
	org.Use(principal.Handler)

	org.HandleFunc("", s.getOrganization).Methods("GET")
	org.HandleFunc("", s.updateOrganization).Methods("PUT")
	org.HandleFunc("", s.deleteOrganization).Methods("DELETE")
	org.HandleFunc("/subscription", s.updateSubscription).Methods("PUT")

	// Literal member routes must come before the {userID} templates.
	org.HandleFunc("/users", s.listUsers).Methods("GET")
	org.HandleFunc("/users", s.deleteUsers).Methods("DELETE")
	org.HandleFunc("/users/invite", s.inviteUsers).Methods("POST")
	org.HandleFunc("/users/reinvite", s.resendInvites).Methods("POST")
	org.HandleFunc("/users/confirm", s.confirmUsers).Methods("POST")
	org.HandleFunc("/users/revoke", s.revokeUsers).Methods("PUT")
	org.HandleFunc("/users/restore", s.restoreUsers).Methods("PUT")

	org.HandleFunc("/users/{userID}", s.getUser).Methods("GET")
	org.HandleFunc("/users/{userID}", s.saveUser).Methods("PUT")
	org.HandleFunc("/users/{userID}", s.deleteUser).Methods("DELETE")
	org.HandleFunc("/users/{userID}/reinvite", s.resendInvite).Methods("POST")
	org.HandleFunc("/users/{userID}/confirm", s.confirmUser).Methods("POST")
	org.HandleFunc("/users/{userID}/revoke", s.revokeUser).Methods("PUT")
	org.HandleFunc("/users/{userID}/restore", s.restoreUser).Methods("PUT")
	org.HandleFunc("/users/{userID}/reset-password-enrollment", s.resetPasswordEnrollment).Methods("PUT")
}

// requirePrincipal pulls the resolved principal off the request, writing a
// 403 when the middleware chain did not establish one.
func requirePrincipal(w http.ResponseWriter, r *http.Request) (authz.ActingPrincipal, bool) {
	p, ok := middleware.PrincipalFrom(r)
	if !ok {
		httputil.WriteForbidden(w, "you are not a member of this organization")
		return authz.ActingPrincipal{}, false
	}
	return p, true
}

// canManageMembers gates the membership administration endpoints
func canManageMembers(p authz.ActingPrincipal) bool {
	return p.CanManageUsers() || p.ProviderUser
}
