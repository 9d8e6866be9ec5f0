package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/covault/covault/pkg/authz"
	"github.com/covault/covault/pkg/collections"
	"github.com/covault/covault/pkg/httputil"
	"github.com/covault/covault/pkg/membership"
	"github.com/covault/covault/pkg/middleware"
	"github.com/covault/covault/pkg/orgs"
)

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	orgID, ok := httputil.ParsePathUUIDOrError(w, r, "orgID")
	if !ok {
		return
	}

	org, err := s.directory.GetOrganization(r.Context(), orgID)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	if !p.ProviderUser {
		if err := authz.Authorize(authz.OpReadAllUsers, p, org); err != nil {
			httputil.WriteServiceError(w, err)
			return
		}
	}

	users, err := s.directory.GetOrgUsersByOrganization(r.Context(), orgID)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, users)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !canManageMembers(p) {
		httputil.WriteForbidden(w, "you cannot manage this organization's members")
		return
	}

	orgID, ok := httputil.ParsePathUUIDOrError(w, r, "orgID")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathUUIDOrError(w, r, "userID")
	if !ok {
		return
	}

	user, err := s.directory.GetOrgUser(r.Context(), userID)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	if user.OrganizationID != orgID {
		httputil.WriteNotFound(w, "organization user not found")
		return
	}
	httputil.WriteSuccess(w, user)
}

type inviteUsersRequest struct {
	Emails               []string                      `json:"emails"`
	Type                 orgs.UserType                 `json:"type"`
	AccessAll            bool                          `json:"access_all"`
	AccessSecretsManager bool                          `json:"access_secrets_manager"`
	Permissions          *orgs.Permissions             `json:"permissions,omitempty"`
	Collections          []collections.AccessSelection `json:"collections,omitempty"`
}

func (s *Server) inviteUsers(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !canManageMembers(p) {
		httputil.WriteForbidden(w, "you cannot manage this organization's members")
		return
	}

	orgID, ok := httputil.ParsePathUUIDOrError(w, r, "orgID")
	if !ok {
		return
	}

	var req inviteUsersRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.Emails) == 0 {
		httputil.WriteBadRequest(w, "emails is required")
		return
	}

	users, err := s.service.InviteUsers(r.Context(), p, orgID, []membership.InviteRequest{{
		Emails:               req.Emails,
		Type:                 req.Type,
		AccessAll:            req.AccessAll,
		AccessSecretsManager: req.AccessSecretsManager,
		Permissions:          req.Permissions,
		Collections:          req.Collections,
	}})
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, users)
}

func (s *Server) resendInvite(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !canManageMembers(p) {
		httputil.WriteForbidden(w, "you cannot manage this organization's members")
		return
	}

	orgID, ok := httputil.ParsePathUUIDOrError(w, r, "orgID")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathUUIDOrError(w, r, "userID")
	if !ok {
		return
	}

	if err := s.service.ResendInvite(r.Context(), orgID, userID); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

type bulkIDsRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

func (s *Server) resendInvites(w http.ResponseWriter, r *http.Request) {
	s.bulkMemberOp(w, r, func(r *http.Request, p authz.ActingPrincipal, orgID uuid.UUID, ids []uuid.UUID) ([]membership.BulkResult, error) {
		return s.service.ResendInvites(r.Context(), orgID, ids)
	})
}

type acceptInviteRequest struct {
	Token string `json:"token"`
}

func (s *Server) acceptInvite(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r)
	if identity == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	userID, ok := httputil.ParsePathUUIDOrError(w, r, "userID")
	if !ok {
		return
	}

	var req acceptInviteRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Token, "token") {
		return
	}

	user, err := s.service.AcceptInvite(r.Context(), identity.UserID, userID, req.Token)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

type confirmUserRequest struct {
	Key string `json:"key"`
}

func (s *Server) confirmUser(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !canManageMembers(p) {
		httputil.WriteForbidden(w, "you cannot manage this organization's members")
		return
	}

	orgID, ok := httputil.ParsePathUUIDOrError(w, r, "orgID")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathUUIDOrError(w, r, "userID")
	if !ok {
		return
	}

	var req confirmUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Key, "key") {
		return
	}

	user, err := s.service.ConfirmUser(r.Context(), p, orgID, userID, req.Key)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

type confirmUsersRequest struct {
	Keys []struct {
		ID  uuid.UUID `json:"id"`
		Key string    `json:"key"`
	} `json:"keys"`
}

func (s *Server) confirmUsers(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !canManageMembers(p) {
		httputil.WriteForbidden(w, "you cannot manage this organization's members")
		return
	}

	orgID, ok := httputil.ParsePathUUIDOrError(w, r, "orgID")
	if !ok {
		return
	}

	var req confirmUsersRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.Keys) == 0 {
		httputil.WriteBadRequest(w, "keys is required")
		return
	}

	keys := make(map[uuid.UUID]string, len(req.Keys))
	for _, entry := range req.Keys {
		keys[entry.ID] = entry.Key
	}

	results, err := s.service.ConfirmUsers(r.Context(), p, orgID, keys)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, results)
}

type saveUserRequest struct {
	Type                 orgs.UserType                 `json:"type"`
	AccessAll            bool                          `json:"access_all"`
	AccessSecretsManager bool                          `json:"access_secrets_manager"`
	Permissions          *orgs.Permissions             `json:"permissions,omitempty"`
	ExternalID           string                        `json:"external_id,omitempty"`
	Collections          []collections.AccessSelection `json:"collections,omitempty"`
}

func (s *Server) saveUser(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !canManageMembers(p) {
		httputil.WriteForbidden(w, "you cannot manage this organization's members")
		return
	}

	orgID, ok := httputil.ParsePathUUIDOrError(w, r, "orgID")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathUUIDOrError(w, r, "userID")
	if !ok {
		return
	}

	var req saveUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user := &orgs.OrgUser{
		ID:                   userID,
		OrganizationID:       orgID,
		Type:                 req.Type,
		AccessAll:            req.AccessAll,
		AccessSecretsManager: req.AccessSecretsManager,
		Permissions:          req.Permissions,
		ExternalID:           req.ExternalID,
	}

	if err := s.service.SaveUser(r.Context(), p, user, req.Collections); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	s.singleMemberOp(w, r, func(r *http.Request, p authz.ActingPrincipal, orgID, userID uuid.UUID) error {
		return s.service.DeleteUser(r.Context(), p, orgID, userID)
	})
}

func (s *Server) deleteUsers(w http.ResponseWriter, r *http.Request) {
	s.bulkMemberOp(w, r, func(r *http.Request, p authz.ActingPrincipal, orgID uuid.UUID, ids []uuid.UUID) ([]membership.BulkResult, error) {
		return s.service.DeleteUsers(r.Context(), p, orgID, ids)
	})
}

func (s *Server) revokeUser(w http.ResponseWriter, r *http.Request) {
	s.singleMemberOp(w, r, func(r *http.Request, p authz.ActingPrincipal, orgID, userID uuid.UUID) error {
		return s.service.RevokeUser(r.Context(), p, orgID, userID)
	})
}

func (s *Server) revokeUsers(w http.ResponseWriter, r *http.Request) {
	s.bulkMemberOp(w, r, func(r *http.Request, p authz.ActingPrincipal, orgID uuid.UUID, ids []uuid.UUID) ([]membership.BulkResult, error) {
		return s.service.RevokeUsers(r.Context(), p, orgID, ids)
	})
}

func (s *Server) restoreUser(w http.ResponseWriter, r *http.Request) {
	s.singleMemberOp(w, r, func(r *http.Request, p authz.ActingPrincipal, orgID, userID uuid.UUID) error {
		return s.service.RestoreUser(r.Context(), p, orgID, userID)
	})
}

func (s *Server) restoreUsers(w http.ResponseWriter, r *http.Request) {
	s.bulkMemberOp(w, r, func(r *http.Request, p authz.ActingPrincipal, orgID uuid.UUID, ids []uuid.UUID) ([]membership.BulkResult, error) {
		return s.service.RestoreUsers(r.Context(), p, orgID, ids)
	})
}

type resetPasswordEnrollmentRequest struct {
	ResetPasswordKey string `json:"reset_password_key"`
}

// resetPasswordEnrollment enrolls or withdraws the calling user from admin
// password reset. The path userID names the account, not the membership row,
// and must match the authenticated caller.
func (s *Server) resetPasswordEnrollment(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r)
	if identity == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	orgID, ok := httputil.ParsePathUUIDOrError(w, r, "orgID")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathUUIDOrError(w, r, "userID")
	if !ok {
		return
	}
	if userID != identity.UserID {
		httputil.WriteForbidden(w, "you can only manage your own enrollment")
		return
	}

	var req resetPasswordEnrollmentRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := s.service.UpdateResetPasswordEnrollment(r.Context(), orgID, userID, req.ResetPasswordKey); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// singleMemberOp handles the shared shape of the one-member lifecycle
// endpoints: manage-members guard, path IDs, delegate, 204.
func (s *Server) singleMemberOp(w http.ResponseWriter, r *http.Request, op func(*http.Request, authz.ActingPrincipal, uuid.UUID, uuid.UUID) error) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !canManageMembers(p) {
		httputil.WriteForbidden(w, "you cannot manage this organization's members")
		return
	}

	orgID, ok := httputil.ParsePathUUIDOrError(w, r, "orgID")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathUUIDOrError(w, r, "userID")
	if !ok {
		return
	}

	if err := op(r, p, orgID, userID); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// bulkMemberOp handles the shared shape of the bulk lifecycle endpoints:
// manage-members guard, ids body, delegate, per-member results.
func (s *Server) bulkMemberOp(w http.ResponseWriter, r *http.Request, op func(*http.Request, authz.ActingPrincipal, uuid.UUID, []uuid.UUID) ([]membership.BulkResult, error)) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !canManageMembers(p) {
		httputil.WriteForbidden(w, "you cannot manage this organization's members")
		return
	}

	orgID, ok := httputil.ParsePathUUIDOrError(w, r, "orgID")
	if !ok {
		return
	}

	var req bulkIDsRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.IDs) == 0 {
		httputil.WriteBadRequest(w, "ids is required")
		return
	}

	results, err := op(r, p, orgID, req.IDs)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, results)
}
