package api

import (
	"net/http"

	"github.com/covault/covault/pkg/httputil"
	"github.com/covault/covault/pkg/membership"
	"github.com/covault/covault/pkg/middleware"
	"github.com/covault/covault/pkg/orgs"
)

type signUpRequest struct {
	Name              string        `json:"name"`
	BillingEmail      string        `json:"billing_email"`
	PlanType          orgs.PlanType `json:"plan_type"`
	Key               string        `json:"key"`
	AdditionalSeats   int           `json:"additional_seats"`
	MaxAutoscaleSeats *int          `json:"max_autoscale_seats,omitempty"`

	UseSecretsManager         bool `json:"use_secrets_manager"`
	AdditionalSmSeats         int  `json:"additional_sm_seats"`
	AdditionalServiceAccounts int  `json:"additional_service_accounts"`

	CollectionName string `json:"collection_name,omitempty"`
}

type signUpResponse struct {
	Organization *orgs.Organization `json:"organization"`
	Owner        *orgs.OrgUser      `json:"owner"`
}

func (s *Server) signUp(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r)
	if identity == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var req signUpRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}
	if !httputil.RequireNonEmpty(w, req.BillingEmail, "billing_email") {
		return
	}

	org, owner, err := s.service.SignUp(r.Context(), membership.SignUpRequest{
		OwnerID:           identity.UserID,
		OwnerKey:          req.Key,
		Name:              req.Name,
		BillingEmail:      req.BillingEmail,
		PlanType:          req.PlanType,
		AdditionalSeats:   req.AdditionalSeats,
		MaxAutoscaleSeats: req.MaxAutoscaleSeats,

		UseSecretsManager:         req.UseSecretsManager,
		AdditionalSmSeats:         req.AdditionalSmSeats,
		AdditionalServiceAccounts: req.AdditionalServiceAccounts,

		CollectionName: req.CollectionName,
	})
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}

	httputil.WriteCreated(w, signUpResponse{Organization: org, Owner: owner})
}

func (s *Server) getOrganization(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !p.IsMember() && !p.ProviderUser {
		httputil.WriteForbidden(w, "you are not a member of this organization")
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
	httputil.WriteSuccess(w, org)
}

type updateOrganizationRequest struct {
	Name         string `json:"name"`
	BillingEmail string `json:"billing_email"`
}

func (s *Server) updateOrganization(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !p.IsOwner() && !p.ProviderUser {
		httputil.WriteForbidden(w, "only owners can manage the organization")
		return
	}

	orgID, ok := httputil.ParsePathUUIDOrError(w, r, "orgID")
	if !ok {
		return
	}

	var req updateOrganizationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}
	if !httputil.RequireNonEmpty(w, req.BillingEmail, "billing_email") {
		return
	}

	org, err := s.directory.GetOrganization(r.Context(), orgID)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	org.Name = req.Name
	org.BillingEmail = req.BillingEmail

	if err := s.service.UpdateOrganization(r.Context(), org); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, org)
}

func (s *Server) deleteOrganization(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !p.IsOwner() && !p.ProviderUser {
		httputil.WriteForbidden(w, "only owners can manage the organization")
		return
	}

	orgID, ok := httputil.ParsePathUUIDOrError(w, r, "orgID")
	if !ok {
		return
	}

	if err := s.service.DeleteOrganization(r.Context(), orgID); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

type updateSubscriptionRequest struct {
	SeatAdjustment    int  `json:"seat_adjustment"`
	MaxAutoscaleSeats *int `json:"max_autoscale_seats,omitempty"`
}

func (s *Server) updateSubscription(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !p.IsOwner() && !p.ProviderUser {
		httputil.WriteForbidden(w, "only owners can manage the subscription")
		return
	}

	orgID, ok := httputil.ParsePathUUIDOrError(w, r, "orgID")
	if !ok {
		return
	}

	var req updateSubscriptionRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := s.service.UpdateSubscription(r.Context(), orgID, req.SeatAdjustment, req.MaxAutoscaleSeats); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
