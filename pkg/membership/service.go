package membership

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/covault/covault/pkg/authz"
	"github.com/covault/covault/pkg/billing"
	"github.com/covault/covault/pkg/collections"
	"github.com/covault/covault/pkg/events"
	"github.com/covault/covault/pkg/notify"
	"github.com/covault/covault/pkg/observability"
	"github.com/covault/covault/pkg/orgs"
	"github.com/covault/covault/pkg/policy"
)

// Store is the membership persistence surface the lifecycle flows depend
// on. *orgs.PostgresStore satisfies it.
type Store interface {
	CreateOrganization(ctx context.Context, org *orgs.Organization) error
	GetOrganization(ctx context.Context, id uuid.UUID) (*orgs.Organization, error)
	ReplaceOrganization(ctx context.Context, org *orgs.Organization) error
	DeleteOrganization(ctx context.Context, id uuid.UUID) error

	CreateOrgUser(ctx context.Context, user *orgs.OrgUser) error
	CreateOrgUsers(ctx context.Context, users []*orgs.OrgUser) error
	GetOrgUser(ctx context.Context, id uuid.UUID) (*orgs.OrgUser, error)
	GetOrgUserByOrganizationAndUser(ctx context.Context, orgID, userID uuid.UUID) (*orgs.OrgUser, error)
	GetManyOrgUsers(ctx context.Context, ids []uuid.UUID) ([]*orgs.OrgUser, error)
	GetOrgUsersByOrganization(ctx context.Context, orgID uuid.UUID) ([]*orgs.OrgUser, error)
	GetOrgUsersByUser(ctx context.Context, userID uuid.UUID) ([]*orgs.OrgUser, error)
	ReplaceOrgUser(ctx context.Context, user *orgs.OrgUser) error
	ReplaceManyOrgUsers(ctx context.Context, users []*orgs.OrgUser) error
	DeleteOrgUser(ctx context.Context, id uuid.UUID) error
	DeleteManyOrgUsers(ctx context.Context, ids []uuid.UUID) error
	RevokeOrgUser(ctx context.Context, id uuid.UUID) error
	RestoreOrgUser(ctx context.Context, id uuid.UUID, status orgs.UserStatus) error

	GetOccupiedSeatCount(ctx context.Context, orgID uuid.UUID) (int, error)
	SelectKnownEmails(ctx context.Context, orgID uuid.UUID, emails []string) ([]string, error)
	GetConfirmedOwners(ctx context.Context, orgID uuid.UUID) ([]*orgs.OrgUser, error)
	GetCountByFreeOrganizationAdmin(ctx context.Context, userID uuid.UUID) (int, error)
	GetConfirmedProviderUsers(ctx context.Context, orgID uuid.UUID) ([]*orgs.ProviderUser, error)
	GetUserEmail(ctx context.Context, userID uuid.UUID) (string, error)

	DeleteExpiredInvites(ctx context.Context, cutoff time.Time) (int64, error)
}

// CollectionStore is the collection persistence surface membership needs
type CollectionStore interface {
	CreateCollection(ctx context.Context, collection *collections.Collection) error
	ReplaceOrgUserAccess(ctx context.Context, orgUserID uuid.UUID, selections []collections.AccessSelection) error
	DeleteOrgUserAccess(ctx context.Context, orgUserIDs []uuid.UUID) error
}

// PolicyStore answers which policies gate a membership transition
type PolicyStore interface {
	GetByOrganizationType(ctx context.Context, orgID uuid.UUID, policyType policy.Type) (*policy.Policy, error)
	CountApplicableToUser(ctx context.Context, userID uuid.UUID, policyType policy.Type, excludeOrgID uuid.UUID) (int, error)
	GetUserTwoFactorEnabled(ctx context.Context, userID uuid.UUID) (bool, error)
}

// SeatService is the seat accounting surface membership needs.
// *seats.Service satisfies it.
type SeatService interface {
	AdjustSeats(ctx context.Context, org *orgs.Organization, seatAdjustment int) (string, error)
	AdjustSmSeats(ctx context.Context, org *orgs.Organization, seatAdjustment int) (string, error)
	CanScale(ctx context.Context, org *orgs.Organization, seatsToAdd int) error
	AutoAddSeats(ctx context.Context, org *orgs.Organization, seatsRequired int) (string, error)
	AutoAddSmSeats(ctx context.Context, org *orgs.Organization, seatsRequired int) (string, error)
	SeatsRequiredToAdd(ctx context.Context, org *orgs.Organization, newActiveUsers int) (int, error)
	SmSeatsRequiredToAdd(ctx context.Context, org *orgs.Organization, newActiveUsers int) (int, error)
}

// AbilityCache receives upserts and invalidations as organizations change
type AbilityCache interface {
	Upsert(ctx context.Context, org *orgs.Organization) error
	Delete(ctx context.Context, orgID uuid.UUID) error
}

// Service is the top-level coordinator for organization and membership
// operations. The web layer talks to this; it composes seat accounting,
// authorization, access resolution and the persistence collaborators.
type Service struct {
	store       Store
	collections CollectionStore
	policies    PolicyStore
	seats       SeatService
	resolver    *authz.AccessResolver
	gateway     billing.Gateway
	cache       AbilityCache
	recorder    events.Recorder
	mailer      notify.Mailer
	tokens      *InviteTokenIssuer
	logger      *observability.Logger
}

// Deps bundles the collaborators of a Service
type Deps struct {
	Store       Store
	Collections CollectionStore
	Policies    PolicyStore
	Seats       SeatService
	Resolver    *authz.AccessResolver
	Gateway     billing.Gateway
	Cache       AbilityCache
	Recorder    events.Recorder
	Mailer      notify.Mailer
	Tokens      *InviteTokenIssuer
	Logger      *observability.Logger
}

// NewService creates a new membership service
func NewService(deps Deps) *Service {
	return &Service{
		store:       deps.Store,
		collections: deps.Collections,
		policies:    deps.Policies,
		seats:       deps.Seats,
		resolver:    deps.Resolver,
		gateway:     deps.Gateway,
		cache:       deps.Cache,
		recorder:    deps.Recorder,
		mailer:      deps.Mailer,
		tokens:      deps.Tokens,
		logger:      deps.Logger,
	}
}

// BulkResult is one entry of a batch operation's outcome list. Results are
// returned in input order; Err is empty on success.
type BulkResult struct {
	User *orgs.OrgUser `json:"user"`
	Err  string        `json:"error,omitempty"`
}

// HasConfirmedOwnersExcept reports whether the organization keeps at least
// one confirmed owner when the excluded members are ignored. Confirmed
// provider users count as owners when includeProvider is set.
func (s *Service) HasConfirmedOwnersExcept(ctx context.Context, orgID uuid.UUID, excluded []uuid.UUID, includeProvider bool) (bool, error) {
	owners, err := s.store.GetConfirmedOwners(ctx, orgID)
	if err != nil {
		return false, err
	}
	excludedSet := make(map[uuid.UUID]bool, len(excluded))
	for _, id := range excluded {
		excludedSet[id] = true
	}
	for _, owner := range owners {
		if !excludedSet[owner.ID] {
			return true, nil
		}
	}
	if includeProvider {
		providerUsers, err := s.store.GetConfirmedProviderUsers(ctx, orgID)
		if err != nil {
			return false, err
		}
		for _, pu := range providerUsers {
			if pu.Enabled {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *Service) record(ctx context.Context, orgID uuid.UUID, actingUserID *uuid.UUID, targetID uuid.UUID, eventType events.Type) {
	err := s.recorder.Record(ctx, &events.Event{
		OrganizationID: orgID,
		ActingUserID:   actingUserID,
		TargetID:       &targetID,
		Type:           eventType,
	})
	if err != nil {
		s.logger.WithError(err).WithField("organization_id", orgID).
			Warn("failed to record membership event")
	}
}

func actingUserPtr(p authz.ActingPrincipal) *uuid.UUID {
	if p.UserID == uuid.Nil {
		return nil
	}
	id := p.UserID
	return &id
}

// validateMemberShape rejects deprecated field usage once the
// per-collection permission regime is active
func validateMemberShape(org *orgs.Organization, userType orgs.UserType, accessAll bool, access []collections.AccessSelection) error {
	if org.FlexibleCollections {
		if accessAll {
			return orgs.NewBadRequestError("The AccessAll property has been deprecated by collection enhancements. For the member to access all collections, assign them to all collections individually.")
		}
		if userType == orgs.UserTypeManager {
			return orgs.NewBadRequestError("The Manager role has been deprecated by collection enhancements. Use the collections Can Manage permission instead.")
		}
	}
	return collections.ValidateSelections(access)
}
