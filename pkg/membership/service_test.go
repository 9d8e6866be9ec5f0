package membership

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/covault/covault/pkg/authz"
	"github.com/covault/covault/pkg/collections"
	"github.com/covault/covault/pkg/events"
	"github.com/covault/covault/pkg/observability"
	"github.com/covault/covault/pkg/orgs"
	"github.com/covault/covault/pkg/policy"
)

type fakeStore struct {
	orgs            map[uuid.UUID]*orgs.Organization
	users           map[uuid.UUID]*orgs.OrgUser
	userEmails      map[uuid.UUID]string
	knownEmails     []string
	freeAdminCounts map[uuid.UUID]int
	providerUsers   []*orgs.ProviderUser
	occupied        int

	createErr  error
	deletedIDs []uuid.UUID

	expiredCutoff time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orgs:            make(map[uuid.UUID]*orgs.Organization),
		users:           make(map[uuid.UUID]*orgs.OrgUser),
		userEmails:      make(map[uuid.UUID]string),
		freeAdminCounts: make(map[uuid.UUID]int),
	}
}

func (f *fakeStore) CreateOrganization(ctx context.Context, org *orgs.Organization) error {
	f.orgs[org.ID] = org
	return nil
}

func (f *fakeStore) GetOrganization(ctx context.Context, id uuid.UUID) (*orgs.Organization, error) {
	org, ok := f.orgs[id]
	if !ok {
		return nil, &orgs.NotFoundError{Resource: "organization"}
	}
	return org, nil
}

func (f *fakeStore) ReplaceOrganization(ctx context.Context, org *orgs.Organization) error {
	f.orgs[org.ID] = org
	return nil
}

func (f *fakeStore) DeleteOrganization(ctx context.Context, id uuid.UUID) error {
	delete(f.orgs, id)
	return nil
}

func (f *fakeStore) CreateOrgUser(ctx context.Context, user *orgs.OrgUser) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.users[user.ID] = user
	return nil
}

func (f *fakeStore) CreateOrgUsers(ctx context.Context, users []*orgs.OrgUser) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, user := range users {
		f.users[user.ID] = user
	}
	return nil
}

func (f *fakeStore) GetOrgUser(ctx context.Context, id uuid.UUID) (*orgs.OrgUser, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, &orgs.NotFoundError{Resource: "organization user"}
	}
	copied := *user
	return &copied, nil
}

func (f *fakeStore) GetOrgUserByOrganizationAndUser(ctx context.Context, orgID, userID uuid.UUID) (*orgs.OrgUser, error) {
	for _, user := range f.users {
		if user.OrganizationID == orgID && user.UserID != nil && *user.UserID == userID {
			copied := *user
			return &copied, nil
		}
	}
	return nil, &orgs.NotFoundError{Resource: "organization user"}
}

func (f *fakeStore) GetManyOrgUsers(ctx context.Context, ids []uuid.UUID) ([]*orgs.OrgUser, error) {
	var found []*orgs.OrgUser
	for _, id := range ids {
		if user, ok := f.users[id]; ok {
			copied := *user
			found = append(found, &copied)
		}
	}
	return found, nil
}

func (f *fakeStore) GetOrgUsersByOrganization(ctx context.Context, orgID uuid.UUID) ([]*orgs.OrgUser, error) {
	var found []*orgs.OrgUser
	for _, user := range f.users {
		if user.OrganizationID == orgID {
			copied := *user
			found = append(found, &copied)
		}
	}
	return found, nil
}

func (f *fakeStore) GetOrgUsersByUser(ctx context.Context, userID uuid.UUID) ([]*orgs.OrgUser, error) {
	var found []*orgs.OrgUser
	for _, user := range f.users {
		if user.UserID != nil && *user.UserID == userID {
			copied := *user
			found = append(found, &copied)
		}
	}
	return found, nil
}

func (f *fakeStore) ReplaceOrgUser(ctx context.Context, user *orgs.OrgUser) error {
	if _, ok := f.users[user.ID]; !ok {
		return &orgs.NotFoundError{Resource: "organization user"}
	}
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeStore) ReplaceManyOrgUsers(ctx context.Context, users []*orgs.OrgUser) error {
	for _, user := range users {
		if err := f.ReplaceOrgUser(ctx, user); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeStore) DeleteOrgUser(ctx context.Context, id uuid.UUID) error {
	delete(f.users, id)
	f.deletedIDs = append(f.deletedIDs, id)
	return nil
}

func (f *fakeStore) DeleteManyOrgUsers(ctx context.Context, ids []uuid.UUID) error {
	for _, id := range ids {
		if err := f.DeleteOrgUser(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeStore) RevokeOrgUser(ctx context.Context, id uuid.UUID) error {
	user, ok := f.users[id]
	if !ok {
		return &orgs.NotFoundError{Resource: "organization user"}
	}
	user.Status = orgs.UserStatusRevoked
	return nil
}

func (f *fakeStore) RestoreOrgUser(ctx context.Context, id uuid.UUID, status orgs.UserStatus) error {
	user, ok := f.users[id]
	if !ok {
		return &orgs.NotFoundError{Resource: "organization user"}
	}
	user.Status = status
	return nil
}

func (f *fakeStore) GetOccupiedSeatCount(ctx context.Context, orgID uuid.UUID) (int, error) {
	return f.occupied, nil
}

func (f *fakeStore) SelectKnownEmails(ctx context.Context, orgID uuid.UUID, emails []string) ([]string, error) {
	return f.knownEmails, nil
}

func (f *fakeStore) GetConfirmedOwners(ctx context.Context, orgID uuid.UUID) ([]*orgs.OrgUser, error) {
	var owners []*orgs.OrgUser
	for _, user := range f.users {
		if user.OrganizationID == orgID && user.Type == orgs.UserTypeOwner && user.Status == orgs.UserStatusConfirmed {
			owners = append(owners, user)
		}
	}
	return owners, nil
}

func (f *fakeStore) GetCountByFreeOrganizationAdmin(ctx context.Context, userID uuid.UUID) (int, error) {
	return f.freeAdminCounts[userID], nil
}

func (f *fakeStore) GetConfirmedProviderUsers(ctx context.Context, orgID uuid.UUID) ([]*orgs.ProviderUser, error) {
	return f.providerUsers, nil
}

func (f *fakeStore) GetUserEmail(ctx context.Context, userID uuid.UUID) (string, error) {
	email, ok := f.userEmails[userID]
	if !ok {
		return "", &orgs.NotFoundError{Resource: "user"}
	}
	return email, nil
}

func (f *fakeStore) DeleteExpiredInvites(ctx context.Context, cutoff time.Time) (int64, error) {
	f.expiredCutoff = cutoff
	var deleted int64
	for id, user := range f.users {
		if user.Status == orgs.UserStatusInvited && user.CreatedAt.Before(cutoff) {
			delete(f.users, id)
			deleted++
		}
	}
	return deleted, nil
}

type fakeCollections struct {
	created  []*collections.Collection
	replaced map[uuid.UUID][]collections.AccessSelection
	deleted  []uuid.UUID
}

func newFakeCollections() *fakeCollections {
	return &fakeCollections{replaced: make(map[uuid.UUID][]collections.AccessSelection)}
}

func (f *fakeCollections) CreateCollection(ctx context.Context, collection *collections.Collection) error {
	f.created = append(f.created, collection)
	return nil
}

func (f *fakeCollections) ReplaceOrgUserAccess(ctx context.Context, orgUserID uuid.UUID, selections []collections.AccessSelection) error {
	f.replaced[orgUserID] = selections
	return nil
}

func (f *fakeCollections) DeleteOrgUserAccess(ctx context.Context, orgUserIDs []uuid.UUID) error {
	f.deleted = append(f.deleted, orgUserIDs...)
	return nil
}

type fakePolicies struct {
	policies         map[policy.Type]*policy.Policy
	applicableCounts map[policy.Type]int
	twoFactorUsers   map[uuid.UUID]bool
}

func newFakePolicies() *fakePolicies {
	return &fakePolicies{
		policies:         make(map[policy.Type]*policy.Policy),
		applicableCounts: make(map[policy.Type]int),
		twoFactorUsers:   make(map[uuid.UUID]bool),
	}
}

func (f *fakePolicies) GetByOrganizationType(ctx context.Context, orgID uuid.UUID, policyType policy.Type) (*policy.Policy, error) {
	return f.policies[policyType], nil
}

func (f *fakePolicies) CountApplicableToUser(ctx context.Context, userID uuid.UUID, policyType policy.Type, excludeOrgID uuid.UUID) (int, error) {
	return f.applicableCounts[policyType], nil
}

func (f *fakePolicies) GetUserTwoFactorEnabled(ctx context.Context, userID uuid.UUID) (bool, error) {
	return f.twoFactorUsers[userID], nil
}

type fakeSeats struct {
	seatsRequired   int
	smSeatsRequired int
	autoAddErr      error
	canScaleErr     error

	autoAdded   int
	smAutoAdded int
	adjustments []int
	smAdjusts   []int
}

func (f *fakeSeats) AdjustSeats(ctx context.Context, org *orgs.Organization, seatAdjustment int) (string, error) {
	f.adjustments = append(f.adjustments, seatAdjustment)
	return "", nil
}

func (f *fakeSeats) AdjustSmSeats(ctx context.Context, org *orgs.Organization, seatAdjustment int) (string, error) {
	f.smAdjusts = append(f.smAdjusts, seatAdjustment)
	return "", nil
}

func (f *fakeSeats) CanScale(ctx context.Context, org *orgs.Organization, seatsToAdd int) error {
	return f.canScaleErr
}

func (f *fakeSeats) AutoAddSeats(ctx context.Context, org *orgs.Organization, seatsRequired int) (string, error) {
	if f.autoAddErr != nil {
		return "", f.autoAddErr
	}
	f.autoAdded += seatsRequired
	return "", nil
}

func (f *fakeSeats) AutoAddSmSeats(ctx context.Context, org *orgs.Organization, seatsRequired int) (string, error) {
	f.smAutoAdded += seatsRequired
	return "", nil
}

func (f *fakeSeats) SeatsRequiredToAdd(ctx context.Context, org *orgs.Organization, newActiveUsers int) (int, error) {
	return f.seatsRequired, nil
}

func (f *fakeSeats) SmSeatsRequiredToAdd(ctx context.Context, org *orgs.Organization, newActiveUsers int) (int, error) {
	return f.smSeatsRequired, nil
}

type fakeGateway struct {
	canceled   []uuid.UUID
	reinstated []uuid.UUID
}

func (f *fakeGateway) CreateCustomer(ctx context.Context, orgID uuid.UUID) (string, string, error) {
	return "cus_" + orgID.String(), "sub_" + orgID.String(), nil
}

func (f *fakeGateway) AdjustSeats(ctx context.Context, org *orgs.Organization, newSeatTotal int) (string, error) {
	return "", nil
}

func (f *fakeGateway) AdjustSmSeats(ctx context.Context, org *orgs.Organization, newSeatTotal int) (string, error) {
	return "", nil
}

func (f *fakeGateway) CancelSubscription(ctx context.Context, org *orgs.Organization) error {
	f.canceled = append(f.canceled, org.ID)
	return nil
}

func (f *fakeGateway) ReinstateSubscription(ctx context.Context, org *orgs.Organization) error {
	f.reinstated = append(f.reinstated, org.ID)
	return nil
}

type fakeCache struct {
	upserted []uuid.UUID
	deleted  []uuid.UUID
}

func (f *fakeCache) Upsert(ctx context.Context, org *orgs.Organization) error {
	f.upserted = append(f.upserted, org.ID)
	return nil
}

func (f *fakeCache) Delete(ctx context.Context, orgID uuid.UUID) error {
	f.deleted = append(f.deleted, orgID)
	return nil
}

type fakeRecorder struct {
	events []*events.Event
}

func (f *fakeRecorder) Record(ctx context.Context, event *events.Event) error {
	f.events = append(f.events, event)
	return nil
}

type fakeMailer struct {
	invites   []string
	confirmed []string
}

func (f *fakeMailer) SendInvite(ctx context.Context, orgName, email, token string) error {
	f.invites = append(f.invites, email)
	return nil
}

func (f *fakeMailer) SendConfirmed(ctx context.Context, orgName, email string) error {
	f.confirmed = append(f.confirmed, email)
	return nil
}

func (f *fakeMailer) SendSeatLimitReached(ctx context.Context, orgName string, maxSeats int, to []string) error {
	return nil
}

func (f *fakeMailer) SendSmSeatLimitReached(ctx context.Context, orgName string, maxSeats int, to []string) error {
	return nil
}

type fakeCollectionReader struct{}

func (f *fakeCollectionReader) GetAccessSelectionsByOrgUser(ctx context.Context, orgUserID uuid.UUID) ([]collections.AccessSelection, error) {
	return nil, nil
}

func (f *fakeCollectionReader) GetManyByOrgUser(ctx context.Context, orgUserID uuid.UUID) ([]collections.CollectionDetails, error) {
	return nil, nil
}

type fixture struct {
	service     *Service
	store       *fakeStore
	collections *fakeCollections
	policies    *fakePolicies
	seats       *fakeSeats
	gateway     *fakeGateway
	cache       *fakeCache
	recorder    *fakeRecorder
	mailer      *fakeMailer
}

func newFixture() *fixture {
	store := newFakeStore()
	colls := newFakeCollections()
	policies := newFakePolicies()
	seatSvc := &fakeSeats{}
	gateway := &fakeGateway{}
	cache := &fakeCache{}
	recorder := &fakeRecorder{}
	mailer := &fakeMailer{}
	service := NewService(Deps{
		Store:       store,
		Collections: colls,
		Policies:    policies,
		Seats:       seatSvc,
		Resolver:    authz.NewAccessResolver(&fakeCollectionReader{}),
		Gateway:     gateway,
		Cache:       cache,
		Recorder:    recorder,
		Mailer:      mailer,
		Tokens:      NewInviteTokenIssuer([]byte("test-signing-key"), time.Hour),
		Logger:      observability.NewLogger(observability.ErrorLevel, io.Discard),
	})
	return &fixture{
		service:     service,
		store:       store,
		collections: colls,
		policies:    policies,
		seats:       seatSvc,
		gateway:     gateway,
		cache:       cache,
		recorder:    recorder,
		mailer:      mailer,
	}
}

func intPtr(v int) *int { return &v }

// addMember seeds a member row and returns it
func (f *fixture) addMember(orgID uuid.UUID, userType orgs.UserType, status orgs.UserStatus) *orgs.OrgUser {
	userID := uuid.New()
	user := &orgs.OrgUser{
		ID:             uuid.New(),
		OrganizationID: orgID,
		UserID:         &userID,
		Type:           userType,
		Status:         status,
	}
	if status == orgs.UserStatusConfirmed {
		user.Key = "member-key"
	}
	f.store.users[user.ID] = user
	return user
}

// addOrg seeds an enterprise organization with one confirmed owner
func (f *fixture) addOrg(t *testing.T) (*orgs.Organization, *orgs.OrgUser) {
	t.Helper()
	org := &orgs.Organization{
		ID:                   uuid.New(),
		Name:                 "Test Org",
		PlanType:             orgs.PlanEnterprise,
		Status:               orgs.OrgStatusCreated,
		Enabled:              true,
		Seats:                intPtr(10),
		UsePolicies:          true,
		UseResetPassword:     true,
		UseCustomPermissions: true,
	}
	f.store.orgs[org.ID] = org
	owner := f.addMember(org.ID, orgs.UserTypeOwner, orgs.UserStatusConfirmed)
	require.NotNil(t, owner.UserID)
	return org, owner
}

func ownerPrincipal(org *orgs.Organization, owner *orgs.OrgUser) authz.ActingPrincipal {
	return authz.NewPrincipal(*owner.UserID, org.ID, owner, false)
}
