package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/covault/covault/pkg/authz"
	"github.com/covault/covault/pkg/collections"
	"github.com/covault/covault/pkg/membership"
	"github.com/covault/covault/pkg/middleware"
	"github.com/covault/covault/pkg/observability"
	"github.com/covault/covault/pkg/orgcache"
	"github.com/covault/covault/pkg/orgs"
)

type fakeService struct {
	err error

	signUpReq   *membership.SignUpRequest
	signUpOrg   *orgs.Organization
	signUpOwner *orgs.OrgUser

	updatedOrg     *orgs.Organization
	deletedOrg     uuid.UUID
	seatAdjustment int
	maxAutoscale   *int

	invites      []membership.InviteRequest
	invited      []*orgs.OrgUser
	resent       []uuid.UUID
	acceptUser   uuid.UUID
	acceptMember uuid.UUID
	acceptToken  string
	accepted     *orgs.OrgUser
	confirmedID  uuid.UUID
	confirmedKey string
	confirmed    *orgs.OrgUser
	confirmKeys  map[uuid.UUID]string
	results      []membership.BulkResult

	savedUser   *orgs.OrgUser
	savedAccess []collections.AccessSelection
	deletedIDs  []uuid.UUID
	revokedIDs  []uuid.UUID
	restoredIDs []uuid.UUID

	enrollUser uuid.UUID
	enrollKey  string
}

func (f *fakeService) SignUp(ctx context.Context, req membership.SignUpRequest) (*orgs.Organization, *orgs.OrgUser, error) {
	f.signUpReq = &req
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.signUpOrg, f.signUpOwner, nil
}

func (f *fakeService) UpdateOrganization(ctx context.Context, org *orgs.Organization) error {
	f.updatedOrg = org
	return f.err
}

func (f *fakeService) DeleteOrganization(ctx context.Context, orgID uuid.UUID) error {
	f.deletedOrg = orgID
	return f.err
}

func (f *fakeService) UpdateSubscription(ctx context.Context, orgID uuid.UUID, seatAdjustment int, maxAutoscaleSeats *int) error {
	f.seatAdjustment = seatAdjustment
	f.maxAutoscale = maxAutoscaleSeats
	return f.err
}

func (f *fakeService) InviteUsers(ctx context.Context, p authz.ActingPrincipal, orgID uuid.UUID, invites []membership.InviteRequest) ([]*orgs.OrgUser, error) {
	f.invites = invites
	if f.err != nil {
		return nil, f.err
	}
	return f.invited, nil
}

func (f *fakeService) ResendInvite(ctx context.Context, orgID, orgUserID uuid.UUID) error {
	f.resent = append(f.resent, orgUserID)
	return f.err
}

func (f *fakeService) ResendInvites(ctx context.Context, orgID uuid.UUID, orgUserIDs []uuid.UUID) ([]membership.BulkResult, error) {
	f.resent = append(f.resent, orgUserIDs...)
	return f.results, f.err
}

func (f *fakeService) AcceptInvite(ctx context.Context, userID, orgUserID uuid.UUID, token string) (*orgs.OrgUser, error) {
	f.acceptUser = userID
	f.acceptMember = orgUserID
	f.acceptToken = token
	if f.err != nil {
		return nil, f.err
	}
	return f.accepted, nil
}

func (f *fakeService) ConfirmUser(ctx context.Context, p authz.ActingPrincipal, orgID, orgUserID uuid.UUID, key string) (*orgs.OrgUser, error) {
	f.confirmedID = orgUserID
	f.confirmedKey = key
	if f.err != nil {
		return nil, f.err
	}
	return f.confirmed, nil
}

func (f *fakeService) ConfirmUsers(ctx context.Context, p authz.ActingPrincipal, orgID uuid.UUID, keys map[uuid.UUID]string) ([]membership.BulkResult, error) {
	f.confirmKeys = keys
	return f.results, f.err
}

func (f *fakeService) SaveUser(ctx context.Context, p authz.ActingPrincipal, user *orgs.OrgUser, access []collections.AccessSelection) error {
	f.savedUser = user
	f.savedAccess = access
	return f.err
}

func (f *fakeService) DeleteUser(ctx context.Context, p authz.ActingPrincipal, orgID, orgUserID uuid.UUID) error {
	f.deletedIDs = append(f.deletedIDs, orgUserID)
	return f.err
}

func (f *fakeService) DeleteUsers(ctx context.Context, p authz.ActingPrincipal, orgID uuid.UUID, orgUserIDs []uuid.UUID) ([]membership.BulkResult, error) {
	f.deletedIDs = append(f.deletedIDs, orgUserIDs...)
	return f.results, f.err
}

func (f *fakeService) RevokeUser(ctx context.Context, p authz.ActingPrincipal, orgID, orgUserID uuid.UUID) error {
	f.revokedIDs = append(f.revokedIDs, orgUserID)
	return f.err
}

func (f *fakeService) RevokeUsers(ctx context.Context, p authz.ActingPrincipal, orgID uuid.UUID, orgUserIDs []uuid.UUID) ([]membership.BulkResult, error) {
	f.revokedIDs = append(f.revokedIDs, orgUserIDs...)
	return f.results, f.err
}

func (f *fakeService) RestoreUser(ctx context.Context, p authz.ActingPrincipal, orgID, orgUserID uuid.UUID) error {
	f.restoredIDs = append(f.restoredIDs, orgUserID)
	return f.err
}

func (f *fakeService) RestoreUsers(ctx context.Context, p authz.ActingPrincipal, orgID uuid.UUID, orgUserIDs []uuid.UUID) ([]membership.BulkResult, error) {
	f.restoredIDs = append(f.restoredIDs, orgUserIDs...)
	return f.results, f.err
}

func (f *fakeService) UpdateResetPasswordEnrollment(ctx context.Context, orgID, userID uuid.UUID, resetPasswordKey string) error {
	f.enrollUser = userID
	f.enrollKey = resetPasswordKey
	return f.err
}

type fakeDirectory struct {
	orgs    map[uuid.UUID]*orgs.Organization
	users   map[uuid.UUID]*orgs.OrgUser
	byOrgID map[uuid.UUID][]*orgs.OrgUser
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		orgs:    make(map[uuid.UUID]*orgs.Organization),
		users:   make(map[uuid.UUID]*orgs.OrgUser),
		byOrgID: make(map[uuid.UUID][]*orgs.OrgUser),
	}
}

func (d *fakeDirectory) GetOrganization(ctx context.Context, id uuid.UUID) (*orgs.Organization, error) {
	org, ok := d.orgs[id]
	if !ok {
		return nil, &orgs.NotFoundError{Resource: "organization"}
	}
	copied := *org
	return &copied, nil
}

func (d *fakeDirectory) GetOrgUser(ctx context.Context, id uuid.UUID) (*orgs.OrgUser, error) {
	user, ok := d.users[id]
	if !ok {
		return nil, &orgs.NotFoundError{Resource: "organization user"}
	}
	return user, nil
}

func (d *fakeDirectory) GetOrgUsersByOrganization(ctx context.Context, orgID uuid.UUID) ([]*orgs.OrgUser, error) {
	return d.byOrgID[orgID], nil
}

type fakeMemberStore struct {
	members   map[uuid.UUID]map[uuid.UUID]*orgs.OrgUser
	providers map[uuid.UUID][]*orgs.ProviderUser
}

func newFakeMemberStore() *fakeMemberStore {
	return &fakeMemberStore{
		members:   make(map[uuid.UUID]map[uuid.UUID]*orgs.OrgUser),
		providers: make(map[uuid.UUID][]*orgs.ProviderUser),
	}
}

func (f *fakeMemberStore) GetOrgUserByOrganizationAndUser(ctx context.Context, orgID, userID uuid.UUID) (*orgs.OrgUser, error) {
	if member, ok := f.members[orgID][userID]; ok {
		return member, nil
	}
	return nil, &orgs.NotFoundError{Resource: "organization user"}
}

func (f *fakeMemberStore) GetConfirmedProviderUsers(ctx context.Context, orgID uuid.UUID) ([]*orgs.ProviderUser, error) {
	return f.providers[orgID], nil
}

type fakeAbilities struct {
	abilities map[uuid.UUID]*orgcache.OrgAbility
}

func (f *fakeAbilities) Get(ctx context.Context, orgID uuid.UUID) (*orgcache.OrgAbility, error) {
	ability, ok := f.abilities[orgID]
	if !ok {
		return nil, &orgs.NotFoundError{Resource: "organization"}
	}
	return ability, nil
}

type fixture struct {
	service   *fakeService
	directory *fakeDirectory
	members   *fakeMemberStore
	abilities *fakeAbilities
	verifier  *middleware.TokenVerifier
	server    *Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		service:   &fakeService{},
		directory: newFakeDirectory(),
		members:   newFakeMemberStore(),
		abilities: &fakeAbilities{abilities: make(map[uuid.UUID]*orgcache.OrgAbility)},
		verifier:  middleware.NewTokenVerifier([]byte("test-signing-key")),
	}
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	f.server = NewServer(
		f.service,
		f.directory,
		middleware.NewAuthMiddleware(f.verifier),
		middleware.NewPrincipalMiddleware(f.members, f.abilities),
		nil,
		logger,
	)
	return f
}

// addOrg registers an enabled organization with the directory and the
// ability cache.
func (f *fixture) addOrg(t *testing.T) *orgs.Organization {
	t.Helper()
	org := &orgs.Organization{
		ID:           uuid.New(),
		Name:         "Test Org",
		BillingEmail: "billing@example.com",
		PlanType:     orgs.PlanEnterprise,
		Status:       orgs.OrgStatusCreated,
		Enabled:      true,
	}
	f.directory.orgs[org.ID] = org
	f.abilities.abilities[org.ID] = orgcache.AbilityFromOrganization(org)
	return org
}

// tokenFor registers a confirmed member of the given role and returns a
// bearer token for them.
func (f *fixture) tokenFor(t *testing.T, orgID uuid.UUID, userType orgs.UserType) (string, uuid.UUID) {
	t.Helper()
	userID := uuid.New()
	member := &orgs.OrgUser{
		ID:             uuid.New(),
		OrganizationID: orgID,
		UserID:         &userID,
		Type:           userType,
		Status:         orgs.UserStatusConfirmed,
		Key:            "member-key",
	}
	if f.members.members[orgID] == nil {
		f.members.members[orgID] = make(map[uuid.UUID]*orgs.OrgUser)
	}
	f.members.members[orgID][userID] = member
	return f.token(t, userID), userID
}

func (f *fixture) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token, err := f.verifier.Issue(userID, "user@example.com", time.Hour)
	require.NoError(t, err)
	return token
}

func (f *fixture) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.server.Router().ServeHTTP(rec, req)
	return rec
}

func TestRoutesRequireAuthentication(t *testing.T) {
	f := newFixture(t)
	org := f.addOrg(t)

	rec := f.do(t, http.MethodGet, "/organizations/"+org.ID.String()+"/users", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/organizations", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDisabledOrganizationIsRejected(t *testing.T) {
	f := newFixture(t)
	org := f.addOrg(t)
	token, _ := f.tokenFor(t, org.ID, orgs.UserTypeOwner)
	f.abilities.abilities[org.ID].Enabled = false

	rec := f.do(t, http.MethodGet, "/organizations/"+org.ID.String(), token, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestNonMemberIsRejected(t *testing.T) {
	f := newFixture(t)
	org := f.addOrg(t)
	token := f.token(t, uuid.New())

	rec := f.do(t, http.MethodGet, "/organizations/"+org.ID.String(), token, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}
