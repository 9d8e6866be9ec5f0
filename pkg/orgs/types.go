package orgs

import (
	"time"

	"github.com/google/uuid"
)

// PlanType represents subscription plan types
type PlanType string

const (
	PlanFree       PlanType = "free"
	PlanFamilies   PlanType = "families"
	PlanTeams      PlanType = "teams"
	PlanEnterprise PlanType = "enterprise"
)

// OrgStatus represents organization lifecycle status
type OrgStatus string

const (
	OrgStatusPending OrgStatus = "pending"
	OrgStatusCreated OrgStatus = "created"
)

// UserType represents a member's role within an organization
type UserType string

const (
	UserTypeOwner UserType = "owner"
	UserTypeAdmin UserType = "admin"
	UserTypeUser  UserType = "user"
	// UserTypeManager is deprecated under flexible collections. Existing
	// members keep it; new grants are rejected once the org has migrated.
	UserTypeManager UserType = "manager"
	UserTypeCustom  UserType = "custom"
)

// UserStatus represents a member's lifecycle status
type UserStatus string

const (
	UserStatusInvited   UserStatus = "invited"
	UserStatusAccepted  UserStatus = "accepted"
	UserStatusConfirmed UserStatus = "confirmed"
	UserStatusRevoked   UserStatus = "revoked"
)

// Organization is the tenant root
type Organization struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	BillingEmail string    `json:"billing_email"`
	PlanType     PlanType  `json:"plan_type"`
	Status       OrgStatus `json:"status"`
	Enabled      bool      `json:"enabled"`

	// Password manager seats. Nil means the plan has no seat limit.
	Seats             *int `json:"seats,omitempty"`
	MaxAutoscaleSeats *int `json:"max_autoscale_seats,omitempty"`

	// Secrets manager seats, tracked independently of password manager seats.
	UseSecretsManager   bool `json:"use_secrets_manager"`
	SmSeats             *int `json:"sm_seats,omitempty"`
	SmServiceAccounts   *int `json:"sm_service_accounts,omitempty"`
	MaxAutoscaleSmSeats *int `json:"max_autoscale_sm_seats,omitempty"`

	// Plan feature flags
	UsePolicies          bool `json:"use_policies"`
	UseResetPassword     bool `json:"use_reset_password"`
	UseCustomPermissions bool `json:"use_custom_permissions"`

	// Collection management settings. FlexibleCollections enables the
	// per-collection permission regime that replaces AccessAll grants.
	FlexibleCollections                  bool `json:"flexible_collections"`
	AllowAdminAccessToAllCollectionItems bool `json:"allow_admin_access_to_all_collection_items"`
	LimitCollectionCreationDeletion      bool `json:"limit_collection_creation_deletion"`

	// Billing gateway identifiers
	GatewayCustomerID     string `json:"-"`
	GatewaySubscriptionID string `json:"-"`

	// Set the first time the org hits its autoscale ceiling so that owners
	// are notified exactly once per seat pool.
	OwnersNotifiedOfAutoscaling   *time.Time `json:"owners_notified_of_autoscaling,omitempty"`
	SmOwnersNotifiedOfAutoscaling *time.Time `json:"sm_owners_notified_of_autoscaling,omitempty"`

	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// OrgUser is one user's (or pending invitee's) relationship to one
// organization
type OrgUser struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	// Nil until the invite is accepted.
	UserID *uuid.UUID `json:"user_id,omitempty"`
	// Present pre-acceptance, cleared on confirmation.
	Email  string     `json:"email,omitempty"`
	Key    string     `json:"-"`
	Type   UserType   `json:"type"`
	Status UserStatus `json:"status"`

	// Deprecated under flexible collections; superseded by explicit
	// collection grants.
	AccessAll bool `json:"access_all"`

	AccessSecretsManager bool `json:"access_secrets_manager"`

	// Only meaningful when Type is custom.
	Permissions *Permissions `json:"permissions,omitempty"`

	ResetPasswordKey string `json:"-"`
	ExternalID       string `json:"external_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Equal reports whether two membership records carry the same saved state.
// Used to reject no-op saves.
func (u *OrgUser) Equal(other *OrgUser) bool {
	if other == nil {
		return false
	}
	sameUser := (u.UserID == nil && other.UserID == nil) ||
		(u.UserID != nil && other.UserID != nil && *u.UserID == *other.UserID)
	samePerms := (u.Permissions == nil && other.Permissions == nil) ||
		(u.Permissions != nil && other.Permissions != nil && *u.Permissions == *other.Permissions)
	return u.ID == other.ID &&
		u.OrganizationID == other.OrganizationID &&
		sameUser &&
		u.Email == other.Email &&
		u.Key == other.Key &&
		u.Type == other.Type &&
		u.Status == other.Status &&
		u.AccessAll == other.AccessAll &&
		u.AccessSecretsManager == other.AccessSecretsManager &&
		samePerms &&
		u.ResetPasswordKey == other.ResetPasswordKey &&
		u.ExternalID == other.ExternalID
}

// PriorActiveStatus reconstructs the status a revoked member held before
// revocation from the shape of its identity fields. An org key means the
// member was confirmed; a linked user without a stored email means accepted;
// anything else was still invited.
func (u *OrgUser) PriorActiveStatus() UserStatus {
	status := UserStatusInvited
	if u.UserID != nil && u.Email == "" {
		status = UserStatusAccepted
		if u.Key != "" {
			status = UserStatusConfirmed
		}
	}
	return status
}

// Permissions is the set of custom-permission flags attached to custom-type
// members
type Permissions struct {
	ManageUsers               bool `json:"manageUsers"`
	ManageGroups              bool `json:"manageGroups"`
	ManagePolicies            bool `json:"managePolicies"`
	ManageSso                 bool `json:"manageSso"`
	ManageScim                bool `json:"manageScim"`
	ManageResetPassword       bool `json:"manageResetPassword"`
	AccessReports             bool `json:"accessReports"`
	AccessEventLogs           bool `json:"accessEventLogs"`
	AccessImportExport        bool `json:"accessImportExport"`
	CreateNewCollections      bool `json:"createNewCollections"`
	EditAnyCollection         bool `json:"editAnyCollection"`
	DeleteAnyCollection       bool `json:"deleteAnyCollection"`
	EditAssignedCollections   bool `json:"editAssignedCollections"`
	DeleteAssignedCollections bool `json:"deleteAssignedCollections"`
}

// ProviderUser is an external managed-service-provider operator with access
// to an organization without being a conventional member
type ProviderUser struct {
	ID           uuid.UUID  `json:"id"`
	ProviderID   uuid.UUID  `json:"provider_id"`
	UserID       *uuid.UUID `json:"user_id,omitempty"`
	Email        string     `json:"email,omitempty"`
	Status       UserStatus `json:"status"`
	ProviderType string     `json:"provider_type"`
	Enabled      bool       `json:"enabled"`
}

// Provider is a managed-service-provider entity that can be linked to
// organizations
type Provider struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Type    string    `json:"type"`
	Enabled bool      `json:"enabled"`
}

// ProviderTypeReseller marks reseller-backed providers, whose organizations
// may never autoscale past their purchased seat count.
const ProviderTypeReseller = "reseller"
