package collections

import (
	"time"

	"github.com/google/uuid"

	"github.com/covault/covault/pkg/orgs"
)

// Collection is a shared folder of vault items within an organization
type Collection struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Name           string    `json:"name"`
	ExternalID     string    `json:"external_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AccessSelection is one grant linking a collection to a member or group.
// ID identifies the counterpart of whatever list the selection appears in:
// the member or group when attached to a collection, the collection when
// attached to a member.
type AccessSelection struct {
	ID            uuid.UUID `json:"id"`
	ReadOnly      bool      `json:"read_only"`
	HidePasswords bool      `json:"hide_passwords"`
	Manage        bool      `json:"manage"`
}

// Validate rejects contradictory grants. Manage implies full access, so it
// cannot be combined with read-only or hidden-password restrictions.
func (s AccessSelection) Validate() error {
	if s.Manage && (s.ReadOnly || s.HidePasswords) {
		return orgs.NewBadRequestError("The ReadOnly or HidePasswords properties cannot be true while the Manage property is true.")
	}
	return nil
}

// ValidateSelections validates every grant in a list
func ValidateSelections(selections []AccessSelection) error {
	for _, s := range selections {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// CollectionDetails is a collection together with the access flags a
// particular member holds on it
type CollectionDetails struct {
	Collection
	ReadOnly      bool `json:"read_only"`
	HidePasswords bool `json:"hide_passwords"`
	Manage        bool `json:"manage"`
}

// CollectionAccessDetails is a collection together with every member and
// group grant attached to it
type CollectionAccessDetails struct {
	Collection
	Users  []AccessSelection `json:"users"`
	Groups []AccessSelection `json:"groups"`
}
