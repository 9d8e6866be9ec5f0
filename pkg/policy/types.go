package policy

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type identifies an organization policy
type Type string

const (
	// TypeTwoFactorAuthentication requires members to have two-step login
	// enabled before they can be confirmed or restored.
	TypeTwoFactorAuthentication Type = "two_factor_authentication"
	// TypeSingleOrg blocks members from belonging to any other organization.
	TypeSingleOrg Type = "single_org"
	// TypeResetPassword enables admin account recovery; its data payload can
	// force auto-enrollment on invite acceptance.
	TypeResetPassword Type = "reset_password"
)

// Policy is one organization policy row
type Policy struct {
	ID             uuid.UUID       `json:"id"`
	OrganizationID uuid.UUID       `json:"organization_id"`
	Type           Type            `json:"type"`
	Enabled        bool            `json:"enabled"`
	Data           json.RawMessage `json:"data,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ResetPasswordData is the payload of a reset password policy
type ResetPasswordData struct {
	AutoEnrollEnabled bool `json:"autoEnrollEnabled"`
}

// ResetPasswordData decodes the policy payload. Returns the zero value when
// the policy carries no data.
func (p *Policy) ResetPasswordData() (ResetPasswordData, error) {
	var data ResetPasswordData
	if len(p.Data) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(p.Data, &data); err != nil {
		return data, err
	}
	return data, nil
}
