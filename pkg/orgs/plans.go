package orgs

// PasswordManagerPlanFeatures describes the password manager seat limits of
// a plan
type PasswordManagerPlanFeatures struct {
	BaseSeats                int
	MaxAdditionalSeats       *int
	HasAdditionalSeatsOption bool
	AllowSeatAutoscale       bool
	MaxSeats                 *int
}

// SecretsManagerPlanFeatures describes the secrets manager seat and service
// account limits of a plan
type SecretsManagerPlanFeatures struct {
	BaseSeats                      int
	BaseServiceAccount             int
	HasAdditionalSeatsOption       bool
	MaxAdditionalSeats             *int
	AllowSeatAutoscale             bool
	HasAdditionalServiceAccountOpt bool
	MaxAdditionalServiceAccounts   *int
}

// Plan is a static plan catalog entry
type Plan struct {
	Type                   PlanType
	Name                   string
	Disabled               bool
	HasPolicies            bool
	HasResetPassword       bool
	HasCustomPermissions   bool
	SupportsSecretsManager bool
	PasswordManager        PasswordManagerPlanFeatures
	SecretsManager         SecretsManagerPlanFeatures
}

func intPtr(v int) *int { return &v }

// plans is the static catalog. Seat limits mirror the commercial offering:
// free and families plans ship fixed seat counts, teams and enterprise sell
// per-seat.
var plans = []Plan{
	{
		Type: PlanFree,
		Name: "Free",
		PasswordManager: PasswordManagerPlanFeatures{
			BaseSeats: 2,
			MaxSeats:  intPtr(2),
		},
		SupportsSecretsManager: true,
		SecretsManager: SecretsManagerPlanFeatures{
			BaseSeats:          2,
			BaseServiceAccount: 3,
		},
	},
	{
		Type: PlanFamilies,
		Name: "Families",
		PasswordManager: PasswordManagerPlanFeatures{
			BaseSeats: 6,
			MaxSeats:  intPtr(6),
		},
	},
	{
		Type:             PlanTeams,
		Name:             "Teams",
		HasResetPassword: true,
		PasswordManager: PasswordManagerPlanFeatures{
			BaseSeats:                0,
			HasAdditionalSeatsOption: true,
			AllowSeatAutoscale:       true,
		},
		SupportsSecretsManager: true,
		SecretsManager: SecretsManagerPlanFeatures{
			BaseSeats:                      0,
			BaseServiceAccount:             20,
			HasAdditionalSeatsOption:       true,
			AllowSeatAutoscale:             true,
			HasAdditionalServiceAccountOpt: true,
		},
	},
	{
		Type:                 PlanEnterprise,
		Name:                 "Enterprise",
		HasPolicies:          true,
		HasResetPassword:     true,
		HasCustomPermissions: true,
		PasswordManager: PasswordManagerPlanFeatures{
			BaseSeats:                0,
			HasAdditionalSeatsOption: true,
			AllowSeatAutoscale:       true,
		},
		SupportsSecretsManager: true,
		SecretsManager: SecretsManagerPlanFeatures{
			BaseSeats:                      0,
			BaseServiceAccount:             50,
			HasAdditionalSeatsOption:       true,
			AllowSeatAutoscale:             true,
			HasAdditionalServiceAccountOpt: true,
		},
	},
}

// GetPlan returns the catalog entry for a plan type, or nil if unknown
func GetPlan(planType PlanType) *Plan {
	for i := range plans {
		if plans[i].Type == planType {
			return &plans[i]
		}
	}
	return nil
}
