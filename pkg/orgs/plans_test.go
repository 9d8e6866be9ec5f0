package orgs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPlan(t *testing.T) {
	t.Run("free plan has fixed seats", func(t *testing.T) {
		plan := GetPlan(PlanFree)
		require.NotNil(t, plan)
		assert.Equal(t, 2, plan.PasswordManager.BaseSeats)
		assert.False(t, plan.PasswordManager.HasAdditionalSeatsOption)
		assert.False(t, plan.PasswordManager.AllowSeatAutoscale)
		require.NotNil(t, plan.PasswordManager.MaxSeats)
		assert.Equal(t, 2, *plan.PasswordManager.MaxSeats)
	})

	t.Run("families plan has no secrets manager", func(t *testing.T) {
		plan := GetPlan(PlanFamilies)
		require.NotNil(t, plan)
		assert.False(t, plan.SupportsSecretsManager)
		assert.Equal(t, 6, plan.PasswordManager.BaseSeats)
	})

	t.Run("teams plan sells seats and autoscales", func(t *testing.T) {
		plan := GetPlan(PlanTeams)
		require.NotNil(t, plan)
		assert.True(t, plan.PasswordManager.HasAdditionalSeatsOption)
		assert.True(t, plan.PasswordManager.AllowSeatAutoscale)
		assert.False(t, plan.HasCustomPermissions)
		assert.True(t, plan.SecretsManager.AllowSeatAutoscale)
	})

	t.Run("enterprise plan has policies and custom permissions", func(t *testing.T) {
		plan := GetPlan(PlanEnterprise)
		require.NotNil(t, plan)
		assert.True(t, plan.HasPolicies)
		assert.True(t, plan.HasCustomPermissions)
		assert.True(t, plan.HasResetPassword)
	})

	t.Run("unknown plan returns nil", func(t *testing.T) {
		assert.Nil(t, GetPlan(PlanType("premium")))
	})
}
