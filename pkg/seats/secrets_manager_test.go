package seats

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covault/covault/pkg/orgs"
)

func smOrg(smSeats int) *orgs.Organization {
	org := teamsOrg(5)
	org.UseSecretsManager = true
	org.SmSeats = intPtr(smSeats)
	return org
}

func TestAdjustSmSeats(t *testing.T) {
	t.Run("independent of password manager pool", func(t *testing.T) {
		store := &fakeStore{}
		gateway := &fakeGateway{}
		service, _ := newTestService(store, gateway, &countingMailer{}, false)

		org := smOrg(2)
		_, err := service.AdjustSmSeats(context.Background(), org, 3)
		require.NoError(t, err)
		assert.Equal(t, 5, *org.SmSeats)
		assert.Equal(t, 5, *org.Seats)
		assert.Equal(t, []int{5}, gateway.smSeatCalls)
		assert.Empty(t, gateway.seatCalls)
	})

	t.Run("org without secrets manager access", func(t *testing.T) {
		service, _ := newTestService(&fakeStore{}, &fakeGateway{}, &countingMailer{}, false)
		org := teamsOrg(5)
		org.SmSeats = intPtr(2)

		_, err := service.AdjustSmSeats(context.Background(), org, 1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no access to Secrets Manager")
	})

	t.Run("shrink below occupied sm seats fails", func(t *testing.T) {
		store := &fakeStore{smOccupied: 4}
		service, _ := newTestService(store, &fakeGateway{}, &countingMailer{}, false)

		org := smOrg(5)
		_, err := service.AdjustSmSeats(context.Background(), org, -2)
		require.Error(t, err)
		assert.True(t, orgs.IsPlanLimit(err))
	})
}

func TestAutoAddSmSeats(t *testing.T) {
	t.Run("sm ceiling notification uses its own timestamp", func(t *testing.T) {
		store := &fakeStore{ownerEmails: []string{"owner@acme.com"}}
		mailer := &countingMailer{}
		service, _ := newTestService(store, &fakeGateway{}, mailer, false)

		org := smOrg(4)
		org.MaxAutoscaleSmSeats = intPtr(5)

		_, err := service.AutoAddSmSeats(context.Background(), org, 1)
		require.NoError(t, err)
		assert.Equal(t, 5, *org.SmSeats)
		assert.Equal(t, 1, mailer.smSeatLimitMails)
		assert.Equal(t, 0, mailer.seatLimitMails)
		assert.NotNil(t, org.SmOwnersNotifiedOfAutoscaling)
		assert.Nil(t, org.OwnersNotifiedOfAutoscaling)
	})

	t.Run("self-hosted cannot autoscale sm seats", func(t *testing.T) {
		service, _ := newTestService(&fakeStore{}, &fakeGateway{}, &countingMailer{}, true)
		org := smOrg(4)

		_, err := service.AutoAddSmSeats(context.Background(), org, 1)
		var disabled *orgs.AutoscaleDisabledError
		assert.ErrorAs(t, err, &disabled)
	})
}

func TestSmSeatsRequiredToAdd(t *testing.T) {
	store := &fakeStore{smOccupied: 3}
	service, _ := newTestService(store, &fakeGateway{}, &countingMailer{}, false)

	org := smOrg(4)
	required, err := service.SmSeatsRequiredToAdd(context.Background(), org, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, required)

	org.SmSeats = nil
	required, err = service.SmSeatsRequiredToAdd(context.Background(), org, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, required)
}
