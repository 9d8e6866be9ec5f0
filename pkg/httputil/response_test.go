package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covault/covault/pkg/billing"
	"github.com/covault/covault/pkg/collections"
	"github.com/covault/covault/pkg/orgs"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteJSON(rec, http.StatusCreated, map[string]string{"name": "Test Org"}))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Test Org", body["name"])
}

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			name:       "not found",
			err:        &orgs.NotFoundError{Resource: "organization"},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "bad request",
			err:        orgs.NewBadRequestError("User invalid."),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "plan limit",
			err:        &orgs.PlanLimitError{Message: "Seat limit has been reached."},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "collection grant validation",
			err:        collections.AccessSelection{Manage: true, ReadOnly: true}.Validate(),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "autoscale disabled",
			err:        &orgs.AutoscaleDisabledError{Reason: "Cannot autoscale on self-hosted instance."},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "insufficient permission",
			err:        &orgs.InsufficientPermissionError{Message: "you are not authorized to perform this action"},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "gateway failure",
			err:        &billing.GatewayError{Detail: fmt.Errorf("connection refused")},
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "unknown error stays opaque",
			err:        errors.New("pq: deadlock detected"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteServiceError(rec, tt.err)
			assert.Equal(t, tt.wantStatus, rec.Code)

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			if tt.wantStatus == http.StatusInternalServerError {
				assert.Equal(t, "internal server error", body.Error)
			} else {
				assert.Equal(t, tt.err.Error(), body.Error)
			}
		})
	}

	t.Run("aggregate errors include details", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteServiceError(rec, &orgs.AggregateError{
			Message: "One or more errors occurred.",
			Errs:    []error{errors.New("insert failed"), errors.New("rollback failed")},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "One or more errors occurred.", body.Error)
		assert.Len(t, body.Details, 2)
	})
}
