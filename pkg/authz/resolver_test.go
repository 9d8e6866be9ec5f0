package authz

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covault/covault/pkg/collections"
	"github.com/covault/covault/pkg/orgs"
)

type fakeCollectionReader struct {
	targetGrants     []collections.AccessSelection
	principalDetails []collections.CollectionDetails
	targetGrantsErr  error
	principalDetErr  error
}

func (f *fakeCollectionReader) GetAccessSelectionsByOrgUser(ctx context.Context, orgUserID uuid.UUID) ([]collections.AccessSelection, error) {
	return f.targetGrants, f.targetGrantsErr
}

func (f *fakeCollectionReader) GetManyByOrgUser(ctx context.Context, orgUserID uuid.UUID) ([]collections.CollectionDetails, error) {
	return f.principalDetails, f.principalDetErr
}

func TestResolve(t *testing.T) {
	targetMember := &orgs.OrgUser{ID: uuid.New()}
	managedID := uuid.New()
	unmanagedID := uuid.New()

	managedDetails := []collections.CollectionDetails{
		{Collection: collections.Collection{ID: managedID}, Manage: true},
		{Collection: collections.Collection{ID: unmanagedID}, Manage: false},
	}

	t.Run("old regime passes submitted list through", func(t *testing.T) {
		resolver := NewAccessResolver(&fakeCollectionReader{})
		org := &orgs.Organization{FlexibleCollections: false}
		p := memberPrincipal(orgs.UserTypeUser, nil)

		submitted := []collections.AccessSelection{{ID: uuid.New(), ReadOnly: true}}
		result, err := resolver.Resolve(context.Background(), p, org, targetMember, submitted)
		require.NoError(t, err)
		assert.Equal(t, submitted, result)
	})

	t.Run("edit-all principal is idempotent", func(t *testing.T) {
		resolver := NewAccessResolver(&fakeCollectionReader{})
		org := &orgs.Organization{FlexibleCollections: true, AllowAdminAccessToAllCollectionItems: true}
		p := memberPrincipal(orgs.UserTypeAdmin, nil)

		submitted := []collections.AccessSelection{{ID: uuid.New(), Manage: true}}
		result, err := resolver.Resolve(context.Background(), p, org, targetMember, submitted)
		require.NoError(t, err)
		assert.Equal(t, submitted, result)
	})

	t.Run("unmanageable grants are preserved", func(t *testing.T) {
		resolver := NewAccessResolver(&fakeCollectionReader{
			targetGrants: []collections.AccessSelection{
				{ID: managedID, ReadOnly: true},
				{ID: unmanagedID, HidePasswords: true},
			},
			principalDetails: managedDetails,
		})
		org := &orgs.Organization{FlexibleCollections: true, AllowAdminAccessToAllCollectionItems: false}
		p := memberPrincipal(orgs.UserTypeAdmin, nil)

		// Client drops the unmanaged entry and rewrites the managed one.
		submitted := []collections.AccessSelection{{ID: managedID, Manage: true}}
		result, err := resolver.Resolve(context.Background(), p, org, targetMember, submitted)
		require.NoError(t, err)
		require.Len(t, result, 2)
		assert.Equal(t, managedID, result[0].ID)
		assert.True(t, result[0].Manage)
		assert.Equal(t, unmanagedID, result[1].ID)
		assert.True(t, result[1].HidePasswords)
	})

	t.Run("editing an unmanageable grant is rejected", func(t *testing.T) {
		resolver := NewAccessResolver(&fakeCollectionReader{
			targetGrants: []collections.AccessSelection{
				{ID: unmanagedID, HidePasswords: true},
			},
			principalDetails: managedDetails,
		})
		org := &orgs.Organization{FlexibleCollections: true, AllowAdminAccessToAllCollectionItems: false}
		p := memberPrincipal(orgs.UserTypeAdmin, nil)

		submitted := []collections.AccessSelection{{ID: unmanagedID, ReadOnly: true}}
		_, err := resolver.Resolve(context.Background(), p, org, targetMember, submitted)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Can Manage permissions")
	})
}
