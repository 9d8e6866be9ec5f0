package authz

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/covault/covault/pkg/collections"
	"github.com/covault/covault/pkg/orgs"
)

// collectionReader is the slice of the collection store the resolver needs
type collectionReader interface {
	GetAccessSelectionsByOrgUser(ctx context.Context, orgUserID uuid.UUID) ([]collections.AccessSelection, error)
	GetManyByOrgUser(ctx context.Context, orgUserID uuid.UUID) ([]collections.CollectionDetails, error)
}

// AccessResolver merges client-submitted collection grants with grants the
// acting principal is not allowed to modify. Clients only transmit entries
// the principal can manage; entries outside that set must be preserved, not
// silently deleted.
type AccessResolver struct {
	store collectionReader
}

// NewAccessResolver creates a new AccessResolver
func NewAccessResolver(store collectionReader) *AccessResolver {
	return &AccessResolver{store: store}
}

// Resolve computes the final grant list to persist for the target member.
//
// When the per-collection permission regime is off, or the principal may
// edit every collection anyway, the submitted list is used as-is. Otherwise
// the target's existing grants are partitioned by whether the principal
// holds Manage on each collection; submitting a change to the unmanageable
// partition is rejected, and the unmanageable partition is re-added to the
// result so it survives the save.
func (r *AccessResolver) Resolve(ctx context.Context, p ActingPrincipal, org *orgs.Organization, target *orgs.OrgUser, submitted []collections.AccessSelection) ([]collections.AccessSelection, error) {
	if !org.FlexibleCollections {
		return submitted, nil
	}
	if err := Authorize(OpEditAllCollections, p, org); err == nil {
		return submitted, nil
	}

	existing, err := r.store.GetAccessSelectionsByOrgUser(ctx, target.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load target's collection grants: %w", err)
	}

	manageable := make(map[uuid.UUID]bool)
	if p.MemberID != uuid.Nil {
		details, err := r.store.GetManyByOrgUser(ctx, p.MemberID)
		if err != nil {
			return nil, fmt.Errorf("failed to load principal's collections: %w", err)
		}
		for _, d := range details {
			if d.Manage {
				manageable[d.ID] = true
			}
		}
	}

	var readonly []collections.AccessSelection
	readonlyIDs := make(map[uuid.UUID]bool)
	for _, grant := range existing {
		if !manageable[grant.ID] {
			readonly = append(readonly, grant)
			readonlyIDs[grant.ID] = true
		}
	}

	for _, grant := range submitted {
		if readonlyIDs[grant.ID] {
			return nil, &orgs.InsufficientPermissionError{
				Message: "You must have Can Manage permissions to edit a collection's membership",
			}
		}
	}

	result := make([]collections.AccessSelection, 0, len(submitted)+len(readonly))
	result = append(result, submitted...)
	result = append(result, readonly...)
	return result, nil
}
