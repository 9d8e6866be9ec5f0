package authz

import (
	"github.com/covault/covault/pkg/orgs"
)

// ValidateUserUpdatePermissions checks whether the principal may assign
// newType to a member previously holding oldType. Owners may do anything;
// nobody else may touch an owner; admins may touch anything below owner;
// everyone else needs explicit user-management permission and may not touch
// admins, and may only grant custom permissions they hold themselves.
func ValidateUserUpdatePermissions(p ActingPrincipal, newType orgs.UserType, oldType *orgs.UserType, permissions *orgs.Permissions) error {
	if p.IsOwner() {
		return nil
	}
	if newType == orgs.UserTypeOwner || (oldType != nil && *oldType == orgs.UserTypeOwner) {
		return orgs.NewBadRequestError("Only an Owner can configure another Owner's account.")
	}
	if p.IsAdminOrOwner() {
		return nil
	}
	if !p.CanManageUsers() {
		return orgs.NewBadRequestError("Your account does not have permission to manage users.")
	}
	if newType == orgs.UserTypeAdmin || (oldType != nil && *oldType == orgs.UserTypeAdmin) {
		return orgs.NewBadRequestError("Custom users can not manage Admins or Owners.")
	}
	return ValidateCustomPermissionsGrant(p, permissions)
}

// ValidateCustomPermissionsEnabled checks that the organization's plan
// allows assigning the custom role
func ValidateCustomPermissionsEnabled(org *orgs.Organization, newType orgs.UserType) error {
	if newType == orgs.UserTypeCustom && !org.UseCustomPermissions {
		return orgs.NewBadRequestError("To enable custom permissions the organization must be on an Enterprise plan.")
	}
	return nil
}

// ValidateCustomPermissionsGrant ensures a custom-permission grant is a
// subset of the flags the granting principal holds. Owners and admins hold
// every flag implicitly.
func ValidateCustomPermissionsGrant(p ActingPrincipal, permissions *orgs.Permissions) error {
	if permissions == nil || p.IsAdminOrOwner() {
		return nil
	}

	held := p.perms()
	granted := *permissions

	type flag struct {
		granted bool
		held    bool
	}
	flags := []flag{
		{granted.ManageUsers, held.ManageUsers},
		{granted.ManageGroups, held.ManageGroups},
		{granted.ManagePolicies, held.ManagePolicies},
		{granted.ManageSso, held.ManageSso},
		{granted.ManageScim, held.ManageScim},
		{granted.ManageResetPassword, held.ManageResetPassword},
		{granted.AccessReports, held.AccessReports},
		{granted.AccessEventLogs, held.AccessEventLogs},
		{granted.AccessImportExport, held.AccessImportExport},
		{granted.CreateNewCollections, held.CreateNewCollections},
		{granted.EditAnyCollection, held.EditAnyCollection},
		{granted.DeleteAnyCollection, held.DeleteAnyCollection},
		{granted.EditAssignedCollections, held.EditAssignedCollections},
		{granted.DeleteAssignedCollections, held.DeleteAssignedCollections},
	}
	for _, f := range flags {
		if f.granted && !f.held {
			return orgs.NewBadRequestError("Custom users can only grant the same custom permissions that they have.")
		}
	}
	return nil
}
