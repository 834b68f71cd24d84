// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package access

import (
	"github.com/google/uuid"

	"github.com/relabs-tech/labadmin/core"
)

// Scope is the set of accounts a caller may see when listing
type Scope int

// the possible listing scopes
const (
	// ScopeNone means the caller sees no accounts at all
	ScopeNone Scope = iota
	// ScopeLab means the caller sees the accounts of one lab
	ScopeLab
	// ScopeAll means the caller sees every account
	ScopeAll
)

// ListScope returns the listing scope for a caller with roles who belongs to callerLab.
// A PI without a lab sees nothing.
func ListScope(roles Roles, callerLab uuid.UUID) Scope {
	switch {
	case roles.Has(RoleAdmin):
		return ScopeAll
	case roles.Has(RolePI) && callerLab != uuid.Nil:
		return ScopeLab
	}
	return ScopeNone
}

// CanUpdate returns true if a caller with roles in callerLab may update an account in targetLab.
// Admins may update everybody, PIs only the members of their own lab.
func CanUpdate(roles Roles, callerLab, targetLab uuid.UUID) bool {
	if roles.Has(RoleAdmin) {
		return true
	}
	return roles.Has(RolePI) && callerLab != uuid.Nil && callerLab == targetLab
}

// CanChangeRoles returns true if a caller with roles may change the roles of another account
func CanChangeRoles(roles Roles) bool {
	return roles.Has(RoleAdmin)
}

// IsAuthorized decides whether a caller with roles may perform operation on the accounts
// of targetLab. For list and read, targetLab is ignored; listing is narrowed by ListScope.
func IsAuthorized(roles Roles, operation core.Operation, callerLab, targetLab uuid.UUID) bool {
	switch operation {
	case core.OperationCreate, core.OperationDelete:
		return roles.Has(RoleAdmin)
	case core.OperationUpdate:
		return CanUpdate(roles, callerLab, targetLab)
	case core.OperationRead, core.OperationList:
		return len(roles) > 0
	}
	return false
}
