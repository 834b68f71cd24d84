// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package access

import (
	"fmt"
	"sort"

	"github.com/goccy/go-json"
)

// Role is an authority granted to an account. The set of roles is closed.
type Role string

// all known roles
const (
	RoleAdmin     Role = "ROLE_ADMIN"
	RolePI        Role = "ROLE_PI"
	RoleUser      Role = "ROLE_USER"
	RoleAnonymous Role = "ROLE_ANONYMOUS"
)

var allRoles = []Role{RoleAdmin, RolePI, RoleUser, RoleAnonymous}

// AllRoles returns every role known to the system
func AllRoles() []Role {
	return append([]Role(nil), allRoles...)
}

// ParseRole returns the role for name or an error if there is no such role
func ParseRole(name string) (Role, error) {
	for _, r := range allRoles {
		if string(r) == name {
			return r, nil
		}
	}
	return "", fmt.Errorf("%s is not a valid role", name)
}

// UnmarshalJSON is a custom JSON unmarshaller which rejects unknown roles
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	role, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// Roles is a set of roles. It is kept sorted and free of duplicates by Normalize.
type Roles []Role

// Has returns true if role is in the set
func (rs Roles) Has(role Role) bool {
	for _, r := range rs {
		if r == role {
			return true
		}
	}
	return false
}

// Normalize returns a sorted copy of the set without duplicates
func (rs Roles) Normalize() Roles {
	seen := make(map[Role]bool, len(rs))
	result := Roles{}
	for _, r := range rs {
		if !seen[r] {
			seen[r] = true
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// Equal returns true if both sets contain the same roles
func (rs Roles) Equal(other Roles) bool {
	a, b := rs.Normalize(), other.Normalize()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Strings returns the role names
func (rs Roles) Strings() []string {
	result := make([]string, len(rs))
	for i, r := range rs {
		result[i] = string(r)
	}
	return result
}
