// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package account

import (
	"context"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/relabs-tech/labadmin/core/access"
)

// SortProperty is a property accounts can be sorted by
type SortProperty string

// all sortable properties
const (
	SortByID               SortProperty = "id"
	SortByLogin            SortProperty = "login"
	SortByEmail            SortProperty = "email"
	SortByFirstName        SortProperty = "firstName"
	SortByLastName         SortProperty = "lastName"
	SortByCreatedDate      SortProperty = "createdDate"
	SortByLastModifiedDate SortProperty = "lastModifiedDate"
)

// ParseSortProperty returns the sort property for name
func ParseSortProperty(name string) (SortProperty, bool) {
	switch p := SortProperty(name); p {
	case SortByID, SortByLogin, SortByEmail, SortByFirstName, SortByLastName, SortByCreatedDate, SortByLastModifiedDate:
		return p, true
	}
	return "", false
}

// PageRequest selects one page of a listing. A zero Size means unpaged.
type PageRequest struct {
	Page       int
	Size       int
	Sort       SortProperty
	Descending bool
}

// Unpaged returns true if the request asks for the full listing
func (p PageRequest) Unpaged() bool {
	return p.Size <= 0
}

// Offset returns the index of the first item of the page. It returns false if the
// end of the page is not representable as an int.
func (p PageRequest) Offset() (int, bool) {
	if p.Unpaged() {
		return 0, true
	}
	if p.Page < 0 || p.Page > (math.MaxInt-p.Size)/p.Size {
		return 0, false
	}
	return p.Page * p.Size, true
}

// Page is one page of a listing
type Page struct {
	Items   []Account
	Total   int
	Request PageRequest
}

// PageCount returns the number of pages of the complete listing
func (p Page) PageCount() int {
	if p.Request.Unpaged() {
		return 1
	}
	if p.Total == 0 {
		return 1
	}
	return (p.Total-1)/p.Request.Size + 1
}

// ListFilter narrows a listing. A zero LabID means all accounts.
type ListFilter struct {
	LabID uuid.UUID
}

// Store persists accounts and their lab profiles.
//
// Create and Update must reject case-insensitive duplicates of login or email
// with ErrLoginConflict or ErrEmailConflict, atomically with the write.
type Store interface {
	FindByID(ctx context.Context, id uuid.UUID) (Account, error)
	// FindByLogin matches the stored login exactly
	FindByLogin(ctx context.Context, login string) (Account, error)
	FindByLoginFold(ctx context.Context, login string) (Account, error)
	FindByEmailFold(ctx context.Context, email string) (Account, error)
	Create(ctx context.Context, a Account) (Account, error)
	Update(ctx context.Context, a Account) (Account, error)
	// DeleteByLogin removes the account and its lab profile. Deleting a
	// login that does not exist is not an error.
	DeleteByLogin(ctx context.Context, login string) error
	List(ctx context.Context, filter ListFilter, page PageRequest) (Page, error)

	ProfileByAccount(ctx context.Context, accountID uuid.UUID) (LabProfile, error)
	SaveProfile(ctx context.Context, profile LabProfile) error
	FindLab(ctx context.Context, id uuid.UUID) (Lab, error)
	SaveLab(ctx context.Context, lab Lab) (Lab, error)
}

// Authorities returns the static set of roles known to the system
func Authorities() access.Roles {
	return access.Roles(access.AllRoles())
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
