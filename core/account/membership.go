// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/relabs-tech/labadmin/core/access"
)

// Membership is the lab scope of an account
type Membership struct {
	Profile    *LabProfile
	LabID      uuid.UUID
	HasProfile bool
}

// Resolver maps accounts to their lab membership
type Resolver struct {
	store Store
}

// NewResolver creates a membership resolver on top of store
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the membership of the account. Accounts without lab profile
// have a zero LabID.
func (r *Resolver) Resolve(ctx context.Context, accountID uuid.UUID) (Membership, error) {
	if accountID == uuid.Nil {
		return Membership{}, nil
	}
	profile, err := r.store.ProfileByAccount(ctx, accountID)
	if errors.Is(err, ErrNotFound) {
		return Membership{}, nil
	}
	if err != nil {
		return Membership{}, fmt.Errorf("resolve lab of %s: %w", accountID, err)
	}
	return Membership{Profile: &profile, LabID: profile.LabID, HasProfile: true}, nil
}

// ResolveCaller returns the membership of the authorized caller
func (r *Resolver) ResolveCaller(ctx context.Context, auth *access.Authorization) (Membership, error) {
	if auth == nil {
		return Membership{}, nil
	}
	return r.Resolve(ctx, auth.AccountID)
}

// AccountIDByLogin implements access.IdentityLookup
func (r *Resolver) AccountIDByLogin(ctx context.Context, login string) (uuid.UUID, error) {
	a, err := r.store.FindByLogin(ctx, normalize(login))
	if errors.Is(err, ErrNotFound) {
		return uuid.Nil, access.ErrUnknownIdentity
	}
	if err != nil {
		return uuid.Nil, err
	}
	return a.ID, nil
}
