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
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/labadmin/core"
	"github.com/relabs-tech/labadmin/core/access"
	"github.com/relabs-tech/labadmin/core/logger"
)

// DefaultLangKey is the language of accounts created without one
const DefaultLangKey = "en"

// LocationPrefix is the path prefix of the location returned for created accounts
const LocationPrefix = "/api/users/"

// Notifier informs account holders. Implementations must not block the caller
// and must not report errors back.
type Notifier interface {
	SendCreation(ctx context.Context, a Account)
}

// Builder is a builder helper for the Service
type Builder struct {
	// Store persists the accounts. Mandatory.
	Store Store
	// Notifier receives creation notices. If nil, nobody is notified.
	Notifier Notifier
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
	// Authorizations is the cache of the jwt middleware. It is flushed when accounts
	// are updated or deleted. Optional.
	Authorizations *access.AuthorizationCache
}

// Service administers accounts on behalf of the caller found in the context
type Service struct {
	store    Store
	resolver *Resolver
	notifier Notifier
	now      func() time.Time
	authz    *access.AuthorizationCache
}

type nopNotifier struct{}

func (nopNotifier) SendCreation(context.Context, Account) {}

// NewService creates a new account service
func NewService(sb *Builder) *Service {
	if sb.Store == nil {
		panic("account service needs a store")
	}
	s := &Service{
		store:    sb.Store,
		resolver: NewResolver(sb.Store),
		notifier: sb.Notifier,
		now:      sb.Now,
		authz:    sb.Authorizations,
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Resolver returns the membership resolver of the service
func (s *Service) Resolver() *Resolver {
	return s.resolver
}

func rolesOf(auth *access.Authorization) access.Roles {
	if auth == nil {
		return nil
	}
	return auth.Roles
}

func loginOf(auth *access.Authorization) string {
	if auth == nil {
		return ""
	}
	return auth.Login
}

// flushAuthorizations drops cached token lookups, which may point to changed or deleted accounts
func (s *Service) flushAuthorizations() {
	if s.authz != nil {
		s.authz.Flush()
	}
}

// checkInput validates the fields every create and update needs
func checkInput(in Input) error {
	login := normalize(in.Login)
	if login == "" || !ValidLogin(login) {
		return validationError(KeyInvalid, fmt.Sprintf("invalid login '%s'", in.Login))
	}
	if normalize(in.Email) == "" {
		return validationError(KeyInvalid, "email is required")
	}
	return nil
}

// CreateAccount creates a new inactive account and sends it a creation notice.
// It returns the stored account and its location.
func (s *Service) CreateAccount(ctx context.Context, in Input) (Account, string, error) {
	auth := access.AuthorizationFromContext(ctx)
	rlog := logger.FromContext(ctx)

	if !access.IsAuthorized(rolesOf(auth), core.OperationCreate, uuid.Nil, uuid.Nil) {
		return Account{}, "", ErrForbidden
	}
	if in.ID != nil {
		return Account{}, "", validationError(KeyIDExists, "a new user cannot already have an ID")
	}
	if err := checkInput(in); err != nil {
		return Account{}, "", err
	}
	if err := s.checkUnique(ctx, uuid.Nil, in); err != nil {
		return Account{}, "", err
	}

	a := Account{ID: uuid.New()}
	a.apply(in)
	a.Activated = false
	if len(a.Authorities) == 0 {
		a.Authorities = access.Roles{access.RoleUser}
	}
	if a.LangKey == "" {
		a.LangKey = DefaultLangKey
	}
	hash, err := randomPasswordHash()
	if err != nil {
		return Account{}, "", err
	}
	a.PasswordHash = hash
	if a.ActivationKey, err = randomKey(); err != nil {
		return Account{}, "", err
	}
	if a.ResetKey, err = randomKey(); err != nil {
		return Account{}, "", err
	}
	now := s.now().UTC()
	a.ResetDate = &now
	a.CreatedBy = loginOf(auth)
	a.CreatedDate = now
	a.LastModifiedBy = a.CreatedBy
	a.LastModifiedDate = now

	created, err := s.store.Create(ctx, a)
	if err != nil {
		return Account{}, "", err
	}
	rlog.Infof("created account %s (%s) with roles %v", created.Login, created.ID, created.Authorities.Strings())
	s.notifier.SendCreation(ctx, created)
	return created, LocationPrefix + created.Login, nil
}

// checkUnique fails if another account than id already uses the login or the email of in
func (s *Service) checkUnique(ctx context.Context, id uuid.UUID, in Input) error {
	existing, err := s.store.FindByLoginFold(ctx, normalize(in.Login))
	switch {
	case err == nil && existing.ID != id:
		return ErrLoginConflict
	case err != nil && !errors.Is(err, ErrNotFound):
		return err
	}
	existing, err = s.store.FindByEmailFold(ctx, normalize(in.Email))
	switch {
	case err == nil && existing.ID != id:
		return ErrEmailConflict
	case err != nil && !errors.Is(err, ErrNotFound):
		return err
	}
	return nil
}

// UpdateAccount updates the account identified by in.ID. Admins may update everybody,
// PIs only accounts of their own lab. Role changes by non-admins are ignored.
func (s *Service) UpdateAccount(ctx context.Context, in Input) (Account, error) {
	auth := access.AuthorizationFromContext(ctx)
	rlog := logger.FromContext(ctx)

	if auth == nil {
		return Account{}, ErrForbidden
	}
	if in.ID == nil || *in.ID == uuid.Nil {
		return Account{}, validationError(KeyIDMissing, "an updated user needs an ID")
	}
	if err := checkInput(in); err != nil {
		return Account{}, err
	}

	target, err := s.store.FindByID(ctx, *in.ID)
	if err != nil {
		return Account{}, err
	}
	caller, err := s.resolver.ResolveCaller(ctx, auth)
	if err != nil {
		return Account{}, err
	}
	membership, err := s.resolver.Resolve(ctx, target.ID)
	if err != nil {
		return Account{}, err
	}
	if !access.IsAuthorized(auth.Roles, core.OperationUpdate, caller.LabID, membership.LabID) {
		rlog.Warnf("%s may not update account %s", auth.Login, target.Login)
		return Account{}, ErrForbidden
	}

	if err := s.checkUnique(ctx, target.ID, in); err != nil {
		return Account{}, err
	}

	if !access.CanChangeRoles(auth.Roles) {
		if in.Authorities != nil && !in.Authorities.Normalize().Equal(target.Authorities.Normalize()) {
			rlog.Warnf("ignoring role change of %s requested by %s", target.Login, auth.Login)
		}
		in.Authorities = target.Authorities
	} else if len(in.Authorities) == 0 {
		return Account{}, validationError(KeyNoAuthorities, "a user needs at least one role")
	}

	updated := target
	updated.apply(in)
	updated.LastModifiedBy = auth.Login
	updated.LastModifiedDate = s.now().UTC()

	updated, err = s.store.Update(ctx, updated)
	if err != nil {
		return Account{}, err
	}
	s.flushAuthorizations()
	rlog.Infof("updated account %s (%s)", updated.Login, updated.ID)
	return updated, nil
}

// ListAccounts lists the accounts visible to the caller: all accounts for admins,
// the members of the own lab for PIs, nothing for everybody else.
func (s *Service) ListAccounts(ctx context.Context, page PageRequest) (Page, error) {
	auth := access.AuthorizationFromContext(ctx)
	empty := Page{Items: []Account{}, Request: page}
	if auth == nil {
		return empty, nil
	}
	var callerLab uuid.UUID
	if !auth.IsAdmin() && auth.HasRole(access.RolePI) {
		caller, err := s.resolver.ResolveCaller(ctx, auth)
		if err != nil {
			return Page{}, err
		}
		callerLab = caller.LabID
	}
	if page.Sort == "" {
		page.Sort = SortByLogin
	}
	switch access.ListScope(auth.Roles, callerLab) {
	case access.ScopeAll:
		return s.store.List(ctx, ListFilter{}, page)
	case access.ScopeLab:
		return s.store.List(ctx, ListFilter{LabID: callerLab}, page)
	}
	empty.Request = page
	return empty, nil
}

// GetAccount returns the account with the exact login
func (s *Service) GetAccount(ctx context.Context, login string) (Account, error) {
	auth := access.AuthorizationFromContext(ctx)
	if !access.IsAuthorized(rolesOf(auth), core.OperationRead, uuid.Nil, uuid.Nil) {
		return Account{}, ErrForbidden
	}
	return s.store.FindByLogin(ctx, login)
}

// DeleteAccount deletes the account with the exact login. Deleting a
// login which does not exist succeeds.
func (s *Service) DeleteAccount(ctx context.Context, login string) error {
	auth := access.AuthorizationFromContext(ctx)
	if !access.IsAuthorized(rolesOf(auth), core.OperationDelete, uuid.Nil, uuid.Nil) {
		return ErrForbidden
	}
	if err := s.store.DeleteByLogin(ctx, login); err != nil {
		return err
	}
	s.flushAuthorizations()
	logger.FromContext(ctx).Infof("deleted account %s", login)
	return nil
}

// ListAuthorities returns all roles known to the system
func (s *Service) ListAuthorities(ctx context.Context) (access.Roles, error) {
	auth := access.AuthorizationFromContext(ctx)
	if !access.IsAuthorized(rolesOf(auth), core.OperationList, uuid.Nil, uuid.Nil) {
		return nil, ErrForbidden
	}
	return Authorities(), nil
}
