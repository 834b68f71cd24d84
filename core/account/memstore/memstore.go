// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

// Package memstore provides an in-memory account.Store for tests and local runs
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/labadmin/core/account"
)

// Store is an in-memory account.Store. All operations are serialized by a mutex, so
// the uniqueness checks of Create and Update are atomic with the write.
type Store struct {
	mutex    sync.RWMutex
	accounts map[uuid.UUID]account.Account
	profiles map[uuid.UUID]account.LabProfile
	labs     map[uuid.UUID]account.Lab
	now      func() time.Time
}

// New returns an empty store
func New() *Store {
	return &Store{
		accounts: map[uuid.UUID]account.Account{},
		profiles: map[uuid.UUID]account.LabProfile{},
		labs:     map[uuid.UUID]account.Lab{},
		now:      time.Now,
	}
}

var _ account.Store = (*Store)(nil)

func (s *Store) find(match func(a account.Account) bool) (account.Account, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	for _, a := range s.accounts {
		if match(a) {
			return a, nil
		}
	}
	return account.Account{}, account.ErrNotFound
}

// FindByID implements account.Store
func (s *Store) FindByID(ctx context.Context, id uuid.UUID) (account.Account, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return account.Account{}, account.ErrNotFound
	}
	return a, nil
}

// FindByLogin implements account.Store
func (s *Store) FindByLogin(ctx context.Context, login string) (account.Account, error) {
	return s.find(func(a account.Account) bool { return a.Login == login })
}

// FindByLoginFold implements account.Store
func (s *Store) FindByLoginFold(ctx context.Context, login string) (account.Account, error) {
	return s.find(func(a account.Account) bool { return strings.EqualFold(a.Login, login) })
}

// FindByEmailFold implements account.Store
func (s *Store) FindByEmailFold(ctx context.Context, email string) (account.Account, error) {
	return s.find(func(a account.Account) bool { return strings.EqualFold(a.Email, email) })
}

// conflict must be called with the write lock held
func (s *Store) conflict(a account.Account) error {
	for _, other := range s.accounts {
		if other.ID == a.ID {
			continue
		}
		if strings.EqualFold(other.Login, a.Login) {
			return account.ErrLoginConflict
		}
		if strings.EqualFold(other.Email, a.Email) {
			return account.ErrEmailConflict
		}
	}
	return nil
}

// Create implements account.Store
func (s *Store) Create(ctx context.Context, a account.Account) (account.Account, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if _, ok := s.accounts[a.ID]; ok {
		return account.Account{}, account.ErrLoginConflict
	}
	if err := s.conflict(a); err != nil {
		return account.Account{}, err
	}
	now := s.now().UTC()
	if a.CreatedDate.IsZero() {
		a.CreatedDate = now
	}
	if a.LastModifiedDate.IsZero() {
		a.LastModifiedDate = a.CreatedDate
	}
	s.accounts[a.ID] = a
	return a, nil
}

// Update implements account.Store
func (s *Store) Update(ctx context.Context, a account.Account) (account.Account, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	existing, ok := s.accounts[a.ID]
	if !ok {
		return account.Account{}, account.ErrNotFound
	}
	if err := s.conflict(a); err != nil {
		return account.Account{}, err
	}
	a.CreatedBy = existing.CreatedBy
	a.CreatedDate = existing.CreatedDate
	if a.LastModifiedDate.IsZero() {
		a.LastModifiedDate = s.now().UTC()
	}
	s.accounts[a.ID] = a
	return a, nil
}

// DeleteByLogin implements account.Store
func (s *Store) DeleteByLogin(ctx context.Context, login string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for id, a := range s.accounts {
		if a.Login == login {
			delete(s.accounts, id)
			delete(s.profiles, id)
		}
	}
	return nil
}

// List implements account.Store
func (s *Store) List(ctx context.Context, filter account.ListFilter, page account.PageRequest) (account.Page, error) {
	s.mutex.RLock()
	items := []account.Account{}
	for id, a := range s.accounts {
		if filter.LabID != uuid.Nil {
			profile, ok := s.profiles[id]
			if !ok || profile.LabID != filter.LabID {
				continue
			}
		}
		items = append(items, a)
	}
	s.mutex.RUnlock()

	less := lessFunc(page.Sort)
	sort.SliceStable(items, func(i, j int) bool {
		if page.Descending {
			return less(items[j], items[i])
		}
		return less(items[i], items[j])
	})

	result := account.Page{Total: len(items), Request: page}
	if page.Unpaged() {
		result.Items = items
		return result, nil
	}
	from, ok := page.Offset()
	if !ok || from > len(items) {
		from = len(items)
	}
	to := from + page.Size
	if to > len(items) {
		to = len(items)
	}
	result.Items = items[from:to]
	return result, nil
}

func lessFunc(property account.SortProperty) func(a, b account.Account) bool {
	byString := func(get func(a account.Account) string) func(a, b account.Account) bool {
		return func(a, b account.Account) bool {
			x, y := get(a), get(b)
			if x == y {
				return a.Login < b.Login
			}
			return x < y
		}
	}
	switch property {
	case account.SortByID:
		return byString(func(a account.Account) string { return a.ID.String() })
	case account.SortByEmail:
		return byString(func(a account.Account) string { return a.Email })
	case account.SortByFirstName:
		return byString(func(a account.Account) string { return a.FirstName })
	case account.SortByLastName:
		return byString(func(a account.Account) string { return a.LastName })
	case account.SortByCreatedDate:
		return func(a, b account.Account) bool { return a.CreatedDate.Before(b.CreatedDate) }
	case account.SortByLastModifiedDate:
		return func(a, b account.Account) bool { return a.LastModifiedDate.Before(b.LastModifiedDate) }
	}
	return func(a, b account.Account) bool { return a.Login < b.Login }
}

// ProfileByAccount implements account.Store
func (s *Store) ProfileByAccount(ctx context.Context, accountID uuid.UUID) (account.LabProfile, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	p, ok := s.profiles[accountID]
	if !ok {
		return account.LabProfile{}, account.ErrNotFound
	}
	return p, nil
}

// SaveProfile implements account.Store
func (s *Store) SaveProfile(ctx context.Context, profile account.LabProfile) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, ok := s.accounts[profile.AccountID]; !ok {
		return account.ErrNotFound
	}
	s.profiles[profile.AccountID] = profile
	return nil
}

// FindLab implements account.Store
func (s *Store) FindLab(ctx context.Context, id uuid.UUID) (account.Lab, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	lab, ok := s.labs[id]
	if !ok {
		return account.Lab{}, account.ErrNotFound
	}
	return lab, nil
}

// SaveLab implements account.Store
func (s *Store) SaveLab(ctx context.Context, lab account.Lab) (account.Lab, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if lab.ID == uuid.Nil {
		lab.ID = uuid.New()
	}
	if lab.CreatedAt.IsZero() {
		lab.CreatedAt = s.now().UTC()
	}
	s.labs[lab.ID] = lab
	return lab, nil
}
