package memstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/labadmin/core/access"
	"github.com/relabs-tech/labadmin/core/account"
)

func newAccount(login string) account.Account {
	return account.Account{
		Login:       login,
		Email:       login + "@example.org",
		Authorities: access.Roles{access.RoleUser},
	}
}

func TestCreateAndFind(t *testing.T) {
	ctx := context.Background()
	s := New()

	a, err := s.Create(ctx, newAccount("jdoe"))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.False(t, a.CreatedDate.IsZero())

	found, err := s.FindByLogin(ctx, "jdoe")
	require.NoError(t, err)
	assert.Equal(t, a.ID, found.ID)

	_, err = s.FindByLogin(ctx, "JDOE")
	assert.ErrorIs(t, err, account.ErrNotFound)

	found, err = s.FindByLoginFold(ctx, "JDoe")
	require.NoError(t, err)
	assert.Equal(t, a.ID, found.ID)

	found, err = s.FindByEmailFold(ctx, "JDOE@example.ORG")
	require.NoError(t, err)
	assert.Equal(t, a.ID, found.ID)

	_, err = s.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, account.ErrNotFound)
}

func TestCreateConflicts(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.Create(ctx, newAccount("jdoe"))
	require.NoError(t, err)

	_, err = s.Create(ctx, account.Account{Login: "JDOE", Email: "other@example.org"})
	assert.ErrorIs(t, err, account.ErrLoginConflict)

	_, err = s.Create(ctx, account.Account{Login: "other", Email: "JDOE@EXAMPLE.ORG"})
	assert.ErrorIs(t, err, account.ErrEmailConflict)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	s := New()
	a, err := s.Create(ctx, newAccount("jdoe"))
	require.NoError(t, err)
	b, err := s.Create(ctx, newAccount("bsmith"))
	require.NoError(t, err)

	a.FirstName = "John"
	a.LastModifiedDate = time.Time{}
	updated, err := s.Update(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, "John", updated.FirstName)
	assert.Equal(t, a.CreatedDate, updated.CreatedDate)

	// updating an account with its own login is no conflict, taking the login of another is
	b.Login = "JDoe"
	_, err = s.Update(ctx, b)
	assert.ErrorIs(t, err, account.ErrLoginConflict)

	_, err = s.Update(ctx, newAccount("ghost"))
	assert.ErrorIs(t, err, account.ErrNotFound)
}

func TestDeleteByLogin(t *testing.T) {
	ctx := context.Background()
	s := New()
	a, err := s.Create(ctx, newAccount("jdoe"))
	require.NoError(t, err)
	lab, err := s.SaveLab(ctx, account.Lab{Code: "L1"})
	require.NoError(t, err)
	require.NoError(t, s.SaveProfile(ctx, account.LabProfile{AccountID: a.ID, LabID: lab.ID}))

	require.NoError(t, s.DeleteByLogin(ctx, "jdoe"))
	_, err = s.FindByID(ctx, a.ID)
	assert.ErrorIs(t, err, account.ErrNotFound)
	_, err = s.ProfileByAccount(ctx, a.ID)
	assert.ErrorIs(t, err, account.ErrNotFound)

	// a second delete is a no-op
	assert.NoError(t, s.DeleteByLogin(ctx, "jdoe"))
}

func TestSaveProfileNeedsAccount(t *testing.T) {
	err := New().SaveProfile(context.Background(), account.LabProfile{AccountID: uuid.New()})
	assert.ErrorIs(t, err, account.ErrNotFound)
}

func TestList(t *testing.T) {
	ctx := context.Background()
	s := New()
	lab, err := s.SaveLab(ctx, account.Lab{Code: "L1"})
	require.NoError(t, err)

	logins := []string{"delta", "alpha", "echo", "charlie", "bravo"}
	for i, login := range logins {
		a, err := s.Create(ctx, newAccount(login))
		require.NoError(t, err)
		if i%2 == 0 {
			require.NoError(t, s.SaveProfile(ctx, account.LabProfile{AccountID: a.ID, LabID: lab.ID}))
		}
	}

	page, err := s.List(ctx, account.ListFilter{}, account.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, []string{"alpha", "bravo", "charlie", "delta", "echo"}, loginsOf(page.Items))

	page, err = s.List(ctx, account.ListFilter{}, account.PageRequest{Page: 1, Size: 2, Sort: account.SortByLogin, Descending: true})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 3, page.PageCount())
	assert.Equal(t, []string{"charlie", "bravo"}, loginsOf(page.Items))

	page, err = s.List(ctx, account.ListFilter{}, account.PageRequest{Page: 7, Size: 2})
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	page, err = s.List(ctx, account.ListFilter{LabID: lab.ID}, account.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, []string{"bravo", "delta", "echo"}, loginsOf(page.Items))
}

func TestList_PageOutOfRange(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, login := range []string{"alpha", "bravo"} {
		_, err := s.Create(ctx, newAccount(login))
		require.NoError(t, err)
	}

	for _, pr := range []account.PageRequest{
		{Page: 2305843009213693953, Size: 4},
		{Page: 4611686018427387904, Size: 4},
		{Page: math.MaxInt, Size: 1},
	} {
		_, ok := pr.Offset()
		assert.False(t, ok)
		page, err := s.List(ctx, account.ListFilter{}, pr)
		require.NoError(t, err)
		assert.Equal(t, 2, page.Total)
		assert.Empty(t, page.Items)
	}
}

// Two concurrent creates of the same login must not both succeed, even when both
// passed a check-then-act lookup before.
func TestConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	s := New()

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Create(ctx, account.Account{Login: "jdoe", Email: fmt.Sprintf("jdoe%d@example.org", i)})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		if !errors.Is(err, account.ErrLoginConflict) {
			t.Fatal("unexpected error:", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one successful create, got %d", succeeded)
	}
}

func loginsOf(accounts []account.Account) []string {
	logins := []string{}
	for _, a := range accounts {
		logins = append(logins, a.Login)
	}
	return logins
}
