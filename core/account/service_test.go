package account_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/labadmin/core/access"
	"github.com/relabs-tech/labadmin/core/account"
	"github.com/relabs-tech/labadmin/core/account/memstore"
)

type recordingNotifier struct {
	mutex sync.Mutex
	sent  []account.Account
}

func (n *recordingNotifier) SendCreation(ctx context.Context, a account.Account) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	n.sent = append(n.sent, a)
}

func (n *recordingNotifier) count() int {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	return len(n.sent)
}

type fixture struct {
	store    *memstore.Store
	notifier *recordingNotifier
	service  *account.Service
	admin    context.Context
	lab1     uuid.UUID
	lab2     uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{store: memstore.New(), notifier: &recordingNotifier{}}
	f.service = account.NewService(&account.Builder{Store: f.store, Notifier: f.notifier})
	admin := f.seed(t, "admin", uuid.Nil, access.RoleAdmin)
	f.admin = asCaller(admin)

	ctx := context.Background()
	l1, err := f.store.SaveLab(ctx, account.Lab{Code: "L1"})
	require.NoError(t, err)
	l2, err := f.store.SaveLab(ctx, account.Lab{Code: "L2"})
	require.NoError(t, err)
	f.lab1, f.lab2 = l1.ID, l2.ID
	return f
}

// seed stores an account directly, with a lab profile if lab is not nil
func (f *fixture) seed(t *testing.T, login string, lab uuid.UUID, roles ...access.Role) account.Account {
	ctx := context.Background()
	a, err := f.store.Create(ctx, account.Account{
		Login:       login,
		Email:       login + "@x.org",
		Authorities: access.Roles(roles).Normalize(),
	})
	require.NoError(t, err)
	if lab != uuid.Nil {
		require.NoError(t, f.store.SaveProfile(ctx, account.LabProfile{AccountID: a.ID, LabID: lab}))
	}
	return a
}

func asCaller(a account.Account) context.Context {
	return access.ContextWithAuthorization(context.Background(), &access.Authorization{
		AccountID: a.ID,
		Login:     a.Login,
		Roles:     a.Authorities,
	})
}

func inputFrom(a account.Account) account.Input {
	id := a.ID
	return account.Input{
		ID:          &id,
		Login:       a.Login,
		FirstName:   a.FirstName,
		LastName:    a.LastName,
		Email:       a.Email,
		Activated:   a.Activated,
		LangKey:     a.LangKey,
		Authorities: a.Authorities,
	}
}

func TestCreateAccount(t *testing.T) {
	f := newFixture(t)

	created, location, err := f.service.CreateAccount(f.admin, account.Input{Login: "jdoe", Email: "jdoe@x.org", Activated: true})
	require.NoError(t, err)
	assert.Equal(t, "/api/users/jdoe", location)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.False(t, created.Activated)
	assert.Equal(t, access.Roles{access.RoleUser}, created.Authorities)
	assert.Equal(t, "en", created.LangKey)
	assert.Equal(t, "admin", created.CreatedBy)
	assert.NotEmpty(t, created.PasswordHash)
	assert.NotEmpty(t, created.ResetKey)
	assert.NotNil(t, created.ResetDate)
	assert.Equal(t, 1, f.notifier.count())

	// a case variant of the login is a conflict and sends nothing
	_, _, err = f.service.CreateAccount(f.admin, account.Input{Login: "JDOE", Email: "other@x.org"})
	assert.ErrorIs(t, err, account.ErrLoginConflict)
	_, _, err = f.service.CreateAccount(f.admin, account.Input{Login: "other", Email: "JDoe@X.org"})
	assert.ErrorIs(t, err, account.ErrEmailConflict)
	assert.Equal(t, 1, f.notifier.count())
}

func TestCreateAccount_LowerCase(t *testing.T) {
	f := newFixture(t)
	created, location, err := f.service.CreateAccount(f.admin, account.Input{
		Login:       "JaneDoe",
		Email:       "Jane.Doe@X.org",
		LangKey:     "de",
		Authorities: access.Roles{access.RolePI, access.RoleUser, access.RolePI},
	})
	require.NoError(t, err)
	assert.Equal(t, "janedoe", created.Login)
	assert.Equal(t, "jane.doe@x.org", created.Email)
	assert.Equal(t, "de", created.LangKey)
	assert.Equal(t, access.Roles{access.RolePI, access.RoleUser}, created.Authorities)
	assert.Equal(t, "/api/users/janedoe", location)
}

func TestCreateAccount_Rejects(t *testing.T) {
	f := newFixture(t)
	pi := f.seed(t, "pi", f.lab1, access.RolePI)
	before, err := f.store.List(context.Background(), account.ListFilter{}, account.PageRequest{})
	require.NoError(t, err)

	id := uuid.New()
	_, _, err = f.service.CreateAccount(f.admin, account.Input{ID: &id, Login: "jdoe", Email: "jdoe@x.org"})
	var verr *account.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, account.KeyIDExists, verr.Key)
	assert.ErrorIs(t, err, account.ErrValidation)

	_, _, err = f.service.CreateAccount(f.admin, account.Input{Login: "j doe", Email: "jdoe@x.org"})
	assert.ErrorIs(t, err, account.ErrValidation)

	_, _, err = f.service.CreateAccount(asCaller(pi), account.Input{Login: "jdoe", Email: "jdoe@x.org"})
	assert.ErrorIs(t, err, account.ErrForbidden)

	_, _, err = f.service.CreateAccount(context.Background(), account.Input{Login: "jdoe", Email: "jdoe@x.org"})
	assert.ErrorIs(t, err, account.ErrForbidden)

	after, err := f.store.List(context.Background(), account.ListFilter{}, account.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, before.Total, after.Total)
	assert.Equal(t, 0, f.notifier.count())
}

func TestUpdateAccount_PI(t *testing.T) {
	f := newFixture(t)
	pi := f.seed(t, "pi", f.lab1, access.RolePI)
	member := f.seed(t, "member", f.lab1, access.RoleUser)
	stranger := f.seed(t, "stranger", f.lab2, access.RoleUser)
	ctx := asCaller(pi)

	in := inputFrom(member)
	in.FirstName = "Mem"
	in.Authorities = access.Roles{access.RoleAdmin}
	updated, err := f.service.UpdateAccount(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "Mem", updated.FirstName)
	assert.Equal(t, "pi", updated.LastModifiedBy)
	// the role change is discarded
	assert.Equal(t, access.Roles{access.RoleUser}, updated.Authorities)

	in = inputFrom(stranger)
	in.FirstName = "Changed"
	_, err = f.service.UpdateAccount(ctx, in)
	assert.ErrorIs(t, err, account.ErrForbidden)
	unchanged, err := f.store.FindByID(context.Background(), stranger.ID)
	require.NoError(t, err)
	assert.Equal(t, "", unchanged.FirstName)
}

func TestUpdateAccount_PIWithoutLab(t *testing.T) {
	f := newFixture(t)
	pi := f.seed(t, "pi", uuid.Nil, access.RolePI)
	loner := f.seed(t, "loner", uuid.Nil, access.RoleUser)

	_, err := f.service.UpdateAccount(asCaller(pi), inputFrom(loner))
	assert.ErrorIs(t, err, account.ErrForbidden)
}

func TestUpdateAccount_User(t *testing.T) {
	f := newFixture(t)
	user := f.seed(t, "user", f.lab1, access.RoleUser)
	member := f.seed(t, "member", f.lab1, access.RoleUser)

	_, err := f.service.UpdateAccount(asCaller(user), inputFrom(member))
	assert.ErrorIs(t, err, account.ErrForbidden)
}

func TestUpdateAccount_Admin(t *testing.T) {
	f := newFixture(t)
	member := f.seed(t, "member", f.lab1, access.RoleUser)
	f.seed(t, "taken", uuid.Nil, access.RoleUser)

	in := inputFrom(member)
	in.Authorities = access.Roles{access.RolePI, access.RoleUser}
	updated, err := f.service.UpdateAccount(f.admin, in)
	require.NoError(t, err)
	assert.Equal(t, access.Roles{access.RolePI, access.RoleUser}, updated.Authorities)

	in.Authorities = access.Roles{}
	_, err = f.service.UpdateAccount(f.admin, in)
	var verr *account.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, account.KeyNoAuthorities, verr.Key)

	in = inputFrom(updated)
	in.Login = "TAKEN"
	_, err = f.service.UpdateAccount(f.admin, in)
	assert.ErrorIs(t, err, account.ErrLoginConflict)

	in = inputFrom(updated)
	in.Email = "taken@x.org"
	_, err = f.service.UpdateAccount(f.admin, in)
	assert.ErrorIs(t, err, account.ErrEmailConflict)

	in = inputFrom(updated)
	in.Login = "Member"
	_, err = f.service.UpdateAccount(f.admin, in)
	assert.NoError(t, err, "keeping the own login in another case is no conflict")

	missing := uuid.New()
	in.ID = &missing
	_, err = f.service.UpdateAccount(f.admin, in)
	assert.ErrorIs(t, err, account.ErrNotFound)

	in.ID = nil
	_, err = f.service.UpdateAccount(f.admin, in)
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, account.KeyIDMissing, verr.Key)
}

func TestListAccounts(t *testing.T) {
	f := newFixture(t)
	pi := f.seed(t, "pi", f.lab1, access.RolePI)
	f.seed(t, "member", f.lab1, access.RoleUser)
	f.seed(t, "stranger", f.lab2, access.RoleUser)
	loner := f.seed(t, "loner", uuid.Nil, access.RolePI)
	user := f.seed(t, "user", f.lab1, access.RoleUser)

	page, err := f.service.ListAccounts(f.admin, account.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 6, page.Total)
	assert.Equal(t, "admin", page.Items[0].Login)

	page, err = f.service.ListAccounts(asCaller(pi), account.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	for _, a := range page.Items {
		membership, err := f.service.Resolver().Resolve(context.Background(), a.ID)
		require.NoError(t, err)
		assert.Equal(t, f.lab1, membership.LabID)
	}

	page, err = f.service.ListAccounts(asCaller(pi), account.PageRequest{Page: 0, Size: 2, Sort: account.SortByLogin, Descending: true})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.PageCount())
	require.Len(t, page.Items, 2)
	assert.Equal(t, "user", page.Items[0].Login)

	for _, caller := range []account.Account{loner, user} {
		page, err = f.service.ListAccounts(asCaller(caller), account.PageRequest{})
		require.NoError(t, err)
		assert.Equal(t, 0, page.Total, caller.Login)
		assert.NotNil(t, page.Items)
	}
}

func TestGetAccount(t *testing.T) {
	f := newFixture(t)
	user := f.seed(t, "user", f.lab2, access.RoleUser)
	f.seed(t, "jdoe", f.lab1, access.RoleUser)

	a, err := f.service.GetAccount(asCaller(user), "jdoe")
	require.NoError(t, err)
	assert.Equal(t, "jdoe", a.Login)
	assert.Equal(t, access.Roles{access.RoleUser}, a.Authorities)

	_, err = f.service.GetAccount(asCaller(user), "JDOE")
	assert.ErrorIs(t, err, account.ErrNotFound)

	_, err = f.service.GetAccount(context.Background(), "jdoe")
	assert.ErrorIs(t, err, account.ErrForbidden)
}

func TestDeleteAccount(t *testing.T) {
	f := newFixture(t)
	pi := f.seed(t, "pi", f.lab1, access.RolePI)
	member := f.seed(t, "member", f.lab1, access.RoleUser)

	assert.ErrorIs(t, f.service.DeleteAccount(asCaller(pi), "member"), account.ErrForbidden)

	require.NoError(t, f.service.DeleteAccount(f.admin, "member"))
	_, err := f.store.FindByID(context.Background(), member.ID)
	assert.ErrorIs(t, err, account.ErrNotFound)
	_, err = f.store.ProfileByAccount(context.Background(), member.ID)
	assert.ErrorIs(t, err, account.ErrNotFound)

	// deleting again, or deleting an unknown login, succeeds
	assert.NoError(t, f.service.DeleteAccount(f.admin, "member"))
	assert.NoError(t, f.service.DeleteAccount(f.admin, "nobody"))
}

func TestDeleteAccount_FlushesAuthorizations(t *testing.T) {
	cache := access.NewAuthorizationCache()
	store := memstore.New()
	service := account.NewService(&account.Builder{Store: store, Authorizations: cache})
	admin, err := store.Create(context.Background(), account.Account{Login: "admin", Email: "admin@x.org", Authorities: access.Roles{access.RoleAdmin}})
	require.NoError(t, err)
	member, err := store.Create(context.Background(), account.Account{Login: "member", Email: "member@x.org", Authorities: access.Roles{access.RoleUser}})
	require.NoError(t, err)

	cache.Write("member-token", &access.Authorization{AccountID: member.ID, Login: member.Login, Roles: member.Authorities})
	require.NoError(t, service.DeleteAccount(asCaller(admin), "member"))
	assert.Nil(t, cache.Read("member-token"))
}

func TestListAuthorities(t *testing.T) {
	f := newFixture(t)
	user := f.seed(t, "user", uuid.Nil, access.RoleUser)

	roles, err := f.service.ListAuthorities(asCaller(user))
	require.NoError(t, err)
	assert.ElementsMatch(t, access.Roles{access.RoleAdmin, access.RolePI, access.RoleUser, access.RoleAnonymous}, roles)

	_, err = f.service.ListAuthorities(context.Background())
	assert.ErrorIs(t, err, account.ErrForbidden)
}

func TestResolver_AccountIDByLogin(t *testing.T) {
	f := newFixture(t)
	user := f.seed(t, "user", uuid.Nil, access.RoleUser)
	r := f.service.Resolver()

	id, err := r.AccountIDByLogin(context.Background(), "User")
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)

	_, err = r.AccountIDByLogin(context.Background(), "nobody")
	assert.ErrorIs(t, err, access.ErrUnknownIdentity)

	membership, err := r.Resolve(context.Background(), user.ID)
	require.NoError(t, err)
	assert.False(t, membership.HasProfile)
	assert.Equal(t, uuid.Nil, membership.LabID)
}

func TestCheckPassword(t *testing.T) {
	var a account.Account
	assert.False(t, a.CheckPassword(""))
	require.NoError(t, a.SetPassword("secret"))
	assert.True(t, a.CheckPassword("secret"))
	assert.False(t, a.CheckPassword("Secret"))
}
