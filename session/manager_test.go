package session_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jrsteele09/go-session-guard/authapi"
	"github.com/jrsteele09/go-session-guard/credentials"
	credentialsrepofake "github.com/jrsteele09/go-session-guard/credentials/repofake"
	"github.com/jrsteele09/go-session-guard/navigation"
	"github.com/jrsteele09/go-session-guard/session"
	"github.com/jrsteele09/go-session-guard/users"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeAuth struct {
	loginErr       error
	currentUserErr error
	logoutErr      error
	revoked        []string
}

func (a *fakeAuth) Login(_ context.Context, username, password string) (*oauth2.Token, error) {
	if a.loginErr != nil {
		return nil, a.loginErr
	}
	return &oauth2.Token{AccessToken: "access-" + username, RefreshToken: "refresh-" + username}, nil
}

func (a *fakeAuth) CurrentUser(_ context.Context, accessToken string) (*authapi.CurrentUser, error) {
	if a.currentUserErr != nil {
		return nil, a.currentUserErr
	}
	return &authapi.CurrentUser{ID: "7", Username: "amira", Roles: []users.Role{users.RoleAdvisor}}, nil
}

func (a *fakeAuth) Logout(_ context.Context, refreshToken string) error {
	a.revoked = append(a.revoked, refreshToken)
	return a.logoutErr
}

type testFixture struct {
	persister *credentialsrepofake.FakePersister
	store     *credentials.Store
	auth      *fakeAuth
	history   *navigation.History
	manager   *session.Manager
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	persister := credentialsrepofake.NewFakePersister()
	store := credentials.NewStore(persister)
	auth := &fakeAuth{}
	history := navigation.NewHistory()
	return &testFixture{
		persister: persister,
		store:     store,
		auth:      auth,
		history:   history,
		manager:   session.NewManager(store, auth, navigation.New(navigation.WithLocation(history))),
	}
}

func TestManager_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("populates every field and opens the dashboard", func(t *testing.T) {
		f := setupTestFixture(t)
		user, err := f.manager.Login(ctx, "amira", "Consult1ng")
		require.NoError(t, err)
		require.Equal(t, "7", user.ID)

		snap := f.store.Snapshot()
		require.Equal(t, credentials.Snapshot{
			AccessToken:  "access-amira",
			RefreshToken: "refresh-amira",
			Username:     "amira",
			Password:     "Consult1ng",
			Roles:        []users.Role{users.RoleAdvisor},
		}, snap)
		require.Equal(t, []users.Role{users.RoleAdvisor}, f.persister.Stored().Roles)
		require.Equal(t, navigation.DashboardPath, f.history.Current())
	})

	t.Run("rejected login leaves the store empty", func(t *testing.T) {
		f := setupTestFixture(t)
		f.auth.loginErr = errors.New("bad credentials")

		_, err := f.manager.Login(ctx, "amira", "wrong")
		require.ErrorContains(t, err, "bad credentials")
		require.Equal(t, credentials.Snapshot{}, f.store.Snapshot())
		require.Empty(t, f.history.Visits())
	})

	t.Run("profile failure after tokens clears them", func(t *testing.T) {
		f := setupTestFixture(t)
		f.auth.currentUserErr = errors.New("profile unavailable")

		_, err := f.manager.Login(ctx, "amira", "Consult1ng")
		require.ErrorContains(t, err, "profile unavailable")
		require.Equal(t, credentials.Snapshot{}, f.store.Snapshot())
		require.Nil(t, f.persister.Stored())
	})
}

func TestManager_Logout(t *testing.T) {
	ctx := context.Background()

	t.Run("revokes, clears and redirects", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.manager.Login(ctx, "amira", "Consult1ng")
		require.NoError(t, err)

		require.NoError(t, f.manager.Logout(ctx))
		require.Equal(t, []string{"refresh-amira"}, f.auth.revoked)
		require.Equal(t, credentials.Snapshot{}, f.store.Snapshot())
		require.Equal(t, navigation.LoginPath, f.history.Current())
	})

	t.Run("revocation failure does not block logout", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.manager.Login(ctx, "amira", "Consult1ng")
		require.NoError(t, err)
		f.auth.logoutErr = errors.New("backend down")

		require.NoError(t, f.manager.Logout(ctx))
		require.False(t, f.store.IsAuthenticated())
	})

	t.Run("logging out twice is harmless", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.manager.Logout(ctx))
		require.NoError(t, f.manager.Logout(ctx))
		require.Empty(t, f.auth.revoked)
	})
}

func TestManager_Restore(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing persisted", func(t *testing.T) {
		f := setupTestFixture(t)
		restored, err := f.manager.Restore(ctx)
		require.NoError(t, err)
		require.False(t, restored)
	})

	t.Run("persisted session without credentials", func(t *testing.T) {
		f := setupTestFixture(t)
		f.persister.Seed(credentials.Persisted{
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
			Roles:        []users.Role{users.RoleAdmin},
		})

		restored, err := f.manager.Restore(ctx)
		require.NoError(t, err)
		require.True(t, restored)
		require.True(t, f.store.HasValidRoles())
		require.False(t, f.store.Snapshot().HasCredentials())
	})
}
