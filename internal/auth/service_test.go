package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/gruzztop/gruzztop/internal/apperr"
	"github.com/gruzztop/gruzztop/internal/auth"
	"github.com/gruzztop/gruzztop/internal/logger"
)

type fakeStore struct {
	users    map[string]*auth.User // by email
	promoted []string
}

var _ auth.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]*auth.User)}
}

func (f *fakeStore) CreateUser(_ context.Context, u *auth.User) (*auth.User, error) {
	if _, ok := f.users[u.Email]; ok {
		return nil, auth.ErrEmailTaken
	}
	u.ID = "user-" + u.Email
	u.IsActive = true
	f.users[u.Email] = u
	return u, nil
}

func (f *fakeStore) UserByEmail(_ context.Context, email string) (*auth.User, error) {
	u, ok := f.users[email]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeStore) Me(_ context.Context, userID string) (*auth.Me, error) {
	for _, u := range f.users {
		if u.ID == userID {
			return &auth.Me{User: *u, Balance: 10}, nil
		}
	}
	return nil, auth.ErrUserNotFound
}

func (f *fakeStore) PromoteToAdmin(_ context.Context, email string) error {
	u, ok := f.users[email]
	if !ok {
		return auth.ErrUserNotFound
	}
	u.Role = "admin"
	f.promoted = append(f.promoted, email)
	return nil
}

func (f *fakeStore) PasswordHash(_ context.Context, userID string) (string, error) {
	for _, u := range f.users {
		if u.ID == userID {
			return u.PasswordHash, nil
		}
	}
	return "", auth.ErrUserNotFound
}

func (f *fakeStore) SetPasswordHash(_ context.Context, userID, hash string) error {
	for _, u := range f.users {
		if u.ID == userID {
			u.PasswordHash = hash
			return nil
		}
	}
	return auth.ErrUserNotFound
}

func newService(store auth.Store, secret string) (*auth.Service, *auth.Tokens) {
	tokens := auth.NewTokens("test-secret", time.Hour)
	return auth.NewService(logger.Discard(), store, tokens, secret), tokens
}

func TestSignup(t *testing.T) {
	store := newFakeStore()
	svc, tokens := newService(store, "")
	ctx := context.Background()

	res, err := svc.Signup(ctx, auth.SignupRequest{
		FullName: "Ivan", Email: "ivan@example.com", Password: "secret123", Role: "executor",
	})
	require.NoError(t, err)
	assert.Equal(t, "executor", res.User.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(store.users["ivan@example.com"].PasswordHash), []byte("secret123")))

	claims, err := tokens.Parse(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)
	assert.Equal(t, "executor", claims.Role)

	_, err = svc.Signup(ctx, auth.SignupRequest{
		FullName: "Ivan", Email: "ivan@example.com", Password: "secret123", Role: "client",
	})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestSignup_AdminRoleRejected(t *testing.T) {
	svc, _ := newService(newFakeStore(), "")

	_, err := svc.Signup(context.Background(), auth.SignupRequest{
		FullName: "Eve", Email: "eve@example.com", Password: "secret123", Role: "admin",
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestLogin(t *testing.T) {
	store := newFakeStore()
	svc, _ := newService(store, "")
	ctx := context.Background()

	_, err := svc.Signup(ctx, auth.SignupRequest{
		FullName: "Olga", Email: "olga@example.com", Password: "secret123", Role: "client",
	})
	require.NoError(t, err)

	res, err := svc.Login(ctx, auth.LoginRequest{Email: "olga@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)

	_, err = svc.Login(ctx, auth.LoginRequest{Email: "olga@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = svc.Login(ctx, auth.LoginRequest{Email: "nobody@example.com", Password: "secret123"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	store.users["olga@example.com"].IsActive = false
	_, err = svc.Login(ctx, auth.LoginRequest{Email: "olga@example.com", Password: "secret123"})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestChangePassword(t *testing.T) {
	store := newFakeStore()
	svc, _ := newService(store, "")
	ctx := context.Background()

	res, err := svc.Signup(ctx, auth.SignupRequest{
		FullName: "Pavel", Email: "pavel@example.com", Password: "secret123", Role: "client",
	})
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, res.User.ID, auth.ChangePasswordRequest{CurrentPassword: "nope", NewPassword: "newsecret"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	require.NoError(t, svc.ChangePassword(ctx, res.User.ID, auth.ChangePasswordRequest{CurrentPassword: "secret123", NewPassword: "newsecret"}))
	_, err = svc.Login(ctx, auth.LoginRequest{Email: "pavel@example.com", Password: "newsecret"})
	assert.NoError(t, err)
}

func TestBootstrapAdmin(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()
	store.users["boss@example.com"] = &auth.User{ID: "u1", Email: "boss@example.com", Role: "client"}

	disabled, _ := newService(store, "")
	err := disabled.BootstrapAdmin(ctx, auth.BootstrapAdminRequest{Email: "boss@example.com", Secret: "x"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, "client", store.users["boss@example.com"].Role)

	svc, _ := newService(store, "s3cret")
	err = svc.BootstrapAdmin(ctx, auth.BootstrapAdminRequest{Email: "boss@example.com", Secret: "wrong"})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	err = svc.BootstrapAdmin(ctx, auth.BootstrapAdminRequest{Email: "ghost@example.com", Secret: "s3cret"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, svc.BootstrapAdmin(ctx, auth.BootstrapAdminRequest{Email: "boss@example.com", Secret: "s3cret"}))
	assert.Equal(t, "admin", store.users["boss@example.com"].Role)
}

func TestTokens(t *testing.T) {
	tokens := auth.NewTokens("k", time.Hour)
	signed, err := tokens.Issue("u1", "client")
	require.NoError(t, err)

	uid, role, err := tokens.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)
	assert.Equal(t, "client", role)

	_, err = auth.NewTokens("other", time.Hour).Parse(signed)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	expired, err := auth.NewTokens("k", -time.Minute).Issue("u1", "client")
	require.NoError(t, err)
	_, err = tokens.Parse(expired)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}
