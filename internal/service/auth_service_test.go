package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"user-auth/internal/credential"
	"user-auth/internal/domain"
	"user-auth/internal/repository"
	"user-auth/internal/repository/memory"
)

type mockUserRepo struct {
	addFn    func(ctx context.Context, email string, hash []byte) (*domain.User, error)
	findByFn func(ctx context.Context, filter repository.UserFilter) (*domain.User, error)
	updateFn func(ctx context.Context, id int64, changes repository.UserUpdate) error
}

func (m *mockUserRepo) Init(ctx context.Context) error  { return nil }
func (m *mockUserRepo) Reset(ctx context.Context) error { return nil }

func (m *mockUserRepo) Add(ctx context.Context, email string, hash []byte) (*domain.User, error) {
	if m.addFn != nil {
		return m.addFn(ctx, email, hash)
	}
	return &domain.User{ID: 1, Email: email, HashedPassword: hash}, nil
}

func (m *mockUserRepo) FindBy(ctx context.Context, filter repository.UserFilter) (*domain.User, error) {
	if m.findByFn != nil {
		return m.findByFn(ctx, filter)
	}
	return nil, repository.ErrNotFound
}

func (m *mockUserRepo) Update(ctx context.Context, id int64, changes repository.UserUpdate) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, changes)
	}
	return nil
}

func sequenceTokens(prefix string) func() (string, error) {
	n := 0
	return func() (string, error) {
		n++
		return fmt.Sprintf("%s-%d", prefix, n), nil
	}
}

func newTestService(t *testing.T) (AuthService, *memory.UserRepository) {
	t.Helper()
	repo := memory.NewUserRepository()
	return NewAuthService(repo, credential.NewBcryptHasher(bcrypt.MinCost), nil, nil), repo
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)

	user, err := svc.Register(ctx, "a@x.com", "pw1")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", user.Email)
	assert.NotEqual(t, []byte("pw1"), user.HashedPassword)

	first, err := repo.FindBy(ctx, repository.ByEmail("a@x.com"))
	require.NoError(t, err)

	_, err = svc.Register(ctx, "a@x.com", "other")
	assert.ErrorIs(t, err, ErrAlreadyExists)

	after, err := repo.FindBy(ctx, repository.ByEmail("a@x.com"))
	require.NoError(t, err)
	assert.Equal(t, first.HashedPassword, after.HashedPassword)
}

func TestAuthService_Register_InsertRaceMapsToAlreadyExists(t *testing.T) {
	repo := &mockUserRepo{
		addFn: func(ctx context.Context, email string, hash []byte) (*domain.User, error) {
			return nil, fmt.Errorf("insert user: %w", repository.ErrAlreadyExists)
		},
	}
	svc := NewAuthService(repo, credential.NewBcryptHasher(bcrypt.MinCost), nil, nil)

	_, err := svc.Register(context.Background(), "a@x.com", "pw")
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestAuthService_Register_StoreFailure(t *testing.T) {
	boom := errors.New("disk on fire")
	repo := &mockUserRepo{
		findByFn: func(ctx context.Context, filter repository.UserFilter) (*domain.User, error) {
			return nil, boom
		},
	}
	svc := NewAuthService(repo, credential.NewBcryptHasher(bcrypt.MinCost), nil, nil)

	_, err := svc.Register(context.Background(), "a@x.com", "pw")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, repository.ErrNotFound)
}

func TestAuthService_ValidateLogin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, err := svc.Register(ctx, "a@x.com", "pw1")
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
		want     bool
	}{
		{"correct", "a@x.com", "pw1", true},
		{"wrong password", "a@x.com", "pw2", false},
		{"unknown email", "b@x.com", "pw1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := svc.ValidateLogin(ctx, tt.email, tt.password)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestAuthService_SessionLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	user, err := svc.Register(ctx, "a@x.com", "pw1")
	require.NoError(t, err)

	sessionID, err := svc.CreateSession(ctx, "a@x.com")
	require.NoError(t, err)
	require.NotEmpty(t, sessionID)

	got, err := svc.GetUserBySession(ctx, sessionID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, user.ID, got.ID)
	assert.True(t, got.HasSession())

	require.NoError(t, svc.DestroySession(ctx, user.ID))
	got, err = svc.GetUserBySession(ctx, sessionID)
	require.NoError(t, err)
	assert.Nil(t, got)

	// idempotent
	assert.NoError(t, svc.DestroySession(ctx, user.ID))
	assert.NoError(t, svc.DestroySession(ctx, 999))
}

func TestAuthService_CreateSession_ReplacesPrevious(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewUserRepository()
	svc := NewAuthService(repo, credential.NewBcryptHasher(bcrypt.MinCost), sequenceTokens("sess"), nil)
	_, err := svc.Register(ctx, "a@x.com", "pw1")
	require.NoError(t, err)

	first, err := svc.CreateSession(ctx, "a@x.com")
	require.NoError(t, err)
	second, err := svc.CreateSession(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", first)
	assert.Equal(t, "sess-2", second)

	got, err := svc.GetUserBySession(ctx, first)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = svc.GetUserBySession(ctx, second)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestAuthService_CreateSession_UnknownEmail(t *testing.T) {
	svc, _ := newTestService(t)

	sessionID, err := svc.CreateSession(context.Background(), "ghost@x.com")
	require.NoError(t, err)
	assert.Empty(t, sessionID)
}

func TestAuthService_GetUserBySession_EmptyIDSkipsStore(t *testing.T) {
	repo := &mockUserRepo{
		findByFn: func(ctx context.Context, filter repository.UserFilter) (*domain.User, error) {
			t.Fatal("store must not be queried for an empty session id")
			return nil, nil
		},
	}
	svc := NewAuthService(repo, credential.NewBcryptHasher(bcrypt.MinCost), nil, nil)

	user, err := svc.GetUserBySession(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestAuthService_DestroySession_StoreFailure(t *testing.T) {
	boom := errors.New("connection reset")
	repo := &mockUserRepo{
		updateFn: func(ctx context.Context, id int64, changes repository.UserUpdate) error {
			assert.True(t, changes.SessionID.Set)
			assert.Nil(t, changes.SessionID.Value)
			return boom
		},
	}
	svc := NewAuthService(repo, credential.NewBcryptHasher(bcrypt.MinCost), nil, nil)

	assert.ErrorIs(t, svc.DestroySession(context.Background(), 1), boom)
}

func TestAuthService_PasswordReset(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.RequestPasswordReset(ctx, "a@x.com")
	assert.ErrorIs(t, err, ErrNotRegistered)

	_, err = svc.Register(ctx, "a@x.com", "pw1")
	require.NoError(t, err)

	resetToken, err := svc.RequestPasswordReset(ctx, "a@x.com")
	require.NoError(t, err)
	require.NotEmpty(t, resetToken)

	require.NoError(t, svc.CompletePasswordReset(ctx, resetToken, "pw2"))
	assert.ErrorIs(t, svc.CompletePasswordReset(ctx, resetToken, "pw3"), ErrInvalidToken)

	ok, err := svc.ValidateLogin(ctx, "a@x.com", "pw2")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.ValidateLogin(ctx, "a@x.com", "pw1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuthService_CompletePasswordReset_InvalidTokens(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	assert.ErrorIs(t, svc.CompletePasswordReset(ctx, "", "pw"), ErrInvalidToken)
	assert.ErrorIs(t, svc.CompletePasswordReset(ctx, "never-issued", "pw"), ErrInvalidToken)
}

func TestAuthService_ResetAndSessionAreIndependent(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)
	_, err := svc.Register(ctx, "a@x.com", "pw1")
	require.NoError(t, err)

	sessionID, err := svc.CreateSession(ctx, "a@x.com")
	require.NoError(t, err)
	_, err = svc.RequestPasswordReset(ctx, "a@x.com")
	require.NoError(t, err)

	user, err := repo.FindBy(ctx, repository.ByEmail("a@x.com"))
	require.NoError(t, err)
	assert.True(t, user.HasSession())
	assert.True(t, user.HasPendingReset())

	got, err := svc.GetUserBySession(ctx, sessionID)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestAuthService_Scenario(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Register(ctx, "a@x.com", "pw1")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "a@x.com", "pw1")
	require.ErrorIs(t, err, ErrAlreadyExists)

	ok, err := svc.ValidateLogin(ctx, "a@x.com", "wrong")
	require.NoError(t, err)
	require.False(t, ok)
	ok, err = svc.ValidateLogin(ctx, "a@x.com", "pw1")
	require.NoError(t, err)
	require.True(t, ok)

	sessionID, err := svc.CreateSession(ctx, "a@x.com")
	require.NoError(t, err)
	user, err := svc.GetUserBySession(ctx, sessionID)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "a@x.com", user.Email)

	require.NoError(t, svc.DestroySession(ctx, user.ID))
	user, err = svc.GetUserBySession(ctx, sessionID)
	require.NoError(t, err)
	assert.Nil(t, user)

	resetToken, err := svc.RequestPasswordReset(ctx, "a@x.com")
	require.NoError(t, err)
	require.NoError(t, svc.CompletePasswordReset(ctx, resetToken, "pw2"))

	ok, err = svc.ValidateLogin(ctx, "a@x.com", "pw2")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = svc.ValidateLogin(ctx, "a@x.com", "pw1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuthService_Register_PasswordTooLong(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)

	_, err := svc.Register(ctx, "a@x.com", strings.Repeat("x", 73))
	assert.ErrorIs(t, err, credential.ErrPasswordTooLong)

	_, err = repo.FindBy(ctx, repository.ByEmail("a@x.com"))
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestAuthService_CompletePasswordReset_PasswordTooLongKeepsToken(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)
	_, err := svc.Register(ctx, "a@x.com", "pw1")
	require.NoError(t, err)
	resetToken, err := svc.RequestPasswordReset(ctx, "a@x.com")
	require.NoError(t, err)

	err = svc.CompletePasswordReset(ctx, resetToken, strings.Repeat("x", 73))
	assert.ErrorIs(t, err, credential.ErrPasswordTooLong)

	user, err := repo.FindBy(ctx, repository.ByResetToken(resetToken))
	require.NoError(t, err)
	assert.True(t, user.HasPendingReset())

	ok, err := svc.ValidateLogin(ctx, "a@x.com", "pw1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, svc.CompletePasswordReset(ctx, resetToken, "pw2"))
}
