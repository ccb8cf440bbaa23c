package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"photogram-backend/internal/models"
	"photogram-backend/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProvider(t *testing.T) (*Provider, *repository.UserRepository) {
	t.Helper()
	users := repository.NewUserRepository(repository.NewMemoryDocuments())
	return NewProvider(users, "test-secret", "photogram"), users
}

func TestSignInCreatesDefaultUser(t *testing.T) {
	ctx := context.Background()
	p, users := newProvider(t)

	identity, err := p.IssueIdentityToken("uid-1", "Alice", "https://img/alice.png", time.Hour)
	require.NoError(t, err)

	var seen []*models.User
	s := New(p)
	s.OnSessionChange(func(u *models.User) { seen = append(seen, u) })

	user, token, err := s.SignIn(ctx, identity)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "uid-1", user.ID)
	assert.Equal(t, "Alice", user.Username)
	assert.Equal(t, "https://img/alice.png", user.Avatar)

	stored, err := users.GetByID(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Followers)
	assert.Equal(t, 0, stored.Following)
	assert.Equal(t, "Alice", stored.Username)

	require.Len(t, seen, 1)
	assert.Equal(t, "uid-1", seen[0].ID)
	assert.Equal(t, user, s.User())
}

func TestSignInKeepsExistingUser(t *testing.T) {
	ctx := context.Background()
	p, users := newProvider(t)
	require.NoError(t, users.Create(ctx, &models.User{ID: "uid-1", Username: "renamed", Followers: 7}))

	identity, err := p.IssueIdentityToken("uid-1", "Alice", "", time.Hour)
	require.NoError(t, err)

	user, _, err := New(p).SignIn(ctx, identity)
	require.NoError(t, err)
	assert.Equal(t, "renamed", user.Username)
	assert.Equal(t, 7, user.Followers)
}

func TestSignInRejectsBadTokens(t *testing.T) {
	ctx := context.Background()
	p, _ := newProvider(t)
	s := New(p)
	called := false
	s.OnSessionChange(func(*models.User) { called = true })

	expired, err := p.IssueIdentityToken("uid-1", "Alice", "", -time.Minute)
	require.NoError(t, err)
	_, _, err = s.SignIn(ctx, expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewProvider(nil, "other-secret", "photogram")
	forged, err := other.IssueIdentityToken("uid-1", "Alice", "", time.Hour)
	require.NoError(t, err)
	_, _, err = s.SignIn(ctx, forged)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer := NewProvider(nil, "test-secret", "elsewhere")
	foreign, err := wrongIssuer.IssueIdentityToken("uid-1", "Alice", "", time.Hour)
	require.NoError(t, err)
	_, _, err = s.SignIn(ctx, foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, IdentityClaims{
		Name: "Alice",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "photogram",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, _, err = s.SignIn(ctx, noSubject)
	assert.ErrorIs(t, err, ErrInvalidToken)

	assert.False(t, called)
	assert.Nil(t, s.User())
}

func TestSessionTokenRoundTrip(t *testing.T) {
	p, _ := newProvider(t)

	token, err := p.IssueSessionToken("uid-1")
	require.NoError(t, err)

	userID, err := p.ValidateSessionToken(token)
	require.NoError(t, err)
	assert.Equal(t, "uid-1", userID)

	identity, err := p.IssueIdentityToken("uid-1", "Alice", "", time.Hour)
	require.NoError(t, err)
	_, err = p.ValidateSessionToken(identity)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = p.ValidateSessionToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionTokenExpires(t *testing.T) {
	p, _ := newProvider(t)
	token, err := p.IssueSessionToken("uid-1")
	require.NoError(t, err)

	p.now = func() time.Time { return time.Now().AddDate(2, 0, 0) }
	_, err = p.ValidateSessionToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRestoreAndSignOut(t *testing.T) {
	ctx := context.Background()
	p, users := newProvider(t)
	require.NoError(t, users.Create(ctx, &models.User{ID: "uid-1", Username: "alice"}))
	token, err := p.IssueSessionToken("uid-1")
	require.NoError(t, err)

	var seen []*models.User
	s := New(p)
	s.OnSessionChange(func(u *models.User) { seen = append(seen, u) })

	user, err := s.Restore(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	s.SignOut()
	assert.Nil(t, s.User())

	require.Len(t, seen, 2)
	assert.Equal(t, "uid-1", seen[0].ID)
	assert.Nil(t, seen[1])
}

func TestRestoreUnknownUser(t *testing.T) {
	p, _ := newProvider(t)
	token, err := p.IssueSessionToken("ghost")
	require.NoError(t, err)

	_, err = New(p).Restore(context.Background(), token)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}
