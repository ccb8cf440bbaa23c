package store

import (
	"context"
	"testing"

	"photogram-backend/internal/models"
	"photogram-backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggleFollowWritesBothSides(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedUser(t, *alice())
	f.seedUser(t, models.User{ID: "bob", Username: "bob"})
	f.store.SetSession(alice())

	assert.True(t, f.store.ToggleFollow(ctx, "bob"))

	users := repository.NewUserRepository(f.docs)
	me, err := users.GetByID(ctx, "alice")
	require.NoError(t, err)
	bob, err := users.GetByID(ctx, "bob")
	require.NoError(t, err)

	assert.Equal(t, 1, me.Following)
	assert.Equal(t, []string{"bob"}, me.FollowingList)
	assert.Equal(t, 1, bob.Followers)
	assert.Equal(t, []string{"alice"}, bob.FollowersList)

	local := f.store.CurrentUser()
	assert.Equal(t, 1, local.Following)
	assert.Equal(t, []string{"bob"}, local.FollowingList)

	assert.False(t, f.store.ToggleFollow(ctx, "bob"))

	me, err = users.GetByID(ctx, "alice")
	require.NoError(t, err)
	bob, err = users.GetByID(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 0, me.Following)
	assert.Empty(t, me.FollowingList)
	assert.Equal(t, 0, bob.Followers)
	assert.Empty(t, bob.FollowersList)
	assert.Equal(t, 0, f.store.CurrentUser().Following)
}

func TestToggleFollowSecondWriteFailureIsLogged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedUser(t, *alice())
	f.seedUser(t, models.User{ID: "bob", Username: "bob"})
	f.store.SetSession(alice())
	f.docs.failUpdate["users/bob"] = errBackend

	assert.True(t, f.store.ToggleFollow(ctx, "bob"))

	bob, err := repository.NewUserRepository(f.docs).GetByID(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 0, bob.Followers)
	assert.Equal(t, 1, f.store.CurrentUser().Following)
	assert.Contains(t, f.logs.String(), `"inconsistent":true`)
}

func TestToggleFollowFirstWriteFailureChangesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedUser(t, *alice())
	f.seedUser(t, models.User{ID: "bob", Username: "bob"})
	f.store.SetSession(alice())
	f.docs.failUpdate["users/alice"] = errBackend

	assert.False(t, f.store.ToggleFollow(ctx, "bob"))
	assert.Equal(t, 1, f.docs.writeCount())
	assert.Equal(t, 0, f.store.CurrentUser().Following)
}

func TestToggleFollowGuards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedUser(t, *alice())

	assert.False(t, f.store.ToggleFollow(ctx, "alice"))

	f.store.SetSession(alice())
	assert.False(t, f.store.ToggleFollow(ctx, "alice"))
	assert.False(t, f.store.ToggleFollow(ctx, "ghost"))
	assert.Zero(t, f.docs.writeCount())
}
