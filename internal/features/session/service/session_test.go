package service

import (
	"context"
	"errors"
	"testing"
	"time"

	currency "budget-bubble-backend/internal/features/currency/models"
	currencysvc "budget-bubble-backend/internal/features/currency/service"
	"budget-bubble-backend/internal/features/document/repository/memory"
	docservice "budget-bubble-backend/internal/features/document/service"
	profilesvc "budget-bubble-backend/internal/features/profile/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func newRegistry(t *testing.T) (*Registry, *memory.Store, *docservice.Gateway) {
	t.Helper()
	store := memory.New()
	gw := docservice.NewGateway(store)
	reg := NewRegistry(gw, currencysvc.NewConverter(currency.USD, currency.DefaultRates()), Settings{
		PersistQueueSize: 16,
		PersistTimeout:   time.Second,
	})
	t.Cleanup(func() {
		reg.CloseAll()
		store.Close()
	})
	return reg, store, gw
}

func TestLoginCreatesProfileAndSelfSubscription(t *testing.T) {
	reg, store, gw := newRegistry(t)
	ctx := context.Background()

	s, err := reg.Login(ctx, "alice")
	require.NoError(t, err)

	assert.True(t, s.Store().Loaded())
	assert.Equal(t, 1, store.Subscribers("alice"))

	doc, err := gw.Get(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, doc.Exists)

	again, err := reg.Login(ctx, "alice")
	require.NoError(t, err)
	assert.Same(t, s, again)
	assert.Equal(t, []string{"alice"}, reg.Users())
}

func TestLoginRejectsInvalidUserID(t *testing.T) {
	reg, _, _ := newRegistry(t)

	_, err := reg.Login(context.Background(), "not valid!")
	assert.Error(t, err)
	assert.Empty(t, reg.Users())
}

func TestFriendsFollowTheStore(t *testing.T) {
	reg, store, gw := newRegistry(t)
	ctx := context.Background()
	require.NoError(t, gw.Merge(ctx, "bob", map[string]any{"username": "Bob", "saved": 40.0}))

	s, err := reg.Login(ctx, "alice")
	require.NoError(t, err)

	require.True(t, s.Store().AddFriend("bob"))
	assert.Equal(t, []string{"bob"}, s.Friends().ActiveSubscriptions())
	assert.Eventually(t, func() bool { return len(s.Friends().Members()) == 1 }, waitFor, tick)

	require.True(t, s.Store().RemoveFriend("bob"))
	assert.Empty(t, s.Friends().Members())
	assert.Equal(t, 0, store.Subscribers("bob"))
}

func TestExistingFriendsSubscribeOnLogin(t *testing.T) {
	reg, _, gw := newRegistry(t)
	ctx := context.Background()
	require.NoError(t, gw.Merge(ctx, "bob", map[string]any{"username": "Bob"}))
	require.NoError(t, gw.Merge(ctx, "alice", map[string]any{"friendIds": []string{"bob"}}))

	s, err := reg.Login(ctx, "alice")
	require.NoError(t, err)

	assert.Equal(t, []string{"bob"}, s.Friends().ActiveSubscriptions())
	assert.Eventually(t, func() bool { return len(s.Friends().Members()) == 1 }, waitFor, tick)
}

func TestCheerReachesOpenSessionOnce(t *testing.T) {
	reg, _, _ := newRegistry(t)
	ctx := context.Background()

	bob, err := reg.Login(ctx, "bob")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, seeded := bob.Cheers().LastSeen()
		return seeded
	}, waitFor, tick)
	assert.Empty(t, bob.Celebrations().Drain())

	at, err := reg.SendCheer(ctx, "alice", "bob")
	require.NoError(t, err)

	var fired int
	assert.Eventually(t, func() bool {
		fired += len(bob.Celebrations().Drain())
		return fired == 1
	}, waitFor, tick)
	assert.Eventually(t, func() bool { return bob.Store().Profile().LatestCheerAt == at }, waitFor, tick)
}

func TestLogoutTearsDownSubscriptions(t *testing.T) {
	reg, store, gw := newRegistry(t)
	ctx := context.Background()
	require.NoError(t, gw.Merge(ctx, "bob", map[string]any{"username": "Bob"}))

	s, err := reg.Login(ctx, "alice")
	require.NoError(t, err)
	require.True(t, s.Store().AddFriend("bob"))
	_, ok := s.Store().AddTransaction(profilesvc.TransactionInput{Amount: 10, Direction: "credit", Category: "Food"})
	require.True(t, ok)

	require.NoError(t, reg.Logout("alice"))

	assert.Equal(t, 0, store.Subscribers("alice"))
	assert.Equal(t, 0, store.Subscribers("bob"))

	doc, err := gw.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Contains(t, string(doc.Fields["saved"]), "10", "pending writes drained")

	_, err = reg.Get("alice")
	assert.True(t, errors.Is(err, ErrSessionNotFound))
	assert.True(t, errors.Is(reg.Logout("alice"), ErrSessionNotFound))
}

func TestCloseAllRefusesNewLogins(t *testing.T) {
	reg, _, _ := newRegistry(t)

	_, err := reg.Login(context.Background(), "alice")
	require.NoError(t, err)

	reg.CloseAll()

	assert.Empty(t, reg.Users())
	_, err = reg.Login(context.Background(), "alice")
	assert.Error(t, err)
}
