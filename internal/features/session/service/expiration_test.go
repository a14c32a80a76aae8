package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepClosesIdleSessions(t *testing.T) {
	reg, store, _ := newRegistry(t)
	ctx := context.Background()

	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := start
	reg.now = func() time.Time { return clock }

	alice, err := reg.Login(ctx, "alice")
	require.NoError(t, err)
	bob, err := reg.Login(ctx, "bob")
	require.NoError(t, err)
	alice.Touch(start)
	bob.Touch(start)

	clock = start.Add(20 * time.Minute)
	_, err = reg.Get("bob")
	require.NoError(t, err)

	svc := NewExpirationService(reg, 15*time.Minute, time.Minute)
	svc.now = func() time.Time { return start.Add(25 * time.Minute) }

	assert.Equal(t, []string{"alice"}, svc.Sweep())
	assert.Equal(t, []string{"bob"}, reg.Users())
	assert.Equal(t, 0, store.Subscribers("alice"))
	assert.Equal(t, 1, store.Subscribers("bob"))
}

func TestExpirationServiceStops(t *testing.T) {
	reg, _, _ := newRegistry(t)
	svc := NewExpirationService(reg, time.Minute, 10*time.Millisecond)

	svc.Start()
	time.Sleep(30 * time.Millisecond)
	svc.Stop()
}
