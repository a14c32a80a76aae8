package service

import (
	"testing"
	"time"

	currency "budget-bubble-backend/internal/features/currency/models"
	currencysvc "budget-bubble-backend/internal/features/currency/service"
	friends "budget-bubble-backend/internal/features/friends/models"
	profile "budget-bubble-backend/internal/features/profile/models"
	"budget-bubble-backend/internal/features/session/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func converter() *currencysvc.Converter {
	return currencysvc.NewConverter(currency.USD, currency.RateTable{
		currency.USD: 1,
		currency.EUR: 0.5,
		currency.AED: 4,
	})
}

func TestBuildStateConvertsAndPaces(t *testing.T) {
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	deadline := "2026-01-11"
	p := profile.Defaults("alice")
	p.Saved = 400
	p.Goal = 1000
	p.Currency = currency.EUR
	p.GoalCurrency = currency.AED
	p.Deadline = &deadline

	v := BuildState(p, converter(), now)

	assert.Equal(t, currency.USD, v.Canonical)
	assert.Equal(t, "200", v.Display.Saved.String())
	assert.Equal(t, "500", v.Display.Goal.String())
	assert.Equal(t, "4000", v.Display.GoalInGoal.String())
	assert.Equal(t, 9, v.Pace.DaysLeft)
	assert.Equal(t, "300", v.Pace.Remaining.String())
	assert.Equal(t, "33.33", v.Pace.DailyNeeded.String())
	assert.InDelta(t, 40.0, v.Pace.Progress, 1e-9)
}

func TestBuildStateWithoutDeadline(t *testing.T) {
	p := profile.Defaults("alice")
	p.Saved = 1500

	v := BuildState(p, converter(), time.Now())

	assert.Equal(t, 0, v.Pace.DaysLeft)
	assert.True(t, v.Pace.Remaining.IsZero())
	assert.True(t, v.Pace.DailyNeeded.IsZero())
	assert.Equal(t, 100.0, v.Pace.Progress)
}

func TestDaysLeft(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	past := "2026-02-01"
	bad := "soon"
	future := "2026-03-31"

	assert.Equal(t, 0, DaysLeft(nil, now))
	assert.Equal(t, 0, DaysLeft(&bad, now))
	assert.Equal(t, 30, DaysLeft(&future, now))
	assert.Negative(t, DaysLeft(&past, now))
}

func TestBuildMembersHidesGhostAmounts(t *testing.T) {
	owner := profile.Defaults("alice")
	owner.Saved = 300
	owner.Currency = currency.EUR

	view := BuildMembers(owner, []friends.GroupMember{
		{ID: "bob", Username: "Bob", Saved: 500, Goal: 1000},
		{ID: "carol", Username: "Carol", Saved: 100, Goal: 1000},
		{ID: "dave", Username: "Dave", Saved: 900, Goal: 1000, IsGhost: true},
	}, converter())

	assert.Equal(t, currency.EUR, view.Currency)
	require.Len(t, view.Members, 3)

	bob := view.Members[0]
	require.NotNil(t, bob.Saved)
	assert.Equal(t, "250", bob.Saved.String())
	assert.Equal(t, models.StandingBehind, bob.Standing)
	assert.Equal(t, "100", bob.Gap.String())

	carol := view.Members[1]
	assert.Equal(t, models.StandingLeading, carol.Standing)
	assert.Equal(t, "100", carol.Gap.String())

	dave := view.Members[2]
	assert.Nil(t, dave.Saved)
	assert.Nil(t, dave.Goal)
	assert.Nil(t, dave.Gap)
	assert.Equal(t, 90.0, dave.Progress)
	assert.Equal(t, models.StandingBehind, dave.Standing)
}

func TestViewsSurviveDisplayOverflow(t *testing.T) {
	owner := profile.Defaults("alice")
	owner.Saved = 1e308
	owner.Currency = currency.AED
	friend := friends.GroupMember{ID: "bob", Username: "Bob", Saved: 1e308, Goal: 1e308}

	var state models.StateView
	require.NotPanics(t, func() { state = BuildState(owner, converter(), time.Now()) })
	assert.True(t, state.Display.Saved.IsPositive())

	var members models.MembersView
	require.NotPanics(t, func() { members = BuildMembers(owner, []friends.GroupMember{friend}, converter()) })
	require.Len(t, members.Members, 1)
	require.NotNil(t, members.Members[0].Saved)
	assert.True(t, members.Members[0].Saved.IsPositive())
}
