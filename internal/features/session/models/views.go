package models

import (
	currency "budget-bubble-backend/internal/features/currency/models"
	profile "budget-bubble-backend/internal/features/profile/models"

	"github.com/shopspring/decimal"
)

// Pace is the owner's progress toward the goal. Amounts are in the display
// currency; DailyNeeded is zero without a future deadline.
type Pace struct {
	Remaining   decimal.Decimal `json:"remaining"`
	DaysLeft    int             `json:"daysLeft"`
	DailyNeeded decimal.Decimal `json:"dailyNeeded"`
	Progress    float64         `json:"progress"`
}

// DisplayAmounts are the owner's canonical amounts converted for display.
type DisplayAmounts struct {
	Currency     currency.Code   `json:"currency"`
	Saved        decimal.Decimal `json:"saved"`
	Goal         decimal.Decimal `json:"goal"`
	GoalCurrency currency.Code   `json:"goalCurrency"`
	GoalInGoal   decimal.Decimal `json:"goalInGoalCurrency"`
}

// StateView is everything the client renders for the owner.
type StateView struct {
	Profile   profile.UserProfile `json:"profile"`
	Canonical currency.Code       `json:"canonicalCurrency"`
	Display   DisplayAmounts      `json:"display"`
	Pace      Pace                `json:"pace"`
}

type Standing string

const (
	StandingLeading Standing = "leading"
	StandingBehind  Standing = "behind"
)

// MemberView compares one friend with the owner. Absolute amounts are
// omitted for ghost members; progress is always shown.
type MemberView struct {
	ID        string           `json:"id"`
	Username  string           `json:"username"`
	GoalTitle string           `json:"goalTitle"`
	IsGhost   bool             `json:"isGhost"`
	Progress  float64          `json:"progress"`
	Saved     *decimal.Decimal `json:"saved,omitempty"`
	Goal      *decimal.Decimal `json:"goal,omitempty"`
	Standing  Standing         `json:"standing"`
	Gap       *decimal.Decimal `json:"gap,omitempty"`
}

type MembersView struct {
	Currency currency.Code `json:"currency"`
	Members  []MemberView  `json:"members"`
}

// Result reports whether a mutation was applied. Rejected input is not an
// error: the state is simply left unchanged.
type Result struct {
	Applied bool       `json:"applied"`
	State   *StateView `json:"state,omitempty"`
}
