package models

import (
	currency "budget-bubble-backend/internal/features/currency/models"
	docmodels "budget-bubble-backend/internal/features/document/models"
	profile "budget-bubble-backend/internal/features/profile/models"
)

// UnknownUsername is shown for friends whose document carries no name.
const UnknownUsername = "Unknown"

// GroupMember is a read-only projection of a friend's profile. Saved and
// Goal are in the canonical currency.
type GroupMember struct {
	ID           string        `json:"id"`
	Username     string        `json:"username"`
	Saved        float64       `json:"saved"`
	Goal         float64       `json:"goal"`
	GoalCurrency currency.Code `json:"goalCurrency"`
	GoalTitle    string        `json:"goalTitle"`
	IsGhost      bool          `json:"isGhost"`
}

// FromDocument projects a complete friend snapshot, substituting defaults
// for every missing or malformed field.
func FromDocument(id string, f docmodels.Fields) GroupMember {
	username := docmodels.Field(f, profile.FieldUsername, "")
	if username == "" {
		username = UnknownUsername
	}
	title := docmodels.Field(f, profile.FieldGoalTitle, "")
	if title == "" {
		title = profile.DefaultGoalTitle
	}
	display := profile.DecodeCurrency(f, profile.FieldCurrency, profile.DefaultCurrency)

	return GroupMember{
		ID:           id,
		Username:     username,
		Saved:        profile.NonNegative(docmodels.Field(f, profile.FieldSaved, 0.0)),
		Goal:         profile.NonNegative(docmodels.Field(f, profile.FieldGoal, profile.DefaultGoal)),
		GoalCurrency: profile.DecodeCurrency(f, profile.FieldGoalCurrency, display),
		GoalTitle:    title,
		IsGhost:      docmodels.Field(f, profile.FieldIsGhost, false),
	}
}

// Progress is saved over goal as a percentage, capped at 100.
func (m GroupMember) Progress() float64 {
	if m.Goal <= 0 {
		return 0
	}
	p := m.Saved / m.Goal * 100
	if p > 100 {
		return 100
	}
	return p
}
