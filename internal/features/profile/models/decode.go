package models

import (
	"math"
	"time"

	currency "budget-bubble-backend/internal/features/currency/models"
	docmodels "budget-bubble-backend/internal/features/document/models"
)

const dateLayout = "2006-01-02"

// DecodeProfile overlays a remote document onto the defaults. Every field
// ends up with a usable value no matter what the document holds.
func DecodeProfile(id string, f docmodels.Fields) UserProfile {
	def := Defaults(id)

	p := UserProfile{
		ID:            id,
		Username:      nonEmpty(docmodels.Field(f, FieldUsername, def.Username), def.Username),
		IsGhost:       docmodels.Field(f, FieldIsGhost, def.IsGhost),
		Theme:         DecodeTheme(f, FieldTheme, def.Theme),
		Currency:      DecodeCurrency(f, FieldCurrency, def.Currency),
		Saved:         NonNegative(docmodels.Field(f, FieldSaved, def.Saved)),
		Goal:          NonNegative(docmodels.Field(f, FieldGoal, def.Goal)),
		GoalTitle:     nonEmpty(docmodels.Field(f, FieldGoalTitle, def.GoalTitle), def.GoalTitle),
		Deadline:      decodeDeadline(f),
		Categories:    uniqueNonEmpty(docmodels.Field(f, FieldCategories, def.Categories), ""),
		History:       docmodels.Field(f, FieldHistory, def.History),
		FriendIDs:     uniqueNonEmpty(docmodels.Field(f, FieldFriendIDs, def.FriendIDs), id),
		LatestCheerAt: docmodels.Field(f, FieldLatestCheerAt, def.LatestCheerAt),
	}
	// the goal currency follows the display currency when never set
	p.GoalCurrency = DecodeCurrency(f, FieldGoalCurrency, p.Currency)

	if p.History == nil {
		p.History = []Transaction{}
	}
	return p
}

// DecodeCurrency reads a currency field, rejecting unsupported codes.
func DecodeCurrency(f docmodels.Fields, key string, def currency.Code) currency.Code {
	c := docmodels.Field(f, key, def)
	if !c.IsSupported() {
		return def
	}
	return c
}

func DecodeTheme(f docmodels.Fields, key string, def Theme) Theme {
	t := docmodels.Field(f, key, def)
	if !t.Valid() {
		return def
	}
	return t
}

// NonNegative clamps an amount to zero.
func NonNegative(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}

func decodeDeadline(f docmodels.Fields) *string {
	d := docmodels.Field[*string](f, FieldDeadline, nil)
	if d == nil {
		return nil
	}
	if _, err := time.Parse(dateLayout, *d); err != nil {
		return nil
	}
	return d
}

func nonEmpty(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// uniqueNonEmpty keeps the first occurrence of each value, dropping empty
// strings and exclude.
func uniqueNonEmpty(values []string, exclude string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if v == "" || v == exclude || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
