package models

import (
	"encoding/json"
	"time"

	currency "budget-bubble-backend/internal/features/currency/models"
)

// Document field names of a user profile.
const (
	FieldUsername      = "username"
	FieldSaved         = "saved"
	FieldGoal          = "goal"
	FieldGoalTitle     = "goalTitle"
	FieldGoalCurrency  = "goalCurrency"
	FieldDeadline      = "deadline"
	FieldCurrency      = "currency"
	FieldTheme         = "theme"
	FieldIsGhost       = "isGhost"
	FieldCategories    = "categories"
	FieldHistory       = "history"
	FieldFriendIDs     = "friendIds"
	FieldLatestCheerAt = "latestCheerAt"
)

type Direction string

const (
	Credit Direction = "credit"
	Debit  Direction = "debit"
)

func (d Direction) Valid() bool {
	return d == Credit || d == Debit
}

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark
}

const (
	DefaultUsername  = "Anonymous"
	DefaultGoal      = 1000.0
	DefaultGoalTitle = "My Goal"
	DefaultTheme     = ThemeDark
	DefaultCurrency  = currency.USD
)

func DefaultCategories() []string {
	return []string{"Salary", "Freelance", "Food", "Fun"}
}

// Transaction is immutable once created. Amount is in the canonical currency.
type Transaction struct {
	ID        string    `json:"id"`
	Amount    float64   `json:"amount"`
	Direction Direction `json:"direction"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"createdAt"`
}

// UnmarshalJSON also accepts the older {type: add|remove, date} entries.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	type plain Transaction
	var raw struct {
		plain
		Type string     `json:"type"`
		Date *time.Time `json:"date"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*t = Transaction(raw.plain)
	if !t.Direction.Valid() {
		switch raw.Type {
		case "remove":
			t.Direction = Debit
		default:
			t.Direction = Credit
		}
	}
	if t.CreatedAt.IsZero() && raw.Date != nil {
		t.CreatedAt = *raw.Date
	}
	if t.Amount < 0 {
		t.Amount = -t.Amount
	}
	return nil
}

// UserProfile is the current user's state. Saved and Goal are held in the
// canonical currency.
type UserProfile struct {
	ID            string        `json:"id"`
	Username      string        `json:"username"`
	IsGhost       bool          `json:"isGhost"`
	Theme         Theme         `json:"theme"`
	Currency      currency.Code `json:"currency"`
	Saved         float64       `json:"saved"`
	Goal          float64       `json:"goal"`
	GoalCurrency  currency.Code `json:"goalCurrency"`
	GoalTitle     string        `json:"goalTitle"`
	Deadline      *string       `json:"deadline"`
	Categories    []string      `json:"categories"`
	History       []Transaction `json:"history"`
	FriendIDs     []string      `json:"friendIds"`
	LatestCheerAt int64         `json:"latestCheerAt"`
}

// Defaults is the profile a brand new user starts with.
func Defaults(id string) UserProfile {
	return UserProfile{
		ID:           id,
		Username:     DefaultUsername,
		Theme:        DefaultTheme,
		Currency:     DefaultCurrency,
		Goal:         DefaultGoal,
		GoalCurrency: DefaultCurrency,
		GoalTitle:    DefaultGoalTitle,
		Categories:   DefaultCategories(),
		History:      []Transaction{},
		FriendIDs:    []string{},
	}
}

// Clone returns a deep copy safe to hand outside the store.
func (p UserProfile) Clone() UserProfile {
	out := p
	if p.Deadline != nil {
		d := *p.Deadline
		out.Deadline = &d
	}
	out.Categories = append([]string{}, p.Categories...)
	out.History = append([]Transaction{}, p.History...)
	out.FriendIDs = append([]string{}, p.FriendIDs...)
	return out
}

// Document returns every persisted field, used when creating a new document.
func (p UserProfile) Document() map[string]any {
	return map[string]any{
		FieldUsername:      p.Username,
		FieldSaved:         p.Saved,
		FieldGoal:          p.Goal,
		FieldGoalTitle:     p.GoalTitle,
		FieldGoalCurrency:  p.GoalCurrency,
		FieldDeadline:      p.Deadline,
		FieldCurrency:      p.Currency,
		FieldTheme:         p.Theme,
		FieldIsGhost:       p.IsGhost,
		FieldCategories:    p.Categories,
		FieldHistory:       p.History,
		FieldFriendIDs:     p.FriendIDs,
		FieldLatestCheerAt: p.LatestCheerAt,
	}
}

func (p UserProfile) HasCategory(name string) bool {
	for _, c := range p.Categories {
		if c == name {
			return true
		}
	}
	return false
}

func (p UserProfile) HasFriend(id string) bool {
	for _, f := range p.FriendIDs {
		if f == id {
			return true
		}
	}
	return false
}
