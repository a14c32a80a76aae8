package models

import (
	"bytes"
	"encoding/json"
	"strings"

	cheer "budget-bubble-backend/internal/features/cheer/models"
)

// AmountInput is an amount as typed by the user, either a JSON number or a
// string. It is kept raw so that unparseable input can be rejected as a
// no-op instead of a malformed request.
type AmountInput string

func (a *AmountInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = AmountInput(strings.TrimSpace(s))
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	*a = AmountInput(data)
	return nil
}

type GoalRequest struct {
	Amount   AmountInput `json:"amount" swaggertype:"string" example:"1500"`
	Currency string      `json:"currency,omitempty" example:"EUR"`
	Deadline string      `json:"deadline,omitempty" example:"2027-06-30"`
	Title    string      `json:"title,omitempty" example:"New bike"`
}

type CurrencyRequest struct {
	Currency string `json:"currency" example:"AED"`
}

type ThemeRequest struct {
	Theme string `json:"theme" example:"light"`
}

type UsernameRequest struct {
	Username string `json:"username" example:"Saver"`
}

type CategoryRequest struct {
	Name string `json:"name" example:"Travel"`
}

// TransactionRequest amounts are in the user's display currency.
type TransactionRequest struct {
	Amount    AmountInput `json:"amount" swaggertype:"string" example:"12.50"`
	Direction string      `json:"direction" example:"credit"`
	Category  string      `json:"category" example:"Food"`
}

type ResetRequest struct {
	Confirm bool `json:"confirm"`
}

type GhostResponse struct {
	IsGhost bool      `json:"isGhost"`
	State   StateView `json:"state"`
}

type CheerResponse struct {
	TargetID string `json:"targetId"`
	CheerAt  int64  `json:"cheerAt"`
}

type CelebrationsResponse struct {
	Celebrations []cheer.Celebration `json:"celebrations"`
}
