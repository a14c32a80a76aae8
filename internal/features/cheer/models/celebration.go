package models

import "time"

// Celebration is one fired cheer on the receiving user's session.
type Celebration struct {
	UserID  string    `json:"userId"`
	CheerAt int64     `json:"cheerAt"`
	FiredAt time.Time `json:"firedAt"`
}
