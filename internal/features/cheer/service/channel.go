package service

import (
	"sync"

	docmodels "budget-bubble-backend/internal/features/document/models"
	profile "budget-bubble-backend/internal/features/profile/models"
)

// Celebrator performs the one-shot effect of a received cheer.
type Celebrator interface {
	Celebrate(userID string, cheerAt int64)
}

// Channel watches latestCheerAt on the owner's own snapshots. The first
// value only seeds the baseline; afterwards every strictly greater value
// fires the celebrator once.
type Channel struct {
	owner      string
	celebrator Celebrator

	mu       sync.Mutex
	seeded   bool
	lastSeen int64
}

func NewChannel(owner string, celebrator Celebrator) *Channel {
	return &Channel{owner: owner, celebrator: celebrator}
}

// Observe feeds one snapshot value and reports whether it fired.
func (c *Channel) Observe(value int64) bool {
	c.mu.Lock()
	if !c.seeded {
		c.seeded = true
		c.lastSeen = value
		c.mu.Unlock()
		return false
	}
	if value <= c.lastSeen {
		c.mu.Unlock()
		return false
	}
	c.lastSeen = value
	c.mu.Unlock()

	if c.celebrator != nil {
		c.celebrator.Celebrate(c.owner, value)
	}
	return true
}

// ObserveDocument reads latestCheerAt from a snapshot, absent meaning zero.
func (c *Channel) ObserveDocument(doc *docmodels.Document) bool {
	var value int64
	if doc != nil && doc.Exists {
		value = docmodels.Field[int64](doc.Fields, profile.FieldLatestCheerAt, 0)
	}
	return c.Observe(value)
}

// LastSeen returns the baseline and whether it has been seeded.
func (c *Channel) LastSeen() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen, c.seeded
}

// Reset forgets the baseline so the next snapshot seeds again, used when
// the owner's subscription is reopened.
func (c *Channel) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seeded = false
	c.lastSeen = 0
}
