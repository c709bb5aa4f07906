package model

import "time"

// ShareStatus is the lifecycle state of a share session.
type ShareStatus string

const (
	ShareStatusActive  ShareStatus = "active"
	ShareStatusExpired ShareStatus = "expired"
	ShareStatusUsed    ShareStatus = "used"
)

// ShareSession tracks which share token is currently valid for an owner.
// At most one session per owner is active at any instant.
type ShareSession struct {
	ID               string      `json:"id"`
	OwnerID          string      `json:"owner_id"`
	TokenFingerprint string      `json:"-"`
	Status           ShareStatus `json:"status"`
	ExpiresAt        time.Time   `json:"expires_at"`
	CreatedAt        time.Time   `json:"created_at"`
}

// Redeemable reports whether the session may still be used at now.
func (s ShareSession) Redeemable(now time.Time) bool {
	return s.Status == ShareStatusActive && now.Before(s.ExpiresAt)
}

// Consumed reports whether a single-use session was redeemed but has not yet
// run out its lifetime.
func (s ShareSession) Consumed(now time.Time) bool {
	return s.Status == ShareStatusUsed && now.Before(s.ExpiresAt)
}
