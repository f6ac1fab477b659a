// Package hold implements the slot-hold manager: short-lived exclusive
// reservations that let a booking workflow claim a Slot before committing an
// Appointment.
package hold

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound marks a hold or slot that does not exist.
	ErrNotFound = errors.New("hold: not found")

	// ErrSlotUnavailable marks a hold attempt on a slot that is not free.
	ErrSlotUnavailable = errors.New("hold: slot unavailable")

	// ErrHoldConflict marks a hold attempt on a slot actively held by a
	// different session.
	ErrHoldConflict = errors.New("hold: slot held by another session")

	// ErrValidation marks a hold request with invalid parameters.
	ErrValidation = errors.New("hold: invalid request")
)

// SlotHold maps to the slot_hold table. Token is the opaque, globally unique
// release handle. Invariant: ExpiresAt is strictly after CreatedAt. At most
// one active (non-expired) hold exists per slot; the row lock taken on the
// slot during acquisition serializes concurrent attempts.
type SlotHold struct {
	ID        uuid.UUID `db:"id" json:"id"`
	SlotID    uuid.UUID `db:"slot_id" json:"slot_id"`
	Token     string    `db:"token" json:"token"`
	SessionID string    `db:"session_id" json:"session_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
}

// Expired reports whether the hold has passed its expiry at the given
// instant. Expiry is lazy: an expired row may linger until the next sweep.
func (h *SlotHold) Expired(now time.Time) bool {
	return !h.ExpiresAt.After(now)
}
