package hold

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/interop/gateway/internal/domain/scheduling"
)

// Repository persists slot holds.
type Repository interface {
	Create(ctx context.Context, h *SlotHold) error
	GetActiveBySlot(ctx context.Context, slotID uuid.UUID, now time.Time) (*SlotHold, error)
	Extend(ctx context.Context, id uuid.UUID, expiresAt time.Time) error
	DeleteByToken(ctx context.Context, token string) error
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// SlotStore is the slice of the scheduling store the hold manager needs.
// GetForUpdate must lock the slot row for the duration of the surrounding
// transaction so concurrent acquisitions on the same slot serialize.
type SlotStore interface {
	GetForUpdate(ctx context.Context, id uuid.UUID) (*scheduling.Slot, error)
}
