package hold

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/interop/gateway/internal/domain/scheduling"
	"github.com/interop/gateway/internal/platform/db"
)

const defaultDurationMinutes = 5

// Service leases slots exclusively to booking sessions for a bounded
// duration. Expiry is lazy: expired rows are swept at the start of the next
// acquisition, never by a background timer.
type Service struct {
	run        db.TxRunner
	holds      Repository
	slots      SlotStore
	maxMinutes int
	logger     zerolog.Logger
	now        func() time.Time
}

func NewService(run db.TxRunner, holds Repository, slots SlotStore, maxMinutes int, logger zerolog.Logger) *Service {
	if maxMinutes <= 0 {
		maxMinutes = 30
	}
	return &Service{
		run:        run,
		holds:      holds,
		slots:      slots,
		maxMinutes: maxMinutes,
		logger:     logger,
		now:        time.Now,
	}
}

// Hold acquires or extends a hold on the slot for the session. The whole
// sequence runs in one transaction with the slot row locked, so two
// concurrent calls on the same slot cannot both observe "no active hold".
func (s *Service) Hold(ctx context.Context, slotID uuid.UUID, sessionID string, durationMinutes int) (*SlotHold, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session ID is required", ErrValidation)
	}
	if durationMinutes <= 0 {
		durationMinutes = defaultDurationMinutes
	}
	if durationMinutes > s.maxMinutes {
		return nil, fmt.Errorf("%w: duration exceeds maximum of %d minutes", ErrValidation, s.maxMinutes)
	}

	var result *SlotHold
	err := s.run(ctx, func(ctx context.Context) error {
		now := s.now()

		swept, err := s.holds.SweepExpired(ctx, now)
		if err != nil {
			return err
		}
		if swept > 0 {
			s.logger.Debug().Int("count", swept).Msg("swept expired holds")
		}

		slot, err := s.slots.GetForUpdate(ctx, slotID)
		if err != nil {
			return err
		}
		if slot.Status != scheduling.SlotFree {
			return fmt.Errorf("%w: slot status is %s", ErrSlotUnavailable, slot.Status)
		}

		expiresAt := now.Add(time.Duration(durationMinutes) * time.Minute)

		active, err := s.holds.GetActiveBySlot(ctx, slotID, now)
		switch {
		case errors.Is(err, ErrNotFound):
			fresh := &SlotHold{
				SlotID:    slotID,
				Token:     uuid.NewString(),
				SessionID: sessionID,
				CreatedAt: now,
				ExpiresAt: expiresAt,
			}
			if err := s.holds.Create(ctx, fresh); err != nil {
				return err
			}
			result = fresh
			return nil
		case err != nil:
			return err
		}

		if active.SessionID != sessionID {
			return ErrHoldConflict
		}

		// Same session re-holding: extend the existing hold in place.
		if err := s.holds.Extend(ctx, active.ID, expiresAt); err != nil {
			return err
		}
		active.ExpiresAt = expiresAt
		result = active
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Release deletes the hold matching the token. Idempotent: releasing an
// expired, already-released, or unknown token succeeds silently.
func (s *Service) Release(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("%w: token is required", ErrValidation)
	}
	return s.holds.DeleteByToken(ctx, token)
}

// ActiveHold returns the current non-expired hold on the slot, or ErrNotFound
// when none exists. An expired-but-unswept row is never returned.
func (s *Service) ActiveHold(ctx context.Context, slotID uuid.UUID) (*SlotHold, error) {
	return s.holds.GetActiveBySlot(ctx, slotID, s.now())
}
