package hold

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/interop/gateway/internal/domain/scheduling"
	"github.com/interop/gateway/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const holdCols = `id, slot_id, token, session_id, created_at, expires_at`

func scanHold(row pgx.Row) (*SlotHold, error) {
	var h SlotHold
	err := row.Scan(&h.ID, &h.SlotID, &h.Token, &h.SessionID, &h.CreatedAt, &h.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &h, nil
}

func (r *repoPG) Create(ctx context.Context, h *SlotHold) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO slot_hold (id, slot_id, token, session_id, expires_at)
		VALUES ($1,$2,$3,$4,$5)`,
		h.ID, h.SlotID, h.Token, h.SessionID, h.ExpiresAt)
	return err
}

func (r *repoPG) GetActiveBySlot(ctx context.Context, slotID uuid.UUID, now time.Time) (*SlotHold, error) {
	return scanHold(r.conn(ctx).QueryRow(ctx, `
		SELECT `+holdCols+` FROM slot_hold
		WHERE slot_id = $1 AND expires_at > $2
		ORDER BY expires_at DESC LIMIT 1`, slotID, now))
}

func (r *repoPG) Extend(ctx context.Context, id uuid.UUID, expiresAt time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE slot_hold SET expires_at = $2 WHERE id = $1`, id, expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByToken is idempotent: deleting an absent token is not an error.
func (r *repoPG) DeleteByToken(ctx context.Context, token string) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM slot_hold WHERE token = $1`, token)
	return err
}

func (r *repoPG) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM slot_hold WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// =========== Slot store ===========

type slotStorePG struct{ pool *pgxpool.Pool }

func NewSlotStorePG(pool *pgxpool.Pool) SlotStore { return &slotStorePG{pool: pool} }

func (r *slotStorePG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// GetForUpdate reads the slot under FOR UPDATE. Outside a transaction the
// lock is released immediately, so callers must run inside db.WithTx for the
// serialization to mean anything.
func (r *slotStorePG) GetForUpdate(ctx context.Context, id uuid.UUID) (*scheduling.Slot, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		SELECT id, schedule_id, status, start_time, end_time, overbooked, comment, created_at, updated_at
		FROM slot WHERE id = $1 FOR UPDATE`, id)

	var sl scheduling.Slot
	err := row.Scan(&sl.ID, &sl.ScheduleID, &sl.Status, &sl.StartTime, &sl.EndTime,
		&sl.Overbooked, &sl.Comment, &sl.CreatedAt, &sl.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sl, nil
}
