package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/interop/gateway/internal/domain/siu"
	"github.com/interop/gateway/internal/platform/db"
)

// Reconciler maps converter drafts onto the durable store with the minimal
// set of writes that keeps re-delivery idempotent. Every Apply runs inside a
// single transaction; the conflict-tolerant repository inserts plus the
// re-reads below close the resolve-or-create and dedup races.
type Reconciler struct {
	run          db.TxRunner
	schedules    ScheduleRepository
	slots        SlotRepository
	appointments AppointmentRepository
}

func NewReconciler(run db.TxRunner, sched ScheduleRepository, slot SlotRepository, appt AppointmentRepository) *Reconciler {
	return &Reconciler{run: run, schedules: sched, slots: slot, appointments: appt}
}

// ReconcileResult reports what the engine did: the resolved Schedule, the
// authoritative Appointment row, the Slot it references (if any), and whether
// the Appointment was newly created rather than updated in place.
type ReconcileResult struct {
	Schedule    *Schedule
	Appointment *Appointment
	Slot        *Slot
	Created     bool
}

// Apply reconciles the drafts against the store.
func (r *Reconciler) Apply(ctx context.Context, d siu.Drafts) (*ReconcileResult, error) {
	if d.Appointment.PlacerAppointmentID == "" {
		return nil, fmt.Errorf("reconcile: placer appointment ID is empty")
	}

	res := &ReconcileResult{}
	err := r.run(ctx, func(ctx context.Context) error {
		sched, err := r.resolveSchedule(ctx, d.Schedule)
		if err != nil {
			return err
		}
		res.Schedule = sched

		existing, err := r.appointments.GetByPlacerID(ctx, d.Appointment.PlacerAppointmentID)
		switch {
		case err == nil:
			return r.updateInPlace(ctx, res, existing, d)
		case errors.Is(err, ErrNotFound):
			return r.createNew(ctx, res, sched, d)
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// resolveSchedule reuses the first Schedule matching the owning actor and
// creates one only when absent. The re-read after Create returns whichever
// row won a concurrent insert.
func (r *Reconciler) resolveSchedule(ctx context.Context, d siu.ScheduleDraft) (*Schedule, error) {
	sched, err := r.schedules.GetByActor(ctx, d.ActorRef)
	if err == nil {
		return sched, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	fresh := &Schedule{Active: true, ActorRef: d.ActorRef}
	if d.Comment != "" {
		fresh.Comment = &d.Comment
	}
	if err := r.schedules.Create(ctx, fresh); err != nil {
		return nil, err
	}
	return r.schedules.GetByActor(ctx, d.ActorRef)
}

func (r *Reconciler) createNew(ctx context.Context, res *ReconcileResult, sched *Schedule, d siu.Drafts) error {
	appt := draftAppointment(d)
	appt.ID = uuid.New()

	var slot *Slot
	if d.Slot != nil {
		slot = &Slot{
			ScheduleID: sched.ID,
			Status:     d.Slot.Status,
			StartTime:  d.Slot.Start,
			EndTime:    d.Slot.End,
			Overbooked: d.Slot.Overbooked,
		}
		if err := r.slots.Create(ctx, slot); err != nil {
			return err
		}
		appt.SlotID = &slot.ID
	}

	if err := r.appointments.Create(ctx, appt); err != nil {
		return err
	}

	authoritative, err := r.appointments.GetByPlacerID(ctx, d.Appointment.PlacerAppointmentID)
	if err != nil {
		return err
	}
	if authoritative.ID != appt.ID {
		// A concurrent delivery of the same placer ID won the insert. Drop
		// the slot we minted and fall through to the update path.
		if slot != nil {
			if err := r.slots.Delete(ctx, slot.ID); err != nil {
				return err
			}
		}
		return r.updateInPlace(ctx, res, authoritative, d)
	}

	if err := r.appointments.ReplaceParticipants(ctx, appt.ID, draftParticipants(d)); err != nil {
		return err
	}

	if slot != nil && d.Appointment.Status == siu.StatusBooked {
		if err := r.slots.UpdateStatus(ctx, slot.ID, SlotBusy); err != nil {
			return err
		}
		slot.Status = SlotBusy
	}

	res.Appointment = authoritative
	res.Slot = slot
	res.Created = true
	return nil
}

// updateInPlace applies the draft to an existing Appointment row: same
// identity, no new row, participants replaced wholesale.
func (r *Reconciler) updateInPlace(ctx context.Context, res *ReconcileResult, existing *Appointment, d siu.Drafts) error {
	fresh := draftAppointment(d)
	existing.FillerAppointmentID = fresh.FillerAppointmentID
	existing.Status = fresh.Status
	existing.CancellationReason = fresh.CancellationReason
	existing.Reason = fresh.Reason
	existing.StartTime = fresh.StartTime
	existing.EndTime = fresh.EndTime

	if err := r.appointments.Update(ctx, existing); err != nil {
		return err
	}
	if err := r.appointments.ReplaceParticipants(ctx, existing.ID, draftParticipants(d)); err != nil {
		return err
	}

	if existing.SlotID != nil {
		var target string
		switch existing.Status {
		case siu.StatusBooked:
			target = SlotBusy
		case siu.StatusCancelled, siu.StatusEnteredInError:
			target = SlotFree
		}
		if target != "" {
			if err := r.slots.UpdateStatus(ctx, *existing.SlotID, target); err != nil {
				return err
			}
		}
		slot, err := r.slots.GetByID(ctx, *existing.SlotID)
		if err != nil {
			return err
		}
		res.Slot = slot
	}

	res.Appointment = existing
	res.Created = false
	return nil
}

func draftAppointment(d siu.Drafts) *Appointment {
	a := &Appointment{
		PlacerAppointmentID: d.Appointment.PlacerAppointmentID,
		Status:              d.Appointment.Status,
		StartTime:           d.Appointment.Start,
		EndTime:             d.Appointment.End,
	}
	if d.Appointment.FillerAppointmentID != "" {
		v := d.Appointment.FillerAppointmentID
		a.FillerAppointmentID = &v
	}
	if d.Appointment.Reason != "" {
		v := d.Appointment.Reason
		a.Reason = &v
	}
	if d.Appointment.CancellationReason != "" {
		v := d.Appointment.CancellationReason
		a.CancellationReason = &v
	}
	return a
}

func draftParticipants(d siu.Drafts) []*AppointmentParticipant {
	parts := make([]*AppointmentParticipant, 0, len(d.Appointment.Participants))
	for _, p := range d.Appointment.Participants {
		part := &AppointmentParticipant{Role: p.Role, ActorRef: p.ActorRef}
		if p.Display != "" {
			v := p.Display
			part.Display = &v
		}
		parts = append(parts, part)
	}
	return parts
}
