package siu

import (
	"reflect"
	"testing"
	"time"
)

func structuredFixture() *StructuredMessage {
	start := time.Date(2026, 2, 17, 8, 0, 0, 0, time.UTC)
	return &StructuredMessage{
		Header: Header{
			SendingApp:   "SchedApp",
			SendingFac:   "SchedFac",
			ControlID:    "MSG00101",
			TriggerEvent: "S12",
		},
		PlacerAppointmentID: "P-100",
		FillerAppointmentID: "F-200",
		EventReason:         "Patient request",
		AppointmentReason:   "Follow-up visit",
		Start:               start,
		End:                 start.Add(30 * time.Minute),
		Patient:             &Patient{Identifier: "MRN777", FamilyName: "Garcia", GivenName: "Elena"},
		Participants:        []Participant{{ActorID: "D42", FamilyName: "Nguyen", GivenName: "Thanh", Role: "ATND"}},
		Locations:           []Location{{ID: "CLINIC-EAST", Description: "Exam 3"}},
	}
}

func TestConvert_BookingMintsSlot(t *testing.T) {
	sm := structuredFixture()
	d := Convert(sm, triggerActions["S12"])

	if d.Appointment.PlacerAppointmentID != "P-100" {
		t.Errorf("expected placer ID carried through, got %q", d.Appointment.PlacerAppointmentID)
	}
	if d.Appointment.Status != StatusBooked {
		t.Errorf("expected status booked, got %q", d.Appointment.Status)
	}
	if d.Appointment.CancellationReason != "" {
		t.Errorf("booking must not carry a cancellation reason, got %q", d.Appointment.CancellationReason)
	}

	if d.Slot == nil {
		t.Fatal("expected a slot draft for S12")
	}
	if !d.Slot.Start.Equal(sm.Start) || !d.Slot.End.Equal(sm.End) {
		t.Errorf("slot timing mismatch: %v-%v", d.Slot.Start, d.Slot.End)
	}
	if d.Slot.Status != "free" {
		t.Errorf("expected slot minted free, got %q", d.Slot.Status)
	}

	if d.Schedule.ActorRef != "Practitioner/D42" {
		t.Errorf("expected owning actor Practitioner/D42, got %q", d.Schedule.ActorRef)
	}
}

func TestConvert_CancellationClassEvents(t *testing.T) {
	tests := []struct {
		trigger    string
		wantStatus string
	}{
		{"S15", StatusCancelled},
		{"S16", StatusCancelled},
		{"S17", StatusEnteredInError},
		{"S26", StatusNoShow},
	}
	for _, tt := range tests {
		d := Convert(structuredFixture(), triggerActions[tt.trigger])
		if d.Slot != nil {
			t.Errorf("%s: cancellation-class event must not mint a slot", tt.trigger)
		}
		if d.Appointment.Status != tt.wantStatus {
			t.Errorf("%s: expected status %q, got %q", tt.trigger, tt.wantStatus, d.Appointment.Status)
		}
	}
}

func TestConvert_CancellationReason(t *testing.T) {
	d := Convert(structuredFixture(), triggerActions["S15"])
	if d.Appointment.CancellationReason != "Patient request" {
		t.Errorf("expected cancellation reason from event reason, got %q", d.Appointment.CancellationReason)
	}
}

func TestConvert_Participants(t *testing.T) {
	d := Convert(structuredFixture(), triggerActions["S12"])

	want := []ParticipantDraft{
		{Role: "patient", ActorRef: "Patient/MRN777", Display: "Elena Garcia"},
		{Role: "ATND", ActorRef: "Practitioner/D42", Display: "Thanh Nguyen"},
		{Role: "location", ActorRef: "Location/CLINIC-EAST", Display: "Exam 3"},
	}
	if !reflect.DeepEqual(d.Appointment.Participants, want) {
		t.Errorf("participants mismatch:\n got:  %+v\n want: %+v", d.Appointment.Participants, want)
	}
}

func TestConvert_ActorFallbacks(t *testing.T) {
	sm := structuredFixture()
	sm.Participants = nil
	if d := Convert(sm, triggerActions["S12"]); d.Schedule.ActorRef != "Location/CLINIC-EAST" {
		t.Errorf("expected location fallback, got %q", d.Schedule.ActorRef)
	}

	sm.Locations = nil
	if d := Convert(sm, triggerActions["S12"]); d.Schedule.ActorRef != "Organization/SchedFac" {
		t.Errorf("expected sending-facility fallback, got %q", d.Schedule.ActorRef)
	}
}

func TestConvert_Deterministic(t *testing.T) {
	a := Convert(structuredFixture(), triggerActions["S12"])
	b := Convert(structuredFixture(), triggerActions["S12"])
	if !reflect.DeepEqual(a, b) {
		t.Error("conversion is not deterministic for identical input")
	}
}
