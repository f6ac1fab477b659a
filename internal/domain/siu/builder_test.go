package siu

import (
	"errors"
	"strings"
	"testing"

	"github.com/interop/gateway/internal/platform/hl7v2"
)

const sampleS12 = "MSH|^~\\&|SchedApp|SchedFac|GatewayApp|GatewayFac|20260217070000||SIU^S12|MSG00101|P|2.5.1\r" +
	"SCH|P-100|F-200||||Patient request|Follow-up visit|ROUTINE|30|m|^^^20260217080000^20260217083000\r" +
	"PID|1||MRN777^^^MRNAuth||Garcia^Elena||19900101|F\r" +
	"AIP|1||D42^Nguyen^Thanh|ATND\r" +
	"AIL|1||CLINIC-EAST^^^Exam 3"

func mustParse(t *testing.T, raw string) *hl7v2.Message {
	t.Helper()
	msg, err := hl7v2.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("failed to parse fixture: %v", err)
	}
	return msg
}

func TestRoute_SupportedTriggers(t *testing.T) {
	tests := []struct {
		trigger    string
		wantStatus string
		wantSlot   bool
	}{
		{"S12", StatusBooked, true},
		{"S13", StatusBooked, true},
		{"S14", StatusBooked, true},
		{"S15", StatusCancelled, false},
		{"S16", StatusCancelled, false},
		{"S17", StatusEnteredInError, false},
		{"S26", StatusNoShow, false},
	}
	for _, tt := range tests {
		raw := strings.Replace(sampleS12, "SIU^S12", "SIU^"+tt.trigger, 1)
		action, err := Route(mustParse(t, raw))
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.trigger, err)
			continue
		}
		if action.AppointmentStatus != tt.wantStatus {
			t.Errorf("%s: expected status %q, got %q", tt.trigger, tt.wantStatus, action.AppointmentStatus)
		}
		if action.MintsSlot != tt.wantSlot {
			t.Errorf("%s: expected MintsSlot=%v, got %v", tt.trigger, tt.wantSlot, action.MintsSlot)
		}
	}
}

func TestRoute_UnsupportedMessageType(t *testing.T) {
	raw := strings.Replace(sampleS12, "SIU^S12", "ORM^O01", 1)
	_, err := Route(mustParse(t, raw))
	if !errors.Is(err, ErrUnsupportedMessageType) {
		t.Errorf("expected ErrUnsupportedMessageType, got %v", err)
	}
}

func TestRoute_UnsupportedTrigger(t *testing.T) {
	raw := strings.Replace(sampleS12, "SIU^S12", "SIU^S99", 1)
	_, err := Route(mustParse(t, raw))
	if !errors.Is(err, ErrUnsupportedTrigger) {
		t.Errorf("expected ErrUnsupportedTrigger, got %v", err)
	}
}

func TestRoute_MissingSCH(t *testing.T) {
	raw := "MSH|^~\\&|A|B|C|D|20260101120000||SIU^S12|M1|P|2.5.1\rPID|1||MRN1"
	_, err := Route(mustParse(t, raw))
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for missing SCH, got %v", err)
	}
}

func TestSupportedEvents(t *testing.T) {
	events := SupportedEvents()
	if len(events) != 7 {
		t.Fatalf("expected 7 supported events, got %d: %v", len(events), events)
	}
	if events[0] != "SIU^S12" {
		t.Errorf("expected sorted list starting with SIU^S12, got %v", events)
	}
	for _, e := range events {
		if !strings.HasPrefix(e, "SIU^S") {
			t.Errorf("unexpected event format: %q", e)
		}
	}
}

func TestBuild_FullMessage(t *testing.T) {
	sm, err := Build(mustParse(t, sampleS12))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if sm.PlacerAppointmentID != "P-100" {
		t.Errorf("expected placer ID 'P-100', got %q", sm.PlacerAppointmentID)
	}
	if sm.FillerAppointmentID != "F-200" {
		t.Errorf("expected filler ID 'F-200', got %q", sm.FillerAppointmentID)
	}
	if sm.Header.ControlID != "MSG00101" || sm.Header.TriggerEvent != "S12" {
		t.Errorf("unexpected header: %+v", sm.Header)
	}
	if sm.EventReason != "Patient request" {
		t.Errorf("expected event reason from SCH-6, got %q", sm.EventReason)
	}

	if got := sm.Start.Format("2006-01-02T15:04:05"); got != "2026-02-17T08:00:00" {
		t.Errorf("unexpected start: %s", got)
	}
	if got := sm.End.Format("2006-01-02T15:04:05"); got != "2026-02-17T08:30:00" {
		t.Errorf("unexpected end: %s", got)
	}

	if sm.Patient == nil || sm.Patient.Identifier != "MRN777" {
		t.Fatalf("expected patient MRN777, got %+v", sm.Patient)
	}
	if sm.Patient.FamilyName != "Garcia" || sm.Patient.GivenName != "Elena" {
		t.Errorf("unexpected patient name: %+v", sm.Patient)
	}

	if len(sm.Participants) != 1 {
		t.Fatalf("expected 1 participant, got %d", len(sm.Participants))
	}
	if p := sm.Participants[0]; p.ActorID != "D42" || p.Role != "ATND" || p.FamilyName != "Nguyen" {
		t.Errorf("unexpected participant: %+v", p)
	}

	if len(sm.Locations) != 1 {
		t.Fatalf("expected 1 location, got %d", len(sm.Locations))
	}
	if l := sm.Locations[0]; l.ID != "CLINIC-EAST" || l.Description != "Exam 3" {
		t.Errorf("unexpected location: %+v", l)
	}
}

func TestBuild_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{
			"missing placer ID",
			"MSH|^~\\&|A|B|C|D|20260101120000||SIU^S12|M1|P|2.5.1\r" +
				"SCH||F-200|||||||30|m|^^^20260217080000^20260217083000",
		},
		{
			"missing timing",
			"MSH|^~\\&|A|B|C|D|20260101120000||SIU^S12|M1|P|2.5.1\r" +
				"SCH|P-1|F-1",
		},
		{
			"missing end timestamp",
			"MSH|^~\\&|A|B|C|D|20260101120000||SIU^S12|M1|P|2.5.1\r" +
				"SCH|P-1|F-1|||||||||^^^20260217080000",
		},
		{
			"start equals end",
			"MSH|^~\\&|A|B|C|D|20260101120000||SIU^S12|M1|P|2.5.1\r" +
				"SCH|P-1|F-1|||||||||^^^20260217080000^20260217080000",
		},
		{
			"start after end",
			"MSH|^~\\&|A|B|C|D|20260101120000||SIU^S12|M1|P|2.5.1\r" +
				"SCH|P-1|F-1|||||||||^^^20260217090000^20260217080000",
		},
		{
			"garbage start timestamp",
			"MSH|^~\\&|A|B|C|D|20260101120000||SIU^S12|M1|P|2.5.1\r" +
				"SCH|P-1|F-1|||||||||^^^notadate^20260217080000",
		},
	}
	for _, tt := range tests {
		_, err := Build(mustParse(t, tt.raw))
		if !errors.Is(err, ErrValidation) {
			t.Errorf("%s: expected ErrValidation, got %v", tt.name, err)
		}
	}
}

func TestBuild_OptionalSegmentsAbsent(t *testing.T) {
	raw := "MSH|^~\\&|A|B|C|D|20260101120000||SIU^S12|M1|P|2.5.1\r" +
		"SCH|P-1|F-1|||||||30|m|^^^20260217080000^20260217083000"
	sm, err := Build(mustParse(t, raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sm.Patient != nil {
		t.Error("expected nil patient when PID absent")
	}
	if len(sm.Participants) != 0 || len(sm.Locations) != 0 {
		t.Errorf("expected empty participants/locations, got %d/%d", len(sm.Participants), len(sm.Locations))
	}
}
