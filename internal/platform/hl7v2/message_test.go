package hl7v2

import (
	"errors"
	"strings"
	"testing"
)

// =========== Sample Messages ===========

const sampleSIU = "MSH|^~\\&|SchedApp|SchedFac|GatewayApp|GatewayFac|20260217070000||SIU^S12|MSG00101|P|2.5.1\r" +
	"SCH|P-100|F-200|||||ROUTINE|BOOKED^Booked|30|m|^^^20260217080000^20260217083000\r" +
	"PID|1||MRN777^^^MRNAuth||Garcia^Elena||19900101|F\r" +
	"AIP|1||D42^Nguyen^Thanh|ATND\r" +
	"AIL|1||CLINIC-EAST^^^Exam 3"

func TestParse_SIU_S12(t *testing.T) {
	msg, err := Parse([]byte(sampleSIU))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if msg.Type != "SIU" {
		t.Errorf("expected Type 'SIU', got %q", msg.Type)
	}
	if msg.TriggerEvent != "S12" {
		t.Errorf("expected TriggerEvent 'S12', got %q", msg.TriggerEvent)
	}
	if msg.ControlID != "MSG00101" {
		t.Errorf("expected ControlID 'MSG00101', got %q", msg.ControlID)
	}
	if msg.ProcessingID != "P" {
		t.Errorf("expected ProcessingID 'P', got %q", msg.ProcessingID)
	}
	if msg.Version != "2.5.1" {
		t.Errorf("expected Version '2.5.1', got %q", msg.Version)
	}
	if msg.SendingApp != "SchedApp" || msg.SendingFac != "SchedFac" {
		t.Errorf("unexpected sender: %q/%q", msg.SendingApp, msg.SendingFac)
	}
	if msg.ReceivingApp != "GatewayApp" || msg.ReceivingFac != "GatewayFac" {
		t.Errorf("unexpected receiver: %q/%q", msg.ReceivingApp, msg.ReceivingFac)
	}
	if msg.Timestamp.Year() != 2026 || msg.Timestamp.Month() != 2 || msg.Timestamp.Day() != 17 {
		t.Errorf("unexpected timestamp: %v", msg.Timestamp)
	}
}

func TestParse_DeclaredDelimiters(t *testing.T) {
	msg, err := Parse([]byte(sampleSIU))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	d := msg.Delimiters
	if d.Field != '|' || d.Component != '^' || d.Repetition != '~' || d.Escape != '\\' || d.Subcomponent != '&' {
		t.Errorf("unexpected delimiters: %+v", d)
	}
}

func TestParse_NonStandardDelimiters(t *testing.T) {
	// Field separator # and encoding characters *%!+ — the grammar must come
	// from the header, not from assumptions.
	raw := "MSH#*%!+#SchedApp#SchedFac#GW#GWFac#20260217070000##SIU*S12#MSG1#P#2.3\r" +
		"SCH#P-9#F-9\r" +
		"AIP#1##D1*Lee*Ana#ATND"

	msg, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if msg.Delimiters.Field != '#' {
		t.Errorf("expected field delimiter '#', got %q", msg.Delimiters.Field)
	}
	if msg.Delimiters.Component != '*' {
		t.Errorf("expected component delimiter '*', got %q", msg.Delimiters.Component)
	}
	if msg.Type != "SIU" || msg.TriggerEvent != "S12" {
		t.Errorf("expected SIU^S12, got %q^%q", msg.Type, msg.TriggerEvent)
	}

	aip := msg.GetSegment("AIP")
	if aip == nil {
		t.Fatal("expected AIP segment")
	}
	if got := aip.GetComponent(3, 2); got != "Lee" {
		t.Errorf("expected AIP-3.2 'Lee', got %q", got)
	}
}

func TestParse_Repetitions(t *testing.T) {
	raw := "MSH|^~\\&|A|B|C|D|20260101120000||SIU^S12|M1|P|2.5.1\r" +
		"AIP|1||D1^Smith~D2^Jones|ATND"

	msg, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	aip := msg.GetSegment("AIP")
	if aip == nil {
		t.Fatal("expected AIP segment")
	}
	reps := aip.Fields[2].Repeats
	if len(reps) != 2 {
		t.Fatalf("expected 2 repetitions, got %d", len(reps))
	}
	if reps[0][0] != "D1" || reps[1][0] != "D2" {
		t.Errorf("unexpected repetition values: %v", reps)
	}
}

func TestParse_NoHeader(t *testing.T) {
	_, err := Parse([]byte("SCH|P-100|F-200"))
	if err == nil {
		t.Fatal("expected error for message without MSH")
	}
	if !errors.Is(err, ErrMalformedMessage) {
		t.Errorf("expected ErrMalformedMessage, got %v", err)
	}
}

func TestParse_Empty(t *testing.T) {
	for _, raw := range []string{"", "\r\n", "   "} {
		if _, err := Parse([]byte(raw)); !errors.Is(err, ErrMalformedMessage) {
			t.Errorf("Parse(%q): expected ErrMalformedMessage, got %v", raw, err)
		}
	}
}

func TestParse_TruncatedHeader(t *testing.T) {
	_, err := Parse([]byte("MSH|^"))
	if !errors.Is(err, ErrMalformedMessage) {
		t.Errorf("expected ErrMalformedMessage for truncated MSH, got %v", err)
	}
}

func TestParse_TruncatedTrailingMSH(t *testing.T) {
	// A bare "MSH" line in the body must fail as malformed, never panic; this
	// input arrives from raw network frames.
	raws := []string{
		"MSH|^~\\&|A|B|C|D|20260101120000||SIU^S12|M1|P|2.5.1\rMSH",
		"MSH|^~\\&|A|B|C|D|20260101120000||SIU^S12|M1|P|2.5.1\rSCH|P-1\rMSH",
	}
	for _, raw := range raws {
		if _, err := Parse([]byte(raw)); !errors.Is(err, ErrMalformedMessage) {
			t.Errorf("Parse(%q): expected ErrMalformedMessage, got %v", raw, err)
		}
	}
}

func TestParse_SegmentOrderPreserved(t *testing.T) {
	raw := "MSH|^~\\&|A|B|C|D|20260101120000||SIU^S12|M1|P|2.5.1\r" +
		"SCH|P-1\rAIP|1\rAIL|1\rAIP|2"

	msg, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var order []string
	for _, seg := range msg.Segments {
		order = append(order, seg.Name)
	}
	want := "MSH,SCH,AIP,AIL,AIP"
	if got := strings.Join(order, ","); got != want {
		t.Errorf("expected segment order %s, got %s", want, got)
	}

	aips := msg.GetSegments("AIP")
	if len(aips) != 2 {
		t.Fatalf("expected 2 AIP segments, got %d", len(aips))
	}
	if aips[0].GetField(1) != "1" || aips[1].GetField(1) != "2" {
		t.Errorf("AIP occurrences out of order: %q, %q", aips[0].GetField(1), aips[1].GetField(1))
	}
}

func TestParse_LineEndingVariants(t *testing.T) {
	for _, sep := range []string{"\r", "\n", "\r\n"} {
		raw := "MSH|^~\\&|A|B|C|D|20260101120000||SIU^S12|M1|P|2.5.1" + sep + "SCH|P-1|F-1"
		msg, err := Parse([]byte(raw))
		if err != nil {
			t.Fatalf("separator %q: unexpected error: %v", sep, err)
		}
		if msg.GetSegment("SCH") == nil {
			t.Errorf("separator %q: SCH segment not found", sep)
		}
	}
}

func TestSerialize_RoundTrip(t *testing.T) {
	msg, err := Parse([]byte(sampleSIU))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := Serialize(msg)
	if string(out) != sampleSIU {
		t.Errorf("round trip mismatch:\n  in:  %q\n  out: %q", sampleSIU, string(out))
	}

	reparsed, err := Parse(out)
	if err != nil {
		t.Fatalf("reparse failed: %v", err)
	}
	if reparsed.ControlID != msg.ControlID || reparsed.TriggerEvent != msg.TriggerEvent {
		t.Errorf("reparse lost header fields: %+v", reparsed)
	}
}

func TestGetComponent_SCH(t *testing.T) {
	msg, err := Parse([]byte(sampleSIU))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sch := msg.GetSegment("SCH")
	if sch == nil {
		t.Fatal("expected SCH segment")
	}
	if got := sch.GetField(1); got != "P-100" {
		t.Errorf("expected SCH-1 'P-100', got %q", got)
	}
	// SCH-11.4 = appointment start
	if got := sch.GetComponent(11, 4); got != "20260217080000" {
		t.Errorf("expected SCH-11.4 '20260217080000', got %q", got)
	}
	// Out-of-range access returns empty, never panics.
	if got := sch.GetComponent(99, 1); got != "" {
		t.Errorf("expected empty for out-of-range field, got %q", got)
	}
}

func TestNormalizeEscapes(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`MSH|a\r\nSCH|b`, "MSH|a\rSCH|b"},
		{`MSH|a\rSCH|b`, "MSH|a\rSCH|b"},
		{`MSH|a\nSCH|b`, "MSH|a\rSCH|b"},
		{"MSH|a\rSCH|b", "MSH|a\rSCH|b"},
	}
	for _, tt := range tests {
		if got := NormalizeEscapes(tt.in); got != tt.want {
			t.Errorf("NormalizeEscapes(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseTimestamp_Formats(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"20260217080000", false},
		{"202602170800", false},
		{"20260217", false},
		{"2026", true},
		{"", true},
	}
	for _, tt := range tests {
		_, err := ParseTimestamp(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTimestamp(%q): err = %v, wantErr = %v", tt.in, err, tt.wantErr)
		}
	}
}
