package hl7v2

import (
	"fmt"
	"time"
)

// Acknowledgement codes carried in MSA-1.
const (
	AckAccept = "AA" // application accept
	AckError  = "AE" // application error (store-layer fault; retry reasonable)
	AckReject = "AR" // application reject (never retried as-is)
)

// UnknownControlID is echoed in MSA-2 when the inbound header itself could
// not be parsed.
const UnknownControlID = "UNKNOWN"

// AckError codes carried in ERR-3 style diagnostics. These distinguish the
// rejection classes so senders can tell a grammar failure from a semantic
// one.
const (
	ErrCodeSegmentSequence = "100" // segment sequence error (tokenization/grammar)
	ErrCodeUnsupportedType = "200" // unsupported message type
	ErrCodeUnsupportedEvt  = "201" // unsupported trigger event
	ErrCodeRequiredField   = "101" // required field missing / semantic validation
	ErrCodeApplicationErr  = "207" // application internal error (persistence)
)

// AckDetail is the optional structured error attached to a non-accept
// acknowledgement, rendered as an ERR segment.
type AckDetail struct {
	Code     string
	Text     string
	Severity string // "E" error, "W" warning
}

// AckOutcome describes the acknowledgement to emit for an inbound message.
type AckOutcome struct {
	Code       string // AA, AE, or AR
	ControlID  string // echoed MSA-2; UnknownControlID if header unparseable
	Diagnostic string // short free-text diagnostic, MSA-3
	Detail     *AckDetail
}

// Accepted reports whether the outcome is an application accept.
func (o AckOutcome) Accepted() bool { return o.Code == AckAccept }

// BuildAck creates an HL7v2 ACK message for the given inbound message and
// outcome. The ACK swaps sending and receiving application/facility and
// echoes the original control ID in MSA-2. incoming may be nil when the
// inbound bytes never parsed; the ACK is then built against defaults so the
// sender still receives a protocol-conformant response.
func BuildAck(incoming *Message, outcome AckOutcome) *Message {
	now := time.Now().UTC()
	timestamp := FormatTimestamp(now)
	controlID := fmt.Sprintf("ACK%s", now.Format("20060102150405.000"))

	trigger := ""
	version := "2.5.1"
	var sendApp, sendFac, recvApp, recvFac string
	if incoming != nil {
		trigger = incoming.TriggerEvent
		if incoming.Version != "" {
			version = incoming.Version
		}
		sendApp = incoming.ReceivingApp
		sendFac = incoming.ReceivingFac
		recvApp = incoming.SendingApp
		recvFac = incoming.SendingFac
	}

	msgType := "ACK"
	if trigger != "" {
		msgType = "ACK^" + trigger
	}

	echoID := outcome.ControlID
	if echoID == "" {
		echoID = UnknownControlID
	}

	ack := &Message{
		Type:         "ACK",
		TriggerEvent: trigger,
		ControlID:    controlID,
		Version:      version,
		Timestamp:    now,
		SendingApp:   sendApp,
		SendingFac:   sendFac,
		ReceivingApp: recvApp,
		ReceivingFac: recvFac,
		Delimiters:   Delimiters{Field: '|', Component: '^', Repetition: '~', Escape: '\\', Subcomponent: '&'},
	}

	f := func(v string) Field { return Field{Value: v, Components: []string{v}} }

	// MSH-1 through MSH-12 in order; MSH-9 carries ACK^trigger.
	msh := Segment{
		Name: "MSH",
		Fields: []Field{
			f("|"), f(`^~\&`),
			f(sendApp), f(sendFac), f(recvApp), f(recvFac),
			f(timestamp), f(""),
			{Value: msgType, Components: []string{"ACK", trigger}},
			f(controlID), f("P"), f(version),
		},
	}

	// MSA-1 ack code, MSA-2 echoed control ID, MSA-3 diagnostic.
	msa := Segment{
		Name:   "MSA",
		Fields: []Field{f(outcome.Code), f(echoID), f(outcome.Diagnostic)},
	}

	ack.Segments = []Segment{msh, msa}

	if outcome.Detail != nil {
		severity := outcome.Detail.Severity
		if severity == "" {
			severity = "E"
		}
		// ERR-1/ERR-2 empty, ERR-3 code^text, ERR-4 severity.
		errCode := outcome.Detail.Code + "^" + outcome.Detail.Text
		ack.Segments = append(ack.Segments, Segment{
			Name: "ERR",
			Fields: []Field{
				f(""), f(""),
				{Value: errCode, Components: []string{outcome.Detail.Code, outcome.Detail.Text}},
				f(severity),
			},
		})
	}

	return ack
}
