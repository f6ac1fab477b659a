package scheduling

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/interop/gateway/internal/domain/siu"
	"github.com/interop/gateway/internal/platform/hl7v2"
)

// Service is the message intake pipeline: normalize, tokenize, route, build,
// convert, reconcile, acknowledge. Every inbound message is appended to the
// audit log, rejected ones included.
type Service struct {
	reconciler *Reconciler
	messageLog MessageLogRepository
	logger     zerolog.Logger
}

func NewService(rec *Reconciler, msgLog MessageLogRepository, logger zerolog.Logger) *Service {
	return &Service{reconciler: rec, messageLog: msgLog, logger: logger}
}

// ProcessResult carries the acknowledgement to send back plus the error that
// classified the outcome, so the transport layer can pick a status code with
// errors.Is without re-deriving the classification.
type ProcessResult struct {
	Ack        *hl7v2.Message
	Outcome    hl7v2.AckOutcome
	Reconciled *ReconcileResult
	Err        error
}

// Process runs one raw inbound message through the full pipeline. It always
// returns a protocol-conformant acknowledgement; rejection and error paths
// never leave partial writes behind.
func (s *Service) Process(ctx context.Context, raw string) *ProcessResult {
	normalized := hl7v2.NormalizeEscapes(raw)

	msg, err := hl7v2.Parse([]byte(normalized))
	if err != nil {
		outcome := hl7v2.AckOutcome{
			Code:       hl7v2.AckReject,
			ControlID:  hl7v2.UnknownControlID,
			Diagnostic: "segment sequence error",
			Detail:     &hl7v2.AckDetail{Code: hl7v2.ErrCodeSegmentSequence, Text: "message could not be tokenized"},
		}
		return s.finish(ctx, nil, raw, outcome, err, nil)
	}

	action, err := siu.Route(msg)
	if err != nil {
		return s.finish(ctx, msg, raw, rejectOutcome(msg, err), err, nil)
	}

	structured, err := siu.Build(msg)
	if err != nil {
		return s.finish(ctx, msg, raw, rejectOutcome(msg, err), err, nil)
	}

	drafts := siu.Convert(structured, action)

	rec, err := s.reconciler.Apply(ctx, drafts)
	if err != nil {
		s.logger.Error().Err(err).Str("control_id", msg.ControlID).Msg("reconciliation failed")
		outcome := hl7v2.AckOutcome{
			Code:       hl7v2.AckError,
			ControlID:  msg.ControlID,
			Diagnostic: "persistence failure",
			Detail:     &hl7v2.AckDetail{Code: hl7v2.ErrCodeApplicationErr, Text: "message could not be stored"},
		}
		return s.finish(ctx, msg, raw, outcome, err, nil)
	}

	outcome := hl7v2.AckOutcome{
		Code:       hl7v2.AckAccept,
		ControlID:  msg.ControlID,
		Diagnostic: "processed successfully",
	}
	return s.finish(ctx, msg, raw, outcome, nil, rec)
}

// rejectOutcome maps the routing/validation error kinds to their distinct
// diagnostic codes. Unsupported type and trigger are rejections, not
// application errors: retrying the identical message can never succeed.
func rejectOutcome(msg *hl7v2.Message, err error) hl7v2.AckOutcome {
	outcome := hl7v2.AckOutcome{Code: hl7v2.AckReject, ControlID: msg.ControlID}
	switch {
	case errors.Is(err, siu.ErrUnsupportedMessageType):
		outcome.Diagnostic = "unsupported message type"
		outcome.Detail = &hl7v2.AckDetail{Code: hl7v2.ErrCodeUnsupportedType, Text: "message type " + msg.Type + " is not supported"}
	case errors.Is(err, siu.ErrUnsupportedTrigger):
		outcome.Diagnostic = "unsupported trigger event"
		outcome.Detail = &hl7v2.AckDetail{Code: hl7v2.ErrCodeUnsupportedEvt, Text: "trigger event " + msg.TriggerEvent + " is not supported"}
	default:
		outcome.Diagnostic = "validation failure"
		outcome.Detail = &hl7v2.AckDetail{Code: hl7v2.ErrCodeRequiredField, Text: err.Error()}
	}
	return outcome
}

func (s *Service) finish(ctx context.Context, msg *hl7v2.Message, raw string, outcome hl7v2.AckOutcome, err error, rec *ReconcileResult) *ProcessResult {
	s.appendLog(ctx, msg, raw, outcome)
	return &ProcessResult{
		Ack:        hl7v2.BuildAck(msg, outcome),
		Outcome:    outcome,
		Reconciled: rec,
		Err:        err,
	}
}

// appendLog records the message in the audit log. A log write failure is
// reported through the logger but never changes the acknowledgement already
// decided for the sender.
func (s *Service) appendLog(ctx context.Context, msg *hl7v2.Message, raw string, outcome hl7v2.AckOutcome) {
	entry := &MessageLogEntry{
		ControlID:      outcome.ControlID,
		Classification: classify(outcome.Code),
		AckCode:        outcome.Code,
		Diagnostic:     outcome.Diagnostic,
		RawMessage:     raw,
	}
	if msg != nil {
		entry.MessageType = msg.Type
		entry.TriggerEvent = msg.TriggerEvent
		entry.SendingApp = msg.SendingApp
		entry.SendingFac = msg.SendingFac
	}
	if err := s.messageLog.Append(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("control_id", entry.ControlID).Msg("message log append failed")
	}
}

func classify(ackCode string) string {
	switch ackCode {
	case hl7v2.AckAccept:
		return ClassAccepted
	case hl7v2.AckError:
		return ClassError
	default:
		return ClassRejected
	}
}

// SupportedEvents lists the message-type/trigger pairs this gateway accepts.
func (s *Service) SupportedEvents() []string {
	return siu.SupportedEvents()
}

// RecentMessages reads the newest audit log entries.
func (s *Service) RecentMessages(ctx context.Context, limit int) ([]*MessageLogEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.messageLog.ListRecent(ctx, limit)
}

// MLLPHandler adapts the pipeline to the socket transport: every framed
// payload gets a serialized acknowledgement back.
func (s *Service) MLLPHandler() hl7v2.MessageHandler {
	return func(raw []byte) []byte {
		res := s.Process(context.Background(), string(raw))
		return hl7v2.Serialize(res.Ack)
	}
}
