package sinks

import (
	"context"
	"log/slog"

	"execledger/internal/events"
	"execledger/pkg/requestcontext"
)

// LogSink writes one structured line per event.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) OnEvent(ctx context.Context, event events.Event) {
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"event_id", event.ID.String(),
		"sequence", event.Sequence,
		"event_type", string(event.Type),
		"policy_id", uint64(event.Payload.Policy()),
	}
	switch p := event.Payload.(type) {
	case events.PolicyCreated:
		attrs = append(attrs, "merkle_root", p.MerkleRoot.String(), "initiator", p.Initiator.String())
	case events.ExpenditureRecorded:
		attrs = append(attrs, "recipient", p.Recipient.String(), "amount", p.Amount.String())
	case events.DiagnosticLogged:
		attrs = append(attrs, "log_index", uint64(p.LogIndex))
	}
	s.logger.InfoContext(ctx, "ledger event emitted", attrs...)
}
