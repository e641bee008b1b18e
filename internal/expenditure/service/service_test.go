package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"execledger/internal/events"
	"execledger/internal/expenditure/metrics"
	id "execledger/pkg/domain"
)

func TestRecordEmitsExactlyOneEvent(t *testing.T) {
	notifier := events.NewNotifier()
	recorder := events.NewRecorder(8)
	notifier.Subscribe(recorder)
	m := metrics.New(prometheus.NewRegistry())
	svc := New(notifier, WithMetrics(m), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	amount, err := id.ParseAmount("1500000000000000000")
	require.NoError(t, err)
	recipient := id.Principal("0x00000000000000000000000000000000000000cc")
	stranger := id.Principal("0x00000000000000000000000000000000000000bb")

	event := svc.Record(context.Background(), stranger, Notice{
		PolicyID:    0,
		Recipient:   recipient,
		Amount:      amount,
		Description: "Office supplies",
	})

	all := recorder.All()
	require.Len(t, all, 1)
	assert.Equal(t, event.ID, all[0].ID)
	assert.Equal(t, events.TypeExpenditureRecorded, all[0].Type)

	payload, ok := all[0].Payload.(events.ExpenditureRecorded)
	require.True(t, ok)
	assert.Equal(t, id.PolicyID(0), payload.PolicyID)
	assert.Equal(t, recipient, payload.Recipient)
	assert.Equal(t, "1500000000000000000", payload.Amount.String())
	assert.Equal(t, "Office supplies", payload.Description)
	assert.Equal(t, stranger, payload.RecordedBy)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Recorded))
}

func TestRecordAcceptsAnyInput(t *testing.T) {
	notifier := events.NewNotifier()
	recorder := events.NewRecorder(8)
	notifier.Subscribe(recorder)
	svc := New(notifier)

	// Zero amount, empty recipient and description, a policy id never created.
	svc.Record(context.Background(), "", Notice{PolicyID: 999})

	all := recorder.All()
	require.Len(t, all, 1)
	payload := all[0].Payload.(events.ExpenditureRecorded)
	assert.Equal(t, id.PolicyID(999), payload.PolicyID)
	assert.True(t, payload.Amount.IsZero())
	assert.Empty(t, payload.Description)
	assert.True(t, payload.Recipient.IsZero())
}
