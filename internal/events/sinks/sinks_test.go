package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"execledger/internal/events"
	"execledger/internal/events/metrics"
	id "execledger/pkg/domain"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (p *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		if p.err == nil {
			p.records = append(p.records, r)
		}
		results = append(results, kgo.ProduceResult{Record: r, Err: p.err})
	}
	return results
}

func policyCreated(seq uint64, policyID id.PolicyID) events.Event {
	return events.Event{
		Sequence:   seq,
		Type:       events.TypePolicyCreated,
		OccurredAt: time.Unix(1700000000, 0).UTC(),
		Payload: events.PolicyCreated{
			PolicyID:   policyID,
			MerkleRoot: id.MerkleRootFromText("h1"),
			Initiator:  "0xoracle",
			Timestamp:  time.Unix(1700000000, 0).UTC(),
		},
	}
}

func TestKafkaPublisher(t *testing.T) {
	t.Run("keys records by policy id", func(t *testing.T) {
		producer := &fakeProducer{}
		pub := NewKafkaPublisher(producer, "execledger.events")

		require.NoError(t, pub.Publish(context.Background(), policyCreated(1, 7)))
		require.Len(t, producer.records, 1)

		rec := producer.records[0]
		assert.Equal(t, "execledger.events", rec.Topic)
		assert.Equal(t, "7", string(rec.Key))

		var decoded events.Event
		require.NoError(t, json.Unmarshal(rec.Value, &decoded))
		assert.Equal(t, events.TypePolicyCreated, decoded.Type)
		assert.Equal(t, id.PolicyID(7), decoded.Payload.Policy())
	})

	t.Run("surfaces produce errors", func(t *testing.T) {
		producer := &fakeProducer{err: errors.New("not leader")}
		pub := NewKafkaPublisher(producer, "t")
		err := pub.Publish(context.Background(), policyCreated(1, 0))
		assert.ErrorContains(t, err, "not leader")
	})
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewJSONHandler(&buf, nil)))

	sink.OnEvent(context.Background(), policyCreated(3, 2))

	line := buf.String()
	assert.True(t, strings.Contains(line, `"event_type":"policy_created"`), line)
	assert.True(t, strings.Contains(line, `"policy_id":2`), line)
	assert.True(t, strings.Contains(line, `"sequence":3`), line)
}

func TestMetricsSink(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	sink := NewMetricsSink(m)

	sink.OnEvent(context.Background(), policyCreated(1, 0))
	sink.OnEvent(context.Background(), policyCreated(2, 1))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.EventsEmitted.WithLabelValues("policy_created")))
}

func TestTraceSinkWithNoopProvider(t *testing.T) {
	sink := NewTraceSink(nil)
	assert.NotPanics(t, func() {
		sink.OnEvent(context.Background(), policyCreated(1, 0))
	})
}
