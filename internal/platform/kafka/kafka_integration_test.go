//go:build integration

package kafka

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"execledger/internal/platform/config"
	"execledger/pkg/testutil/containers"
)

func TestEnsureTopicIsIdempotent(t *testing.T) {
	rp := containers.GetManager().GetRedpanda(t)
	cfg := config.KafkaConfig{Brokers: rp.Brokers, Topic: "execledger.test.ensure", ClientID: "test"}
	client, err := New(cfg)
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	require.NoError(t, EnsureTopic(ctx, client, cfg, logger))
	require.NoError(t, EnsureTopic(ctx, client, cfg, logger))
	require.NoError(t, Health(ctx, client))

	res := client.ProduceSync(ctx, &kgo.Record{Value: []byte("x")})
	require.NoError(t, res.FirstErr())
}
