package kafka

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hydrawise-flowmeter-etl/internal/config"
	"github.com/couchcryptid/hydrawise-flowmeter-etl/internal/domain"
)

func TestSerializeToMessage(t *testing.T) {
	runAt := time.Date(2021, 6, 6, 4, 0, 45, 0, time.UTC)
	d := domain.Diagnostic{
		Kind:      domain.KindUnsupportedUnit,
		ZoneIndex: 2,
		ZoneID:    3,
		ZoneName:  "3: Back Lawn",
		Datapoint: 4,
		Field:     "units",
		Reason:    `units must be "litres"`,
	}

	msg, err := serializeToMessage("123456", d, runAt)
	require.NoError(t, err)

	assert.Equal(t, []byte("123456/2"), msg.Key)
	assert.Equal(t, runAt, msg.Time)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "kind", msg.Headers[0].Key)
	assert.Equal(t, []byte("unsupported_unit"), msg.Headers[0].Value)
	assert.Equal(t, "controller_id", msg.Headers[1].Key)
	assert.Equal(t, []byte("123456"), msg.Headers[1].Value)
	assert.Equal(t, "run_at", msg.Headers[2].Key)
	assert.Equal(t, []byte("2021-06-06T04:00:45Z"), msg.Headers[2].Value)

	var roundtrip domain.Diagnostic
	require.NoError(t, json.Unmarshal(msg.Value, &roundtrip))
	assert.Equal(t, d, roundtrip)
}

func TestSerializeToMessage_ZoneLevel(t *testing.T) {
	d := domain.Diagnostic{Kind: domain.KindMalformedZone, ZoneIndex: 7, Datapoint: domain.NoDatapoint, Reason: "zone is not an object"}

	msg, err := serializeToMessage("1", d, time.Now())
	require.NoError(t, err)
	assert.Contains(t, string(msg.Value), `"datapoint":-1`)
	assert.Contains(t, string(msg.Value), `"kind":"malformed_zone"`)
}

func TestWriter_PublishDiagnostics_Empty(t *testing.T) {
	w := NewWriter(&config.Config{
		KafkaBrokers:          []string{"localhost:1"},
		KafkaDiagnosticsTopic: "hydrawise-diagnostics",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = w.Close() })

	require.NoError(t, w.PublishDiagnostics(context.Background(), nil, time.Now()))
}
