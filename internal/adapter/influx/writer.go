package influx

import (
	"context"
	"fmt"
	"strconv"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/couchcryptid/hydrawise-flowmeter-etl/internal/config"
	"github.com/couchcryptid/hydrawise-flowmeter-etl/internal/domain"
)

// Writer mirrors rows into an InfluxDB bucket. A point is keyed by
// measurement, zone tag and timestamp, so writing the same row twice
// overwrites it with identical values.
type Writer struct {
	client      influxdb2.Client
	writeAPI    api.WriteAPIBlocking
	measurement string
}

// NewWriter creates a blocking InfluxDB writer for the configured bucket.
func NewWriter(cfg *config.InfluxDBConfig) *Writer {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &Writer{
		client:      client,
		writeAPI:    client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		measurement: cfg.Measurement,
	}
}

// Name identifies the sink in logs.
func (w *Writer) Name() string { return "influxdb" }

// Upsert writes one point per row. InfluxDB cannot tell a new point from an
// overwrite, so inserted is always true on success.
func (w *Writer) Upsert(ctx context.Context, row domain.Row) (bool, error) {
	if err := w.writeAPI.WritePoint(ctx, toPoint(w.measurement, row)); err != nil {
		return false, fmt.Errorf("influx write zone %d at %d: %w", row.ZoneID, row.Timestamp, err)
	}
	return true, nil
}

// Close releases the HTTP resources of the client.
func (w *Writer) Close() error {
	w.client.Close()
	return nil
}

func toPoint(measurement string, row domain.Row) *write.Point {
	fields := map[string]interface{}{
		"litres": row.Volume,
	}
	if row.Runtime != nil {
		fields["runtime"] = *row.Runtime
	}
	return influxdb2.NewPoint(
		measurement,
		map[string]string{"zone": strconv.Itoa(row.ZoneID)},
		fields,
		row.Time(),
	)
}
