package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

const (
	// MaxZones is the highest zone id a controller reports.
	MaxZones = 12

	// UnitLitres is the only datapoint unit that is stored.
	UnitLitres = "litres"
)

// ErrReportNotArray is returned when the top-level report value is not a JSON array.
var ErrReportNotArray = errors.New("report is not a JSON array")

// ErrZoneIDRange is returned by ParseZoneID when the numeric prefix does not
// fit in an int.
var ErrZoneIDRange = errors.New("zone id out of range")

// Report is the raw upstream response: one undecoded element per zone.
// Elements are kept raw so that a malformed zone only rejects itself.
type Report []json.RawMessage

// Zone is the typed header of a report element.
type Zone struct {
	Index int // 1-based position in the report
	ID    int
	Name  string
	Data  []json.RawMessage

	rawData json.RawMessage
}

// Datapoint is a fully decoded measurement of a zone.
type Datapoint struct {
	Index   int // 0-based position in the zone's data
	Note    string
	Units   string
	X       int64 // epoch milliseconds
	Y       int64
	Runtime *int64
}

// Row is the normalized unit of persistence, unique on (ZoneID, Timestamp).
type Row struct {
	ZoneID    int    `json:"zone"`
	Timestamp int64  `json:"metric_timestamp"`
	Runtime   *int64 `json:"runtime"` // seconds; nil when the note had no run time
	Volume    int64  `json:"litres"`
}

// Time returns the row timestamp as a UTC time.
func (r Row) Time() time.Time {
	return time.Unix(r.Timestamp, 0).UTC()
}

// DecodeReport parses a raw report body. Only the top-level array shape is
// enforced here; elements are validated lazily by [Normalize].
func DecodeReport(data []byte) (Report, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ErrReportNotArray
	}
	var report Report
	if err := json.Unmarshal(trimmed, &report); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return report, nil
}

// decodeObject decodes raw into a field map. JSON null is not an object.
func decodeObject(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	if isNull(raw) {
		return nil, false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}
	return obj, true
}

func decodeString(raw json.RawMessage) (string, bool) {
	if isNull(raw) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func decodeArray(raw json.RawMessage) ([]json.RawMessage, bool) {
	if isNull(raw) {
		return nil, false
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		return nil, false
	}
	return arr, true
}

// decodeInt accepts JSON integers only: strings, floats and exponents are rejected.
func decodeInt(raw json.RawMessage) (int64, bool) {
	n, err := strconv.ParseInt(string(bytes.TrimSpace(raw)), 10, 64)
	return n, err == nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// millisToSeconds floors a millisecond timestamp to whole seconds.
func millisToSeconds(ms int64) int64 {
	s := ms / 1000
	if ms%1000 < 0 {
		s--
	}
	return s
}
