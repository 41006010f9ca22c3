package domain

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testBackLawn = "3: Back Lawn"
	testNote10m  = "Run time: 10 Minuten"
)

// collect drains Normalize into rows and diagnostics.
func collect(t *testing.T, body string) ([]Row, []*Diagnostic) {
	t.Helper()
	report, err := DecodeReport([]byte(body))
	require.NoError(t, err)

	var rows []Row
	var diags []*Diagnostic
	for row, err := range Normalize(report) {
		if err != nil {
			var d *Diagnostic
			require.True(t, errors.As(err, &d), "unexpected error type %T", err)
			diags = append(diags, d)
			continue
		}
		rows = append(rows, row)
	}
	return rows, diags
}

func kinds(diags []*Diagnostic) []Kind {
	out := make([]Kind, 0, len(diags))
	for _, d := range diags {
		out = append(out, d.Kind)
	}
	return out
}

func int64p(v int64) *int64 { return &v }

func TestNormalize_EndToEndScenario(t *testing.T) {
	body := `[{"name":"3: Back Lawn","data":[
		{"note":"Run time: 10 Minuten","units":"litres","x":1622952045000,"y":27},
		{"note":"Run time: 10 Minuten","x":1622952046000,"y":30}
	]}]`

	rows, diags := collect(t, body)

	want := []Row{{ZoneID: 3, Timestamp: 1622952045, Runtime: int64p(600), Volume: 27}}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, diags, 1)
	assert.Equal(t, KindMissingDatapointField, diags[0].Kind)
	assert.Equal(t, testBackLawn, diags[0].ZoneName)
	assert.Equal(t, 1, diags[0].Datapoint)
	assert.Equal(t, "units", diags[0].Field)
}

func TestNormalize_ZoneLevelRejections(t *testing.T) {
	tests := []struct {
		name  string
		zone  string
		kind  Kind
		field string
	}{
		{"zone not an object", `"3: Lawn"`, KindMalformedZone, ""},
		{"zone null", `null`, KindMalformedZone, ""},
		{"name missing", `{"data":[]}`, KindMissingOrInvalidName, "name"},
		{"name not string", `{"name":3,"data":[]}`, KindMissingOrInvalidName, "name"},
		{"name null", `{"name":null,"data":[]}`, KindMissingOrInvalidName, "name"},
		{"id unparsable", `{"name":"Lawn: 3","data":[]}`, KindUnparsableZoneID, "name"},
		{"id above max", `{"name":"13: Extra","data":[]}`, KindZoneIDOutOfRange, "name"},
		{"id zero", `{"name":"0: Master","data":[]}`, KindZoneIDOutOfRange, "name"},
		{"id overflows int", `{"name":"99999999999999999999: Huge","data":[]}`, KindZoneIDOutOfRange, "name"},
		{"negative id overflows int", `{"name":"-99999999999999999999: Huge","data":[]}`, KindZoneIDOutOfRange, "name"},
		{"data missing", `{"name":"1: Front"}`, KindMissingOrInvalidData, "data"},
		{"data not array", `{"name":"1: Front","data":{"x":1}}`, KindMissingOrInvalidData, "data"},
		{"data null", `{"name":"1: Front","data":null}`, KindMissingOrInvalidData, "data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, diags := collect(t, "["+tt.zone+"]")
			assert.Empty(t, rows)
			require.Len(t, diags, 1)
			assert.Equal(t, tt.kind, diags[0].Kind)
			assert.Equal(t, tt.field, diags[0].Field)
			assert.Equal(t, 1, diags[0].ZoneIndex)
			assert.True(t, diags[0].ZoneLevel())
		})
	}
}

func TestNormalize_DatapointLevelRejections(t *testing.T) {
	tests := []struct {
		name      string
		datapoint string
		kind      Kind
		field     string
	}{
		{"not an object", `[1,2]`, KindMalformedDatapoint, ""},
		{"note missing", `{"units":"litres","x":1000,"y":1}`, KindMissingDatapointField, "note"},
		{"x missing", `{"note":"Run time: 1 Minute","units":"litres","y":1}`, KindMissingDatapointField, "x"},
		{"y missing", `{"note":"Run time: 1 Minute","units":"litres","x":1000}`, KindMissingDatapointField, "y"},
		{"note not string", `{"note":5,"units":"litres","x":1000,"y":1}`, KindInvalidNoteType, "note"},
		{"gallons", `{"note":"Run time: 1 Minute","units":"gallons","x":1000,"y":1}`, KindUnsupportedUnit, "units"},
		{"units not string", `{"note":"Run time: 1 Minute","units":1,"x":1000,"y":1}`, KindUnsupportedUnit, "units"},
		{"x string", `{"note":"Run time: 1 Minute","units":"litres","x":"1000","y":1}`, KindInvalidTimestampType, "x"},
		{"x float", `{"note":"Run time: 1 Minute","units":"litres","x":1000.5,"y":1}`, KindInvalidTimestampType, "x"},
		{"y float", `{"note":"Run time: 1 Minute","units":"litres","x":1000,"y":2.5}`, KindInvalidVolumeType, "y"},
		{"y null", `{"note":"Run time: 1 Minute","units":"litres","x":1000,"y":null}`, KindInvalidVolumeType, "y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := `[{"name":"2: Beds","data":[` + tt.datapoint + `]}]`
			rows, diags := collect(t, body)
			assert.Empty(t, rows)
			require.Len(t, diags, 1)
			assert.Equal(t, tt.kind, diags[0].Kind)
			assert.Equal(t, tt.field, diags[0].Field)
			assert.Equal(t, "2: Beds", diags[0].ZoneName)
			assert.Equal(t, 0, diags[0].Datapoint)
		})
	}
}

func TestNormalize_UnparsableRuntimeKeepsRow(t *testing.T) {
	body := `[{"name":"4: Hedge","data":[{"note":"Run time: foo","units":"litres","x":5000,"y":9}]}]`

	rows, diags := collect(t, body)

	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].Runtime)
	assert.Equal(t, int64(5), rows[0].Timestamp)
	assert.Equal(t, int64(9), rows[0].Volume)
	require.Len(t, diags, 1)
	assert.Equal(t, KindRuntimeUnparsable, diags[0].Kind)
	assert.True(t, diags[0].Soft())
	assert.Equal(t, "Run time: foo", diags[0].Note)
}

func TestNormalize_RuntimeDiagnosticBeforeUnitRejection(t *testing.T) {
	body := `[{"name":"4: Hedge","data":[{"note":"watered","units":"gallons","x":5000,"y":9}]}]`

	rows, diags := collect(t, body)

	assert.Empty(t, rows)
	assert.Equal(t, []Kind{KindRuntimeUnparsable, KindUnsupportedUnit}, kinds(diags))
}

func TestNormalize_ConflictingZoneNames(t *testing.T) {
	body := `[
		{"name":"3: Back Lawn","data":[{"note":"Run time: 1 Minute","units":"litres","x":1000,"y":1}]},
		{"name":"3: Roses","data":[{"note":"Run time: 1 Minute","units":"litres","x":2000,"y":2}]},
		{"name":"3: Back Lawn","data":[{"note":"Run time: 1 Minute","units":"litres","x":3000,"y":3}]}
	]`

	rows, diags := collect(t, body)

	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0].Volume)
	assert.Equal(t, int64(3), rows[1].Volume)
	require.Len(t, diags, 1)
	d := diags[0]
	assert.Equal(t, KindConflictingZoneName, d.Kind)
	assert.Equal(t, 3, d.ZoneID)
	assert.Equal(t, testBackLawn, d.PreviousName)
	assert.Equal(t, "3: Roses", d.ZoneName)
	assert.Equal(t, 2, d.ZoneIndex)
}

func TestNormalize_ContinuesAfterBadZone(t *testing.T) {
	body := `[
		42,
		{"name":"1: Front","data":[{"note":"Run time: 30 Sekunden","units":"litres","x":1999,"y":4}]}
	]`

	rows, diags := collect(t, body)

	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].ZoneID)
	assert.Equal(t, int64(1), rows[0].Timestamp)
	assert.Equal(t, int64(30), *rows[0].Runtime)
	assert.Equal(t, []Kind{KindMalformedZone}, kinds(diags))
}

func TestNormalize_ZoneIDsWithinRange(t *testing.T) {
	body := `[
		{"name":"1: A","data":[{"note":"Run time: 1 Minute","units":"litres","x":1000,"y":1}]},
		{"name":"12: L","data":[{"note":"Run time: 1 Minute","units":"litres","x":1000,"y":1}]},
		{"name":"-1: Neg","data":[{"note":"Run time: 1 Minute","units":"litres","x":1000,"y":1}]},
		{"name":"99: Far","data":[{"note":"Run time: 1 Minute","units":"litres","x":1000,"y":1}]}
	]`

	rows, diags := collect(t, body)

	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.GreaterOrEqual(t, r.ZoneID, 1)
		assert.LessOrEqual(t, r.ZoneID, MaxZones)
	}
	assert.Equal(t, []Kind{KindZoneIDOutOfRange, KindZoneIDOutOfRange}, kinds(diags))
}

func TestNormalize_StopsWhenConsumerBreaks(t *testing.T) {
	body := `[{"name":"1: A","data":[
		{"note":"Run time: 1 Minute","units":"litres","x":1000,"y":1},
		{"note":"Run time: 1 Minute","units":"litres","x":2000,"y":2}
	]}]`
	report, err := DecodeReport([]byte(body))
	require.NoError(t, err)

	n := 0
	for range Normalize(report) {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestMillisToSeconds(t *testing.T) {
	tests := []struct {
		ms   int64
		want int64
	}{
		{0, 0},
		{999, 0},
		{1500, 1},
		{1999, 1},
		{2000, 2},
		{1622952045000, 1622952045},
		{-1, -1},
		{-1000, -1},
		{-1001, -2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, millisToSeconds(tt.ms), "ms=%d", tt.ms)
	}
}

func TestParseZoneID(t *testing.T) {
	id, err := ParseZoneID(testBackLawn)
	require.NoError(t, err)
	assert.Equal(t, 3, id)

	id, err = ParseZoneID("7")
	require.NoError(t, err)
	assert.Equal(t, 7, id)

	_, err = ParseZoneID("Back Lawn")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Back Lawn")

	_, err = ParseZoneID("99999999999999999999: Huge")
	require.ErrorIs(t, err, ErrZoneIDRange)
}

func TestDecodeReport(t *testing.T) {
	t.Run("array", func(t *testing.T) {
		report, err := DecodeReport([]byte(` [{"name":"1: A"}, 3] `))
		require.NoError(t, err)
		assert.Len(t, report, 2)
	})

	t.Run("object", func(t *testing.T) {
		_, err := DecodeReport([]byte(`{"error":"unauthorized"}`))
		require.ErrorIs(t, err, ErrReportNotArray)
	})

	t.Run("empty body", func(t *testing.T) {
		_, err := DecodeReport(nil)
		require.ErrorIs(t, err, ErrReportNotArray)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := DecodeReport([]byte(`[{"name":`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decode report")
	})
}

func TestDiagnostic_Error(t *testing.T) {
	d := &Diagnostic{
		Kind:      KindMissingDatapointField,
		ZoneIndex: 1,
		ZoneName:  testBackLawn,
		Datapoint: 2,
		Field:     "units",
		Reason:    "required field is missing",
	}
	assert.Equal(t, `missing_datapoint_field: zone "3: Back Lawn" datapoint 2 field units: required field is missing`, d.Error())

	z := &Diagnostic{Kind: KindMalformedZone, ZoneIndex: 4, Datapoint: NoDatapoint, Reason: "zone is not an object"}
	assert.Equal(t, "malformed_zone: zone #4: zone is not an object", z.Error())
}

func TestRow_Time(t *testing.T) {
	r := Row{Timestamp: 1622952045}
	assert.Equal(t, "2021-06-06T04:00:45Z", r.Time().Format("2006-01-02T15:04:05Z07:00"))
}
