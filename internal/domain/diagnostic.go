package domain

import (
	"fmt"
	"log/slog"
	"strings"
)

// Kind classifies why a zone or datapoint was rejected.
type Kind string

const (
	// Zone-level: the whole zone is skipped.
	KindMalformedZone        Kind = "malformed_zone"
	KindMissingOrInvalidName Kind = "missing_or_invalid_name"
	KindUnparsableZoneID     Kind = "unparsable_zone_id"
	KindZoneIDOutOfRange     Kind = "zone_id_out_of_range"
	KindConflictingZoneName  Kind = "conflicting_zone_name"
	KindMissingOrInvalidData Kind = "missing_or_invalid_data"

	// Datapoint-level: the datapoint is skipped.
	KindMalformedDatapoint    Kind = "malformed_datapoint"
	KindMissingDatapointField Kind = "missing_datapoint_field"
	KindInvalidNoteType       Kind = "invalid_note_type"
	KindUnsupportedUnit       Kind = "unsupported_unit"
	KindInvalidTimestampType  Kind = "invalid_timestamp_type"
	KindInvalidVolumeType     Kind = "invalid_volume_type"

	// Field-level: the row is kept without a runtime.
	KindRuntimeUnparsable Kind = "runtime_unparsable"
)

// Kinds lists every diagnostic kind in pipeline order.
var Kinds = []Kind{
	KindMalformedZone,
	KindMissingOrInvalidName,
	KindUnparsableZoneID,
	KindZoneIDOutOfRange,
	KindConflictingZoneName,
	KindMissingOrInvalidData,
	KindMalformedDatapoint,
	KindMissingDatapointField,
	KindInvalidNoteType,
	KindUnsupportedUnit,
	KindInvalidTimestampType,
	KindInvalidVolumeType,
	KindRuntimeUnparsable,
}

// NoDatapoint marks a diagnostic that concerns a whole zone.
const NoDatapoint = -1

// Diagnostic describes one rejected element of a report. It implements error
// so it can travel through iterator error slots and errors.As.
type Diagnostic struct {
	Kind         Kind   `json:"kind"`
	ZoneIndex    int    `json:"zone_index,omitempty"` // 1-based
	ZoneID       int    `json:"zone_id,omitempty"`
	ZoneName     string `json:"zone_name,omitempty"`
	PreviousName string `json:"previous_name,omitempty"`
	Datapoint    int    `json:"datapoint"` // 0-based, NoDatapoint for zone-level
	Field        string `json:"field,omitempty"`
	Note         string `json:"note,omitempty"`
	Reason       string `json:"reason"`
}

// Soft reports whether the element was still emitted as a row.
func (d *Diagnostic) Soft() bool {
	return d.Kind == KindRuntimeUnparsable
}

// ZoneLevel reports whether the whole zone was skipped.
func (d *Diagnostic) ZoneLevel() bool {
	return d.Datapoint == NoDatapoint
}

func (d *Diagnostic) Error() string {
	var b strings.Builder
	b.WriteString(string(d.Kind))
	b.WriteString(": ")
	if d.ZoneName != "" {
		fmt.Fprintf(&b, "zone %q", d.ZoneName)
	} else {
		fmt.Fprintf(&b, "zone #%d", d.ZoneIndex)
	}
	if d.Datapoint != NoDatapoint {
		fmt.Fprintf(&b, " datapoint %d", d.Datapoint)
	}
	if d.Field != "" {
		fmt.Fprintf(&b, " field %s", d.Field)
	}
	b.WriteString(": ")
	b.WriteString(d.Reason)
	return b.String()
}

// LogValue renders the diagnostic as a structured slog group.
func (d *Diagnostic) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("kind", string(d.Kind)),
		slog.Int("zone_index", d.ZoneIndex),
	}
	if d.ZoneName != "" {
		attrs = append(attrs, slog.String("zone", d.ZoneName))
	}
	if d.ZoneID != 0 {
		attrs = append(attrs, slog.Int("zone_id", d.ZoneID))
	}
	if d.PreviousName != "" {
		attrs = append(attrs, slog.String("previous_name", d.PreviousName))
	}
	if d.Datapoint != NoDatapoint {
		attrs = append(attrs, slog.Int("datapoint", d.Datapoint))
	}
	if d.Field != "" {
		attrs = append(attrs, slog.String("field", d.Field))
	}
	if d.Note != "" {
		attrs = append(attrs, slog.String("note", d.Note))
	}
	attrs = append(attrs, slog.String("reason", d.Reason))
	return slog.GroupValue(attrs...)
}

func zoneDiagnostic(kind Kind, index int, field, reason string) *Diagnostic {
	return &Diagnostic{
		Kind:      kind,
		ZoneIndex: index,
		Datapoint: NoDatapoint,
		Field:     field,
		Reason:    reason,
	}
}

func datapointDiagnostic(kind Kind, z Zone, j int, field, reason string) *Diagnostic {
	return &Diagnostic{
		Kind:      kind,
		ZoneIndex: z.Index,
		ZoneID:    z.ID,
		ZoneName:  z.Name,
		Datapoint: j,
		Field:     field,
		Reason:    reason,
	}
}
