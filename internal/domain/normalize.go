package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strconv"
	"strings"
)

// datapointFields are required on every datapoint, checked in this order.
var datapointFields = []string{"note", "units", "x", "y"}

// Normalize lazily validates a report and yields one Row per accepted
// datapoint. Rejections are yielded as a zero Row with a *Diagnostic error;
// an unparsable run time yields its soft diagnostic first, then the row.
// The report is not modified and no rejection stops the scan.
func Normalize(report Report) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		seen := make(map[int]string)

		for i, raw := range report {
			zone, diag := decodeZoneHeader(i+1, raw)
			if diag != nil {
				if !yield(Row{}, diag) {
					return
				}
				continue
			}

			if prev, ok := seen[zone.ID]; ok && prev != zone.Name {
				d := zoneDiagnostic(KindConflictingZoneName, zone.Index, "name",
					fmt.Sprintf("zone id %d already used by %q", zone.ID, prev))
				d.ZoneID = zone.ID
				d.ZoneName = zone.Name
				d.PreviousName = prev
				if !yield(Row{}, d) {
					return
				}
				continue
			}
			seen[zone.ID] = zone.Name

			data, ok := decodeArray(zone.rawData)
			if !ok {
				d := zoneDiagnostic(KindMissingOrInvalidData, zone.Index, "data", "data is missing or not an array")
				d.ZoneID = zone.ID
				d.ZoneName = zone.Name
				if !yield(Row{}, d) {
					return
				}
				continue
			}
			zone.Data = data

			if !normalizeZone(zone, yield) {
				return
			}
		}
	}
}

// decodeZoneHeader validates the zone shape, name and id.
func decodeZoneHeader(index int, raw json.RawMessage) (Zone, *Diagnostic) {
	obj, ok := decodeObject(raw)
	if !ok {
		return Zone{}, zoneDiagnostic(KindMalformedZone, index, "", "zone is not an object")
	}

	name, ok := decodeString(obj["name"])
	if !ok {
		return Zone{}, zoneDiagnostic(KindMissingOrInvalidName, index, "name", "name is missing or not a string")
	}

	id, err := ParseZoneID(name)
	if errors.Is(err, ErrZoneIDRange) {
		d := zoneDiagnostic(KindZoneIDOutOfRange, index, "name", err.Error())
		d.ZoneName = name
		return Zone{}, d
	}
	if err != nil {
		d := zoneDiagnostic(KindUnparsableZoneID, index, "name", err.Error())
		d.ZoneName = name
		return Zone{}, d
	}
	if id < 1 || id > MaxZones {
		d := zoneDiagnostic(KindZoneIDOutOfRange, index, "name",
			fmt.Sprintf("zone id %d outside 1..%d", id, MaxZones))
		d.ZoneID = id
		d.ZoneName = name
		return Zone{}, d
	}

	return Zone{Index: index, ID: id, Name: name, rawData: obj["data"]}, nil
}

// ParseZoneID returns the integer before the first colon of a zone name,
// e.g. "3: Back Lawn" -> 3.
func ParseZoneID(name string) (int, error) {
	prefix, _, _ := strings.Cut(name, ":")
	prefix = strings.TrimSpace(prefix)
	id, err := strconv.Atoi(prefix)
	if errors.Is(err, strconv.ErrRange) {
		return 0, fmt.Errorf("%w: %s outside 1..%d", ErrZoneIDRange, prefix, MaxZones)
	}
	if err != nil {
		return 0, fmt.Errorf("no numeric zone id in %q", name)
	}
	return id, nil
}

func normalizeZone(zone Zone, yield func(Row, error) bool) bool {
	for j, raw := range zone.Data {
		dp, soft, hard := decodeDatapoint(zone, j, raw)
		if soft != nil && !yield(Row{}, soft) {
			return false
		}
		if hard != nil {
			if !yield(Row{}, hard) {
				return false
			}
			continue
		}

		row := Row{
			ZoneID:    zone.ID,
			Timestamp: millisToSeconds(dp.X),
			Runtime:   dp.Runtime,
			Volume:    dp.Y,
		}
		if !yield(row, nil) {
			return false
		}
	}
	return true
}

// decodeDatapoint runs the per-datapoint checks. soft is set when the run time
// could not be parsed; hard is set when the datapoint must be skipped.
func decodeDatapoint(zone Zone, j int, raw json.RawMessage) (dp Datapoint, soft, hard *Diagnostic) {
	obj, ok := decodeObject(raw)
	if !ok {
		return dp, nil, datapointDiagnostic(KindMalformedDatapoint, zone, j, "", "datapoint is not an object")
	}

	for _, key := range datapointFields {
		if _, present := obj[key]; !present {
			return dp, nil, datapointDiagnostic(KindMissingDatapointField, zone, j, key, "required field is missing")
		}
	}

	note, ok := decodeString(obj["note"])
	if !ok {
		return dp, nil, datapointDiagnostic(KindInvalidNoteType, zone, j, "note", "note is not a string")
	}
	dp = Datapoint{Index: j, Note: note}

	if secs, ok := ExtractRuntime(note); ok {
		dp.Runtime = &secs
	} else {
		soft = datapointDiagnostic(KindRuntimeUnparsable, zone, j, "note", "no run time found in note")
		soft.Note = note
	}

	units, ok := decodeString(obj["units"])
	if !ok || units != UnitLitres {
		return dp, soft, datapointDiagnostic(KindUnsupportedUnit, zone, j, "units",
			fmt.Sprintf("units must be %q", UnitLitres))
	}
	dp.Units = units

	x, ok := decodeInt(obj["x"])
	if !ok {
		return dp, soft, datapointDiagnostic(KindInvalidTimestampType, zone, j, "x", "x is not an integer")
	}
	dp.X = x

	y, ok := decodeInt(obj["y"])
	if !ok {
		return dp, soft, datapointDiagnostic(KindInvalidVolumeType, zone, j, "y", "y is not an integer")
	}
	dp.Y = y

	return dp, soft, nil
}
