// Package domain models Hydrawise flow-meter report data and the rules that
// turn a raw report into rows for the hydrawise_flow_meter table.
//
// # Data Source
//
// Reports come from the Hydrawise v2 reports endpoint, queried with
// type=FLOW_METER_MEASUREMENT_TYPE for a single controller and a time window.
// The response is a JSON array with one entry per zone:
//
//	[{"name": "3: Back Lawn", "data": [{"note": "...", "units": "litres", "x": 1622952045000, "y": 27}]}]
//
// # Hydrawise Conventions
//
// Zone names:
//
//	"<id>: <label>"  →  e.g. "3: Back Lawn" is zone 3.
//	Controllers expose at most MaxZones (12) zones. A given id must keep the
//	same name for the whole report; a second name for the same id is a conflict.
//
// Datapoints:
//
//	x is the measurement time in epoch milliseconds, truncated to seconds.
//	y is the measured volume as an integer. Only "litres" is accepted.
//	note is free text written in the controller's language and carries the
//	zone run time, e.g. "Run time: 10 Minuten" or "Run time: 45 seconds".
//
// # Diagnostics
//
// Nothing in a report is fatal except a top-level value that is not an array.
// Every rejected zone or datapoint yields a [Diagnostic] naming the zone index
// or name, the datapoint index, the offending field and a reason. An
// unparsable run time yields a soft diagnostic and the row is still emitted
// with no runtime.
package domain
