// Command genmock writes a deterministic Hydrawise reports endpoint response
// for offline runs and tests. With -malformed it appends one entry for every
// rejection the normalizer knows, so the fixture exercises each diagnostic.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock/hydrawise_report.json
//	go run ./cmd/genmock -zones 4 -days 3 -malformed -out /tmp/report.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/hydrawise-flowmeter-etl/internal/domain"
)

var zoneNames = []string{
	"Front Lawn", "Back Lawn", "Vegetable Beds", "Hedge", "Roses", "Orchard",
	"Side Yard", "Drip Pots", "Herb Garden", "Berry Patch", "Greenhouse", "Verge",
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "data/mock/hydrawise_report.json", "output path for the report fixture")
	zones := flag.Int("zones", 6, "number of zones (1-12)")
	days := flag.Int("days", 7, "days of waterings per zone")
	malformed := flag.Bool("malformed", false, "append entries that trigger every diagnostic")
	seed := flag.Uint64("seed", 42, "random seed for runtimes and volumes")
	flag.Parse()

	if *zones < 1 || *zones > domain.MaxZones {
		return fmt.Errorf("-zones must be between 1 and %d", domain.MaxZones)
	}

	// Fixed clock so the fixture is reproducible.
	clock := clockwork.NewFakeClockAt(time.Date(2021, time.June, 7, 6, 0, 0, 0, time.UTC))

	report := buildReport(clock.Now(), *zones, *days, *malformed, *seed)
	if err := writeJSON(*out, report); err != nil {
		return fmt.Errorf("writing fixture: %w", err)
	}
	log.Printf("wrote report fixture: %s", *out)

	return printStats(report)
}

// buildReport returns the zone list ending at now. Each zone is watered once
// a day, staggered by ten minutes per zone.
func buildReport(now time.Time, zones, days int, malformed bool, seed uint64) []any {
	rng := rand.New(rand.NewPCG(seed, seed))
	midnight := now.Truncate(24 * time.Hour)

	report := make([]any, 0, zones)
	for z := 1; z <= zones; z++ {
		data := make([]any, 0, days)
		for d := days; d >= 1; d-- {
			start := midnight.AddDate(0, 0, -d).Add(5*time.Hour + time.Duration(z-1)*10*time.Minute)
			minutes := 5 + rng.IntN(26)
			litresPerMinute := 2 + rng.IntN(5)
			data = append(data, map[string]any{
				"note":  runtimeNote(minutes, d%2 == 0),
				"units": domain.UnitLitres,
				"x":     start.UnixMilli(),
				"y":     minutes * litresPerMinute,
			})
		}
		report = append(report, map[string]any{"name": zoneName(z), "data": data})
	}

	if malformed {
		report = append(report, malformedEntries(now, zones)...)
	}
	return report
}

func zoneName(id int) string {
	return fmt.Sprintf("%d: %s", id, zoneNames[id-1])
}

func runtimeNote(minutes int, german bool) string {
	if german {
		return fmt.Sprintf("Run time: %d Minuten", minutes)
	}
	return fmt.Sprintf("Run time: %d minutes", minutes)
}

func malformedEntries(now time.Time, zones int) []any {
	ts := now.Add(-time.Hour).UnixMilli()
	dp := func(overrides map[string]any) map[string]any {
		m := map[string]any{"note": "Run time: 5 minutes", "units": domain.UnitLitres, "x": ts, "y": 10}
		for k, v := range overrides {
			m[k] = v
		}
		return m
	}
	missingY := dp(nil)
	delete(missingY, "y")

	entries := []any{
		"not a zone",
		map[string]any{"data": []any{}},
		map[string]any{"name": "Garage", "data": []any{}},
		map[string]any{"name": "13: Overflow", "data": []any{}},
		map[string]any{"name": zoneName(1), "data": "none"},
		map[string]any{"name": zoneName(1), "data": []any{
			"not a datapoint",
			missingY,
			dp(map[string]any{"note": 5}),
			dp(map[string]any{"units": "gallons"}),
			dp(map[string]any{"x": "1622952045000"}),
			dp(map[string]any{"y": 1.5}),
			dp(map[string]any{"note": "manual watering"}),
		}},
	}
	if zones >= 2 {
		entries = append(entries, map[string]any{"name": "2: Renamed", "data": []any{}})
	}
	return entries
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

// printStats runs the generated report through the normalizer so the counts
// used in test assertions can be copied from the output.
func printStats(report []any) error {
	body, err := json.Marshal(report)
	if err != nil {
		return err
	}
	decoded, err := domain.DecodeReport(body)
	if err != nil {
		return err
	}

	rows := 0
	kinds := make(map[domain.Kind]int)
	for _, err := range domain.Normalize(decoded) {
		if d, ok := err.(*domain.Diagnostic); ok { //nolint:errorlint // Normalize yields *Diagnostic directly
			kinds[d.Kind]++
			continue
		}
		rows++
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Zones: %d\n", len(report))
	fmt.Printf("Rows: %d\n", rows)
	for _, k := range domain.Kinds {
		if kinds[k] > 0 {
			fmt.Printf("  %s: %d\n", k, kinds[k])
		}
	}
	return nil
}
