// Command validate checks a saved Hydrawise flow meter report offline. It runs
// the same normalization as the ETL and reports every zone and datapoint that
// would be rejected, without touching a database.
//
// Usage:
//
//	go run ./cmd/validate -report data/mock/hydrawise_report.json
//	go run ./cmd/validate -report report.json -rows
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/couchcryptid/hydrawise-flowmeter-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	reportPath := flag.String("report", "", "path to a saved reports endpoint response")
	printRows := flag.Bool("rows", false, "print the normalized rows as JSON lines")
	strictRuntime := flag.Bool("strict-runtime", false, "treat unparsable runtime notes as failures")
	flag.Parse()

	if *reportPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*reportPath, *printRows, *strictRuntime); code != 0 {
		os.Exit(code)
	}
}

func run(reportPath string, printRows, strictRuntime bool) int {
	fmt.Println("=== Hydrawise Report Validation ===")
	fmt.Println()

	body, err := os.ReadFile(reportPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read report: %v\n", err)
		return 1
	}
	report, err := domain.DecodeReport(body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	zones := &phase{name: "Zone headers"}
	datapoints := &phase{name: "Datapoints"}
	runtimes := &phase{name: "Runtime notes"}
	rowsPhase := &phase{name: "Row keys unique within report"}

	var rows []domain.Row
	seen := make(map[[2]int64]bool)
	for row, err := range domain.Normalize(report) {
		if err != nil {
			var d *domain.Diagnostic
			if !errors.As(err, &d) {
				fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
				return 1
			}
			switch {
			case d.Soft():
				runtimes.errorf("%s", d)
			case d.ZoneLevel():
				zones.errorf("%s", d)
			default:
				datapoints.errorf("%s", d)
			}
			continue
		}

		key := [2]int64{int64(row.ZoneID), row.Timestamp}
		if seen[key] {
			rowsPhase.errorf("zone %d has two datapoints at %s; the second would be skipped",
				row.ZoneID, row.Time().Format("2006-01-02 15:04:05"))
		}
		seen[key] = true
		rows = append(rows, row)
	}

	phases := []*phase{zones, datapoints, runtimes, rowsPhase}
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			if p == runtimes && !strictRuntime {
				status = fmt.Sprintf("\033[33mWARN (%d rows without runtime)\033[0m", len(p.errors))
			} else {
				allPassed = false
			}
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Zones: %d, rows: %d\n", len(report), len(rows))
	printZoneTotals(rows)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if printRows {
		fmt.Println()
		enc := json.NewEncoder(os.Stdout)
		for _, row := range rows {
			if err := enc.Encode(row); err != nil {
				fmt.Fprintf(os.Stderr, "FATAL: encode row: %v\n", err)
				return 1
			}
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func printZoneTotals(rows []domain.Row) {
	litres := make(map[int]int64)
	count := make(map[int]int)
	for _, r := range rows {
		litres[r.ZoneID] += r.Volume
		count[r.ZoneID]++
	}
	ids := make([]int, 0, len(litres))
	for id := range litres {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		fmt.Printf("  zone %2d: %4d datapoints, %8d litres\n", id, count[id], litres[id])
	}
}
