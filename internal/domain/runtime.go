package domain

import (
	"math"
	"regexp"
	"strconv"
)

// runtimePatterns match the run time label written into datapoint notes.
// Order is significant: minutes, then seconds, then hours. Unit words are
// German or English with an optional plural suffix, e.g. "Minuten", "seconds".
var runtimePatterns = []struct {
	re         *regexp.Regexp
	multiplier int64
}{
	{regexp.MustCompile(`^Run time:\s*(\d+)\s+(?:Minute|minute)[ns]?$`), 60},
	{regexp.MustCompile(`^Run time:\s*(\d+)\s+(?:Sekunde|second)[ns]?$`), 1},
	{regexp.MustCompile(`^Run time:\s*(\d+)\s+(?:Stunde|hour)[ns]?$`), 3600},
}

// ExtractRuntime parses a run time note into seconds. It reports false when
// no pattern matches or the value does not fit in an int64.
func ExtractRuntime(note string) (int64, bool) {
	for _, p := range runtimePatterns {
		m := p.re.FindStringSubmatch(note)
		if m == nil {
			continue
		}
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil || n > math.MaxInt64/p.multiplier {
			return 0, false
		}
		return n * p.multiplier, true
	}
	return 0, false
}
