// Package fetch discovers press-release documents on the FADA website and
// turns their links into typed descriptors.
package fetch

import (
	"regexp"
	"strconv"
	"strings"

	"fadapulse/pkg/contracts/domain"
)

// monthPatterns maps lowercase month tokens to month numbers. Full names
// are checked before abbreviations so "january" never matches as "jan"
// leftovers in a longer word.
var monthPatterns = []struct {
	token string
	month int
}{
	{"january", 1}, {"february", 2}, {"march", 3}, {"april", 4},
	{"may", 5}, {"june", 6}, {"july", 7}, {"august", 8},
	{"september", 9}, {"october", 10}, {"november", 11}, {"december", 12},
	{"jan", 1}, {"feb", 2}, {"mar", 3}, {"apr", 4},
	{"jun", 6}, {"jul", 7}, {"aug", 8}, {"sep", 9},
	{"oct", 10}, {"nov", 11}, {"dec", 12},
}

var yearPattern = regexp.MustCompile(`(20[1-3][0-9])`)

// ParsePeriod extracts the reporting month and year from a press-release
// filename such as "FADA-releases-January-2024-Vehicle-Retail-Data.pdf".
// The boolean is false when either component is missing.
func ParsePeriod(filename string) (domain.Period, bool) {
	lower := strings.ToLower(filename)

	month := 0
	for _, p := range monthPatterns {
		if strings.Contains(lower, p.token) {
			month = p.month
			break
		}
	}

	year := 0
	if m := yearPattern.FindString(filename); m != "" {
		year, _ = strconv.Atoi(m)
	}

	if month == 0 || year == 0 {
		return domain.Period{}, false
	}
	return domain.Period{Month: month, Year: year}, true
}

// mentionsMonth reports whether the filename carries any month token. Links
// without one are not vehicle retail data releases.
func mentionsMonth(filename string) bool {
	lower := strings.ToLower(filename)
	for _, p := range monthPatterns {
		if strings.Contains(lower, p.token) {
			return true
		}
	}
	return false
}
