package dataset

import (
	"sort"

	"fadapulse/pkg/contracts/domain"
)

// FilterResult is the outcome of selecting documents for a period. An empty
// selection is a valid answer, not an error: the association simply has not
// published that month yet.
type FilterResult struct {
	Matched      []domain.DocumentDescriptor
	NotAvailable bool
}

// FilterByPeriod selects the descriptors whose parsed period matches the
// target. Descriptors without a parsed period never match.
func FilterByPeriod(docs []domain.DocumentDescriptor, period domain.Period) FilterResult {
	var matched []domain.DocumentDescriptor
	for _, doc := range docs {
		if !doc.Period.IsZero() && doc.Period == period {
			matched = append(matched, doc)
		}
	}
	return FilterResult{Matched: matched, NotAvailable: len(matched) == 0}
}

// FilterByRange selects descriptors inside the inclusive period range.
func FilterByRange(docs []domain.DocumentDescriptor, r domain.PeriodRange) FilterResult {
	var matched []domain.DocumentDescriptor
	for _, doc := range docs {
		if !doc.Period.IsZero() && r.Contains(doc.Period) {
			matched = append(matched, doc)
		}
	}
	return FilterResult{Matched: matched, NotAvailable: len(matched) == 0}
}

// LatestPeriod returns the most recent period among docs. The boolean is
// false when no descriptor carries a period.
func LatestPeriod(docs []domain.DocumentDescriptor) (domain.Period, bool) {
	var latest domain.Period
	found := false
	for _, doc := range docs {
		if doc.Period.IsZero() {
			continue
		}
		if !found || latest.Before(doc.Period) {
			latest = doc.Period
			found = true
		}
	}
	return latest, found
}

// PeriodCount pairs a period with the number of documents published for it.
type PeriodCount struct {
	Period domain.Period `json:"period"`
	Count  int           `json:"count"`
}

// AvailablePeriods summarizes which periods have documents, newest first.
func AvailablePeriods(docs []domain.DocumentDescriptor) []PeriodCount {
	counts := make(map[domain.Period]int)
	for _, doc := range docs {
		if !doc.Period.IsZero() {
			counts[doc.Period]++
		}
	}

	out := make([]PeriodCount, 0, len(counts))
	for p, n := range counts {
		out = append(out, PeriodCount{Period: p, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[j].Period.Before(out[i].Period)
	})
	return out
}
