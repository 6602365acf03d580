// Package dataset maintains the consolidated retail figures across every
// period the pipeline has processed.
package dataset

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"fadapulse/pkg/contracts/domain"
)

// MergeOutcome describes what one period merge did.
type MergeOutcome string

const (
	// MergeAdded means the period was not present before.
	MergeAdded MergeOutcome = "added"
	// MergeReplaced means the period existed with different data and was
	// swapped wholesale.
	MergeReplaced MergeOutcome = "replaced"
	// MergeUnchanged means the incoming data was identical, so nothing
	// happened.
	MergeUnchanged MergeOutcome = "unchanged"
)

// ChangeSummary reports the outcome of a merge.
type ChangeSummary struct {
	Period  domain.Period
	Outcome MergeOutcome
	Records int
}

// ConflictError means a merge was rejected before touching the dataset.
type ConflictError struct {
	Period domain.Period
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("aggregation conflict for %s: %s", e.Period, e.Reason)
}

// MasterDataset holds one record set per period. Merges swap whole periods
// under a single lock; readers never observe a half-merged period.
type MasterDataset struct {
	mu      sync.RWMutex
	periods map[domain.Period][]domain.ExtractionRecord
	logger  *slog.Logger
}

// NewMasterDataset creates an empty dataset.
func NewMasterDataset(logger *slog.Logger) *MasterDataset {
	if logger == nil {
		logger = slog.Default()
	}
	return &MasterDataset{
		periods: make(map[domain.Period][]domain.ExtractionRecord),
		logger:  logger,
	}
}

// Merge installs records as the complete data for period. Identical incoming
// data is a no-op; different data replaces the period wholesale. Records
// must all belong to period, and duplicate keys within the incoming set are
// rejected, both as ConflictError.
func (m *MasterDataset) Merge(period domain.Period, records []domain.ExtractionRecord) (ChangeSummary, error) {
	if len(records) == 0 {
		return ChangeSummary{}, &ConflictError{Period: period, Reason: "empty record set"}
	}

	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if rec.Period != period {
			return ChangeSummary{}, &ConflictError{
				Period: period,
				Reason: fmt.Sprintf("record %s belongs to %s", rec.Key(), rec.Period),
			}
		}
		if _, dup := seen[rec.Key()]; dup {
			return ChangeSummary{}, &ConflictError{
				Period: period,
				Reason: fmt.Sprintf("duplicate record key %s", rec.Key()),
			}
		}
		seen[rec.Key()] = struct{}{}
	}

	incoming := make([]domain.ExtractionRecord, len(records))
	copy(incoming, records)
	domain.SortRecords(incoming)

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, present := m.periods[period]
	if present && domain.RecordsEqual(existing, incoming) {
		return ChangeSummary{Period: period, Outcome: MergeUnchanged, Records: len(incoming)}, nil
	}

	m.periods[period] = incoming

	outcome := MergeAdded
	if present {
		outcome = MergeReplaced
	}
	m.logger.Debug("period merged",
		"period", period.String(),
		"outcome", string(outcome),
		"records", len(incoming),
	)
	return ChangeSummary{Period: period, Outcome: outcome, Records: len(incoming)}, nil
}

// Period returns a copy of the records stored for period.
func (m *MasterDataset) Period(period domain.Period) ([]domain.ExtractionRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records, ok := m.periods[period]
	if !ok {
		return nil, false
	}
	out := make([]domain.ExtractionRecord, len(records))
	copy(out, records)
	return out, true
}

// Periods lists every stored period in chronological order.
func (m *MasterDataset) Periods() []domain.Period {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Period, 0, len(m.periods))
	for p := range m.periods {
		out = append(out, p)
	}
	sortPeriods(out)
	return out
}

// AvailablePeriods lists every stored period with its record count,
// newest first.
func (m *MasterDataset) AvailablePeriods() []PeriodCount {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]PeriodCount, 0, len(m.periods))
	for p, records := range m.periods {
		out = append(out, PeriodCount{Period: p, Count: len(records)})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[j].Period.Before(out[i].Period)
	})
	return out
}

// Snapshot returns a copy of the full dataset keyed by period.
func (m *MasterDataset) Snapshot() map[domain.Period][]domain.ExtractionRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[domain.Period][]domain.ExtractionRecord, len(m.periods))
	for p, records := range m.periods {
		cp := make([]domain.ExtractionRecord, len(records))
		copy(cp, records)
		out[p] = cp
	}
	return out
}

// Len reports the number of stored periods.
func (m *MasterDataset) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.periods)
}

func sortPeriods(periods []domain.Period) {
	sort.Slice(periods, func(i, j int) bool {
		return periods[i].Before(periods[j])
	})
}
