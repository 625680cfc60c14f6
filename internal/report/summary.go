// Package report renders a human-readable summary of a finished batch.
package report

import (
	"sort"
	"time"

	"github.com/lyricgen/lyricgen/internal/batch"
	"github.com/lyricgen/lyricgen/internal/model"
)

type ResultSummary struct {
	Index       int
	Temperature float64
	Latency     time.Duration
	Included    bool
	Edited      bool
	Preview     string
}

type BatchSummary struct {
	BatchID   string
	Status    batch.Status
	Requested int
	Succeeded int
	Included  int
	Distinct  int
	Failure   *model.CompletionResult
	Results   []ResultSummary
}

// BuildSummary joins a batch snapshot with its curation entries. Results
// that share a text share the entry's inclusion flag.
func BuildSummary(snap batch.Snapshot) BatchSummary {
	summary := BatchSummary{
		BatchID:   snap.ID,
		Status:    snap.Status,
		Requested: snap.Requested,
		Succeeded: len(snap.Results),
		Distinct:  len(snap.Entries),
		Failure:   snap.Failure,
	}

	entries := make(map[string]batch.Entry, len(snap.Entries))
	for _, e := range snap.Entries {
		entries[e.Original] = e
		if e.Included {
			summary.Included++
		}
	}

	for _, res := range snap.Results {
		entry := entries[res.Text]
		summary.Results = append(summary.Results, ResultSummary{
			Index:       res.Index,
			Temperature: res.Temperature,
			Latency:     res.Latency,
			Included:    entry.Included,
			Edited:      entry.Edited != entry.Original,
			Preview:     preview(res.Text, 48),
		})
	}
	return summary
}

// SortByIndex orders results by submission index instead of arrival.
func SortByIndex(summary *BatchSummary) {
	sort.Slice(summary.Results, func(i, j int) bool {
		return summary.Results[i].Index < summary.Results[j].Index
	})
}
