// Package report provides persistence and retrieval of trial run
// summaries. Summaries are stored as typed structs and can be queried
// by trial index or category.
package report

import (
	"fmt"
	"time"
)

// Category is the classification of a single trial.
type Category string

const (
	// Valid marks a trial whose output contains the marker substring.
	Valid Category = "valid"
	// Invalid marks every other trial, including ones that failed to run.
	Invalid Category = "invalid"
)

// ParseCategory converts user input into a Category.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case Valid, Invalid:
		return Category(s), nil
	}
	return "", fmt.Errorf("unknown category %q (want %q or %q)", s, Valid, Invalid)
}

// Tally counts trials per category.
type Tally struct {
	Valid   int `json:"valid"`
	Invalid int `json:"invalid"`
}

// Add counts one trial of category c.
func (t *Tally) Add(c Category) {
	if c == Valid {
		t.Valid++
		return
	}
	t.Invalid++
}

// Total returns the number of counted trials.
func (t Tally) Total() int {
	return t.Valid + t.Invalid
}

// Store persists and retrieves run summaries.
type Store interface {
	Save(summary *Summary) error
	Load(runID string) (*Summary, error)
}

// Summary holds the outcome of one batched run.
type Summary struct {
	ID       string    `json:"id"`
	Dir      string    `json:"dir"` // per-run artifact directory
	Command  []string  `json:"command"`
	Trials   int       `json:"trials"`
	Width    int       `json:"width"`
	Marker   string    `json:"marker"`
	Batches  int       `json:"batches"`
	Tally    Tally     `json:"tally"`
	Records  []Record  `json:"records,omitempty"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
}

// Record is the retained part of a finished trial. The captured output
// itself lives in the artifact file named by File.
type Record struct {
	Index    int      `json:"index"`
	Batch    int      `json:"batch"`  // index of the first trial in the batch
	Offset   int      `json:"offset"` // position within the batch
	File     string   `json:"file"`
	Category Category `json:"category"`
	ExitCode int      `json:"exit_code"`
	Error    string   `json:"error,omitempty"`
}

// Record returns the record of trial index.
func (s *Summary) Record(index int) (Record, error) {
	if index < 0 || index >= len(s.Records) {
		return Record{}, fmt.Errorf("run %s has no trial %d (trials: %d)", s.ID, index, len(s.Records))
	}
	r := s.Records[index]
	if r.Index != index {
		// Records are appended in index order; fall back to a scan if not.
		for _, rec := range s.Records {
			if rec.Index == index {
				return rec, nil
			}
		}
		return Record{}, fmt.Errorf("run %s has no trial %d", s.ID, index)
	}
	return r, nil
}

// ByCategory returns all records of a run classified as c.
func ByCategory(s *Summary, c Category) []Record {
	var out []Record
	for _, r := range s.Records {
		if r.Category == c {
			out = append(out, r)
		}
	}
	return out
}

// Failed returns records whose trial could not be executed or persisted.
func Failed(s *Summary) []Record {
	var out []Record
	for _, r := range s.Records {
		if r.Error != "" {
			out = append(out, r)
		}
	}
	return out
}
