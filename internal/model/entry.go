package model

import (
	"math"
	"strings"
	"time"
)

// DateLayout is the calendar date format used for Entry.Date.
const DateLayout = "2006-01-02"

// Entry represents a single logged volunteering session.
type Entry struct {
	ID        string  `json:"id"`
	ProfileID string  `json:"profile_id"`
	Place     string  `json:"place"`
	Date      string  `json:"date"`
	Hours     float64 `json:"hours"`
	Notes     string  `json:"notes"`
}

// EntryFields holds the replaceable fields of an Entry.
type EntryFields struct {
	Place string
	Date  string
	Hours float64
	Notes string
}

// Fields returns the mutable fields of e.
func (e Entry) Fields() EntryFields {
	return EntryFields{Place: e.Place, Date: e.Date, Hours: e.Hours, Notes: e.Notes}
}

// Validate checks the fields a store requires before persisting an entry.
func (f EntryFields) Validate() error {
	if strings.TrimSpace(f.Place) == "" {
		return &ValidationError{Field: "place", Reason: "must not be empty"}
	}
	if _, err := time.Parse(DateLayout, strings.TrimSpace(f.Date)); err != nil {
		return &ValidationError{Field: "date", Reason: "must be a YYYY-MM-DD date"}
	}
	if math.IsNaN(f.Hours) || math.IsInf(f.Hours, 0) || f.Hours < 0 {
		return &ValidationError{Field: "hours", Reason: "must be a non-negative number"}
	}
	return nil
}

// Normalize returns a copy with the place trimmed and the date re-formatted.
// It assumes Validate succeeded.
func (f EntryFields) Normalize() EntryFields {
	out := f
	out.Place = strings.TrimSpace(f.Place)
	if t, err := time.Parse(DateLayout, strings.TrimSpace(f.Date)); err == nil {
		out.Date = t.Format(DateLayout)
	}
	return out
}

// Apply replaces the mutable fields of e, keeping ID and ProfileID.
func (e Entry) Apply(f EntryFields) Entry {
	e.Place = f.Place
	e.Date = f.Date
	e.Hours = f.Hours
	e.Notes = f.Notes
	return e
}

// Year returns the calendar year of the entry's date.
func (e Entry) Year() (int, bool) {
	t, err := time.Parse(DateLayout, e.Date)
	if err != nil {
		return 0, false
	}
	return t.Year(), true
}
