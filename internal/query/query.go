// Package query derives views and totals from an in-memory entry snapshot.
// Every function is pure: inputs are never mutated.
package query

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/Tiliavir/volunteer-log/internal/model"
)

const (
	// AllYears disables the year filter.
	AllYears = 0
	// DefaultPerPage is the page size used when none is configured.
	DefaultPerPage = 10
)

// DistinctYears returns the calendar years present in entries, newest first.
func DistinctYears(entries []model.Entry) []int {
	seen := map[int]bool{}
	var years []int
	for _, e := range entries {
		y, ok := e.Year()
		if !ok || seen[y] {
			continue
		}
		seen[y] = true
		years = append(years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years
}

// FilterByYear returns the entries dated in year, or a copy of all entries
// for AllYears.
func FilterByYear(entries []model.Entry, year int) []model.Entry {
	out := make([]model.Entry, 0, len(entries))
	for _, e := range entries {
		if year != AllYears {
			if y, ok := e.Year(); !ok || y != year {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

// SortByDateDesc returns entries ordered newest first. Equal dates keep
// their input order.
func SortByDateDesc(entries []model.Entry) []model.Entry {
	out := make([]model.Entry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date > out[j].Date
	})
	return out
}

// Paginate returns the 1-based page of entries. Pages outside the range
// yield an empty slice.
func Paginate(entries []model.Entry, page, perPage int) []model.Entry {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if page < 1 {
		return []model.Entry{}
	}
	start := (page - 1) * perPage
	if start >= len(entries) {
		return []model.Entry{}
	}
	end := min(start+perPage, len(entries))
	out := make([]model.Entry, end-start)
	copy(out, entries[start:end])
	return out
}

// TotalPages returns ceil(count/perPage), never less than 1.
func TotalPages(count, perPage int) int {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if count <= 0 {
		return 1
	}
	return (count + perPage - 1) / perPage
}

// SumHours adds up the hours of entries. Values are added in ascending order
// so the result does not depend on the order of entries.
func SumHours(entries []model.Entry) float64 {
	hours := make([]float64, len(entries))
	for i, e := range entries {
		hours[i] = e.Hours
	}
	sort.Float64s(hours)
	var total float64
	for _, h := range hours {
		total += h
	}
	return total
}

// PlaceTotal is the aggregated hours for one place.
type PlaceTotal struct {
	Place   string
	Hours   float64
	Entries int
}

// TotalsByPlace aggregates hours per place, sorted by place name.
func TotalsByPlace(entries []model.Entry) []PlaceTotal {
	grouped := map[string][]model.Entry{}
	var order []string
	for _, e := range entries {
		if _, seen := grouped[e.Place]; !seen {
			order = append(order, e.Place)
		}
		grouped[e.Place] = append(grouped[e.Place], e)
	}
	sort.Strings(order)

	out := make([]PlaceTotal, 0, len(order))
	for _, p := range order {
		out = append(out, PlaceTotal{Place: p, Hours: SumHours(grouped[p]), Entries: len(grouped[p])})
	}
	return out
}

// YearTotal is the aggregated hours for one calendar year.
type YearTotal struct {
	Year    int
	Hours   float64
	Entries int
}

// TotalsByYear aggregates hours per calendar year, newest first.
func TotalsByYear(entries []model.Entry) []YearTotal {
	years := DistinctYears(entries)
	out := make([]YearTotal, 0, len(years))
	for _, y := range years {
		inYear := FilterByYear(entries, y)
		out = append(out, YearTotal{Year: y, Hours: SumHours(inYear), Entries: len(inYear)})
	}
	return out
}

// FormatHours formats hours like "2.5h" or "3h", rounded to two decimals.
func FormatHours(h float64) string {
	rounded := math.Round(h*100) / 100
	return strconv.FormatFloat(rounded, 'f', -1, 64) + "h"
}

// ParseHours parses hours as typed by a user. Blank, non-numeric, non-finite
// and negative values are rejected.
func ParseHours(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, &model.ValidationError{Field: "hours", Reason: "must not be empty"}
	}
	h, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(h) || math.IsInf(h, 0) {
		return 0, &model.ValidationError{Field: "hours", Reason: fmt.Sprintf("%q is not a number", s)}
	}
	if h < 0 {
		return 0, &model.ValidationError{Field: "hours", Reason: "must not be negative"}
	}
	return h, nil
}
