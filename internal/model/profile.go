package model

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Profile is a named owner of a set of entries.
type Profile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ValidateProfileName trims name and rejects blank values.
func ValidateProfileName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	return trimmed, nil
}

// SortProfiles orders profiles by name using locale-aware collation.
// Names that collate equal fall back to byte order so the result is total.
func SortProfiles(profiles []Profile) {
	c := collate.New(language.Und)
	sort.SliceStable(profiles, func(i, j int) bool {
		if r := c.CompareString(profiles[i].Name, profiles[j].Name); r != 0 {
			return r < 0
		}
		return profiles[i].Name < profiles[j].Name
	})
}
