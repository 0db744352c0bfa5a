// Package catalog loads the job records candidates can apply to.
package catalog

import (
	"strings"

	"github.com/spigell/resume-screener/internal/utils"
)

// JobRecord is a single job the catalog offers.
type JobRecord struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Company     string `json:"company,omitempty"`
	Location    string `json:"location,omitempty"`
}

// Catalog is an ordered, read-only list of job records.
type Catalog []JobRecord

func (c Catalog) Len() int {
	return len(c)
}

// Find returns the first record whose title matches, ignoring case and surrounding whitespace.
// Duplicate titles resolve to the earliest record.
func (c Catalog) Find(title string) (*JobRecord, bool) {
	key := utils.NormalizeKey(title)
	if key == "" {
		return nil, false
	}
	for i := range c {
		if utils.NormalizeKey(c[i].Title) == key {
			record := c[i]
			return &record, true
		}
	}
	return nil, false
}

// Titles returns the record titles in catalog order, without duplicates.
func (c Catalog) Titles() []string {
	seen := make(map[string]struct{}, len(c))
	titles := make([]string, 0, len(c))
	for _, record := range c {
		key := utils.NormalizeKey(record.Title)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		titles = append(titles, strings.TrimSpace(record.Title))
	}
	return titles
}
