package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/username/school-status/internal/calendar"
)

// Violation is one problem found in the stored data
type Violation struct {
	Kind         calendar.Kind         `json:"kind"`
	CalendarType calendar.CalendarType `json:"calendarType,omitempty"`
	Year         int                   `json:"year,omitempty"`
	Category     calendar.Category     `json:"category,omitempty"`
	Path         string                `json:"path,omitempty"`
	// Entry is the offending date, track or tag
	Entry   string `json:"entry,omitempty"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	var b strings.Builder
	b.WriteString("[" + string(v.Kind) + "] ")
	switch {
	case v.CalendarType != "" && v.Year != 0:
		fmt.Fprintf(&b, "%s %d ", v.CalendarType, v.Year)
	case v.CalendarType != "":
		fmt.Fprintf(&b, "%s ", v.CalendarType)
	default:
		b.WriteString("global ")
	}
	if v.Category != "" {
		b.WriteString(string(v.Category) + " ")
	}
	if v.Entry != "" {
		fmt.Fprintf(&b, "%q ", v.Entry)
	}
	b.WriteString(v.Message)
	if v.Path != "" {
		fmt.Fprintf(&b, " (%s)", v.Path)
	}
	return b.String()
}

// sortViolations orders violations by calendar type, year and category with
// global documents last. Violations of one document keep their order.
func sortViolations(vs []Violation) {
	rank := func(ct calendar.CalendarType) int {
		for i, known := range calendar.CalendarTypes() {
			if ct == known {
				return i
			}
		}
		if ct == "" {
			return len(calendar.CalendarTypes()) + 1
		}
		return len(calendar.CalendarTypes())
	}

	sort.SliceStable(vs, func(i, j int) bool {
		a, b := vs[i], vs[j]
		if ra, rb := rank(a.CalendarType), rank(b.CalendarType); ra != rb {
			return ra < rb
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Category < b.Category
	})
}
