package store

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/username/school-status/internal/calendar"
)

// Key addresses one document. Global documents have an empty CalendarType and a zero Year.
type Key struct {
	CalendarType calendar.CalendarType
	Year         int
	Category     calendar.Category
}

// GlobalKey returns the key of a calendar-type independent document
func GlobalKey(category calendar.Category) Key {
	return Key{Category: category}
}

// IsGlobal reports whether the key addresses a global document
func (k Key) IsGlobal() bool {
	return k.CalendarType == ""
}

// RelPath returns <calendarType>/<year>/<category>.json, skipping empty parts
func (k Key) RelPath() string {
	var year string
	if k.Year != 0 {
		year = strconv.Itoa(k.Year)
	}

	name := string(k.Category)
	if !strings.HasSuffix(name, ".json") {
		name += ".json"
	}

	return filepath.Join(string(k.CalendarType), year, name)
}

func (k Key) String() string {
	return filepath.ToSlash(k.RelPath())
}

// Store is a read-only document store of JSON date documents
type Store interface {
	// Read returns the raw JSON document for key
	Read(ctx context.Context, key Key) ([]byte, error)

	// ListYears returns the years present for the calendar type, ascending
	ListYears(ctx context.Context, calendarType calendar.CalendarType) ([]int, error)

	// Path describes where key lives, for messages
	Path(key Key) string
}
