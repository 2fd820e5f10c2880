package calendar

import "fmt"

// CalendarType is a school calendar variant
type CalendarType string

const (
	Traditional CalendarType = "traditional"
	Modified    CalendarType = "modified"
	YearRound   CalendarType = "yearround"
)

// Category names a date document
type Category string

const (
	Holidays      Category = "holidays"
	TrackOut      Category = "trackout"
	Vacations     Category = "vacations"
	Workdays      Category = "workdays"
	Makeup        Category = "makeup"
	Specials      Category = "specials"
	Cancellations Category = "cancellations"
	Delays        Category = "delays"
)

// Track is one of the parallel year-round schedules
type Track string

const (
	Track1 Track = "track1"
	Track2 Track = "track2"
	Track3 Track = "track3"
	Track4 Track = "track4"
)

// Tracks lists every year-round track in order
var Tracks = []Track{Track1, Track2, Track3, Track4}

// Shape is the JSON layout a date document must have
type Shape int

const (
	ShapeFlat    Shape = iota + 1 // ["2024-01-01", ...]
	ShapeTracked                  // {"track1": [...], ...}
)

func (s Shape) String() string {
	switch s {
	case ShapeFlat:
		return "array"
	case ShapeTracked:
		return "track object"
	default:
		return "unknown"
	}
}

// CategorySpec describes how one date document of a calendar type is stored and checked
type CategorySpec struct {
	Category      Category
	Shape         Shape
	AllowWeekends bool
}

var exceptions = map[CalendarType][]CategorySpec{
	Traditional: {
		{Category: Holidays, Shape: ShapeFlat},
		{Category: Vacations, Shape: ShapeFlat},
		{Category: Workdays, Shape: ShapeFlat},
	},
	Modified: {
		{Category: Holidays, Shape: ShapeFlat},
		{Category: TrackOut, Shape: ShapeFlat},
		{Category: Vacations, Shape: ShapeFlat},
		{Category: Workdays, Shape: ShapeFlat},
	},
	YearRound: {
		{Category: TrackOut, Shape: ShapeTracked, AllowWeekends: true},
		{Category: Vacations, Shape: ShapeFlat},
		{Category: Workdays, Shape: ShapeFlat},
	},
}

// CalendarTypes returns every known calendar type
func CalendarTypes() []CalendarType {
	return []CalendarType{Traditional, Modified, YearRound}
}

// ParseCalendarType converts a string into a known calendar type
func ParseCalendarType(s string) (CalendarType, error) {
	ct := CalendarType(s)
	if !ct.Valid() {
		return "", fmt.Errorf("%w: '%s'", ErrUnknownCalendarType, s)
	}
	return ct, nil
}

// Valid reports whether ct is a known calendar type
func (ct CalendarType) Valid() bool {
	_, ok := exceptions[ct]
	return ok
}

// Tracked reports whether the calendar type is resolved per track
func (ct CalendarType) Tracked() bool {
	return ct == YearRound
}

// Exceptions returns the exception categories registered for the calendar type.
// The returned slice is a copy.
func (ct CalendarType) Exceptions() []CategorySpec {
	specs := exceptions[ct]
	out := make([]CategorySpec, len(specs))
	copy(out, specs)
	return out
}

// MakeupSpec returns the makeup document spec for the calendar type
func (ct CalendarType) MakeupSpec() CategorySpec {
	shape := ShapeFlat
	if ct.Tracked() {
		shape = ShapeTracked
	}
	return CategorySpec{Category: Makeup, Shape: shape, AllowWeekends: true}
}

// ValidTrack reports whether t is one of the four tracks
func ValidTrack(t Track) bool {
	for _, known := range Tracks {
		if t == known {
			return true
		}
	}
	return false
}
