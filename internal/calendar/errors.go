package calendar

import (
	"errors"
	"fmt"
	"strconv"
)

// Kind classifies validation violations and resolution failures
type Kind string

const (
	KindInvalidDate         Kind = "InvalidDate"
	KindWeekendViolation    Kind = "WeekendViolation"
	KindWrongYear           Kind = "WrongYear"
	KindShapeMismatch       Kind = "ShapeMismatch"
	KindUnknownSpecialTag   Kind = "UnknownSpecialTag"
	KindMissingTrack        Kind = "MissingTrack"
	KindDataUnavailable     Kind = "DataUnavailable"
	KindUnknownCalendarType Kind = "UnknownCalendarType"
)

var (
	ErrInvalidDate         = errors.New("invalid date")
	ErrUnknownCalendarType = errors.New("unknown calendar type")
	ErrDataUnavailable     = errors.New("data unavailable")
	ErrShapeMismatch       = errors.New("shape mismatch")
)

// DataUnavailableError reports a document that could not be read or decoded.
// Global documents have an empty CalendarType and a zero Year.
type DataUnavailableError struct {
	CalendarType CalendarType
	Year         int
	Category     Category
	Path         string
	Err          error
}

func (e *DataUnavailableError) Error() string {
	scope := "global"
	if e.CalendarType != "" {
		scope = string(e.CalendarType) + "_" + strconv.Itoa(e.Year)
	}
	return fmt.Sprintf("%s: %s unavailable (%s): %v", scope, e.Category, e.Path, e.Err)
}

func (e *DataUnavailableError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrDataUnavailable) match
func (e *DataUnavailableError) Is(target error) bool {
	return target == ErrDataUnavailable
}
