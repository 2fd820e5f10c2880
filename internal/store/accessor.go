package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/username/school-status/internal/calendar"
	"go.uber.org/zap"
)

// ShapeError reports a document whose JSON layout is not a date list
type ShapeError struct {
	// Track is set when only one track entry has the wrong layout
	Track string
	Got   string
	Want  string
}

func (e *ShapeError) Error() string {
	if e.Track != "" {
		return fmt.Sprintf("%s is %s, not an array", e.Track, e.Got)
	}
	want := e.Want
	if want == "" {
		want = "an array or track object"
	}
	return fmt.Sprintf("document is %s, expected %s", e.Got, want)
}

func (e *ShapeError) Unwrap() error {
	return calendar.ErrShapeMismatch
}

// Accessor reads documents from a Store and decodes them at the boundary.
// Every failure is returned as a *calendar.DataUnavailableError.
type Accessor struct {
	store  Store
	logger *zap.Logger
}

// NewAccessor creates a new Accessor
func NewAccessor(s Store, logger *zap.Logger) *Accessor {
	return &Accessor{
		store:  s,
		logger: logger,
	}
}

// Path returns the location of key in the underlying store
func (a *Accessor) Path(key Key) string {
	return a.store.Path(key)
}

// ListYears returns the years present for the calendar type
func (a *Accessor) ListYears(ctx context.Context, calendarType calendar.CalendarType) ([]int, error) {
	years, err := a.store.ListYears(ctx, calendarType)
	if err != nil {
		return nil, &calendar.DataUnavailableError{
			CalendarType: calendarType,
			Path:         a.store.Path(Key{CalendarType: calendarType}),
			Err:          err,
		}
	}
	return years, nil
}

// Dates reads a date document as a flat or tracked list
func (a *Accessor) Dates(ctx context.Context, key Key) (calendar.Document, error) {
	raw, err := a.store.Read(ctx, key)
	if err != nil {
		return calendar.Document{}, a.unavailable(key, err)
	}

	doc, err := DecodeDocument(raw)
	if err != nil {
		a.logger.Warn("Failed to decode date document",
			zap.String("path", a.store.Path(key)),
			zap.Error(err))
		return calendar.Document{}, a.unavailable(key, err)
	}

	return doc, nil
}

// Object reads a document keyed by date (specials, delays)
func (a *Accessor) Object(ctx context.Context, key Key) (map[string]any, error) {
	raw, err := a.store.Read(ctx, key)
	if err != nil {
		return nil, a.unavailable(key, err)
	}

	value, err := decodeAny(raw)
	if err != nil {
		return nil, a.unavailable(key, err)
	}

	obj, ok := value.(map[string]any)
	if !ok {
		return nil, a.unavailable(key, &ShapeError{Got: jsonKind(value)})
	}
	return obj, nil
}

func (a *Accessor) unavailable(key Key, err error) error {
	return &calendar.DataUnavailableError{
		CalendarType: key.CalendarType,
		Year:         key.Year,
		Category:     key.Category,
		Path:         a.store.Path(key),
		Err:          err,
	}
}

// DecodeDocument decodes a flat array or a track-keyed object of arrays.
// Non-string entries are kept in their JSON text form so they fail date checks.
func DecodeDocument(raw []byte) (calendar.Document, error) {
	value, err := decodeAny(raw)
	if err != nil {
		return calendar.Document{}, err
	}

	switch v := value.(type) {
	case []any:
		return calendar.NewDateList(toStrings(v)...), nil
	case map[string]any:
		tracked := make(calendar.TrackedDateList, len(v))
		for track, entries := range v {
			list, ok := entries.([]any)
			if !ok {
				return calendar.Document{}, &ShapeError{Track: track, Got: jsonKind(entries)}
			}
			tracked[calendar.Track(track)] = toStrings(list)
		}
		return calendar.NewTrackedDateList(tracked), nil
	default:
		return calendar.Document{}, &ShapeError{Got: jsonKind(value)}
	}
}

func decodeAny(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return value, nil
}

func toStrings(entries []any) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if s, ok := e.(string); ok {
			out = append(out, s)
			continue
		}
		text, _ := json.Marshal(e)
		out = append(out, string(text))
	}
	return out
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "a boolean"
	case json.Number, float64:
		return "a number"
	case string:
		return "a string"
	case []any:
		return "an array"
	case map[string]any:
		return "an object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
