package validate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/username/school-status/internal/calendar"
	"github.com/username/school-status/internal/store"
	"github.com/username/school-status/pkg/dateutil"
	"go.uber.org/zap"
)

// Engine checks every stored document and reports all violations it finds
type Engine struct {
	accessor *store.Accessor
	loc      *time.Location
	logger   *zap.Logger
}

// NewEngine creates a new Engine. Dates are checked in loc.
func NewEngine(accessor *store.Accessor, loc *time.Location, logger *zap.Logger) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{
		accessor: accessor,
		loc:      loc,
		logger:   logger,
	}
}

// ValidateAll validates every calendar type and the global documents concurrently
func (e *Engine) ValidateAll(ctx context.Context) []Violation {
	p := pool.NewWithResults[[]Violation]()
	for _, ct := range calendar.CalendarTypes() {
		p.Go(func() []Violation {
			return e.ValidateCalendarType(ctx, ct)
		})
	}
	p.Go(func() []Violation {
		return e.ValidateGlobalExceptions(ctx)
	})

	violations := flatten(p.Wait())
	sortViolations(violations)

	e.logger.Info("Validation finished", zap.Int("violations", len(violations)))
	return violations
}

// ValidateCalendarType validates every year of the calendar type concurrently
func (e *Engine) ValidateCalendarType(ctx context.Context, calendarType calendar.CalendarType) []Violation {
	if !calendarType.Valid() {
		return []Violation{{
			Kind:         calendar.KindUnknownCalendarType,
			CalendarType: calendarType,
			Message:      "is not a known calendar type",
		}}
	}

	years, err := e.accessor.ListYears(ctx, calendarType)
	if err != nil {
		return []Violation{e.unavailable(store.Key{CalendarType: calendarType}, err)}
	}

	p := pool.NewWithResults[[]Violation]()
	for _, year := range years {
		p.Go(func() []Violation {
			return e.validateYear(ctx, calendarType, year)
		})
	}

	violations := flatten(p.Wait())
	sortViolations(violations)

	e.logger.Debug("Validated calendar type",
		zap.String("calendar_type", string(calendarType)),
		zap.Int("years", len(years)),
		zap.Int("violations", len(violations)))

	return violations
}

// ValidateGlobalExceptions validates the cancellations and delays documents
func (e *Engine) ValidateGlobalExceptions(ctx context.Context) []Violation {
	p := pool.NewWithResults[[]Violation]()
	p.Go(func() []Violation {
		return e.checkCancellations(ctx)
	})
	p.Go(func() []Violation {
		return e.checkDelays(ctx)
	})

	violations := flatten(p.Wait())
	sortViolations(violations)
	return violations
}

func (e *Engine) validateYear(ctx context.Context, calendarType calendar.CalendarType, year int) []Violation {
	p := pool.NewWithResults[[]Violation]()
	for _, spec := range append(calendarType.Exceptions(), calendarType.MakeupSpec()) {
		key := store.Key{CalendarType: calendarType, Year: year, Category: spec.Category}
		p.Go(func() []Violation {
			return e.checkDates(ctx, key, spec)
		})
	}
	p.Go(func() []Violation {
		return e.checkSpecials(ctx, store.Key{CalendarType: calendarType, Year: year, Category: calendar.Specials})
	})

	return flatten(p.Wait())
}

// checkDates validates one date document against its spec
func (e *Engine) checkDates(ctx context.Context, key store.Key, spec calendar.CategorySpec) []Violation {
	doc, err := e.accessor.Dates(ctx, key)
	if err != nil {
		return []Violation{e.unavailable(key, err)}
	}

	if got := calendar.ShapeOf(doc); got != spec.Shape {
		return []Violation{e.shapeMismatch(key, got, spec.Shape)}
	}

	if list, ok := doc.Left(); ok {
		return e.checkEntries(key, "", list, spec.AllowWeekends)
	}

	tracked, _ := doc.Right()
	var violations []Violation
	for _, track := range calendar.Tracks {
		entries, ok := tracked[track]
		if !ok {
			violations = append(violations, e.violation(key, calendar.KindMissingTrack, string(track), "track is missing"))
			continue
		}
		violations = append(violations, e.checkEntries(key, track, entries, spec.AllowWeekends)...)
	}

	var extra []string
	for track := range tracked {
		if !calendar.ValidTrack(track) {
			extra = append(extra, string(track))
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		violations = append(violations, e.violation(key, calendar.KindShapeMismatch, name, "is not a known track"))
	}

	return violations
}

// checkEntries reports at most one violation per entry: invalid dates first,
// then dates outside the year, then weekend dates.
func (e *Engine) checkEntries(key store.Key, track calendar.Track, entries []string, allowWeekends bool) []Violation {
	var violations []Violation
	report := func(kind calendar.Kind, entry, msg string) {
		if track != "" {
			msg = fmt.Sprintf("%s (%s)", msg, track)
		}
		violations = append(violations, e.violation(key, kind, entry, msg))
	}

	invalid := dateutil.FilterInvalid(entries, e.loc)
	for _, entry := range invalid {
		report(calendar.KindInvalidDate, entry, "is not a valid YYYY-MM-DD date")
	}

	wrongYear := dateutil.FilterWrongYear(key.Year, entries, e.loc)
	for _, entry := range wrongYear {
		report(calendar.KindWrongYear, entry, fmt.Sprintf("is not in %d", key.Year))
	}

	if allowWeekends {
		return violations
	}

	reported := calendar.DateSet{}
	reported.Add(invalid...)
	reported.Add(wrongYear...)
	var rest []string
	for _, entry := range entries {
		if !reported.Has(entry) {
			rest = append(rest, entry)
		}
	}
	for _, entry := range dateutil.FilterWeekend(rest, e.loc) {
		report(calendar.KindWeekendViolation, entry, "falls on a weekend")
	}

	return violations
}

func (e *Engine) checkSpecials(ctx context.Context, key store.Key) []Violation {
	obj, err := e.accessor.Object(ctx, key)
	if err != nil {
		return []Violation{e.unavailable(key, err)}
	}

	var violations []Violation
	for _, date := range sortedKeys(obj) {
		switch {
		case !dateutil.IsValidDate(date, e.loc):
			violations = append(violations, e.violation(key, calendar.KindInvalidDate, date, "is not a valid YYYY-MM-DD date"))
			continue
		case !dateutil.IsSameYear(key.Year, date, e.loc):
			violations = append(violations, e.violation(key, calendar.KindWrongYear, date, fmt.Sprintf("is not in %d", key.Year)))
			continue
		}

		tags, ok := specialTags(obj[date])
		if !ok {
			violations = append(violations, e.violation(key, calendar.KindShapeMismatch, date,
				"value must be a tag or an array of tags"))
			continue
		}
		for _, tag := range tags {
			if !calendar.ValidSpecialTag(tag) {
				violations = append(violations, e.violation(key, calendar.KindUnknownSpecialTag, tag,
					fmt.Sprintf("is not a known tag (on %s)", date)))
			}
		}
	}

	return violations
}

func (e *Engine) checkCancellations(ctx context.Context) []Violation {
	key := store.GlobalKey(calendar.Cancellations)
	doc, err := e.accessor.Dates(ctx, key)
	if err != nil {
		return []Violation{e.unavailable(key, err)}
	}

	list, ok := doc.Left()
	if !ok {
		return []Violation{e.shapeMismatch(key, calendar.ShapeTracked, calendar.ShapeFlat)}
	}

	var violations []Violation
	invalid := dateutil.FilterInvalid(list, e.loc)
	for _, entry := range invalid {
		violations = append(violations, e.violation(key, calendar.KindInvalidDate, entry, "is not a valid YYYY-MM-DD date"))
	}
	for _, entry := range dateutil.FilterWeekend(list, e.loc) {
		violations = append(violations, e.violation(key, calendar.KindWeekendViolation, entry, "falls on a weekend"))
	}
	return violations
}

func (e *Engine) checkDelays(ctx context.Context) []Violation {
	key := store.GlobalKey(calendar.Delays)
	obj, err := e.accessor.Object(ctx, key)
	if err != nil {
		return []Violation{e.unavailable(key, err)}
	}

	var violations []Violation
	for _, date := range sortedKeys(obj) {
		switch {
		case !dateutil.IsValidDate(date, e.loc):
			violations = append(violations, e.violation(key, calendar.KindInvalidDate, date, "is not a valid YYYY-MM-DD date"))
			continue
		case dateutil.IsWeekendDate(date, e.loc):
			violations = append(violations, e.violation(key, calendar.KindWeekendViolation, date, "falls on a weekend"))
			continue
		}

		if !validMinutes(obj[date]) {
			violations = append(violations, e.violation(key, calendar.KindShapeMismatch, date,
				"delay must be a non-negative number of minutes"))
		}
	}
	return violations
}

func (e *Engine) violation(key store.Key, kind calendar.Kind, entry, msg string) Violation {
	return Violation{
		Kind:         kind,
		CalendarType: key.CalendarType,
		Year:         key.Year,
		Category:     key.Category,
		Path:         e.accessor.Path(key),
		Entry:        entry,
		Message:      msg,
	}
}

func (e *Engine) shapeMismatch(key store.Key, got, want calendar.Shape) Violation {
	return e.violation(key, calendar.KindShapeMismatch, "",
		fmt.Sprintf("document has %s layout, expected %s layout", got, want))
}

// unavailable turns a read failure into a violation. Documents that parse but
// have the wrong layout are shape mismatches.
func (e *Engine) unavailable(key store.Key, err error) Violation {
	kind := calendar.KindDataUnavailable
	if errors.Is(err, calendar.ErrShapeMismatch) {
		kind = calendar.KindShapeMismatch
	}

	e.logger.Debug("Document check failed",
		zap.String("document", key.String()),
		zap.String("kind", string(kind)),
		zap.Error(err))

	v := e.violation(key, kind, "", err.Error())
	var unavailable *calendar.DataUnavailableError
	if errors.As(err, &unavailable) && unavailable.Path != "" {
		v.Path = unavailable.Path
		v.Message = unavailable.Err.Error()
	}
	return v
}

func specialTags(value any) ([]string, bool) {
	switch v := value.(type) {
	case string:
		return []string{v}, true
	case []any:
		tags := make([]string, 0, len(v))
		for _, item := range v {
			tag, ok := item.(string)
			if !ok {
				return nil, false
			}
			tags = append(tags, tag)
		}
		return tags, true
	default:
		return nil, false
	}
}

func validMinutes(value any) bool {
	n, ok := value.(json.Number)
	if !ok {
		return false
	}
	minutes, err := n.Float64()
	return err == nil && minutes >= 0
}

func sortedKeys(obj map[string]any) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func flatten(groups [][]Violation) []Violation {
	var out []Violation
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
