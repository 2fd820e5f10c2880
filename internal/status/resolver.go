package status

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/username/school-status/internal/calendar"
	"github.com/username/school-status/internal/store"
	"github.com/username/school-status/pkg/dateutil"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Status is the verdict for a single-schedule calendar type
type Status struct {
	InSession bool `json:"inSession"`
}

// TrackStatus holds the verdict of every year-round track
type TrackStatus map[calendar.Track]bool

// Delay is the late start for a date
type Delay struct {
	Minutes float64 `json:"delayMinutes"`
}

// Resolver decides whether school is in session for a calendar type and date
type Resolver struct {
	accessor *store.Accessor
	loc      *time.Location
	logger   *zap.Logger
}

// NewResolver creates a new Resolver. Dates are parsed in loc.
func NewResolver(accessor *store.Accessor, loc *time.Location, logger *zap.Logger) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{
		accessor: accessor,
		loc:      loc,
		logger:   logger,
	}
}

// Location returns the timezone used to parse dates
func (r *Resolver) Location() *time.Location {
	return r.loc
}

// ResolveTraditional resolves a traditional or modified calendar for date
func (r *Resolver) ResolveTraditional(ctx context.Context, calendarType calendar.CalendarType, date string) (Status, error) {
	day, err := r.parse(date)
	if err != nil {
		return Status{}, err
	}

	if !calendarType.Valid() || calendarType.Tracked() {
		return Status{}, fmt.Errorf("%w: '%s' is not a single-schedule calendar", calendar.ErrUnknownCalendarType, calendarType)
	}

	src, err := r.fetchSources(ctx, calendarType, day.Year())
	if err != nil {
		return Status{}, err
	}

	if err := r.requireFlat(src.exceptions...); err != nil {
		return Status{}, err
	}
	if err := r.requireFlat(src.makeup); err != nil {
		return Status{}, err
	}

	inSession := verdict(date, day, src.excluded(""), src.makeupDates(""))

	r.logger.Debug("Resolved session status",
		zap.String("calendar_type", string(calendarType)),
		zap.String("date", date),
		zap.Bool("in_session", inSession))

	return Status{InSession: inSession}, nil
}

// ResolveYearRound resolves every year-round track for date
func (r *Resolver) ResolveYearRound(ctx context.Context, date string) (TrackStatus, error) {
	day, err := r.parse(date)
	if err != nil {
		return nil, err
	}

	src, err := r.fetchSources(ctx, calendar.YearRound, day.Year())
	if err != nil {
		return nil, err
	}

	result := make(TrackStatus, len(calendar.Tracks))
	for _, track := range calendar.Tracks {
		result[track] = verdict(date, day, src.excluded(track), src.makeupDates(track))
	}

	r.logger.Debug("Resolved year-round status",
		zap.String("date", date),
		zap.Any("tracks", result))

	return result, nil
}

// ResolveDelay returns the delay for date, zero when none is recorded
func (r *Resolver) ResolveDelay(ctx context.Context, date string) (Delay, error) {
	if _, err := r.parse(date); err != nil {
		return Delay{}, err
	}

	key := store.GlobalKey(calendar.Delays)
	delays, err := r.accessor.Object(ctx, key)
	if err != nil {
		return Delay{}, err
	}

	value, ok := delays[date]
	if !ok {
		return Delay{}, nil
	}

	minutes, err := delayMinutes(value)
	if err != nil {
		return Delay{}, &calendar.DataUnavailableError{
			Category: calendar.Delays,
			Path:     r.accessor.Path(key),
			Err:      fmt.Errorf("delay for %s: %w", date, err),
		}
	}

	return Delay{Minutes: minutes}, nil
}

func (r *Resolver) parse(date string) (time.Time, error) {
	day, err := dateutil.ParseDay(date, r.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", calendar.ErrInvalidDate, err)
	}
	return day, nil
}

type fetched struct {
	key store.Key
	doc calendar.Document
	err error
}

type sources struct {
	exceptions    []fetched
	cancellations fetched
	makeup        fetched
}

// excluded returns the union of every exception document for track and the
// global cancellations. An empty track selects flat lists only.
func (s *sources) excluded(track calendar.Track) calendar.DateSet {
	set := calendar.DateSet{}
	for _, f := range s.exceptions {
		set.Add(calendar.DatesForTrack(f.doc, track)...)
	}
	set.Add(calendar.DatesForTrack(s.cancellations.doc, track)...)
	return set
}

func (s *sources) makeupDates(track calendar.Track) calendar.DateSet {
	set := calendar.DateSet{}
	set.Add(calendar.DatesForTrack(s.makeup.doc, track)...)
	return set
}

// fetchSources reads every document needed for one calendar type and year
// concurrently and waits for all of them. Every failure is reported.
func (r *Resolver) fetchSources(ctx context.Context, calendarType calendar.CalendarType, year int) (*sources, error) {
	keys := make([]store.Key, 0, len(calendarType.Exceptions())+2)
	for _, spec := range calendarType.Exceptions() {
		keys = append(keys, store.Key{CalendarType: calendarType, Year: year, Category: spec.Category})
	}
	makeupKey := store.Key{CalendarType: calendarType, Year: year, Category: calendar.Makeup}
	cancellationsKey := store.GlobalKey(calendar.Cancellations)
	keys = append(keys, makeupKey, cancellationsKey)

	p := pool.NewWithResults[fetched]()
	for _, key := range keys {
		key := key
		p.Go(func() fetched {
			doc, err := r.accessor.Dates(ctx, key)
			return fetched{key: key, doc: doc, err: err}
		})
	}
	results := p.Wait()

	sort.Slice(results, func(i, j int) bool {
		return results[i].key.String() < results[j].key.String()
	})

	src := &sources{}
	var errs error
	for _, res := range results {
		if res.err != nil {
			errs = multierr.Append(errs, res.err)
			continue
		}
		switch res.key {
		case makeupKey:
			src.makeup = res
		case cancellationsKey:
			src.cancellations = res
		default:
			src.exceptions = append(src.exceptions, res)
		}
	}

	if errs != nil {
		r.logger.Warn("Failed to fetch session documents",
			zap.String("calendar_type", string(calendarType)),
			zap.Int("year", year),
			zap.Error(errs))
		return nil, errs
	}

	if err := r.requireFlat(src.cancellations); err != nil {
		return nil, err
	}

	return src, nil
}

// requireFlat rejects track-keyed documents where only a flat list makes sense
func (r *Resolver) requireFlat(docs ...fetched) error {
	var errs error
	for _, f := range docs {
		if calendar.ShapeOf(f.doc) == calendar.ShapeFlat {
			continue
		}
		errs = multierr.Append(errs, &calendar.DataUnavailableError{
			CalendarType: f.key.CalendarType,
			Year:         f.key.Year,
			Category:     f.key.Category,
			Path:         r.accessor.Path(f.key),
			Err:          &store.ShapeError{Got: "a track object", Want: "an array"},
		})
	}
	return errs
}

// verdict applies the session rule: excluded dates and weekends are out,
// makeup dates are always in.
func verdict(date string, day time.Time, excluded, makeup calendar.DateSet) bool {
	if makeup.Has(date) {
		return true
	}
	return !excluded.Has(date) && !dateutil.IsWeekend(day)
}

func delayMinutes(value any) (float64, error) {
	var minutes float64
	switch v := value.(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", v.String())
		}
		minutes = f
	case float64:
		minutes = v
	default:
		return 0, fmt.Errorf("%v is not a number", value)
	}

	if minutes < 0 {
		return 0, fmt.Errorf("%v is negative", minutes)
	}
	return minutes, nil
}
