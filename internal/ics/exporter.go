package ics

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"github.com/username/school-status/internal/calendar"
	"github.com/username/school-status/internal/store"
	"github.com/username/school-status/pkg/dateutil"
	"go.uber.org/zap"
)

// ProductID identifies the generator in exported calendars
const ProductID = "-//school-status//Calendar Export//EN"

// uidNamespace seeds the name-based event UIDs so re-exports keep their identity
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/username/school-status"))

var titles = map[calendar.Category]string{
	calendar.Holidays:      "Holiday",
	calendar.TrackOut:      "Track Out",
	calendar.Vacations:     "Vacation",
	calendar.Workdays:      "Teacher Workday",
	calendar.Makeup:        "Makeup Day",
	calendar.Cancellations: "School Cancelled",
	calendar.Delays:        "Delayed Opening",
}

// Event is one all-day entry of an exported calendar
type Event struct {
	Date     string
	Summary  string
	Category calendar.Category
	Track    calendar.Track
	Tag      calendar.SpecialTag
}

func (ev Event) uid(calendarType calendar.CalendarType) string {
	name := strings.Join([]string{
		string(calendarType), ev.Date, string(ev.Category), string(ev.Track), string(ev.Tag),
	}, "/")
	return uuid.NewSHA1(uidNamespace, []byte(name)).String() + "@school-status"
}

// Exporter turns the date documents of one calendar type and year into an iCalendar
type Exporter struct {
	accessor *store.Accessor
	loc      *time.Location
	now      func() time.Time
	logger   *zap.Logger
}

// NewExporter creates a new Exporter
func NewExporter(accessor *store.Accessor, loc *time.Location, logger *zap.Logger) *Exporter {
	if loc == nil {
		loc = time.UTC
	}
	return &Exporter{
		accessor: accessor,
		loc:      loc,
		now:      time.Now,
		logger:   logger,
	}
}

// SetClock replaces the clock used for DTSTAMP
func (e *Exporter) SetClock(now func() time.Time) {
	e.now = now
}

// Events collects the exception, makeup, special, cancellation and delay
// dates of the calendar type for year, ordered by date.
func (e *Exporter) Events(ctx context.Context, calendarType calendar.CalendarType, year int) ([]Event, error) {
	if !calendarType.Valid() {
		return nil, fmt.Errorf("%w: '%s'", calendar.ErrUnknownCalendarType, calendarType)
	}

	p := pool.NewWithResults[[]Event]().WithErrors()
	for _, spec := range append(calendarType.Exceptions(), calendarType.MakeupSpec()) {
		key := store.Key{CalendarType: calendarType, Year: year, Category: spec.Category}
		p.Go(func() ([]Event, error) {
			return e.dateEvents(ctx, key, year)
		})
	}
	p.Go(func() ([]Event, error) {
		return e.dateEvents(ctx, store.GlobalKey(calendar.Cancellations), year)
	})
	p.Go(func() ([]Event, error) {
		return e.specialEvents(ctx, store.Key{CalendarType: calendarType, Year: year, Category: calendar.Specials})
	})
	p.Go(func() ([]Event, error) {
		return e.delayEvents(ctx, year)
	})

	groups, err := p.Wait()
	if err != nil {
		return nil, fmt.Errorf("failed to collect %s %d events: %w", calendarType, year, err)
	}

	var events []Event
	for _, g := range groups {
		events = append(events, g...)
	}
	sort.Slice(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		if a.Track != b.Track {
			return a.Track < b.Track
		}
		return a.Tag < b.Tag
	})

	return events, nil
}

// Export builds the iCalendar of the calendar type for year
func (e *Exporter) Export(ctx context.Context, calendarType calendar.CalendarType, year int) (*ical.Calendar, error) {
	events, err := e.Events(ctx, calendarType, year)
	if err != nil {
		return nil, err
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropProductID, ProductID)
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropCalendarScale, "GREGORIAN")
	name := fmt.Sprintf("%s %d", displayType(calendarType), year)
	cal.Props.SetText(ical.PropName, name)
	cal.Props.SetText("X-WR-CALNAME", name)
	cal.Props.SetText("X-WR-TIMEZONE", e.loc.String())

	stamp := e.now().UTC()
	for _, ev := range events {
		day, err := dateutil.ParseDay(ev.Date, e.loc)
		if err != nil {
			e.logger.Warn("Skipping invalid date in export",
				zap.String("calendar_type", string(calendarType)),
				zap.String("category", string(ev.Category)),
				zap.String("date", ev.Date))
			continue
		}

		event := ical.NewEvent()
		event.Props.SetText(ical.PropUID, ev.uid(calendarType))
		event.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
		event.Props.SetDate(ical.PropDateTimeStart, day)
		event.Props.SetDate(ical.PropDateTimeEnd, day.AddDate(0, 0, 1))
		event.Props.SetText(ical.PropSummary, ev.Summary)
		event.Props.SetText(ical.PropCategories, string(ev.Category))
		event.Props.SetText(ical.PropTransparency, "TRANSPARENT")
		cal.Children = append(cal.Children, event.Component)
	}

	e.logger.Debug("Calendar exported",
		zap.String("calendar_type", string(calendarType)),
		zap.Int("year", year),
		zap.Int("events", len(cal.Children)))

	return cal, nil
}

// Write exports the calendar type for year as iCalendar text into w
func (e *Exporter) Write(ctx context.Context, w io.Writer, calendarType calendar.CalendarType, year int) error {
	cal, err := e.Export(ctx, calendarType, year)
	if err != nil {
		return err
	}
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode %s %d calendar: %w", calendarType, year, err)
	}
	return nil
}

func (e *Exporter) dateEvents(ctx context.Context, key store.Key, year int) ([]Event, error) {
	doc, err := e.accessor.Dates(ctx, key)
	if err != nil {
		return nil, err
	}

	title := titles[key.Category]
	var events []Event
	add := func(track calendar.Track, dates []string) {
		for _, date := range dates {
			if !dateutil.IsSameYear(year, date, e.loc) {
				continue
			}
			summary := title
			if track != "" {
				summary = fmt.Sprintf("%s (%s)", title, trackName(track))
			}
			events = append(events, Event{Date: date, Summary: summary, Category: key.Category, Track: track})
		}
	}

	if list, ok := doc.Left(); ok {
		add("", list)
		return events, nil
	}
	tracked, _ := doc.Right()
	for _, track := range calendar.Tracks {
		add(track, tracked[track])
	}
	return events, nil
}

func (e *Exporter) specialEvents(ctx context.Context, key store.Key) ([]Event, error) {
	obj, err := e.accessor.Object(ctx, key)
	if err != nil {
		return nil, err
	}

	var events []Event
	for date, value := range obj {
		var tags []string
		switch v := value.(type) {
		case string:
			tags = []string{v}
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok {
					tags = append(tags, s)
				}
			}
		}
		for _, tag := range tags {
			if !calendar.ValidSpecialTag(tag) {
				continue
			}
			t := calendar.SpecialTag(tag)
			events = append(events, Event{Date: date, Summary: t.DisplayName(), Category: calendar.Specials, Tag: t})
		}
	}
	return events, nil
}

func (e *Exporter) delayEvents(ctx context.Context, year int) ([]Event, error) {
	obj, err := e.accessor.Object(ctx, store.GlobalKey(calendar.Delays))
	if err != nil {
		return nil, err
	}

	var events []Event
	for date, value := range obj {
		if !dateutil.IsSameYear(year, date, e.loc) {
			continue
		}
		events = append(events, Event{
			Date:     date,
			Summary:  fmt.Sprintf("%s (%v minutes)", titles[calendar.Delays], value),
			Category: calendar.Delays,
		})
	}
	return events, nil
}

func displayType(ct calendar.CalendarType) string {
	switch ct {
	case calendar.Traditional:
		return "Traditional"
	case calendar.Modified:
		return "Modified"
	case calendar.YearRound:
		return "Year-Round"
	default:
		return string(ct)
	}
}

// trackName turns track3 into "Track 3"
func trackName(t calendar.Track) string {
	return "Track " + strings.TrimPrefix(string(t), "track")
}
