package status

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/samber/mo"
	"github.com/sourcegraph/conc/pool"
	"github.com/username/school-status/internal/calendar"
	"github.com/username/school-status/pkg/dateutil"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DailyTypes are resolved by the today and tomorrow queries
var DailyTypes = []calendar.CalendarType{calendar.Traditional, calendar.Modified}

// DaySchedule is the resolved schedule of one date. Calendar types that were
// not requested are absent and serialize as null.
type DaySchedule struct {
	Date        string                 `json:"date"`
	Traditional mo.Option[bool]        `json:"traditional"`
	Modified    mo.Option[bool]        `json:"modified"`
	YearRound   mo.Option[TrackStatus] `json:"yearround"`
	Delay       float64                `json:"delay"`
}

// Aggregator combines the resolvers across calendar types and dates
type Aggregator struct {
	resolver *Resolver
	now      func() time.Time
	logger   *zap.Logger
}

// NewAggregator creates a new Aggregator using the wall clock
func NewAggregator(resolver *Resolver, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		resolver: resolver,
		now:      time.Now,
		logger:   logger,
	}
}

// SetClock replaces the clock used by the relative queries
func (a *Aggregator) SetClock(now func() time.Time) {
	a.now = now
}

// ResolveDay resolves date for the given calendar types (all of them when none given)
// and its delay. The day fails if any resolution fails.
func (a *Aggregator) ResolveDay(ctx context.Context, date string, types ...calendar.CalendarType) (DaySchedule, error) {
	types = uniqueTypes(types)

	var (
		traditional, modified mo.Option[bool]
		yearRound             mo.Option[TrackStatus]
		delay                 Delay
		errs                  = make([]error, len(types)+1)
	)

	p := pool.New()
	for i, ct := range types {
		i, ct := i, ct
		switch ct {
		case calendar.Traditional, calendar.Modified:
			target := &traditional
			if ct == calendar.Modified {
				target = &modified
			}
			p.Go(func() {
				st, err := a.resolver.ResolveTraditional(ctx, ct, date)
				if err != nil {
					errs[i] = err
					return
				}
				*target = mo.Some(st.InSession)
			})
		case calendar.YearRound:
			p.Go(func() {
				tracks, err := a.resolver.ResolveYearRound(ctx, date)
				if err != nil {
					errs[i] = err
					return
				}
				yearRound = mo.Some(tracks)
			})
		default:
			errs[i] = fmt.Errorf("%w: '%s'", calendar.ErrUnknownCalendarType, ct)
		}
	}
	p.Go(func() {
		d, err := a.resolver.ResolveDelay(ctx, date)
		if err != nil {
			errs[len(types)] = err
			return
		}
		delay = d
	})
	p.Wait()

	if err := multierr.Combine(errs...); err != nil {
		return DaySchedule{}, fmt.Errorf("failed to resolve %s: %w", date, err)
	}

	return DaySchedule{
		Date:        date,
		Traditional: traditional,
		Modified:    modified,
		YearRound:   yearRound,
		Delay:       delay.Minutes,
	}, nil
}

type dayResult struct {
	schedule DaySchedule
	err      error
}

// ResolveRange resolves every calendar day from start to end inclusive, in date order.
// Days are resolved concurrently; if any day fails the range fails with every day's error.
func (a *Aggregator) ResolveRange(ctx context.Context, start, end string, types ...calendar.CalendarType) ([]DaySchedule, error) {
	from, err := a.resolver.parse(start)
	if err != nil {
		return nil, err
	}
	to, err := a.resolver.parse(end)
	if err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, fmt.Errorf("range end %s is before start %s", end, start)
	}

	days := dateutil.Days(from, to)

	p := pool.NewWithResults[dayResult]()
	for _, day := range days {
		date := dateutil.FormatDay(day)
		p.Go(func() dayResult {
			schedule, err := a.ResolveDay(ctx, date, types...)
			if err != nil {
				return dayResult{schedule: DaySchedule{Date: date}, err: err}
			}
			return dayResult{schedule: schedule}
		})
	}
	results := p.Wait()

	sort.Slice(results, func(i, j int) bool {
		return results[i].schedule.Date < results[j].schedule.Date
	})

	schedules := make([]DaySchedule, 0, len(results))
	var errs error
	for _, res := range results {
		if res.err != nil {
			errs = multierr.Append(errs, res.err)
			continue
		}
		schedules = append(schedules, res.schedule)
	}

	if errs != nil {
		a.logger.Error("Failed to resolve range",
			zap.String("start", start),
			zap.String("end", end),
			zap.Int("failed_days", len(multierr.Errors(errs))),
			zap.Error(errs))
		return nil, errs
	}

	a.logger.Info("Range resolved",
		zap.String("start", start),
		zap.String("end", end),
		zap.Int("days", len(schedules)))

	return schedules, nil
}

// Today resolves the current date for the daily calendar types
func (a *Aggregator) Today(ctx context.Context) (DaySchedule, error) {
	return a.ResolveDay(ctx, dateutil.FormatDay(a.today()), DailyTypes...)
}

// Tomorrow resolves the next date for the daily calendar types
func (a *Aggregator) Tomorrow(ctx context.Context) (DaySchedule, error) {
	return a.ResolveDay(ctx, dateutil.FormatDay(a.today().AddDate(0, 0, 1)), DailyTypes...)
}

// ThisWeek resolves the current ISO week (Monday to Sunday) for every calendar type
func (a *Aggregator) ThisWeek(ctx context.Context) ([]DaySchedule, error) {
	return a.week(ctx, a.today())
}

// NextWeek resolves the following ISO week for every calendar type
func (a *Aggregator) NextWeek(ctx context.Context) ([]DaySchedule, error) {
	return a.week(ctx, a.today().AddDate(0, 0, 7))
}

// Week resolves the ISO week containing date
func (a *Aggregator) Week(ctx context.Context, date string) ([]DaySchedule, error) {
	day, err := a.resolver.parse(date)
	if err != nil {
		return nil, err
	}
	return a.week(ctx, day)
}

func (a *Aggregator) week(ctx context.Context, day time.Time) ([]DaySchedule, error) {
	start := dateutil.FormatDay(dateutil.StartOfWeek(day))
	end := dateutil.FormatDay(dateutil.EndOfWeek(day))
	return a.ResolveRange(ctx, start, end, calendar.CalendarTypes()...)
}

// uniqueTypes drops repeated calendar types; no types means all of them
func uniqueTypes(types []calendar.CalendarType) []calendar.CalendarType {
	if len(types) == 0 {
		return calendar.CalendarTypes()
	}

	seen := make(map[calendar.CalendarType]bool, len(types))
	out := make([]calendar.CalendarType, 0, len(types))
	for _, ct := range types {
		if !seen[ct] {
			seen[ct] = true
			out = append(out, ct)
		}
	}
	return out
}

func (a *Aggregator) today() time.Time {
	return dateutil.StartOfDay(a.now().In(a.resolver.Location()))
}
