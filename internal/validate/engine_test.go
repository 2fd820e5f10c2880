package validate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/school-status/internal/calendar"
	"github.com/username/school-status/internal/store"
	"go.uber.org/zap"
)

func allTracks(dates ...string) map[string][]string {
	return map[string][]string{
		"track1": dates, "track2": dates, "track3": dates, "track4": dates,
	}
}

// seedClean stores a complete data set for year without any violation
func seedClean(t *testing.T, ms *store.MemoryStore, year int) {
	t.Helper()

	put := func(ct calendar.CalendarType, category calendar.Category, v any) {
		require.NoError(t, ms.PutJSON(store.Key{CalendarType: ct, Year: year, Category: category}, v))
	}

	for _, ct := range []calendar.CalendarType{calendar.Traditional, calendar.Modified} {
		put(ct, calendar.Holidays, []string{"2024-12-25"})
		put(ct, calendar.Vacations, []string{"2024-12-23", "2024-12-24"})
		put(ct, calendar.Workdays, []string{"2024-01-02"})
		put(ct, calendar.Makeup, []string{"2024-06-15"})
		put(ct, calendar.Specials, map[string]any{
			"2024-08-26": "FIRST_DAY",
			"2024-10-25": []string{"EOQ", "REPORT_CARD"},
		})
	}
	put(calendar.Modified, calendar.TrackOut, []string{"2024-07-15"})

	put(calendar.YearRound, calendar.TrackOut, allTracks("2024-07-13", "2024-07-15"))
	put(calendar.YearRound, calendar.Vacations, []string{"2024-12-23"})
	put(calendar.YearRound, calendar.Workdays, []string{"2024-01-02"})
	put(calendar.YearRound, calendar.Makeup, allTracks("2024-06-15"))
	put(calendar.YearRound, calendar.Specials, map[string]any{"2024-12-20": "LAST_DAY"})

	require.NoError(t, ms.PutJSON(store.GlobalKey(calendar.Cancellations), []string{"2024-01-16"}))
	require.NoError(t, ms.PutJSON(store.GlobalKey(calendar.Delays), map[string]any{"2024-01-10": 60}))
}

func newEngine(t *testing.T) (*Engine, *store.MemoryStore) {
	t.Helper()

	ms := store.NewMemoryStore()
	seedClean(t, ms, 2024)
	return NewEngine(store.NewAccessor(ms, zap.NewNop()), nil, zap.NewNop()), ms
}

func key(ct calendar.CalendarType, category calendar.Category) store.Key {
	return store.Key{CalendarType: ct, Year: 2024, Category: category}
}

func TestValidateAll_Clean(t *testing.T) {
	engine, _ := newEngine(t)

	assert.Empty(t, engine.ValidateAll(context.Background()))
}

func TestValidateCalendarType_WeekendViolation(t *testing.T) {
	engine, ms := newEngine(t)
	require.NoError(t, ms.PutJSON(key(calendar.Traditional, calendar.Holidays), []string{"2024-12-25", "2024-12-28"}))

	violations := engine.ValidateCalendarType(context.Background(), calendar.Traditional)
	require.Len(t, violations, 1)

	v := violations[0]
	assert.Equal(t, calendar.KindWeekendViolation, v.Kind)
	assert.Equal(t, calendar.Traditional, v.CalendarType)
	assert.Equal(t, 2024, v.Year)
	assert.Equal(t, calendar.Holidays, v.Category)
	assert.Equal(t, "2024-12-28", v.Entry)
	assert.Equal(t, "memory://traditional/2024/holidays.json", v.Path)
}

func TestValidateCalendarType_OneViolationPerEntry(t *testing.T) {
	engine, ms := newEngine(t)
	require.NoError(t, ms.PutJSON(key(calendar.Modified, calendar.Vacations), []any{
		"2024-12-23",
		"2025-01-02", // wrong year
		"2025-01-04", // wrong year and a Saturday
		"2024-02-30", // not a date
		"12/24/2024", // not the date grammar
		20241224,     // not a string
		"2024-12-29", // Sunday
	}))

	violations := engine.ValidateCalendarType(context.Background(), calendar.Modified)

	got := map[string]calendar.Kind{}
	for _, v := range violations {
		assert.Equal(t, calendar.Vacations, v.Category)
		_, dup := got[v.Entry]
		assert.False(t, dup, "entry %s reported twice", v.Entry)
		got[v.Entry] = v.Kind
	}
	assert.Equal(t, map[string]calendar.Kind{
		"2025-01-02": calendar.KindWrongYear,
		"2025-01-04": calendar.KindWrongYear,
		"2024-02-30": calendar.KindInvalidDate,
		"12/24/2024": calendar.KindInvalidDate,
		"20241224":   calendar.KindInvalidDate,
		"2024-12-29": calendar.KindWeekendViolation,
	}, got)
}

func TestValidateCalendarType_MakeupAllowsWeekends(t *testing.T) {
	engine, ms := newEngine(t)
	require.NoError(t, ms.PutJSON(key(calendar.Traditional, calendar.Makeup), []string{"2024-06-15", "2024-06-16"}))

	assert.Empty(t, engine.ValidateCalendarType(context.Background(), calendar.Traditional))
}

func TestValidateCalendarType_Tracks(t *testing.T) {
	t.Run("missing track", func(t *testing.T) {
		engine, ms := newEngine(t)
		trackout := allTracks("2024-07-15")
		delete(trackout, "track3")
		require.NoError(t, ms.PutJSON(key(calendar.YearRound, calendar.TrackOut), trackout))

		violations := engine.ValidateCalendarType(context.Background(), calendar.YearRound)
		require.Len(t, violations, 1)
		assert.Equal(t, calendar.KindMissingTrack, violations[0].Kind)
		assert.Equal(t, "track3", violations[0].Entry)
		assert.Equal(t, calendar.TrackOut, violations[0].Category)
	})

	t.Run("unknown track", func(t *testing.T) {
		engine, ms := newEngine(t)
		makeup := allTracks("2024-06-15")
		makeup["track5"] = []string{"2024-06-15"}
		require.NoError(t, ms.PutJSON(key(calendar.YearRound, calendar.Makeup), makeup))

		violations := engine.ValidateCalendarType(context.Background(), calendar.YearRound)
		require.Len(t, violations, 1)
		assert.Equal(t, calendar.KindShapeMismatch, violations[0].Kind)
		assert.Equal(t, "track5", violations[0].Entry)
	})

	t.Run("bad entry names its track", func(t *testing.T) {
		engine, ms := newEngine(t)
		trackout := allTracks("2024-07-15")
		trackout["track2"] = []string{"2023-07-15"}
		require.NoError(t, ms.PutJSON(key(calendar.YearRound, calendar.TrackOut), trackout))

		violations := engine.ValidateCalendarType(context.Background(), calendar.YearRound)
		require.Len(t, violations, 1)
		assert.Equal(t, calendar.KindWrongYear, violations[0].Kind)
		assert.Contains(t, violations[0].Message, "track2")
	})

	t.Run("track entry is not an array", func(t *testing.T) {
		engine, ms := newEngine(t)
		require.NoError(t, ms.PutJSON(key(calendar.YearRound, calendar.TrackOut), map[string]any{
			"track1": []string{}, "track2": "2024-07-15", "track3": []string{}, "track4": []string{},
		}))

		violations := engine.ValidateCalendarType(context.Background(), calendar.YearRound)
		require.Len(t, violations, 1)
		assert.Equal(t, calendar.KindShapeMismatch, violations[0].Kind)
	})
}

func TestValidateCalendarType_ShapeMismatch(t *testing.T) {
	engine, ms := newEngine(t)
	require.NoError(t, ms.PutJSON(key(calendar.Traditional, calendar.Holidays), allTracks("2024-12-25")))
	require.NoError(t, ms.PutJSON(key(calendar.YearRound, calendar.TrackOut), []string{"2024-07-15"}))
	require.NoError(t, ms.PutJSON(key(calendar.Modified, calendar.Workdays), "2024-01-02"))

	for _, ct := range []calendar.CalendarType{calendar.Traditional, calendar.Modified, calendar.YearRound} {
		violations := engine.ValidateCalendarType(context.Background(), ct)
		require.Len(t, violations, 1, ct)
		assert.Equal(t, calendar.KindShapeMismatch, violations[0].Kind, ct)
	}
}

func TestValidateCalendarType_Specials(t *testing.T) {
	engine, ms := newEngine(t)
	require.NoError(t, ms.PutJSON(key(calendar.Traditional, calendar.Specials), map[string]any{
		"2024-08-26": "FIRST_DAY",
		"2024-09-02": "LABOR_DAY",
		"2024-10-25": []any{"EOQ", "PICTURE_DAY"},
		"2024-11-01": 3,
		"2023-08-28": "FIRST_DAY",
		"not-a-date": "EOQ",
	}))

	violations := engine.ValidateCalendarType(context.Background(), calendar.Traditional)

	kinds := map[string]calendar.Kind{}
	for _, v := range violations {
		kinds[v.Entry] = v.Kind
	}
	assert.Equal(t, map[string]calendar.Kind{
		"LABOR_DAY":   calendar.KindUnknownSpecialTag,
		"PICTURE_DAY": calendar.KindUnknownSpecialTag,
		"2024-11-01":  calendar.KindShapeMismatch,
		"2023-08-28":  calendar.KindWrongYear,
		"not-a-date":  calendar.KindInvalidDate,
	}, kinds)
}

func TestValidateCalendarType_Unavailable(t *testing.T) {
	engine, ms := newEngine(t)
	ms.Delete(key(calendar.Modified, calendar.TrackOut))
	ms.Put(key(calendar.Modified, calendar.Holidays), []byte(`["2024-12-25"`))

	violations := engine.ValidateCalendarType(context.Background(), calendar.Modified)
	require.Len(t, violations, 2)
	for _, v := range violations {
		assert.Equal(t, calendar.KindDataUnavailable, v.Kind)
	}
	// sorted by category
	assert.Equal(t, calendar.Holidays, violations[0].Category)
	assert.Equal(t, calendar.TrackOut, violations[1].Category)
}

func TestValidateCalendarType_UnknownType(t *testing.T) {
	engine, _ := newEngine(t)

	violations := engine.ValidateCalendarType(context.Background(), "semester")
	require.Len(t, violations, 1)
	assert.Equal(t, calendar.KindUnknownCalendarType, violations[0].Kind)
	assert.Equal(t, calendar.CalendarType("semester"), violations[0].CalendarType)
}

func TestValidateCalendarType_NoYears(t *testing.T) {
	ms := store.NewMemoryStore()
	engine := NewEngine(store.NewAccessor(ms, zap.NewNop()), nil, zap.NewNop())

	violations := engine.ValidateCalendarType(context.Background(), calendar.YearRound)
	require.Len(t, violations, 1)
	assert.Equal(t, calendar.KindDataUnavailable, violations[0].Kind)
}

func TestValidateGlobalExceptions(t *testing.T) {
	engine, ms := newEngine(t)
	require.NoError(t, ms.PutJSON(store.GlobalKey(calendar.Cancellations), []string{"2024-01-16", "2024-01-20", "2024-1-17"}))
	require.NoError(t, ms.PutJSON(store.GlobalKey(calendar.Delays), map[string]any{
		"2024-01-10": 60,
		"2024-01-11": -30,
		"2024-01-12": "two hours",
		"2024-01-13": 120,
		"2024-01-32": 60,
	}))

	violations := engine.ValidateGlobalExceptions(context.Background())

	got := map[string]calendar.Kind{}
	for _, v := range violations {
		assert.Empty(t, v.CalendarType)
		assert.Zero(t, v.Year)
		got[string(v.Category)+" "+v.Entry] = v.Kind
	}
	assert.Equal(t, map[string]calendar.Kind{
		"cancellations 2024-01-20": calendar.KindWeekendViolation,
		"cancellations 2024-1-17":  calendar.KindInvalidDate,
		"delays 2024-01-11":        calendar.KindShapeMismatch,
		"delays 2024-01-12":        calendar.KindShapeMismatch,
		"delays 2024-01-13":        calendar.KindWeekendViolation,
		"delays 2024-01-32":        calendar.KindInvalidDate,
	}, got)
}

func TestValidateAll_CollectsEverything(t *testing.T) {
	engine, ms := newEngine(t)
	seedClean(t, ms, 2025)
	require.NoError(t, ms.PutJSON(store.Key{CalendarType: calendar.Traditional, Year: 2025, Category: calendar.Holidays}, []string{"2024-12-25"}))
	require.NoError(t, ms.PutJSON(key(calendar.YearRound, calendar.Workdays), []string{"2024-01-06"}))
	require.NoError(t, ms.PutJSON(key(calendar.Traditional, calendar.Workdays), []string{"2024-01-07"}))
	require.NoError(t, ms.PutJSON(store.GlobalKey(calendar.Cancellations), []string{"2024-01-06"}))

	violations := engine.ValidateAll(context.Background())

	// seedClean writes 2024 dates, so every 2025 date document but the
	// replaced holidays is wrong-year as well
	var wrongYear2025, others []Violation
	for _, v := range violations {
		if v.Year == 2025 && v.Kind == calendar.KindWrongYear {
			wrongYear2025 = append(wrongYear2025, v)
			continue
		}
		others = append(others, v)
	}
	assert.NotEmpty(t, wrongYear2025)

	require.Len(t, others, 3)
	assert.Equal(t, calendar.Traditional, others[0].CalendarType)
	assert.Equal(t, "2024-01-07", others[0].Entry)
	assert.Equal(t, calendar.YearRound, others[1].CalendarType)
	assert.Equal(t, "2024-01-06", others[1].Entry)
	assert.Equal(t, calendar.Cancellations, others[2].Category)
}

func TestViolation_String(t *testing.T) {
	v := Violation{
		Kind:         calendar.KindWeekendViolation,
		CalendarType: calendar.Traditional,
		Year:         2024,
		Category:     calendar.Holidays,
		Path:         "data/traditional/2024/holidays.json",
		Entry:        "2024-12-28",
		Message:      "falls on a weekend",
	}
	assert.Equal(t,
		`[WeekendViolation] traditional 2024 holidays "2024-12-28" falls on a weekend (data/traditional/2024/holidays.json)`,
		v.String())

	global := Violation{Kind: calendar.KindInvalidDate, Category: calendar.Cancellations, Entry: "x", Message: "is not a valid YYYY-MM-DD date"}
	assert.Equal(t, `[InvalidDate] global cancellations "x" is not a valid YYYY-MM-DD date`, global.String())
}
