package calendar

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExceptionsPerCalendarType(t *testing.T) {
	names := func(specs []CategorySpec) []Category {
		var out []Category
		for _, s := range specs {
			out = append(out, s.Category)
		}
		return out
	}

	assert.Equal(t, []Category{Holidays, Vacations, Workdays}, names(Traditional.Exceptions()))
	assert.Equal(t, []Category{Holidays, TrackOut, Vacations, Workdays}, names(Modified.Exceptions()))
	assert.Equal(t, []Category{TrackOut, Vacations, Workdays}, names(YearRound.Exceptions()))
	assert.Empty(t, CalendarType("bogus").Exceptions())
}

func TestExceptionsReturnsCopy(t *testing.T) {
	specs := Traditional.Exceptions()
	specs[0].Category = Specials

	assert.Equal(t, Holidays, Traditional.Exceptions()[0].Category)
}

func TestTrackOutShape(t *testing.T) {
	for _, spec := range Modified.Exceptions() {
		assert.Equal(t, ShapeFlat, spec.Shape, "modified %s", spec.Category)
	}
	for _, spec := range YearRound.Exceptions() {
		if spec.Category == TrackOut {
			assert.Equal(t, ShapeTracked, spec.Shape)
			assert.True(t, spec.AllowWeekends)
		}
	}
}

func TestMakeupSpec(t *testing.T) {
	assert.Equal(t, ShapeFlat, Traditional.MakeupSpec().Shape)
	assert.Equal(t, ShapeTracked, YearRound.MakeupSpec().Shape)
	assert.True(t, Modified.MakeupSpec().AllowWeekends)
}

func TestParseCalendarType(t *testing.T) {
	ct, err := ParseCalendarType("yearround")
	require.NoError(t, err)
	assert.Equal(t, YearRound, ct)

	_, err = ParseCalendarType("semester")
	assert.ErrorIs(t, err, ErrUnknownCalendarType)
}

func TestDatesForTrack(t *testing.T) {
	flat := NewDateList("2024-07-04")
	assert.Equal(t, []string{"2024-07-04"}, DatesForTrack(flat, Track3))
	assert.Equal(t, ShapeFlat, ShapeOf(flat))

	tracked := NewTrackedDateList(TrackedDateList{
		Track1: {"2024-07-08"},
		Track3: {"2024-08-05", "2024-08-06"},
	})
	assert.Equal(t, ShapeTracked, ShapeOf(tracked))
	assert.Equal(t, []string{"2024-07-08"}, DatesForTrack(tracked, Track1))
	assert.Empty(t, DatesForTrack(tracked, Track2))
}

func TestDateSet(t *testing.T) {
	set := DateSet{}
	set.Add("2024-12-25", "2024-12-26")

	assert.True(t, set.Has("2024-12-25"))
	assert.False(t, set.Has("2024-12-27"))
}

func TestSpecialTags(t *testing.T) {
	assert.True(t, ValidSpecialTag("REPORT_CARD"))
	assert.False(t, ValidSpecialTag("report_card"))
	assert.Equal(t, "End of Nine Weeks", EOQ.DisplayName())
	assert.Equal(t, "PICNIC", SpecialTag("PICNIC").DisplayName())
}

func TestDataUnavailableError(t *testing.T) {
	err := &DataUnavailableError{
		CalendarType: Traditional,
		Year:         2024,
		Category:     Holidays,
		Path:         "data/traditional/2024/holidays.json",
		Err:          os.ErrNotExist,
	}

	assert.True(t, errors.Is(err, ErrDataUnavailable))
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Contains(t, err.Error(), "traditional_2024")
	assert.Contains(t, err.Error(), "holidays")

	global := &DataUnavailableError{Category: Cancellations, Path: "data/cancellations.json", Err: os.ErrNotExist}
	assert.Contains(t, global.Error(), "global")
}
