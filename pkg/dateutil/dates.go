package dateutil

import "time"

// IsValidDate reports whether s is a calendar date in the YYYY-MM-DD grammar
func IsValidDate(s string, loc *time.Location) bool {
	_, err := ParseDay(s, loc)
	return err == nil
}

// IsWeekendDate reports whether s is a valid date falling on Saturday or Sunday.
// Invalid dates are never weekend dates.
func IsWeekendDate(s string, loc *time.Location) bool {
	t, err := ParseDay(s, loc)
	if err != nil {
		return false
	}
	return IsWeekend(t)
}

// IsSameYear reports whether s is a valid date in the given year
func IsSameYear(year int, s string, loc *time.Location) bool {
	t, err := ParseDay(s, loc)
	if err != nil {
		return false
	}
	return t.Year() == year
}

// FilterInvalid returns the entries of dates that are not valid dates, in order
func FilterInvalid(dates []string, loc *time.Location) []string {
	return filter(dates, func(s string) bool {
		return !IsValidDate(s, loc)
	})
}

// FilterWeekend returns the entries of dates that fall on a weekend, in order
func FilterWeekend(dates []string, loc *time.Location) []string {
	return filter(dates, func(s string) bool {
		return IsWeekendDate(s, loc)
	})
}

// FilterWrongYear returns the valid entries of dates outside year, in order.
// Invalid entries are left to FilterInvalid.
func FilterWrongYear(year int, dates []string, loc *time.Location) []string {
	return filter(dates, func(s string) bool {
		return IsValidDate(s, loc) && !IsSameYear(year, s, loc)
	})
}

func filter(dates []string, keep func(string) bool) []string {
	var out []string
	for _, d := range dates {
		if keep(d) {
			out = append(out, d)
		}
	}
	return out
}
