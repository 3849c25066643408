package recurrence

import "time"

const secondsPerDay = 24 * 60 * 60

// dayNumber returns the civil day of t, in t's own location, as a count of
// days since 1970-01-01. Two instants share a day number iff they fall on the
// same calendar day.
func dayNumber(t time.Time) int {
	y, m, d := t.Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / secondsPerDay)
}

// civilDate turns a day number back into year, month and day.
func civilDate(n int) (int, time.Month, int) {
	return time.Unix(int64(n)*secondsPerDay, 0).UTC().Date()
}

// weekStart is the day number of the Sunday opening t's week.
func weekStart(t time.Time) int {
	return dayNumber(t) - int(t.Weekday())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func clampDay(year int, month time.Month, day int) int {
	if last := daysIn(year, month); day > last {
		return last
	}
	return day
}

// at builds a date on the given civil day carrying ref's time of day and location.
func at(year int, month time.Month, day int, ref time.Time) time.Time {
	return time.Date(year, month, day, ref.Hour(), ref.Minute(), ref.Second(), ref.Nanosecond(), ref.Location())
}

func addMonths(year int, month time.Month, n int) (int, time.Month) {
	total := year*12 + int(month-1) + n
	return floorDiv(total, 12), time.Month(mod(total, 12) + 1)
}

func monthsBetween(from, to time.Time) int {
	return (to.Year()-from.Year())*12 + int(to.Month()-from.Month())
}

// nthWeekdayDay returns the day of month holding the nth weekday wd, with
// nth == -1 meaning the last one. ok is false when the month has no such day.
func nthWeekdayDay(year int, month time.Month, nth int, wd time.Weekday) (int, bool) {
	last := daysIn(year, month)
	if nth == -1 {
		lastWd := time.Date(year, month, last, 0, 0, 0, 0, time.UTC).Weekday()
		return last - mod(int(lastWd)-int(wd), 7), true
	}
	firstWd := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Weekday()
	day := 1 + mod(int(wd)-int(firstWd), 7) + (nth-1)*7
	if day > last {
		return 0, false
	}
	return day, true
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	return dayNumber(a.In(loc)) == dayNumber(b.In(loc))
}

// OnDay returns the instant on date's calendar day (read in ref's location)
// that carries ref's time of day.
func OnDay(date, ref time.Time) time.Time {
	y, m, d := date.In(ref.Location()).Date()
	return at(y, m, d, ref)
}
