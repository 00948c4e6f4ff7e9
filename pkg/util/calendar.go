package util

import "time"

// IsTradingDay reports whether NYSE holds a full or partial session on d.
func IsTradingDay(d time.Time) bool {
	d = Day(d)
	if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return !isHoliday(d) && !closures[FormatDate(d)]
}

// closures lists unscheduled full-day NYSE closures that no holiday rule produces.
// New ones are announced ad hoc and must be added here.
var closures = map[string]bool{
	"1985-09-27": true, // Hurricane Gloria
	"1994-04-27": true, // President Nixon
	"2001-09-11": true, // September 11
	"2001-09-12": true,
	"2001-09-13": true,
	"2001-09-14": true,
	"2004-06-11": true, // President Reagan
	"2007-01-02": true, // President Ford
	"2012-10-29": true, // Hurricane Sandy
	"2012-10-30": true,
	"2018-12-05": true, // President G.H.W. Bush
	"2025-01-09": true, // President Carter
}

// NextTradingDay returns d itself when it is a trading day, else the next one.
func NextTradingDay(d time.Time) time.Time {
	d = Day(d)
	for !IsTradingDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func isHoliday(d time.Time) bool {
	for _, h := range holidays(d.Year()) {
		if h.Equal(d) {
			return true
		}
	}
	return false
}

func holidays(year int) []time.Time {
	date := func(m time.Month, day int) time.Time { return time.Date(year, m, day, 0, 0, 0, 0, time.UTC) }

	out := []time.Time{
		newYear(year),
		nthWeekday(year, time.January, time.Monday, 3),
		nthWeekday(year, time.February, time.Monday, 3),
		easter(year).AddDate(0, 0, -2),
		lastWeekday(year, time.May, time.Monday),
		observed(date(time.July, 4)),
		nthWeekday(year, time.September, time.Monday, 1),
		nthWeekday(year, time.November, time.Thursday, 4),
		observed(date(time.December, 25)),
	}
	if year >= 2022 {
		out = append(out, observed(date(time.June, 19)))
	}
	return out
}

func newYear(year int) time.Time {
	d := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	if d.Weekday() == time.Sunday {
		return d.AddDate(0, 0, 1)
	}
	// Saturday: NYSE does not close the preceding Friday.
	return d
}

// observed moves Saturday holidays to Friday and Sunday holidays to Monday.
func observed(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, -1)
	case time.Sunday:
		return d.AddDate(0, 0, 1)
	}
	return d
}

func nthWeekday(year int, m time.Month, wd time.Weekday, n int) time.Time {
	d := time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
	for d.Weekday() != wd {
		d = d.AddDate(0, 0, 1)
	}
	return d.AddDate(0, 0, 7*(n-1))
}

func lastWeekday(year int, m time.Month, wd time.Weekday) time.Time {
	d := time.Date(year, m+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	for d.Weekday() != wd {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// easter computes Western Easter Sunday (anonymous Gregorian algorithm).
func easter(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
