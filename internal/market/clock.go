package market

import "time"

// DefaultCutoffHourUTC is the session open/close boundary in UTC. The FX
// session closes Friday evening and reopens Sunday evening around this hour.
const DefaultCutoffHourUTC = 22

// Clock supplies the current time so closure checks stay testable.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Calendar answers session-closure questions for the FX market.
type Calendar struct {
	CutoffHourUTC int
}

// NewCalendar builds a Calendar, falling back to the default cutoff hour when
// the configured value is out of range.
func NewCalendar(cutoffHour int) Calendar {
	if cutoffHour < 0 || cutoffHour > 23 {
		cutoffHour = DefaultCutoffHourUTC
	}
	return Calendar{CutoffHourUTC: cutoffHour}
}

// IsClosed reports whether the market is closed at the given instant.
// The market is closed all of Saturday, on Friday after the cutoff hour,
// and on Sunday before the cutoff hour (all in UTC).
func (c Calendar) IsClosed(t time.Time) bool {
	t = t.UTC()
	switch t.Weekday() {
	case time.Saturday:
		return true
	case time.Friday:
		return t.Hour() > c.CutoffHourUTC
	case time.Sunday:
		return t.Hour() < c.CutoffHourUTC
	default:
		return false
	}
}

// IsTradingDay reports whether any part of the given calendar day has an open
// session. Saturday is the only day with no session at all.
func (c Calendar) IsTradingDay(day time.Time) bool {
	return day.UTC().Weekday() != time.Saturday
}

// SameDay compares two instants by civil date only. Sub-day precision is
// deliberately ignored: comparing against a live timestamp with time.Equal
// would almost never match.
func SameDay(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Midnight truncates an instant to UTC midnight of its civil date.
func Midnight(t time.Time) time.Time {
	t = t.UTC()
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
