package rastreader

import (
	"time"

	"github.com/rotisserie/eris"
)

// Tick is the time quantization of a layer. Each field is the bucket width
// of the matching calendar component.
type Tick struct {
	Year   int `json:"year"`
	Month  int `json:"month"`
	Day    int `json:"day"`
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
	Second int `json:"second"`
}

// Validate rejects bucket widths that are zero, negative or larger than the
// range of their component. Widths equal to the range (hour 24, minute 60,
// second 60) collapse that component to zero.
func (t Tick) Validate() error {
	fields := []struct {
		name string
		v    int
		max  int
	}{
		{"year", t.Year, 0},
		{"month", t.Month, 12},
		{"day", t.Day, 31},
		{"hour", t.Hour, 24},
		{"minute", t.Minute, 60},
		{"second", t.Second, 60},
	}
	for _, f := range fields {
		if f.v < 1 {
			return eris.Wrapf(ErrConfiguration, "tick %s must be positive, got %d", f.name, f.v)
		}
		if f.max > 0 && f.v > f.max {
			return eris.Wrapf(ErrConfiguration, "tick %s must be at most %d, got %d", f.name, f.max, f.v)
		}
	}
	return nil
}

// SnapDate returns midnight of the first day of the date bucket holding d.
// Month and day are 1-based, so they are quantized relative to 1: with a
// 3 month tick, May snaps to April, never to a month 0.
func (t Tick) SnapDate(d time.Time) time.Time {
	y := floorDiv(d.Year(), t.Year) * t.Year
	m := floorDiv(int(d.Month())-1, t.Month)*t.Month + 1
	day := floorDiv(d.Day()-1, t.Day)*t.Day + 1
	return time.Date(y, time.Month(m), day, 0, 0, 0, 0, d.Location())
}

// SnapTime returns the start of the time of day bucket holding d as an
// offset from midnight.
func (t Tick) SnapTime(d time.Time) time.Duration {
	h := floorDiv(d.Hour(), t.Hour) * t.Hour
	m := floorDiv(d.Minute(), t.Minute) * t.Minute
	s := floorDiv(d.Second(), t.Second) * t.Second
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second
}

// Snap floors d to the start of its bucket. Date and time of day are
// quantized independently and recombined in d's location. The tick must be
// valid.
func (t Tick) Snap(d time.Time) time.Time {
	date := t.SnapDate(d)
	hms := t.SnapTime(d)
	return time.Date(date.Year(), date.Month(), date.Day(),
		int(hms/time.Hour), int(hms%time.Hour/time.Minute), int(hms%time.Minute/time.Second), 0, d.Location())
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
