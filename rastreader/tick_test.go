package rastreader

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestTickSnap(t *testing.T) {
	tests := []struct {
		name string
		tick Tick
		in   string
		want string
	}{
		{"quarter hour", Tick{1, 1, 1, 1, 15, 60}, "2017-06-12T10:37:45Z", "2017-06-12T10:30:00Z"},
		{"quarter hour boundary", Tick{1, 1, 1, 1, 15, 60}, "2017-06-12T10:45:00Z", "2017-06-12T10:45:00Z"},
		{"identity tick drops nanoseconds", Tick{1, 1, 1, 1, 1, 1}, "2017-06-12T10:37:45.123Z", "2017-06-12T10:37:45Z"},
		{"six hours", Tick{1, 1, 1, 6, 60, 60}, "2020-02-29T13:59:59Z", "2020-02-29T12:00:00Z"},
		{"daily", Tick{1, 1, 1, 24, 60, 60}, "2020-02-29T23:59:59Z", "2020-02-29T00:00:00Z"},
		{"ten days", Tick{1, 1, 10, 24, 60, 60}, "2020-03-25T08:00:00Z", "2020-03-21T00:00:00Z"},
		{"ten days first bucket", Tick{1, 1, 10, 24, 60, 60}, "2020-03-01T08:00:00Z", "2020-03-01T00:00:00Z"},
		{"quarterly", Tick{1, 3, 31, 24, 60, 60}, "2020-05-20T08:00:00Z", "2020-04-01T00:00:00Z"},
		{"quarterly january", Tick{1, 3, 31, 24, 60, 60}, "2020-01-31T08:00:00Z", "2020-01-01T00:00:00Z"},
		{"decade", Tick{10, 12, 31, 24, 60, 60}, "2017-06-12T10:37:45Z", "2010-01-01T00:00:00Z"},
		{"keeps location", Tick{1, 1, 1, 1, 30, 60}, "2017-06-12T10:37:45+02:00", "2017-06-12T10:30:00+02:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.tick.Snap(date(tt.in))
			assert.True(t, date(tt.want).Equal(got), "got %s, want %s", got.Format(time.RFC3339), tt.want)
			_, offset := got.Zone()
			_, wantOffset := date(tt.in).Zone()
			assert.Equal(t, wantOffset, offset)
		})
	}
}

func TestTickSnapIdempotent(t *testing.T) {
	ticks := []Tick{
		{1, 1, 1, 1, 15, 60},
		{1, 1, 1, 1, 1, 1},
		{1, 1, 1, 3, 60, 60},
		{2, 3, 7, 5, 7, 11},
		{10, 12, 31, 24, 60, 60},
	}
	start := date("2019-11-28T17:03:29Z")

	for _, tick := range ticks {
		for i := 0; i < 500; i++ {
			in := start.Add(time.Duration(i) * 7919 * time.Minute)
			once := tick.Snap(in)
			assert.True(t, once.Equal(tick.Snap(once)), "tick %+v at %s", tick, in)
			assert.False(t, once.After(in), "tick %+v snapped %s forward to %s", tick, in, once)
		}
	}
}

func TestTickValidate(t *testing.T) {
	assert.NoError(t, Tick{1, 1, 1, 1, 15, 60}.Validate())
	assert.NoError(t, Tick{100, 12, 31, 24, 60, 60}.Validate())

	for _, tick := range []Tick{
		{},
		{0, 1, 1, 1, 1, 1},
		{1, 1, 1, 1, 1, 0},
		{1, -1, 1, 1, 1, 1},
		{1, 13, 1, 1, 1, 1},
		{1, 1, 32, 1, 1, 1},
		{1, 1, 1, 25, 1, 1},
		{1, 1, 1, 1, 61, 1},
		{1, 1, 1, 1, 1, 61},
	} {
		assert.ErrorIs(t, tick.Validate(), ErrConfiguration, "tick %+v", tick)
	}
}
