package console

import (
	"strconv"
	"time"
)

var durationUnits = []struct {
	name string
	size time.Duration
}{
	{"h", time.Hour},
	{"min", time.Minute},
	{"s", time.Second},
	{"ms", time.Millisecond},
	{"μs", time.Microsecond},
	{"ns", time.Nanosecond},
}

// FormatDuration renders d in the largest unit that keeps the value at or
// above one, with at most three significant digits: "345 ms", "1.23 s",
// "2.5 min".
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "0 ns"
	}
	for _, u := range durationUnits {
		if d >= u.size {
			v := float64(d) / float64(u.size)
			return strconv.FormatFloat(roundSignificant(v, 3), 'f', -1, 64) + " " + u.name
		}
	}
	return "0 ns"
}

func roundSignificant(v float64, digits int) float64 {
	s := strconv.FormatFloat(v, 'g', digits, 64)
	r, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return v
	}
	return r
}
