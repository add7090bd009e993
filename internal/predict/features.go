package predict

import (
	"math"
	"strings"
	"time"
)

type Daypart string

const (
	DaypartBreakfast Daypart = "breakfast"
	DaypartLunch     Daypart = "lunch"
	DaypartAfternoon Daypart = "afternoon"
	DaypartDinner    Daypart = "dinner"
	DaypartLate      Daypart = "late"
)

func DaypartOf(t time.Time) Daypart {
	switch h := t.Hour(); {
	case h >= 6 && h < 11:
		return DaypartBreakfast
	case h >= 11 && h < 15:
		return DaypartLunch
	case h >= 15 && h < 17:
		return DaypartAfternoon
	case h >= 17 && h < 22:
		return DaypartDinner
	default:
		return DaypartLate
	}
}

func SeasonOf(t time.Time) string {
	switch t.Month() {
	case time.December, time.January, time.February:
		return "winter"
	case time.March, time.April, time.May:
		return "spring"
	case time.June, time.July, time.August:
		return "summer"
	default:
		return "autumn"
	}
}

// monthSeasonality scales expected revenue by month.
var monthSeasonality = map[time.Month]float64{
	time.January:   0.85,
	time.February:  0.90,
	time.March:     0.95,
	time.April:     1.00,
	time.May:       1.05,
	time.June:      1.10,
	time.July:      1.10,
	time.August:    1.05,
	time.September: 1.00,
	time.October:   1.00,
	time.November:  1.05,
	time.December:  1.20,
}

func Seasonality(t time.Time) float64 {
	if m, ok := monthSeasonality[t.Month()]; ok {
		return m
	}
	return 1
}

// historyScale ramps confidence from 0 to 1 as history grows to full samples.
func historyScale(n, full int) float64 {
	if full <= 0 {
		return 1
	}
	return math.Min(1, float64(n)/float64(full))
}

// recencyWeight gives the i-th of n ordered observations (oldest first) an
// exponentially decaying weight, the newest weighing 1.
func recencyWeight(i, n int, decay float64) float64 {
	return math.Pow(decay, float64(n-1-i))
}

func contextString(ctx map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := ctx[k].(string); ok && v != "" {
			return strings.ToLower(v)
		}
	}
	return ""
}

func contextStrings(ctx map[string]any, keys ...string) []string {
	var out []string
	for _, k := range keys {
		switch v := ctx[k].(type) {
		case string:
			for _, p := range strings.Split(v, ",") {
				if p = strings.TrimSpace(strings.ToLower(p)); p != "" {
					out = append(out, p)
				}
			}
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok && s != "" {
					out = append(out, strings.ToLower(s))
				}
			}
		case []string:
			for _, s := range v {
				if s != "" {
					out = append(out, strings.ToLower(s))
				}
			}
		}
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sq float64
	for _, v := range values {
		sq += (v - m) * (v - m)
	}
	return math.Sqrt(sq / float64(len(values)-1))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
