package predict

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/Harshitk-cp/collective/internal/domain"
)

const (
	demandWindowDays    = 28
	trendWindowDays     = 7
	defaultPeakHour     = 19
	topForecastItems    = 5
	maxForecastDays     = 90
	defaultForecastDays = 7
)

type DailyDemand struct {
	Date           time.Time `json:"date"`
	Weekday        string    `json:"weekday"`
	ExpectedCovers float64   `json:"expected_covers"`
	PeakHour       int       `json:"peak_hour"`
	PeakCovers     float64   `json:"peak_covers"`
}

type ItemDemand struct {
	Share    float64 `json:"share"`
	Expected float64 `json:"expected"`
}

type DemandForecast struct {
	Daily      []DailyDemand         `json:"daily"`
	Items      map[string]ItemDemand `json:"items"`
	Trend      float64               `json:"trend"`
	Confidence float64               `json:"confidence"`
	Reasoning  []string              `json:"reasoning"`
}

// ForecastDemand projects covers per day from weekday means over the last
// four weeks, scaled by the recent trend.
func (e *Engine) ForecastDemand(ctx context.Context, days int) (*DemandForecast, error) {
	defer observe(string(domain.PredictionDemand))()

	if days <= 0 {
		days = defaultForecastDays
	}
	days = min(days, maxForecastDays)
	now := e.now()
	today := domain.Day(now)

	history, err := e.ops.DailyHistory(ctx, today.AddDate(0, 0, -demandWindowDays))
	if err != nil {
		return nil, fmt.Errorf("load daily history: %w", err)
	}
	return forecastFromHistory(history, today, days), nil
}

func forecastFromHistory(history []domain.DailyOperations, today time.Time, days int) *DemandForecast {
	out := &DemandForecast{
		Daily: make([]DailyDemand, 0, days),
		Items: map[string]ItemDemand{},
		Trend: 1,
	}
	if len(history) == 0 {
		for i := 1; i <= days; i++ {
			d := today.AddDate(0, 0, i)
			out.Daily = append(out.Daily, DailyDemand{Date: d, Weekday: d.Weekday().String(), PeakHour: defaultPeakHour})
		}
		out.Reasoning = []string{"no operations history"}
		return out
	}

	var all []float64
	byWeekday := make(map[time.Weekday][]float64)
	for _, d := range history {
		c := float64(d.Covers)
		all = append(all, c)
		byWeekday[d.Date.Weekday()] = append(byWeekday[d.Date.Weekday()], c)
	}
	overall := mean(all)

	if len(all) >= trendWindowDays && overall > 0 {
		recent := mean(all[len(all)-trendWindowDays:])
		out.Trend = round2(math.Max(0.8, math.Min(1.2, recent/overall)))
	}

	peakHour, peakShare := peakOf(history)

	for i := 1; i <= days; i++ {
		d := today.AddDate(0, 0, i)
		base := overall
		if v, ok := byWeekday[d.Weekday()]; ok {
			base = mean(v)
		}
		expected := round2(base * out.Trend)
		out.Daily = append(out.Daily, DailyDemand{
			Date:           d,
			Weekday:        d.Weekday().String(),
			ExpectedCovers: expected,
			PeakHour:       peakHour,
			PeakCovers:     round2(expected * peakShare),
		})
	}

	var horizonCovers float64
	for _, d := range out.Daily {
		horizonCovers += d.ExpectedCovers
	}
	out.Items = itemShares(history, horizonCovers, overall*float64(len(history)))

	out.Confidence = round2(math.Min(1, float64(len(history))/14) * 0.9)
	out.Reasoning = []string{
		fmt.Sprintf("weekday averages over %d days of history", len(history)),
		fmt.Sprintf("trend factor %.2f", out.Trend),
	}
	return out
}

// peakOf returns the busiest hour and its share of hourly covers.
func peakOf(history []domain.DailyOperations) (int, float64) {
	var hours [24]float64
	var total float64
	for _, d := range history {
		for h, c := range d.HourlyCovers {
			if h >= 0 && h < 24 {
				hours[h] += float64(c)
				total += float64(c)
			}
		}
	}
	if total == 0 {
		return defaultPeakHour, 0
	}
	peak := defaultPeakHour
	for h := range hours {
		if hours[h] > hours[peak] {
			peak = h
		}
	}
	return peak, hours[peak] / total
}

// itemShares projects the most ordered items onto the forecast horizon using
// their historical items-per-cover rate.
func itemShares(history []domain.DailyOperations, horizonCovers, historyCovers float64) map[string]ItemDemand {
	totals := make(map[string]float64)
	var sum float64
	for _, d := range history {
		for item, n := range d.ItemCounts {
			totals[item] += float64(n)
			sum += float64(n)
		}
	}
	if sum == 0 {
		return map[string]ItemDemand{}
	}
	names := make([]string, 0, len(totals))
	for item := range totals {
		names = append(names, item)
	}
	sort.Slice(names, func(i, j int) bool {
		if totals[names[i]] != totals[names[j]] {
			return totals[names[i]] > totals[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) > topForecastItems {
		names = names[:topForecastItems]
	}

	out := make(map[string]ItemDemand, len(names))
	for _, item := range names {
		d := ItemDemand{Share: round2(totals[item] / sum)}
		if historyCovers > 0 {
			d.Expected = round2(totals[item] / historyCovers * horizonCovers)
		}
		out[item] = d
	}
	return out
}
