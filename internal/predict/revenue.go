package predict

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Harshitk-cp/collective/internal/domain"
)

const (
	revenueWindowDays     = 56
	defaultRevenueHorizon = 30
	maxRevenueHorizon     = 365
	revenueSpread         = 0.2
)

type RevenueBreakdown struct {
	Baseline float64 `json:"baseline"`
	Bookings float64 `json:"bookings"`
	Events   float64 `json:"events"`
	Seasonal float64 `json:"seasonal"`
}

type RevenueForecast struct {
	HorizonDays   int              `json:"horizon_days"`
	Expected      float64          `json:"expected"`
	BestCase      float64          `json:"best_case"`
	WorstCase     float64          `json:"worst_case"`
	Confidence    float64          `json:"confidence"`
	Breakdown     RevenueBreakdown `json:"breakdown"`
	Opportunities []string         `json:"opportunities"`
}

// PredictRevenue projects revenue over the horizon from the mean daily revenue
// of the last eight weeks, scaled by month seasonality, plus booked
// reservations and events that fall inside the horizon.
func (e *Engine) PredictRevenue(ctx context.Context, horizonDays int) (*RevenueForecast, error) {
	defer observe(string(domain.PredictionRevenue))()

	if horizonDays <= 0 {
		horizonDays = defaultRevenueHorizon
	}
	horizonDays = min(horizonDays, maxRevenueHorizon)
	today := domain.Day(e.now())
	from := today.AddDate(0, 0, 1)
	to := from.AddDate(0, 0, horizonDays)

	history, err := e.ops.DailyHistory(ctx, today.AddDate(0, 0, -revenueWindowDays))
	if err != nil {
		return nil, fmt.Errorf("load daily history: %w", err)
	}
	bookings, err := e.ops.UpcomingBookings(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}
	return projectRevenue(history, bookings, from, horizonDays), nil
}

func projectRevenue(history []domain.DailyOperations, bookings []domain.Booking, from time.Time, horizonDays int) *RevenueForecast {
	out := &RevenueForecast{HorizonDays: horizonDays, Opportunities: []string{}}

	revenues := make([]float64, 0, len(history))
	byWeekday := make(map[time.Weekday][]float64)
	for _, d := range history {
		revenues = append(revenues, d.Revenue)
		byWeekday[d.Date.Weekday()] = append(byWeekday[d.Date.Weekday()], d.Revenue)
	}
	daily := mean(revenues)

	var baseline, seasonal float64
	for i := 0; i < horizonDays; i++ {
		d := from.AddDate(0, 0, i)
		baseline += daily
		seasonal += daily * Seasonality(d)
	}
	out.Breakdown.Baseline = round2(baseline)
	out.Breakdown.Seasonal = round2(seasonal - baseline)

	for _, b := range bookings {
		switch b.Kind {
		case domain.BookingEvent:
			out.Breakdown.Events += b.ExpectedRevenue
		default:
			out.Breakdown.Bookings += b.ExpectedRevenue
		}
	}
	out.Breakdown.Bookings = round2(out.Breakdown.Bookings)
	out.Breakdown.Events = round2(out.Breakdown.Events)

	out.Expected = round2(seasonal + out.Breakdown.Bookings + out.Breakdown.Events)
	out.BestCase = round2(out.Expected * (1 + revenueSpread))
	out.WorstCase = round2(out.Expected * (1 - revenueSpread))
	if len(history) > 0 {
		out.Confidence = round2(math.Min(1, float64(len(history))/28) * 0.9)
	}

	out.Opportunities = revenueOpportunities(byWeekday, daily, bookings, horizonDays)
	return out
}

func revenueOpportunities(byWeekday map[time.Weekday][]float64, daily float64, bookings []domain.Booking, horizonDays int) []string {
	var out []string
	if daily == 0 {
		return []string{"record daily operations to unlock revenue projections"}
	}
	slowest, slowestMean := time.Sunday, math.Inf(1)
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		v, ok := byWeekday[wd]
		if !ok {
			continue
		}
		if m := mean(v); m < slowestMean {
			slowest, slowestMean = wd, m
		}
	}
	if !math.IsInf(slowestMean, 1) && slowestMean < daily*0.8 {
		out = append(out, fmt.Sprintf("%s revenue runs %.0f%% below average; consider a targeted promotion",
			slowest, (1-slowestMean/daily)*100))
	}

	events := 0
	for _, b := range bookings {
		if b.Kind == domain.BookingEvent {
			events++
		}
	}
	if events == 0 && horizonDays >= 14 {
		out = append(out, "no private events booked in the horizon; reach out to past event customers")
	}
	if len(bookings) > 0 && len(bookings) < horizonDays/2 {
		out = append(out, "reservation volume is light; promote advance booking")
	}
	if out == nil {
		out = []string{}
	}
	return out
}
