package predict

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Harshitk-cp/collective/internal/domain"
	"github.com/Harshitk-cp/collective/internal/knowledge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedTwoWeeks records the 14 days before testNow: 100 covers a day, 200 on Saturdays.
func seedTwoWeeks(t *testing.T, ledger *knowledge.OperationsLedger) {
	t.Helper()
	today := domain.Day(testNow)
	for i := 1; i <= 14; i++ {
		d := today.AddDate(0, 0, -i)
		covers := 100
		if d.Weekday() == time.Saturday {
			covers = 200
		}
		require.NoError(t, ledger.RecordDay(context.Background(), domain.DailyOperations{
			Date:         d,
			Covers:       covers,
			Revenue:      float64(covers) * 10,
			HourlyCovers: map[int]int{12: 40, 19: 60},
			ItemCounts:   map[string]int{"burger": 30, "salad": 10},
		}))
	}
}

func TestForecastDemand_NoHistory(t *testing.T) {
	e := newTestEngine(knowledge.NewSharedMemory(), knowledge.NewOperationsLedger())

	f, err := e.ForecastDemand(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, f.Confidence)
	assert.Len(t, f.Daily, defaultForecastDays)
	for _, d := range f.Daily {
		assert.Zero(t, d.ExpectedCovers)
	}
	assert.Empty(t, f.Items)
}

func TestForecastDemand_WeekdayMeans(t *testing.T) {
	ledger := knowledge.NewOperationsLedger()
	seedTwoWeeks(t, ledger)
	e := newTestEngine(knowledge.NewSharedMemory(), ledger)

	f, err := e.ForecastDemand(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, f.Daily, 7)
	assert.InDelta(t, 0.9, f.Confidence, 1e-9)
	assert.InDelta(t, 1.0, f.Trend, 1e-9)

	for _, d := range f.Daily {
		want := 100.0
		if d.Date.Weekday() == time.Saturday {
			want = 200
		}
		assert.InDelta(t, want, d.ExpectedCovers, 1e-9, d.Weekday)
		assert.Equal(t, 19, d.PeakHour)
	}

	require.Contains(t, f.Items, "burger")
	assert.InDelta(t, 0.75, f.Items["burger"].Share, 1e-9)
	assert.InDelta(t, 0.25, f.Items["salad"].Share, 1e-9)
}

func TestOptimizeStaffing(t *testing.T) {
	e := newTestEngine(knowledge.NewSharedMemory(), knowledge.NewOperationsLedger())
	forecast := &DemandForecast{Daily: []DailyDemand{
		{Date: testNow.AddDate(0, 0, 1), ExpectedCovers: 40},
		{Date: testNow.AddDate(0, 0, 2), ExpectedCovers: 40},
	}}
	staff := []StaffMember{
		{ID: "a", Skills: []string{"chef"}, HourlyRate: 30, Capacity: 20},
		{ID: "b", Skills: []string{"server"}, HourlyRate: 15, Capacity: 20},
		{ID: "c", Skills: []string{"server"}, HourlyRate: 20, Capacity: 25},
	}

	plan, err := e.OptimizeStaffing(context.Background(), StaffingRequest{
		Staff:          staff,
		RequiredSkills: []string{"chef"},
		Forecast:       forecast,
	})
	require.NoError(t, err)
	require.Len(t, plan.Schedule, 2)
	for _, day := range plan.Schedule {
		require.Len(t, day.Assignments, 2)
		assert.Equal(t, "a", day.Assignments[0].StaffID)
		assert.Equal(t, "b", day.Assignments[1].StaffID)
		assert.InDelta(t, 360, day.Cost, 1e-9)
		assert.InDelta(t, 1.0, day.ServiceLevel, 1e-9)
	}
	assert.InDelta(t, 720, plan.Cost, 1e-9)
	assert.Contains(t, plan.Recommendations, "c is not scheduled in this horizon")
}

func TestOptimizeStaffing_RespectsMaxHours(t *testing.T) {
	e := newTestEngine(knowledge.NewSharedMemory(), knowledge.NewOperationsLedger())
	forecast := &DemandForecast{Daily: []DailyDemand{
		{Date: testNow.AddDate(0, 0, 1), ExpectedCovers: 40},
		{Date: testNow.AddDate(0, 0, 2), ExpectedCovers: 40},
	}}
	staff := []StaffMember{
		{ID: "a", Skills: []string{"chef"}, HourlyRate: 30, Capacity: 20, MaxHours: 8},
		{ID: "b", Skills: []string{"server"}, HourlyRate: 15, Capacity: 20},
		{ID: "c", Skills: []string{"server"}, HourlyRate: 20, Capacity: 25},
	}

	plan, err := e.OptimizeStaffing(context.Background(), StaffingRequest{
		Staff:          staff,
		RequiredSkills: []string{"chef"},
		Forecast:       forecast,
	})
	require.NoError(t, err)

	second := plan.Schedule[1]
	assert.Equal(t, []string{"chef"}, second.UnmetSkills)
	assert.InDelta(t, 280, second.Cost, 1e-9)
	assert.InDelta(t, 1.0, second.ServiceLevel, 1e-9)
	assert.Contains(t, plan.Recommendations, `no available staff covers "chef" on some days`)
}

func TestOptimizeStaffing_InvalidRequest(t *testing.T) {
	e := newTestEngine(knowledge.NewSharedMemory(), knowledge.NewOperationsLedger())

	_, err := e.OptimizeStaffing(context.Background(), StaffingRequest{})
	assert.True(t, errors.Is(err, ErrInvalidStaffing))

	_, err = e.OptimizeStaffing(context.Background(), StaffingRequest{Staff: []StaffMember{{ID: "x"}, {ID: "x"}}})
	assert.True(t, errors.Is(err, ErrInvalidStaffing))
}

func TestPredictRevenue(t *testing.T) {
	ledger := knowledge.NewOperationsLedger()
	today := domain.Day(testNow)
	for i := 1; i <= 28; i++ {
		require.NoError(t, ledger.RecordDay(context.Background(), domain.DailyOperations{
			Date:    today.AddDate(0, 0, -i),
			Covers:  100,
			Revenue: 1000,
		}))
	}
	require.NoError(t, ledger.AddBooking(context.Background(), &domain.Booking{
		Date: today.AddDate(0, 0, 3), PartySize: 6, ExpectedRevenue: 500,
	}))
	require.NoError(t, ledger.AddBooking(context.Background(), &domain.Booking{
		Kind: domain.BookingEvent, Date: today.AddDate(0, 0, 10), PartySize: 40, ExpectedRevenue: 2000,
	}))
	e := newTestEngine(knowledge.NewSharedMemory(), ledger)

	f, err := e.PredictRevenue(context.Background(), 30)
	require.NoError(t, err)

	// June 6 to July 5 both carry a 1.1 seasonality.
	assert.InDelta(t, 30000, f.Breakdown.Baseline, 0.01)
	assert.InDelta(t, 3000, f.Breakdown.Seasonal, 0.01)
	assert.InDelta(t, 500, f.Breakdown.Bookings, 0.01)
	assert.InDelta(t, 2000, f.Breakdown.Events, 0.01)
	assert.InDelta(t, 35500, f.Expected, 0.01)
	assert.InDelta(t, 42600, f.BestCase, 0.01)
	assert.InDelta(t, 28400, f.WorstCase, 0.01)
	assert.InDelta(t, 0.9, f.Confidence, 1e-9)
	assert.Contains(t, f.Opportunities, "reservation volume is light; promote advance booking")
}

func TestPredictRevenue_NoHistory(t *testing.T) {
	e := newTestEngine(knowledge.NewSharedMemory(), knowledge.NewOperationsLedger())

	f, err := e.PredictRevenue(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, defaultRevenueHorizon, f.HorizonDays)
	assert.Zero(t, f.Expected)
	assert.Zero(t, f.Confidence)
	assert.NotEmpty(t, f.Opportunities)
}
