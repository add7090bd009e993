package knowledge

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/Harshitk-cp/collective/internal/domain"
	"github.com/google/uuid"
)

// OperationsLedger is the in-memory operations history: daily aggregates,
// metric samples and upcoming bookings.
type OperationsLedger struct {
	mu       sync.RWMutex
	days     map[time.Time]domain.DailyOperations
	metrics  map[string][]domain.MetricSample
	bookings []domain.Booking
}

func NewOperationsLedger() *OperationsLedger {
	return &OperationsLedger{
		days:    make(map[time.Time]domain.DailyOperations),
		metrics: make(map[string][]domain.MetricSample),
	}
}

// RecordDay stores the aggregate for a day, replacing any earlier aggregate for the same date.
func (l *OperationsLedger) RecordDay(_ context.Context, day domain.DailyOperations) error {
	day.Date = domain.Day(day.Date)
	day.HourlyCovers = maps.Clone(day.HourlyCovers)
	day.ItemCounts = maps.Clone(day.ItemCounts)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.days[day.Date] = day
	return nil
}

func (l *OperationsLedger) RecordMetric(_ context.Context, sample domain.MetricSample) error {
	if sample.At.IsZero() {
		sample.At = time.Now().UTC()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	series := append(l.metrics[sample.Name], sample)
	sort.SliceStable(series, func(i, j int) bool { return series[i].At.Before(series[j].At) })
	l.metrics[sample.Name] = series
	return nil
}

func (l *OperationsLedger) AddBooking(_ context.Context, b *domain.Booking) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.Kind == "" {
		b.Kind = domain.BookingReservation
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bookings = append(l.bookings, *b)
	return nil
}

func (l *OperationsLedger) DailyHistory(_ context.Context, since time.Time) ([]domain.DailyOperations, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []domain.DailyOperations
	for date, d := range l.days {
		if !date.Before(domain.Day(since)) {
			d.HourlyCovers = maps.Clone(d.HourlyCovers)
			d.ItemCounts = maps.Clone(d.ItemCounts)
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (l *OperationsLedger) MetricHistory(_ context.Context, name string, since time.Time) ([]domain.MetricSample, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []domain.MetricSample
	for _, s := range l.metrics[name] {
		if !s.At.Before(since) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (l *OperationsLedger) UpcomingBookings(_ context.Context, from, to time.Time) ([]domain.Booking, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []domain.Booking
	for _, b := range l.bookings {
		if !b.Date.Before(from) && b.Date.Before(to) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}
