package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Harshitk-cp/collective/internal/domain"
	"github.com/google/uuid"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

const (
	measurementDaily    = "daily_operations"
	measurementHourly   = "hourly_covers"
	measurementItems    = "item_counts"
	measurementMetrics  = "metrics"
	measurementBookings = "bookings"
)

type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// InfluxOperations keeps the operations history in InfluxDB. Daily aggregates
// are split across three measurements stamped at the day's midnight.
type InfluxOperations struct {
	client influxdb2.Client
	query  api.QueryAPI
	write  api.WriteAPIBlocking
	bucket string
}

func NewInfluxOperations(cfg InfluxConfig) (*InfluxOperations, error) {
	if cfg.URL == "" || cfg.Token == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("influxdb url, token, org and bucket are required")
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxOperations{
		client: client,
		query:  client.QueryAPI(cfg.Org),
		write:  client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		bucket: cfg.Bucket,
	}, nil
}

func (o *InfluxOperations) Close() {
	o.client.Close()
}

func (o *InfluxOperations) Ping(ctx context.Context) error {
	ok, err := o.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if !ok {
		return ErrUnavailable
	}
	return nil
}

func (o *InfluxOperations) RecordDay(ctx context.Context, day domain.DailyOperations) error {
	at := domain.Day(day.Date)
	points := []*write.Point{
		influxdb2.NewPoint(measurementDaily, nil, map[string]any{"covers": day.Covers, "revenue": day.Revenue}, at),
	}
	for hour, covers := range day.HourlyCovers {
		points = append(points, influxdb2.NewPoint(measurementHourly, map[string]string{"hour": strconv.Itoa(hour)}, map[string]any{"covers": covers}, at))
	}
	for item, n := range day.ItemCounts {
		points = append(points, influxdb2.NewPoint(measurementItems, map[string]string{"item": item}, map[string]any{"count": n}, at))
	}
	return o.writePoints(ctx, points)
}

func (o *InfluxOperations) RecordMetric(ctx context.Context, s domain.MetricSample) error {
	if s.At.IsZero() {
		s.At = time.Now().UTC()
	}
	return o.writePoints(ctx, []*write.Point{
		influxdb2.NewPoint(measurementMetrics, map[string]string{"name": s.Name}, map[string]any{"value": s.Value}, s.At),
	})
}

func (o *InfluxOperations) AddBooking(ctx context.Context, b *domain.Booking) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.Kind == "" {
		b.Kind = domain.BookingReservation
	}
	return o.writePoints(ctx, []*write.Point{
		influxdb2.NewPoint(measurementBookings,
			map[string]string{"id": b.ID.String(), "kind": string(b.Kind)},
			map[string]any{"party_size": b.PartySize, "expected_revenue": b.ExpectedRevenue, "note": b.Note},
			b.Date),
	})
}

func (o *InfluxOperations) DailyHistory(ctx context.Context, since time.Time) ([]domain.DailyOperations, error) {
	q := fmt.Sprintf(`
		from(bucket: %s)
		  |> range(start: %s)
		  |> filter(fn: (r) => r._measurement == %s or r._measurement == %s or r._measurement == %s)
	`, fluxString(o.bucket), domain.Day(since).Format(time.RFC3339),
		fluxString(measurementDaily), fluxString(measurementHourly), fluxString(measurementItems))

	result, err := o.query.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer result.Close()

	acc := newDailyAccumulator()
	for result.Next() {
		rec := result.Record()
		acc.add(rec.Measurement(), rec.Field(), rec.Time(), rec.Value(), rec.ValueByKey("hour"), rec.ValueByKey("item"))
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return acc.days(), nil
}

func (o *InfluxOperations) MetricHistory(ctx context.Context, name string, since time.Time) ([]domain.MetricSample, error) {
	q := fmt.Sprintf(`
		from(bucket: %s)
		  |> range(start: %s)
		  |> filter(fn: (r) => r._measurement == %s and r.name == %s and r._field == "value")
		  |> sort(columns: ["_time"], desc: false)
	`, fluxString(o.bucket), since.UTC().Format(time.RFC3339), fluxString(measurementMetrics), fluxString(name))

	result, err := o.query.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer result.Close()

	var samples []domain.MetricSample
	for result.Next() {
		rec := result.Record()
		if v, ok := numeric(rec.Value()); ok {
			samples = append(samples, domain.MetricSample{Name: name, Value: v, At: rec.Time()})
		}
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return samples, nil
}

func (o *InfluxOperations) UpcomingBookings(ctx context.Context, from, to time.Time) ([]domain.Booking, error) {
	q := fmt.Sprintf(`
		from(bucket: %s)
		  |> range(start: %s, stop: %s)
		  |> filter(fn: (r) => r._measurement == %s)
		  |> pivot(rowKey: ["_time", "id", "kind"], columnKey: ["_field"], valueColumn: "_value")
		  |> sort(columns: ["_time"], desc: false)
	`, fluxString(o.bucket), from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339), fluxString(measurementBookings))

	result, err := o.query.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer result.Close()

	var bookings []domain.Booking
	for result.Next() {
		rec := result.Record()
		b := domain.Booking{Date: rec.Time()}
		if id, ok := rec.ValueByKey("id").(string); ok {
			b.ID, _ = uuid.Parse(id)
		}
		if kind, ok := rec.ValueByKey("kind").(string); ok {
			b.Kind = domain.BookingKind(kind)
		}
		if v, ok := numeric(rec.ValueByKey("party_size")); ok {
			b.PartySize = int(v)
		}
		if v, ok := numeric(rec.ValueByKey("expected_revenue")); ok {
			b.ExpectedRevenue = v
		}
		if note, ok := rec.ValueByKey("note").(string); ok {
			b.Note = note
		}
		bookings = append(bookings, b)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return bookings, nil
}

func (o *InfluxOperations) writePoints(ctx context.Context, points []*write.Point) error {
	if err := o.write.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// dailyAccumulator folds flat Flux records back into per-day aggregates.
type dailyAccumulator struct {
	byDay map[time.Time]*domain.DailyOperations
}

func newDailyAccumulator() *dailyAccumulator {
	return &dailyAccumulator{byDay: make(map[time.Time]*domain.DailyOperations)}
}

func (a *dailyAccumulator) add(measurement, field string, at time.Time, value, hourTag, itemTag any) {
	v, ok := numeric(value)
	if !ok {
		return
	}
	day := domain.Day(at)
	d, exists := a.byDay[day]
	if !exists {
		d = &domain.DailyOperations{Date: day}
		a.byDay[day] = d
	}
	switch measurement {
	case measurementDaily:
		switch field {
		case "covers":
			d.Covers = int(v)
		case "revenue":
			d.Revenue = v
		}
	case measurementHourly:
		s, _ := hourTag.(string)
		hour, err := strconv.Atoi(s)
		if err != nil {
			return
		}
		if d.HourlyCovers == nil {
			d.HourlyCovers = make(map[int]int)
		}
		d.HourlyCovers[hour] = int(v)
	case measurementItems:
		item, _ := itemTag.(string)
		if item == "" {
			return
		}
		if d.ItemCounts == nil {
			d.ItemCounts = make(map[string]int)
		}
		d.ItemCounts[item] = int(v)
	}
}

func (a *dailyAccumulator) days() []domain.DailyOperations {
	out := make([]domain.DailyOperations, 0, len(a.byDay))
	for _, d := range a.byDay {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

// fluxString renders s as a Flux string literal.
func fluxString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "${", `\${`)
	return `"` + r.Replace(s) + `"`
}
