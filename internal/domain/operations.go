package domain

import (
	"time"

	"github.com/google/uuid"
)

// DailyOperations summarizes one business day.
type DailyOperations struct {
	Date         time.Time      `json:"date"`
	Covers       int            `json:"covers"`
	Revenue      float64        `json:"revenue"`
	HourlyCovers map[int]int    `json:"hourly_covers,omitempty"`
	ItemCounts   map[string]int `json:"item_counts,omitempty"`
}

type MetricSample struct {
	Name  string    `json:"name"`
	Value float64   `json:"value"`
	At    time.Time `json:"at"`
}

type BookingKind string

const (
	BookingReservation BookingKind = "reservation"
	BookingEvent       BookingKind = "event"
)

type Booking struct {
	ID              uuid.UUID   `json:"id"`
	Kind            BookingKind `json:"kind"`
	Date            time.Time   `json:"date"`
	PartySize       int         `json:"party_size"`
	ExpectedRevenue float64     `json:"expected_revenue"`
	Note            string      `json:"note,omitempty"`
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
