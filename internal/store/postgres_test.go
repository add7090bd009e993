package store

import (
	"errors"
	"testing"
	"time"

	"github.com/Harshitk-cp/collective/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReportTable answers keyset queries over an ordered slice the way the
// interaction_reports queries do.
type fakeReportTable struct {
	rows    []domain.InteractionReport
	queries int
}

func newFakeReportTable(n int) *fakeReportTable {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	t := &fakeReportTable{}
	for i := 0; i < n; i++ {
		// pairs share a timestamp so the id breaks ties
		t.rows = append(t.rows, domain.InteractionReport{
			ID:        sequentialID(i),
			Timestamp: base.Add(time.Duration(i/2) * time.Second),
		})
	}
	return t
}

func sequentialID(i int) uuid.UUID {
	var id uuid.UUID
	id[14] = byte(i >> 8)
	id[15] = byte(i)
	return id
}

func (t *fakeReportTable) fetch(after *reportCursor, n int) ([]domain.InteractionReport, error) {
	t.queries++
	var out []domain.InteractionReport
	for _, r := range t.rows {
		if after != nil {
			if r.Timestamp.Before(after.at) {
				continue
			}
			if r.Timestamp.Equal(after.at) && r.ID.String() <= after.id.String() {
				continue
			}
		}
		out = append(out, r)
		if len(out) == n {
			break
		}
	}
	return out, nil
}

func TestPageReports_UnlimitedReadsPastPageBoundaries(t *testing.T) {
	table := newFakeReportTable(25)

	reports, err := pageReports(0, 10, table.fetch)
	require.NoError(t, err)
	require.Len(t, reports, 25)
	assert.Equal(t, table.rows[24].ID, reports[24].ID, "newest report is included")
	assert.Equal(t, 3, table.queries)

	seen := map[uuid.UUID]bool{}
	for _, r := range reports {
		assert.False(t, seen[r.ID], "no row is returned twice")
		seen[r.ID] = true
	}
}

func TestPageReports_ExactMultipleOfPage(t *testing.T) {
	table := newFakeReportTable(20)

	reports, err := pageReports(-1, 10, table.fetch)
	require.NoError(t, err)
	assert.Len(t, reports, 20)
	assert.Equal(t, 3, table.queries, "the empty third page ends the scan")
}

func TestPageReports_Limit(t *testing.T) {
	table := newFakeReportTable(25)

	reports, err := pageReports(12, 10, table.fetch)
	require.NoError(t, err)
	require.Len(t, reports, 12)
	assert.Equal(t, table.rows[11].ID, reports[11].ID)
	assert.Equal(t, 2, table.queries)
}

func TestPageReports_Error(t *testing.T) {
	calls := 0
	_, err := pageReports(0, 10, func(*reportCursor, int) ([]domain.InteractionReport, error) {
		calls++
		if calls == 2 {
			return nil, ErrUnavailable
		}
		return make([]domain.InteractionReport, 10), nil
	})
	assert.True(t, errors.Is(err, ErrUnavailable))
}
