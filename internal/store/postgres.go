package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Harshitk-cp/collective/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Connect opens a pool and verifies it with a ping.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func (s *PostgresRepository) SaveReport(ctx context.Context, r *domain.InteractionReport) error {
	var learning []byte
	if len(r.Learning) > 0 {
		learning = r.Learning
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO interaction_reports (id, source_agent_id, kind, context, outcome, emotion, learning, reported_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO NOTHING`,
		r.ID, r.SourceAgentID, string(r.Kind), nonNilMap(r.Context), nonNilMap(r.Outcome), r.Emotion, learning, r.Timestamp,
	)
	return classify(err)
}

// reportPageSize bounds each keyset query of ListReports.
const reportPageSize = 1000

// ListReports returns reports at or after since in (reported_at, id) order.
// A limit of zero or less returns every matching report.
func (s *PostgresRepository) ListReports(ctx context.Context, since time.Time, limit int) ([]domain.InteractionReport, error) {
	return pageReports(limit, reportPageSize, func(after *reportCursor, n int) ([]domain.InteractionReport, error) {
		if after == nil {
			return s.queryReports(ctx,
				`SELECT id, source_agent_id, kind, context, outcome, emotion, learning, reported_at
				 FROM interaction_reports WHERE reported_at >= $1
				 ORDER BY reported_at ASC, id ASC
				 LIMIT $2`,
				since, n)
		}
		return s.queryReports(ctx,
			`SELECT id, source_agent_id, kind, context, outcome, emotion, learning, reported_at
			 FROM interaction_reports WHERE (reported_at, id) > ($1, $2)
			 ORDER BY reported_at ASC, id ASC
			 LIMIT $3`,
			after.at, after.id, n)
	})
}

type reportCursor struct {
	at time.Time
	id uuid.UUID
}

// pageReports drains fetch one page at a time, resuming after the last row
// of the previous page, until a short page or limit ends it.
func pageReports(limit, pageSize int, fetch func(after *reportCursor, n int) ([]domain.InteractionReport, error)) ([]domain.InteractionReport, error) {
	var (
		reports []domain.InteractionReport
		after   *reportCursor
	)
	for {
		n := pageSize
		if limit > 0 && limit-len(reports) < n {
			n = limit - len(reports)
		}
		if n <= 0 {
			return reports, nil
		}
		page, err := fetch(after, n)
		if err != nil {
			return nil, err
		}
		reports = append(reports, page...)
		if len(page) < n {
			return reports, nil
		}
		last := page[len(page)-1]
		after = &reportCursor{at: last.Timestamp, id: last.ID}
	}
}

func (s *PostgresRepository) queryReports(ctx context.Context, sql string, args ...any) ([]domain.InteractionReport, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var reports []domain.InteractionReport
	for rows.Next() {
		var (
			r        domain.InteractionReport
			kind     string
			learning []byte
		)
		if err := rows.Scan(&r.ID, &r.SourceAgentID, &kind, &r.Context, &r.Outcome, &r.Emotion, &learning, &r.Timestamp); err != nil {
			return nil, err
		}
		r.Kind = domain.ReportKind(kind)
		r.Learning = learning
		reports = append(reports, r)
	}
	return reports, classify(rows.Err())
}

// SavePlaybook upserts the playbook only when it beats the stored effectiveness.
func (s *PostgresRepository) SavePlaybook(ctx context.Context, p *domain.CrisisPlaybook) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO crisis_playbooks (crisis_type, effectiveness, severity, duration, actions, agents_involved, source_agent_id, report_id, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (crisis_type) DO UPDATE SET
		   effectiveness = EXCLUDED.effectiveness,
		   severity = EXCLUDED.severity,
		   duration = EXCLUDED.duration,
		   actions = EXCLUDED.actions,
		   agents_involved = EXCLUDED.agents_involved,
		   source_agent_id = EXCLUDED.source_agent_id,
		   report_id = EXCLUDED.report_id,
		   recorded_at = EXCLUDED.recorded_at
		 WHERE crisis_playbooks.effectiveness < EXCLUDED.effectiveness`,
		p.CrisisType, p.Effectiveness, p.Severity, p.Duration, nonNilSlice(p.Actions), nonNilSlice(p.AgentsInvolved), p.SourceAgentID, p.ReportID, p.RecordedAt,
	)
	return classify(err)
}

// SaveSuccessPattern upserts the pattern unless the stored one has a higher count.
func (s *PostgresRepository) SaveSuccessPattern(ctx context.Context, p *domain.SuccessPattern) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO success_patterns (action, conditions, confidence, count, variations, promoted_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (action) DO UPDATE SET
		   conditions = EXCLUDED.conditions,
		   confidence = EXCLUDED.confidence,
		   count = EXCLUDED.count,
		   variations = EXCLUDED.variations,
		   updated_at = EXCLUDED.updated_at
		 WHERE success_patterns.count <= EXCLUDED.count`,
		p.Action, nonNilMap(p.Conditions), p.Confidence, p.Count, p.Variations, p.PromotedAt, p.UpdatedAt,
	)
	return classify(err)
}

func (s *PostgresRepository) Ping(ctx context.Context) error {
	return classify(s.db.Ping(ctx))
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func nonNilSlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
