package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Harshitk-cp/collective/internal/domain"
	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

const (
	reportPrefix   = "report/"
	playbookPrefix = "playbook/"
	patternPrefix  = "pattern/"
)

type BadgerConfig struct {
	Path       string
	InMemory   bool
	SyncWrites bool
	// GCInterval runs value-log GC periodically; zero disables it.
	GCInterval time.Duration
}

func InMemoryBadgerConfig() BadgerConfig {
	return BadgerConfig{InMemory: true}
}

type zapBadgerLogger struct {
	logger *zap.SugaredLogger
}

func (l zapBadgerLogger) Errorf(format string, args ...any)   { l.logger.Errorf(format, args...) }
func (l zapBadgerLogger) Warningf(format string, args ...any) { l.logger.Warnf(format, args...) }
func (l zapBadgerLogger) Infof(format string, args ...any)    { l.logger.Debugf(format, args...) }
func (l zapBadgerLogger) Debugf(format string, args ...any)   { l.logger.Debugf(format, args...) }

// BadgerRepository is an embedded LearningRepository. Reports are keyed by
// timestamp so a prefix scan returns them in submission order.
type BadgerRepository struct {
	db     *badger.DB
	logger *zap.Logger

	// playbook and pattern writes are read-compare-write
	playbookMu sync.Mutex
	patternMu  sync.Mutex

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func OpenBadger(cfg BadgerConfig, logger *zap.Logger) (*BadgerRepository, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badger path is required for a persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create badger directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(zapBadgerLogger{logger: logger.Named("badger").Sugar()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	r := &BadgerRepository{db: db, logger: logger, stopCh: make(chan struct{})}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		r.startGC(cfg.GCInterval)
	}
	return r, nil
}

func (r *BadgerRepository) startGC(interval time.Duration) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := r.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
					r.logger.Warn("badger value log gc failed", zap.Error(err))
				}
			case <-r.stopCh:
				return
			}
		}
	}()
}

func (r *BadgerRepository) Close() error {
	close(r.stopCh)
	r.wg.Wait()
	return r.db.Close()
}

func reportKey(r *domain.InteractionReport) []byte {
	return []byte(fmt.Sprintf("%s%020d/%s", reportPrefix, r.Timestamp.UnixNano(), r.ID))
}

func (r *BadgerRepository) SaveReport(_ context.Context, rep *domain.InteractionReport) error {
	data, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return r.wrap(r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(reportKey(rep), data)
	}))
}

func (r *BadgerRepository) ListReports(ctx context.Context, since time.Time, limit int) ([]domain.InteractionReport, error) {
	var reports []domain.InteractionReport
	var from int64
	if since.After(time.Unix(0, 0)) {
		from = since.UnixNano()
	}
	start := []byte(fmt.Sprintf("%s%020d", reportPrefix, from))

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(reportPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(start); it.ValidForPrefix(opts.Prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rep domain.InteractionReport
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rep)
			}); err != nil {
				return fmt.Errorf("decode report %s: %w", it.Item().Key(), err)
			}
			reports = append(reports, rep)
			if limit > 0 && len(reports) >= limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, r.wrap(err)
	}
	return reports, nil
}

// SavePlaybook stores p unless the stored playbook is at least as effective.
func (r *BadgerRepository) SavePlaybook(_ context.Context, p *domain.CrisisPlaybook) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode playbook: %w", err)
	}
	key := []byte(playbookPrefix + p.CrisisType)

	r.playbookMu.Lock()
	defer r.playbookMu.Unlock()
	return r.wrap(r.db.Update(func(txn *badger.Txn) error {
		existing, err := getJSON[domain.CrisisPlaybook](txn, key)
		if err == nil && existing.Effectiveness >= p.Effectiveness {
			return nil
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		return txn.Set(key, data)
	}))
}

func (r *BadgerRepository) Playbook(_ context.Context, crisisType string) (*domain.CrisisPlaybook, error) {
	var p *domain.CrisisPlaybook
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		p, err = getJSON[domain.CrisisPlaybook](txn, []byte(playbookPrefix+crisisType))
		return err
	})
	if err != nil {
		return nil, r.wrap(err)
	}
	return p, nil
}

// SaveSuccessPattern stores p unless the stored pattern has a higher count.
func (r *BadgerRepository) SaveSuccessPattern(_ context.Context, p *domain.SuccessPattern) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode success pattern: %w", err)
	}
	key := []byte(patternPrefix + p.Action)

	r.patternMu.Lock()
	defer r.patternMu.Unlock()
	return r.wrap(r.db.Update(func(txn *badger.Txn) error {
		existing, err := getJSON[domain.SuccessPattern](txn, key)
		if err == nil && existing.Count > p.Count {
			return nil
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		return txn.Set(key, data)
	}))
}

func (r *BadgerRepository) SuccessPattern(_ context.Context, action string) (*domain.SuccessPattern, error) {
	var p *domain.SuccessPattern
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		p, err = getJSON[domain.SuccessPattern](txn, []byte(patternPrefix+action))
		return err
	})
	if err != nil {
		return nil, r.wrap(err)
	}
	return p, nil
}

func (r *BadgerRepository) Ping(_ context.Context) error {
	if r.db.IsClosed() {
		return ErrUnavailable
	}
	return nil
}

func (r *BadgerRepository) wrap(err error) error {
	switch {
	case err == nil, errors.Is(err, ErrNotFound), errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, badger.ErrDBClosed):
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}

func getJSON[T any](txn *badger.Txn, key []byte) (*T, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var v T
	if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &v) }); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &v, nil
}
