package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestClassify(t *testing.T) {
	if classify(nil) != nil {
		t.Fatal("expected nil to stay nil")
	}

	dup := &pgconn.PgError{Code: "23505"}
	if err := classify(dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	syntax := &pgconn.PgError{Code: "42601"}
	if err := classify(syntax); errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected server error to pass through, got %v", err)
	}

	refused := errors.New("dial tcp: connection refused")
	if err := classify(refused); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}

	if err := classify(context.Canceled); !errors.Is(err, context.Canceled) || errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected cancellation to pass through, got %v", err)
	}
}
