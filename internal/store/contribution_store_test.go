package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"
)

func TestContributionStoreSumCompletedScopesToCycle(t *testing.T) {
	ctx := context.Background()
	store := NewContributionStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "cycle = $2") {
				t.Fatalf("sum must be scoped to one cycle, got: %s", query)
			}
			if !strings.Contains(query, "status = 'completed'") {
				t.Fatalf("sum must only count completed contributions, got: %s", query)
			}
			if len(args) != 2 || args[0] != "group-1" || args[1] != 3 {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*int64) = 40000
			return nil
		},
	})
	sum, err := store.SumCompleted(ctx, "group-1", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum != 40000 {
		t.Fatalf("unexpected sum: %d", sum)
	}
}

func TestContributionStoreMarkCompletedOnlyFromPending(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "status = 'pending'") {
				t.Fatalf("completion must be conditioned on pending, got: %s", query)
			}
			return stubResult{rows: 0}, nil
		},
	}
	store := NewContributionStore(stubDB{})
	rows, err := store.MarkCompleted(ctx, execer, "contribution-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows != 0 {
		t.Fatalf("expected 0 affected rows for a settled contribution, got %d", rows)
	}
}

func TestContributionStoreCreateDefaultsToPending(t *testing.T) {
	ctx := context.Background()
	store := NewContributionStore(stubDB{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "'pending'") {
				t.Fatalf("new contributions must start pending, got: %s", query)
			}
			if len(args) != 5 || args[4] != 2 {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	})
	err := store.Create(ctx, ContributionInput{
		ID:      "contribution-1",
		GroupID: "group-1",
		UserID:  "user-1",
		Amount:  10000,
		Cycle:   2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
