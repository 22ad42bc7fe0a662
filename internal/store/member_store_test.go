package store

import (
	"context"
	"strings"
	"testing"
)

func TestMemberStoreNextRecipientRotatesByPaymentRecency(t *testing.T) {
	ctx := context.Background()
	getter := stubGetter{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "ORDER BY last_payout_at ASC NULLS FIRST, payout_position") {
				t.Fatalf("least recently paid member must come first; a paid/unpaid flag alone stalls the rotation on position 1 after the first pass, got: %s", query)
			}
			if !strings.Contains(query, "payout_position IS NOT NULL") {
				t.Fatalf("unranked members must not receive payouts, got: %s", query)
			}
			return nil
		},
	}
	store := NewMemberStore(stubDB{})
	if _, err := store.NextRecipient(ctx, getter, "group-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMemberStoreListForRankingJoinsTrust(t *testing.T) {
	ctx := context.Background()
	selecter := stubDB{
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "JOIN users") || !strings.Contains(query, "trust_score") {
				t.Fatalf("ranking view must join trust scores, got: %s", query)
			}
			rows := dest.(*[]MemberRank)
			*rows = append(*rows, MemberRank{MemberID: "member-1", TrustScore: 72})
			return nil
		},
	}
	store := NewMemberStore(stubDB{})
	rows, err := store.ListForRanking(ctx, selecter, "group-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].TrustScore != 72 {
		t.Fatalf("unexpected rows: %#v", rows)
	}
}
