package stores

import (
	"context"
	"testing"
	"time"

	"github.com/oarkflow/recordperm"
)

func TestMemoryProfileStoreCopiesOnWrite(t *testing.T) {
	store := NewMemoryProfileStore()
	ctx := context.Background()
	p := &recordperm.Profile{Name: "a.edit", Action: recordperm.ActionEdit, Rules: recordperm.RuleSpec{HoursLimit: recordperm.Hours(4)}}
	if err := store.PutProfile(ctx, p); err != nil {
		t.Fatalf("put: %v", err)
	}
	*p.Rules.HoursLimit = 99
	got, _ := store.GetProfile(ctx, "a.edit")
	if *got.Rules.HoursLimit != 4 {
		t.Fatalf("stored profile aliased caller's pointer: %v", *got.Rules.HoursLimit)
	}
}

func TestMemoryAuditStoreFilterAndLimit(t *testing.T) {
	store := NewMemoryAuditStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		user := "u1"
		if i%2 == 1 {
			user = "u2"
		}
		_ = store.LogDecision(ctx, &recordperm.AuditEntry{ID: string(rune('a' + i)), UserID: user, Timestamp: base.Add(time.Duration(i) * time.Minute)})
	}
	got, _ := store.GetAccessLog(ctx, recordperm.AuditFilter{UserID: "u1"})
	if len(got) != 3 {
		t.Fatalf("expected 3 entries for u1, got %d", len(got))
	}
	got, _ = store.GetAccessLog(ctx, recordperm.AuditFilter{Limit: 2})
	if len(got) != 2 {
		t.Fatalf("expected limit 2, got %d", len(got))
	}
	if store.Len() != 5 {
		t.Fatalf("expected 5 stored, got %d", store.Len())
	}
}
