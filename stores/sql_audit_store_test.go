package stores

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/oarkflow/recordperm"
	"github.com/oarkflow/squealx"
	_ "modernc.org/sqlite"
)

func newTestDB(t *testing.T) *squealx.DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// every pooled connection would otherwise get its own empty database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	db := squealx.NewDb(sqlDB, "sqlite", "testdb")
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestSQLAuditStoreTraceIDRoundtrip(t *testing.T) {
	db := newTestDB(t)
	store, _ := NewSQLAuditStore(db)

	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	entry := &recordperm.AuditEntry{
		ID:        "evt-1",
		TraceID:   "trace-abc-123",
		Timestamp: now,
		Profile:   recordperm.ProfileRecordEdit,
		Action:    recordperm.ActionEdit,
		RecordID:  "rec-1",
		UserID:    "u2",
		Decision: recordperm.Decision{
			Rule:   recordperm.RuleOwnership,
			Code:   recordperm.ReasonEditNotOwner,
			Reason: "not permitted to edit another user's record",
			Trace:  []string{"SKIP: user is not admin"},
		},
	}
	if err := store.LogDecision(context.Background(), entry); err != nil {
		t.Fatalf("log decision: %v", err)
	}

	logs, err := store.GetAccessLog(context.Background(), recordperm.AuditFilter{UserID: "u2", Limit: 10})
	if err != nil {
		t.Fatalf("get access log: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 log, got %d", len(logs))
	}
	got := logs[0]
	if got.TraceID != "trace-abc-123" {
		t.Fatalf("expected trace_id=%s got=%s", "trace-abc-123", got.TraceID)
	}
	if got.Decision.Allowed || got.Decision.Code != recordperm.ReasonEditNotOwner {
		t.Fatalf("decision not preserved: %+v", got.Decision)
	}
	if !got.Timestamp.Equal(now) {
		t.Fatalf("timestamp: want %v got %v", now, got.Timestamp)
	}
	if len(got.Decision.Trace) != 1 {
		t.Fatalf("trace not preserved: %v", got.Decision.Trace)
	}
}

func TestSQLAuditStoreTimeFilter(t *testing.T) {
	db := newTestDB(t)
	store, _ := NewSQLAuditStore(db)
	ctx := context.Background()
	base := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		e := &recordperm.AuditEntry{
			ID:        "evt-" + string(rune('a'+i)),
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Action:    recordperm.ActionDelete,
			UserID:    "u1",
		}
		if err := store.LogDecision(ctx, e); err != nil {
			t.Fatalf("log: %v", err)
		}
	}
	logs, err := store.GetAccessLog(ctx, recordperm.AuditFilter{StartTime: base.Add(30 * time.Minute)})
	if err != nil {
		t.Fatalf("get access log: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 entries after start, got %d", len(logs))
	}
	logs, err = store.GetAccessLog(ctx, recordperm.AuditFilter{Action: recordperm.ActionEdit})
	if err != nil {
		t.Fatalf("get access log: %v", err)
	}
	if len(logs) != 0 {
		t.Fatalf("expected no edit entries, got %d", len(logs))
	}
}
