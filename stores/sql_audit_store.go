package stores

import (
	"context"
	"encoding/json"

	"github.com/oarkflow/recordperm"
	"github.com/oarkflow/squealx"
)

// SQLAuditStore persists audit entries in SQL
type SQLAuditStore struct {
	db *squealx.DB
}

func NewSQLAuditStore(db *squealx.DB) (*SQLAuditStore, error) {
	return &SQLAuditStore{db: db}, nil
}

func (s *SQLAuditStore) LogDecision(ctx context.Context, entry *recordperm.AuditEntry) error {
	traceB, _ := json.Marshal(entry.Decision.Trace)
	q := `INSERT INTO audit_log(id, trace_id, timestamp, profile, action, record_id, user_id, allowed, rule, code, reason, trace_json) VALUES(:id, :trace_id, :timestamp, :profile, :action, :record_id, :user_id, :allowed, :rule, :code, :reason, :trace_json)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":         entry.ID,
		"trace_id":   entry.TraceID,
		"timestamp":  formatTimestamp(entry.Timestamp),
		"profile":    entry.Profile,
		"action":     string(entry.Action),
		"record_id":  entry.RecordID,
		"user_id":    entry.UserID,
		"allowed":    boolToInt(entry.Decision.Allowed),
		"rule":       string(entry.Decision.Rule),
		"code":       string(entry.Decision.Code),
		"reason":     entry.Decision.Reason,
		"trace_json": string(traceB),
	})
	return err
}

func (s *SQLAuditStore) GetAccessLog(ctx context.Context, filter recordperm.AuditFilter) ([]*recordperm.AuditEntry, error) {
	q := `SELECT id, trace_id, timestamp, profile, action, record_id, user_id, allowed, rule, code, reason, trace_json FROM audit_log WHERE 1=1`
	params := map[string]any{}
	if filter.UserID != "" {
		q += " AND user_id = :user_id"
		params["user_id"] = filter.UserID
	}
	if filter.RecordID != "" {
		q += " AND record_id = :record_id"
		params["record_id"] = filter.RecordID
	}
	if filter.Profile != "" {
		q += " AND profile = :profile"
		params["profile"] = filter.Profile
	}
	if filter.Action != "" {
		q += " AND action = :action"
		params["action"] = string(filter.Action)
	}
	if !filter.StartTime.IsZero() {
		q += " AND timestamp >= :start"
		params["start"] = formatTimestamp(filter.StartTime)
	}
	if !filter.EndTime.IsZero() {
		q += " AND timestamp <= :end"
		params["end"] = formatTimestamp(filter.EndTime)
	}
	q += " ORDER BY timestamp LIMIT :limit"
	params["limit"] = defaultAuditLimit
	if filter.Limit > 0 {
		params["limit"] = filter.Limit
	}
	r, err := s.db.NamedQueryContext(ctx, q, params)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*recordperm.AuditEntry, 0)
	for r.Next() {
		var id, traceID, profile, action, recordID, userID, rule, code, reason, traceJSON string
		var timestampRaw any
		var allowedInt int
		if err := r.Scan(&id, &traceID, &timestampRaw, &profile, &action, &recordID, &userID, &allowedInt, &rule, &code, &reason, &traceJSON); err != nil {
			return nil, err
		}
		ts := scanTime(timestampRaw)
		entry := &recordperm.AuditEntry{
			ID:        id,
			TraceID:   traceID,
			Timestamp: ts,
			Profile:   profile,
			Action:    recordperm.Action(action),
			RecordID:  recordID,
			UserID:    userID,
			Decision: recordperm.Decision{
				Allowed:   allowedInt != 0,
				Rule:      recordperm.RuleID(rule),
				Code:      recordperm.ReasonCode(code),
				Reason:    reason,
				Timestamp: ts,
			},
		}
		_ = json.Unmarshal([]byte(traceJSON), &entry.Decision.Trace)
		out = append(out, entry)
	}
	return out, nil
}
