package recordperm

import (
	"context"
	"time"
)

// AuditStore manages decision logs
type AuditStore interface {
	LogDecision(ctx context.Context, entry *AuditEntry) error
	GetAccessLog(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error)
}

// AuditEntry represents one evaluated decision
type AuditEntry struct {
	ID        string    `json:"id"`
	TraceID   string    `json:"trace_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Profile   string    `json:"profile,omitempty"`
	Action    Action    `json:"action"`
	RecordID  string    `json:"record_id,omitempty"`
	UserID    string    `json:"user_id"`
	Decision  Decision  `json:"decision"`
}

// AuditFilter for querying decision logs
type AuditFilter struct {
	UserID    string
	RecordID  string
	Profile   string
	Action    Action
	StartTime time.Time
	EndTime   time.Time
	Limit     int
}

// Matches reports whether entry satisfies every set field of the filter.
func (f AuditFilter) Matches(entry *AuditEntry) bool {
	if entry == nil {
		return false
	}
	if f.UserID != "" && entry.UserID != f.UserID {
		return false
	}
	if f.RecordID != "" && entry.RecordID != f.RecordID {
		return false
	}
	if f.Profile != "" && entry.Profile != f.Profile {
		return false
	}
	if f.Action != "" && entry.Action != f.Action {
		return false
	}
	if !f.StartTime.IsZero() && entry.Timestamp.Before(f.StartTime) {
		return false
	}
	if !f.EndTime.IsZero() && entry.Timestamp.After(f.EndTime) {
		return false
	}
	return true
}
