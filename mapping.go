package recordperm

import (
	"fmt"
	"strconv"
	"strings"
)

// FieldMapping names the backend JSON keys the typed inputs are read from.
// Each field lists candidate keys; the first one present wins.
type FieldMapping struct {
	RecordID      []string `json:"record_id" yaml:"record_id"`
	CreatedBy     []string `json:"created_by" yaml:"created_by"`
	RecordDate    []string `json:"record_date" yaml:"record_date"`
	RecordTime    []string `json:"record_time" yaml:"record_time"`
	Status        []string `json:"status" yaml:"status"`
	UserID        []string `json:"user_id" yaml:"user_id"`
	Role          []string `json:"role" yaml:"role"`
	PositionTitle []string `json:"position_title" yaml:"position_title"`
}

// DefaultFieldMapping covers the ward record payloads.
func DefaultFieldMapping() FieldMapping {
	return FieldMapping{
		RecordID:      []string{"id", "record_id", "_id"},
		CreatedBy:     []string{"created_by", "createdBy", "user_id"},
		RecordDate:    []string{"record_date", "recordDate", "created_at"},
		RecordTime:    []string{"record_time", "recordTime"},
		Status:        []string{"status"},
		UserID:        []string{"id", "user_id", "userId"},
		Role:          []string{"role"},
		PositionTitle: []string{"position_title", "positionTitle", "position_name", "positionName"},
	}
}

// ReportFieldMapping reads shift reports, which carry report_date instead of record_date.
func ReportFieldMapping() FieldMapping {
	m := DefaultFieldMapping()
	m.RecordDate = []string{"report_date", "reportDate", "record_date"}
	m.RecordTime = []string{"report_time", "reportTime"}
	return m
}

// RecordFromMap builds a Record from a decoded JSON object. Missing or
// non-scalar values become empty strings; it never fails.
func (m FieldMapping) RecordFromMap(src map[string]any) *Record {
	return &Record{
		ID:         lookupString(src, m.RecordID),
		CreatedBy:  lookupString(src, m.CreatedBy),
		RecordDate: lookupString(src, m.RecordDate),
		RecordTime: lookupString(src, m.RecordTime),
		Status:     lookupString(src, m.Status),
	}
}

// UserFromMap builds an ActingUser from a decoded session object.
func (m FieldMapping) UserFromMap(src map[string]any) *ActingUser {
	return &ActingUser{
		ID:            lookupString(src, m.UserID),
		Role:          lookupString(src, m.Role),
		PositionTitle: lookupString(src, m.PositionTitle),
	}
}

func lookupString(src map[string]any, keys []string) string {
	for _, k := range keys {
		v, ok := src[k]
		if !ok || v == nil {
			continue
		}
		if s, ok := scalarString(v); ok {
			return s
		}
	}
	return ""
}

// scalarString renders JSON scalars; ids often arrive as numbers.
func scalarString(v any) (string, bool) {
	switch vv := v.(type) {
	case string:
		return strings.TrimSpace(vv), true
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64), true
	case int:
		return strconv.Itoa(vv), true
	case int64:
		return strconv.FormatInt(vv, 10), true
	case bool:
		return strconv.FormatBool(vv), true
	case fmt.Stringer:
		return vv.String(), true
	}
	return "", false
}
