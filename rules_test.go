package recordperm

import (
	"testing"
	"time"
)

var ict = time.FixedZone("ICT", 7*3600)

func TestWithinHoursBoundary(t *testing.T) {
	inst := time.Date(2024, 6, 12, 8, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"exactly at limit", inst.Add(24 * time.Hour), true},
		{"one second over", inst.Add(24*time.Hour + time.Second), false},
		{"record in the future", inst.Add(-5 * time.Hour), true},
		{"same instant", inst, true},
	}
	for _, tc := range cases {
		if got := WithinHours(inst, tc.now, 24); got != tc.want {
			t.Fatalf("%s: WithinHours = %v, want %v", tc.name, got, tc.want)
		}
	}
	if !WithinHours(inst, inst.Add(90*time.Minute), 1.5) {
		t.Fatalf("fractional limit should include 90 minutes")
	}
}

func TestIsSameCalendarDay(t *testing.T) {
	now := time.Date(2024, 6, 12, 20, 0, 0, 0, time.UTC)
	if !IsSameCalendarDay("2024-06-12", now, time.UTC) {
		t.Fatalf("expected same day in UTC")
	}
	// 20:00 UTC is already the 13th in Bangkok
	if IsSameCalendarDay("2024-06-12", now, ict) {
		t.Fatalf("expected a different day in ICT")
	}
	// the record side is truncated without zone conversion
	if !IsSameCalendarDay("2024-06-12T23:30:00-05:00", now, time.UTC) {
		t.Fatalf("expected naive truncation of the record timestamp")
	}
	if IsSameCalendarDay("", now, time.UTC) || IsSameCalendarDay("not a date", now, time.UTC) {
		t.Fatalf("unreadable dates are never the same day")
	}
}

func TestIsOwnerAndRoleAllowed(t *testing.T) {
	if !IsOwner("u1", "u1") || IsOwner("u1", "u2") {
		t.Fatalf("IsOwner equality broken")
	}
	if IsOwner("", "") {
		t.Fatalf("an empty creator must not match an empty user id")
	}
	allowed := []string{"admin", "head_nurse"}
	if !RoleAllowed("head_nurse", allowed) || RoleAllowed("staff nurse", allowed) {
		t.Fatalf("RoleAllowed membership broken")
	}
	if RoleAllowed("", []string{""}) {
		t.Fatalf("empty role must never match")
	}
}

func TestStatusEditable(t *testing.T) {
	cases := map[string]bool{
		"":         true,
		"draft":    true,
		"Pending":  true,
		"approved": false,
		"locked":   false,
	}
	for status, want := range cases {
		if got := StatusEditable(status); got != want {
			t.Fatalf("StatusEditable(%q) = %v, want %v", status, got, want)
		}
	}
	if !StatusEditable("review", "review") {
		t.Fatalf("custom editable set should be honoured")
	}
}

func TestRecordInstant(t *testing.T) {
	rec := &Record{RecordDate: "2024-06-12", RecordTime: "08:30"}
	got, ok := RecordInstant(rec, GranularityDateTime, ict)
	if !ok || !got.Equal(time.Date(2024, 6, 12, 8, 30, 0, 0, ict)) {
		t.Fatalf("datetime instant = %v %v", got, ok)
	}

	got, ok = RecordInstant(rec, GranularityDate, ict)
	if !ok || !got.Equal(time.Date(2024, 6, 12, 0, 0, 0, 0, ict)) {
		t.Fatalf("date instant = %v %v", got, ok)
	}

	got, ok = RecordInstant(&Record{RecordDate: "2024-06-12"}, GranularityDateTime, time.UTC)
	if !ok || !got.Equal(time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("missing time should mean midnight, got %v", got)
	}

	got, ok = RecordInstant(&Record{RecordDate: "2024-06-12T10:15:00Z"}, GranularityDateTime, ict)
	if !ok || !got.Equal(time.Date(2024, 6, 12, 10, 15, 0, 0, time.UTC)) {
		t.Fatalf("full timestamp should be used as written, got %v", got)
	}

	if _, ok := RecordInstant(&Record{RecordDate: "2024-06-12", RecordTime: "25:99"}, GranularityDateTime, ict); ok {
		t.Fatalf("malformed time must be reported unreadable")
	}
	if _, ok := RecordInstant(&Record{}, GranularityDateTime, ict); ok {
		t.Fatalf("missing date must be reported unreadable")
	}
	if _, ok := RecordInstant(nil, GranularityDateTime, ict); ok {
		t.Fatalf("nil record must be reported unreadable")
	}
}

func TestRecordInstantNaiveTimestampIsWardLocal(t *testing.T) {
	naive, ok := RecordInstant(&Record{RecordDate: "2024-06-12 08:00:00"}, GranularityDateTime, ict)
	if !ok {
		t.Fatalf("naive timestamp should be readable")
	}
	split, _ := RecordInstant(&Record{RecordDate: "2024-06-12", RecordTime: "08:00"}, GranularityDateTime, ict)
	if !naive.Equal(split) {
		t.Fatalf("naive timestamp %v should equal the split form %v", naive, split)
	}
}
