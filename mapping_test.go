package recordperm

import "testing"

func TestRecordFromMap(t *testing.T) {
	src := map[string]any{
		"_id":         "r-9",
		"createdBy":   float64(1042),
		"record_date": "2024-06-12",
		"record_time": " 08:15 ",
		"status":      "draft",
	}
	rec := DefaultFieldMapping().RecordFromMap(src)
	want := Record{ID: "r-9", CreatedBy: "1042", RecordDate: "2024-06-12", RecordTime: "08:15", Status: "draft"}
	if *rec != want {
		t.Fatalf("got %+v, want %+v", *rec, want)
	}
}

func TestReportFieldMapping(t *testing.T) {
	src := map[string]any{
		"id":          7,
		"created_by":  "u1",
		"report_date": "2024-06-11",
		"reportTime":  "22:00",
	}
	rec := ReportFieldMapping().RecordFromMap(src)
	if rec.RecordDate != "2024-06-11" || rec.RecordTime != "22:00" || rec.ID != "7" {
		t.Fatalf("report fields not mapped: %+v", rec)
	}
	if got := DefaultFieldMapping().RecordFromMap(src).RecordDate; got != "" {
		t.Fatalf("default mapping must not read report_date, got %q", got)
	}
}

func TestUserFromMap(t *testing.T) {
	user := DefaultFieldMapping().UserFromMap(map[string]any{
		"userId":        int64(55),
		"role":          "nurse",
		"positionTitle": "head_nurse",
	})
	if user.ID != "55" || user.Role != "nurse" || user.PositionTitle != "head_nurse" {
		t.Fatalf("unexpected user %+v", user)
	}

	empty := DefaultFieldMapping().UserFromMap(map[string]any{"role": []any{"x"}, "id": nil})
	if empty.ID != "" || empty.Role != "" {
		t.Fatalf("non-scalar and nil values should be empty, got %+v", empty)
	}
}
