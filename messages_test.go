package recordperm

import "testing"

func TestCatalogFor(t *testing.T) {
	cases := map[string]*Catalog{
		"":                 English,
		"en":               English,
		"th":               Thai,
		"th-TH":            Thai,
		"th,en;q=0.5":      Thai,
		"en-US,th;q=0.2":   English,
		"fr":               English,
		";;not a header;;": English,
	}
	for locale, want := range cases {
		if got := CatalogFor(locale); got != want {
			t.Fatalf("CatalogFor(%q) = %v, want %v", locale, got.Tag, want.Tag)
		}
	}
}

func TestCatalogFallsBackToEnglish(t *testing.T) {
	c := NewCatalog(English.Tag, map[ReasonCode]string{ReasonSameDay: "today only"})
	if got := c.Reason(ReasonSameDay); got != "today only" {
		t.Fatalf("override not applied: %q", got)
	}
	if got := c.Reason(ReasonEditWindow, formatHours(1.5)); got != "editable only within 1.5 hours of creation" {
		t.Fatalf("fallback not applied: %q", got)
	}
	if got := c.Reason("no_such_code"); got != "no_such_code" {
		t.Fatalf("unknown codes should render as themselves, got %q", got)
	}
	var nilCatalog *Catalog
	if got := nilCatalog.Reason(ReasonUnknownAction); got != "unsupported action" {
		t.Fatalf("nil catalog should use English, got %q", got)
	}
}
