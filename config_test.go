package recordperm_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/oarkflow/recordperm"
	"github.com/oarkflow/recordperm/stores"
)

const wardYAML = `
version: 1
locale: th-TH
timezone: Asia/Bangkok
profiles:
  - name: vitals.edit
    action: edit
    description: vital signs
    rules:
      hours_limit: 12
      check_same_day: true
      allowed_roles: [admin, charge_nurse]
engine:
  profile_cache_ttl_ms: 1000
  batch_worker_count: 2
`

func TestLoadYAML(t *testing.T) {
	cfg, err := recordperm.NewConfigLoader().Load("ward.yaml", []byte(wardYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	rc := cfg.Profiles[0].Config()
	if rc.HoursLimit != 12 || !rc.CheckSameDay || rc.AllowedRoles[1] != "charge_nurse" {
		t.Fatalf("unexpected rules %+v", rc)
	}
	// unset fields keep the edit defaults
	if !rc.CheckTime || !rc.CheckCreator || rc.RoleSource != recordperm.RoleSourcePositionTitle {
		t.Fatalf("defaults not applied: %+v", rc)
	}
	loc, err := cfg.Location()
	if err != nil || loc.String() != "Asia/Bangkok" {
		t.Fatalf("location = %v, %v", loc, err)
	}
}

func TestJSONKeepsExplicitEmptyAllowlist(t *testing.T) {
	cfg := recordperm.NewConfigBuilder().
		AddProfile(recordperm.NewProfileBuilder("strict.delete", recordperm.ActionDelete).AllowedRoles().Build()).
		Build()
	data, err := cfg.ToJSON()
	if err != nil {
		t.Fatalf("to json: %v", err)
	}
	back, err := recordperm.NewConfigLoader().Load("strict.json", data)
	if err != nil {
		t.Fatalf("load json: %v", err)
	}
	roles := back.Profiles[0].Config().AllowedRoles
	if roles == nil || len(roles) != 0 {
		t.Fatalf("explicit empty allowlist lost: %#v", roles)
	}
}

func TestConfigValidate(t *testing.T) {
	dup := recordperm.NewConfigBuilder().
		AddProfile(recordperm.NewProfileBuilder("a", recordperm.ActionEdit).Build()).
		AddProfile(recordperm.NewProfileBuilder("a", recordperm.ActionEdit).Build()).
		Build()
	if err := dup.Validate(); !errors.Is(err, recordperm.ErrInvalidProfile) {
		t.Fatalf("duplicate names should be rejected, got %v", err)
	}

	badZone := recordperm.NewConfigBuilder().Timezone("Mars/Olympus").Build()
	if err := badZone.Validate(); err == nil {
		t.Fatalf("unknown timezone should be rejected")
	}

	badDelete := recordperm.NewConfigBuilder().
		AddProfile(recordperm.NewProfileBuilder("d", recordperm.ActionDelete).CheckStatus(true).Build()).
		Build()
	if err := badDelete.Validate(); !errors.Is(err, recordperm.ErrInvalidProfile) {
		t.Fatalf("status check on a delete profile should be rejected, got %v", err)
	}

	negative := recordperm.NewConfigBuilder().
		AddProfile(recordperm.NewProfileBuilder("n", recordperm.ActionEdit).HoursLimit(-1).Build()).
		Build()
	if err := negative.Validate(); !errors.Is(err, recordperm.ErrInvalidProfile) {
		t.Fatalf("negative hours should be rejected, got %v", err)
	}

	if _, err := recordperm.NewConfigLoader().Load("ward.toml", nil); err == nil {
		t.Fatalf("unknown extension should be rejected")
	}
}

func TestApplyConfig(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 12, 9, 0, 0, 0, time.UTC)
	store := stores.NewMemoryProfileStore()
	engine, err := recordperm.NewEngine(store, recordperm.WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	defer engine.Close()

	cfg, err := recordperm.NewConfigLoader().LoadYAML([]byte(wardYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := engine.ApplyConfig(ctx, cfg); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if engine.Location().String() != "Asia/Bangkok" {
		t.Fatalf("timezone not applied: %v", engine.Location())
	}
	stored, err := store.GetProfile(ctx, "vitals.edit")
	if err != nil {
		t.Fatalf("profile not stored: %v", err)
	}
	if !stored.UpdatedAt.Equal(now) {
		t.Fatalf("updated_at should come from the engine clock, got %v", stored.UpdatedAt)
	}

	// locale th-TH switches reasons to Thai
	rec := &recordperm.Record{CreatedBy: "u1", RecordDate: "2024-06-12", RecordTime: "15:00"}
	d, err := engine.CanEdit(ctx, rec, &recordperm.ActingUser{ID: "u2"}, "vitals.edit")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if d.Reason != recordperm.Thai.Reason(recordperm.ReasonEditNotOwner) {
		t.Fatalf("expected thai reason, got %q", d.Reason)
	}
}

func TestNonFiniteHoursRejected(t *testing.T) {
	for _, src := range []string{"profile a edit hours=NaN", "profile a delete hours=+Inf"} {
		cfg, err := recordperm.NewConfigLoader().LoadDSL([]byte(src))
		if err != nil {
			t.Fatalf("%s: parse: %v", src, err)
		}
		if err := cfg.Validate(); !errors.Is(err, recordperm.ErrInvalidProfile) {
			t.Fatalf("%s: expected ErrInvalidProfile, got %v", src, err)
		}
	}
	p := recordperm.NewProfileBuilder("b", recordperm.ActionEdit).HoursLimit(math.Inf(-1)).Build()
	if err := p.Validate(); !errors.Is(err, recordperm.ErrInvalidProfile) {
		t.Fatalf("-Inf should be rejected, got %v", err)
	}
}
