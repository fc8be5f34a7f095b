package recordperm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

var (
	// ErrProfileNotFound is returned when no stored or built-in profile has the requested name.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrInvalidProfile is returned when a profile fails validation.
	ErrInvalidProfile = errors.New("invalid profile")
)

// Profile is a named rule-set bound to one action, e.g. "report.delete".
type Profile struct {
	Name        string    `json:"name" yaml:"name"`
	Action      Action    `json:"action" yaml:"action"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Rules       RuleSpec  `json:"rules" yaml:"rules"`
	Version     int       `json:"version,omitempty" yaml:"version,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// Config resolves the profile's rules onto its action defaults.
func (p *Profile) Config() RuleConfig {
	return p.Rules.Resolve(p.Action)
}

// Clone returns a deep copy of p.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	dup := *p
	r := &dup.Rules
	r.CheckTime = cloneBool(r.CheckTime)
	r.CheckCreator = cloneBool(r.CheckCreator)
	r.CheckRole = cloneBool(r.CheckRole)
	r.CheckSameDay = cloneBool(r.CheckSameDay)
	r.CheckStatus = cloneBool(r.CheckStatus)
	if r.HoursLimit != nil {
		r.HoursLimit = Hours(*r.HoursLimit)
	}
	if r.AllowedRoles != nil {
		r.AllowedRoles = append([]string{}, r.AllowedRoles...)
	}
	if r.EditableStatuses != nil {
		r.EditableStatuses = append([]string{}, r.EditableStatuses...)
	}
	return &dup
}

func cloneBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	return Bool(*b)
}

// Validate checks the profile is usable.
func (p *Profile) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: nil profile", ErrInvalidProfile)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProfile)
	}
	if p.Action != ActionEdit && p.Action != ActionDelete {
		return fmt.Errorf("%w: %s: action must be edit or delete, got %q", ErrInvalidProfile, p.Name, p.Action)
	}
	if h := p.Rules.HoursLimit; h != nil {
		if math.IsNaN(*h) || math.IsInf(*h, 0) {
			return fmt.Errorf("%w: %s: hours_limit must be a finite number", ErrInvalidProfile, p.Name)
		}
		if *h < 0 {
			return fmt.Errorf("%w: %s: hours_limit must not be negative", ErrInvalidProfile, p.Name)
		}
	}
	switch p.Rules.Granularity {
	case "", GranularityDate, GranularityDateTime:
	default:
		return fmt.Errorf("%w: %s: unknown granularity %q", ErrInvalidProfile, p.Name, p.Rules.Granularity)
	}
	switch p.Rules.RoleSource {
	case "", RoleSourcePositionTitle, RoleSourceRole:
	default:
		return fmt.Errorf("%w: %s: unknown role source %q", ErrInvalidProfile, p.Name, p.Rules.RoleSource)
	}
	if p.Action == ActionDelete && (p.Rules.CheckStatus != nil || p.Rules.CheckSameDay != nil) {
		return fmt.Errorf("%w: %s: status and same-day checks only apply to edits", ErrInvalidProfile, p.Name)
	}
	return nil
}

// ProfileStore persists named profiles
type ProfileStore interface {
	GetProfile(ctx context.Context, name string) (*Profile, error)
	PutProfile(ctx context.Context, p *Profile) error
	DeleteProfile(ctx context.Context, name string) error
	ListProfiles(ctx context.Context) ([]*Profile, error)
}

// ProfileHistoryStore is implemented by stores that keep superseded profile versions.
type ProfileHistoryStore interface {
	GetProfileHistory(ctx context.Context, name string) ([]*Profile, error)
}

// Built-in profile names
const (
	ProfileRecordEdit          = "record.edit"
	ProfileRecordDelete        = "record.delete"
	ProfileReportEdit          = "report.edit"
	ProfileReportDelete        = "report.delete"
	ProfileNursingNoteEdit     = "nursing_note.edit"
	ProfileMedicineLabelDelete = "medicine_label.delete"
)

// BuiltinProfiles returns fresh copies of the rule-sets shipped with the engine.
func BuiltinProfiles() []*Profile {
	return []*Profile{
		{
			Name:        ProfileRecordEdit,
			Action:      ActionEdit,
			Description: "ward record edit, 24h window, owner or allowlisted title",
		},
		{
			Name:        ProfileRecordDelete,
			Action:      ActionDelete,
			Description: "ward record delete, 2h window, owner or admin/head nurse",
		},
		{
			Name:        ProfileReportEdit,
			Action:      ActionEdit,
			Description: "shift report edit, measured from the report date",
			Rules:       RuleSpec{Granularity: GranularityDate, CheckStatus: Bool(true)},
		},
		{
			Name:        ProfileReportDelete,
			Action:      ActionDelete,
			Description: "shift report delete, measured from the report date",
			Rules:       RuleSpec{Granularity: GranularityDate},
		},
		{
			Name:        ProfileNursingNoteEdit,
			Action:      ActionEdit,
			Description: "nursing note edit within 24h",
			Rules:       RuleSpec{HoursLimit: Hours(24), CheckSameDay: Bool(false)},
		},
		{
			Name:        ProfileMedicineLabelDelete,
			Action:      ActionDelete,
			Description: "medicine label delete within 2h",
			Rules:       RuleSpec{HoursLimit: Hours(2), AllowedRoles: []string{RoleAdmin, "head_nurse"}},
		},
	}
}

func builtinProfile(name string) (*Profile, bool) {
	for _, p := range BuiltinProfiles() {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// sortProfiles orders profiles by name for stable listings.
func sortProfiles(ps []*Profile) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].Name < ps[j].Name })
}
