package recordperm

import (
	"strings"
	"time"
)

// ============================================================================
// DOMAIN OBJECTS
// ============================================================================

// Action is the kind of mutation being authorized
type Action string

const (
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// RoleAdmin is the global role that overrides every rule
const RoleAdmin = "admin"

// Record is the ward record whose mutation is being authorized
type Record struct {
	ID         string `json:"id,omitempty" yaml:"id,omitempty"`
	CreatedBy  string `json:"created_by" yaml:"created_by"`
	RecordDate string `json:"record_date" yaml:"record_date"`           // YYYY-MM-DD or a full timestamp
	RecordTime string `json:"record_time,omitempty" yaml:"record_time,omitempty"` // optional HH:MM[:SS]
	Status     string `json:"status,omitempty" yaml:"status,omitempty"`
}

// ActingUser represents who is requesting the mutation
type ActingUser struct {
	ID            string `json:"id" yaml:"id"`
	Role          string `json:"role" yaml:"role"`
	PositionTitle string `json:"position_title" yaml:"position_title"`
}

// IsAdmin reports whether the user carries the global admin role.
func (u *ActingUser) IsAdmin() bool {
	return u != nil && strings.EqualFold(strings.TrimSpace(u.Role), RoleAdmin)
}

// roleFor returns the attribute the allowlist check compares against.
func (u *ActingUser) roleFor(src RoleSource) string {
	if u == nil {
		return ""
	}
	if src == RoleSourceRole {
		return u.Role
	}
	return u.PositionTitle
}

// Granularity selects how a record timestamp is built
type Granularity string

const (
	// GranularityDateTime combines record date and time; a missing time means midnight.
	GranularityDateTime Granularity = "datetime"
	// GranularityDate uses the record date only, at midnight.
	GranularityDate Granularity = "date"
)

// RoleSource selects which user attribute feeds the role allowlist
type RoleSource string

const (
	RoleSourcePositionTitle RoleSource = "position_title"
	RoleSourceRole          RoleSource = "role"
)

// DefaultEditableStatuses are the lifecycle tags that still allow editing.
var DefaultEditableStatuses = []string{"draft", "pending"}

// RuleConfig is the fully resolved rule-set for one evaluation
type RuleConfig struct {
	CheckTime        bool        `json:"check_time" yaml:"check_time"`
	CheckCreator     bool        `json:"check_creator" yaml:"check_creator"`
	CheckRole        bool        `json:"check_role" yaml:"check_role"`
	CheckSameDay     bool        `json:"check_same_day" yaml:"check_same_day"`
	CheckStatus      bool        `json:"check_status" yaml:"check_status"`
	HoursLimit       float64     `json:"hours_limit" yaml:"hours_limit"`
	AllowedRoles     []string    `json:"allowed_roles" yaml:"allowed_roles"`
	Granularity      Granularity `json:"granularity" yaml:"granularity"`
	RoleSource       RoleSource  `json:"role_source" yaml:"role_source"`
	EditableStatuses []string    `json:"editable_statuses" yaml:"editable_statuses"`
}

// DefaultEditConfig returns the rule-set used for edits when nothing is overridden.
func DefaultEditConfig() RuleConfig {
	return RuleConfig{
		CheckTime:        true,
		CheckCreator:     true,
		CheckRole:        true,
		HoursLimit:       24,
		AllowedRoles:     []string{"admin", "head_nurse", "supervisor"},
		Granularity:      GranularityDateTime,
		RoleSource:       RoleSourcePositionTitle,
		EditableStatuses: append([]string(nil), DefaultEditableStatuses...),
	}
}

// DefaultDeleteConfig returns the rule-set used for deletes. The window is
// tighter than for edits and the allowlist is limited to admins and head nurses.
func DefaultDeleteConfig() RuleConfig {
	return RuleConfig{
		CheckTime:    true,
		CheckCreator: true,
		CheckRole:    true,
		HoursLimit:   2,
		AllowedRoles: []string{"admin", "head_nurse"},
		Granularity:  GranularityDateTime,
		RoleSource:   RoleSourcePositionTitle,
	}
}

// DefaultConfig returns the defaults for an action. Unknown actions get the
// stricter delete defaults.
func DefaultConfig(action Action) RuleConfig {
	if action == ActionEdit {
		return DefaultEditConfig()
	}
	return DefaultDeleteConfig()
}

func (c RuleConfig) editableStatuses() []string {
	if len(c.EditableStatuses) == 0 {
		return DefaultEditableStatuses
	}
	return c.EditableStatuses
}

// RuleSpec is the wire form of a RuleConfig. Nil fields take the action's
// defaults, explicit zero values are kept.
type RuleSpec struct {
	CheckTime        *bool       `json:"check_time,omitempty" yaml:"check_time,omitempty"`
	CheckCreator     *bool       `json:"check_creator,omitempty" yaml:"check_creator,omitempty"`
	CheckRole        *bool       `json:"check_role,omitempty" yaml:"check_role,omitempty"`
	CheckSameDay     *bool       `json:"check_same_day,omitempty" yaml:"check_same_day,omitempty"`
	CheckStatus      *bool       `json:"check_status,omitempty" yaml:"check_status,omitempty"`
	HoursLimit       *float64    `json:"hours_limit,omitempty" yaml:"hours_limit,omitempty"`
	AllowedRoles     []string    `json:"allowed_roles" yaml:"allowed_roles,omitempty"`
	Granularity      Granularity `json:"granularity,omitempty" yaml:"granularity,omitempty"`
	RoleSource       RoleSource  `json:"role_source,omitempty" yaml:"role_source,omitempty"`
	EditableStatuses []string    `json:"editable_statuses" yaml:"editable_statuses,omitempty"`
}

// Resolve merges s onto the defaults of action.
func (s RuleSpec) Resolve(action Action) RuleConfig {
	cfg := DefaultConfig(action)
	if s.CheckTime != nil {
		cfg.CheckTime = *s.CheckTime
	}
	if s.CheckCreator != nil {
		cfg.CheckCreator = *s.CheckCreator
	}
	if s.CheckRole != nil {
		cfg.CheckRole = *s.CheckRole
	}
	if s.CheckSameDay != nil {
		cfg.CheckSameDay = *s.CheckSameDay
	}
	if s.CheckStatus != nil {
		cfg.CheckStatus = *s.CheckStatus
	}
	if s.HoursLimit != nil {
		cfg.HoursLimit = *s.HoursLimit
	}
	if s.AllowedRoles != nil {
		cfg.AllowedRoles = append([]string(nil), s.AllowedRoles...)
	}
	if s.Granularity != "" {
		cfg.Granularity = s.Granularity
	}
	if s.RoleSource != "" {
		cfg.RoleSource = s.RoleSource
	}
	if s.EditableStatuses != nil {
		cfg.EditableStatuses = append([]string(nil), s.EditableStatuses...)
	}
	return cfg
}

// Bool returns a pointer to b, for RuleSpec literals.
func Bool(b bool) *bool { return &b }

// Hours returns a pointer to h, for RuleSpec literals.
func Hours(h float64) *float64 { return &h }

// RuleID names the rule that produced a decision
type RuleID string

const (
	RuleAdminOverride RuleID = "admin_override"
	RuleStatus        RuleID = "status"
	RuleTimeWindow    RuleID = "time_window"
	RuleSameDay       RuleID = "same_day"
	RuleOwnership     RuleID = "ownership"
	RuleRoleFallback  RuleID = "role_fallback"
	RuleDefault       RuleID = "default"
)

// Decision is the evaluator's output. Reason is empty when Allowed is true and is
// meant to be shown to the user verbatim otherwise.
type Decision struct {
	Allowed   bool       `json:"allowed"`
	Reason    string     `json:"reason,omitempty"`
	Code      ReasonCode `json:"code,omitempty"`
	Rule      RuleID     `json:"rule"`
	Trace     []string   `json:"trace,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// Allow builds an allowed decision attributed to rule.
func Allow(rule RuleID) Decision {
	return Decision{Allowed: true, Rule: rule}
}

// Deny builds a denied decision carrying a user-facing reason.
func Deny(rule RuleID, code ReasonCode, reason string) Decision {
	return Decision{Rule: rule, Code: code, Reason: reason}
}

// Denied is the inverse of Allowed, for call sites that read better that way.
func (d Decision) Denied() bool { return !d.Allowed }
