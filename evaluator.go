package recordperm

import (
	"time"
)

// evalOptions carries the per-engine context of a pure evaluation
type evalOptions struct {
	loc     *time.Location
	catalog *Catalog
	trace   bool
}

// EvaluateEdit decides whether user may edit rec at instant now. Rules run in
// a fixed order and the first failing rule's reason is returned.
func EvaluateEdit(rec *Record, user *ActingUser, cfg RuleConfig, now time.Time) Decision {
	return evaluate(ActionEdit, rec, user, cfg, now, evalOptions{})
}

// EvaluateDelete decides whether user may delete rec at instant now. Status and
// same-day gates are never consulted for deletes.
func EvaluateDelete(rec *Record, user *ActingUser, cfg RuleConfig, now time.Time) Decision {
	return evaluate(ActionDelete, rec, user, cfg, now, evalOptions{})
}

// Evaluate dispatches on action.
func Evaluate(action Action, rec *Record, user *ActingUser, cfg RuleConfig, now time.Time) Decision {
	return evaluate(action, rec, user, cfg, now, evalOptions{})
}

// Explain is Evaluate with a step-by-step trace attached to the decision.
func Explain(action Action, rec *Record, user *ActingUser, cfg RuleConfig, now time.Time) Decision {
	return evaluate(action, rec, user, cfg, now, evalOptions{trace: true})
}

func evaluate(action Action, rec *Record, user *ActingUser, cfg RuleConfig, now time.Time, opts evalOptions) Decision {
	if rec == nil {
		rec = &Record{}
	}
	if user == nil {
		user = &ActingUser{}
	}
	catalog := opts.catalog
	if catalog == nil {
		catalog = English
	}
	var trace []string
	note := func(line string) {
		if opts.trace {
			trace = append(trace, line)
		}
	}
	finish := func(d Decision) Decision {
		d.Timestamp = now
		d.Trace = trace
		return d
	}

	if action != ActionEdit && action != ActionDelete {
		note("DENY: unsupported action " + string(action))
		return finish(Deny(RuleDefault, ReasonUnknownAction, catalog.Reason(ReasonUnknownAction)))
	}

	// 1. admin override
	if user.IsAdmin() {
		note("ALLOW: admin override")
		return finish(Allow(RuleAdminOverride))
	}
	note("SKIP: user is not admin")

	// 2. status gate (edit only)
	if action == ActionEdit {
		switch {
		case !cfg.CheckStatus:
			note("SKIP: status check disabled")
		case !StatusEditable(rec.Status, cfg.editableStatuses()...):
			note("DENY: status " + rec.Status + " is locked")
			return finish(Deny(RuleStatus, ReasonStatusLocked, catalog.Reason(ReasonStatusLocked)))
		default:
			note("PASS: status editable")
		}
	}

	// 3. time window
	if cfg.CheckTime {
		inst, ok := RecordInstant(rec, cfg.Granularity, opts.loc)
		switch {
		case !ok:
			note("SKIP: record timestamp unreadable")
		case !WithinHours(inst, now, cfg.HoursLimit):
			note("DENY: outside " + formatHours(cfg.HoursLimit) + "h window")
			code := ReasonEditWindow
			if action == ActionDelete {
				code = ReasonDeleteWindow
			}
			return finish(Deny(RuleTimeWindow, code, catalog.Reason(code, formatHours(cfg.HoursLimit))))
		default:
			note("PASS: within " + formatHours(cfg.HoursLimit) + "h window")
		}
	} else {
		note("SKIP: time check disabled")
	}

	// 4. same calendar day (edit only)
	if action == ActionEdit {
		_, readable := recordDay(rec.RecordDate)
		switch {
		case !cfg.CheckSameDay:
			note("SKIP: same-day check disabled")
		case !readable:
			note("SKIP: record date unreadable")
		case !IsSameCalendarDay(rec.RecordDate, now, opts.loc):
			note("DENY: record not dated today")
			return finish(Deny(RuleSameDay, ReasonSameDay, catalog.Reason(ReasonSameDay)))
		default:
			note("PASS: recorded today")
		}
	}

	// 5. ownership with role fallback
	if !cfg.CheckCreator {
		note("SKIP: creator check disabled")
		return finish(Allow(RuleDefault))
	}
	if IsOwner(rec.CreatedBy, user.ID) {
		note("PASS: user created the record")
		return finish(Allow(RuleDefault))
	}
	role := user.roleFor(cfg.RoleSource)
	if cfg.CheckRole && RoleAllowed(role, cfg.AllowedRoles) {
		note("ALLOW: role " + role + " bypasses ownership")
		return finish(Allow(RuleRoleFallback))
	}
	note("DENY: not owner and role " + role + " not allowed")
	code := ReasonEditNotOwner
	if action == ActionDelete {
		code = ReasonDeleteNotOwner
	}
	return finish(Deny(RuleOwnership, code, catalog.Reason(code)))
}
