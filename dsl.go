package recordperm

import (
	"fmt"
	"strconv"
	"strings"
)

// DSL Syntax:
// locale <tag>
// timezone <zone>
// profile <name> <edit|delete> [hours=<n>] [time=<bool>] [creator=<bool>] [role=<bool>]
//         [same_day=<bool>] [status=<bool>] [roles=<a,b>] [statuses=<a,b>]
//         [granularity=date|datetime] [role_source=position_title|role] [desc="<text>"]
// engine <key>=<value>...

type DSLParser struct {
	line int
}

func NewDSLParser() *DSLParser {
	return &DSLParser{}
}

type DSLEncoder struct {
	buf []byte
}

func NewDSLEncoder() *DSLEncoder {
	return &DSLEncoder{buf: make([]byte, 0, 1024)}
}

func (e *DSLEncoder) Encode(cfg *Config) ([]byte, error) {
	e.buf = e.buf[:0]
	if cfg.Locale != "" {
		e.buf = append(e.buf, "locale "...)
		e.buf = append(e.buf, cfg.Locale...)
		e.buf = append(e.buf, '\n')
	}
	if cfg.Timezone != "" {
		e.buf = append(e.buf, "timezone "...)
		e.buf = append(e.buf, cfg.Timezone...)
		e.buf = append(e.buf, '\n')
	}

	for _, p := range cfg.Profiles {
		if strings.ContainsAny(p.Name, " \t\"") {
			return nil, fmt.Errorf("profile name %q cannot be written as DSL", p.Name)
		}
		e.buf = append(e.buf, "profile "...)
		e.buf = append(e.buf, p.Name...)
		e.buf = append(e.buf, ' ')
		e.buf = append(e.buf, p.Action...)
		r := p.Rules
		if r.HoursLimit != nil {
			e.kv("hours", strconv.FormatFloat(*r.HoursLimit, 'f', -1, 64))
		}
		e.boolKV("time", r.CheckTime)
		e.boolKV("creator", r.CheckCreator)
		e.boolKV("role", r.CheckRole)
		e.boolKV("same_day", r.CheckSameDay)
		e.boolKV("status", r.CheckStatus)
		if r.AllowedRoles != nil {
			e.kv("roles", strings.Join(r.AllowedRoles, ","))
		}
		if r.EditableStatuses != nil {
			e.kv("statuses", strings.Join(r.EditableStatuses, ","))
		}
		if r.Granularity != "" {
			e.kv("granularity", string(r.Granularity))
		}
		if r.RoleSource != "" {
			e.kv("role_source", string(r.RoleSource))
		}
		if p.Description != "" {
			if strings.ContainsRune(p.Description, '"') {
				return nil, fmt.Errorf("profile %s: description cannot contain quotes", p.Name)
			}
			e.kv("desc", `"`+p.Description+`"`)
		}
		e.buf = append(e.buf, '\n')
	}

	eng := cfg.Engine
	if eng != (EngineConfig{}) {
		e.buf = append(e.buf, "engine"...)
		e.kv("cache_ttl", strconv.FormatInt(eng.ProfileCacheTTL, 10))
		e.kv("counters", strconv.FormatInt(eng.ProfileCacheNumCounters, 10))
		e.kv("max_cost", strconv.FormatInt(eng.ProfileCacheMaxCost, 10))
		e.kv("audit_buffer", strconv.Itoa(eng.AuditBufferSize))
		e.kv("workers", strconv.Itoa(eng.BatchWorkerCount))
		e.buf = append(e.buf, '\n')
	}
	return e.buf, nil
}

func (e *DSLEncoder) kv(key, val string) {
	e.buf = append(e.buf, ' ')
	e.buf = append(e.buf, key...)
	e.buf = append(e.buf, '=')
	e.buf = append(e.buf, val...)
}

func (e *DSLEncoder) boolKV(key string, b *bool) {
	if b != nil {
		e.kv(key, strconv.FormatBool(*b))
	}
}

func (p *DSLParser) Parse(data []byte) (*Config, error) {
	cfg := &Config{
		Version:  1,
		Profiles: make([]*Profile, 0, 8),
	}

	p.line = 0
	start := 0
	for i := 0; i <= len(data); i++ {
		if i == len(data) || data[i] == '\n' {
			p.line++
			line := data[start:i]
			start = i + 1

			for len(line) > 0 && (line[0] == ' ' || line[0] == '\t') {
				line = line[1:]
			}
			for len(line) > 0 && (line[len(line)-1] == ' ' || line[len(line)-1] == '\t' || line[len(line)-1] == '\r') {
				line = line[:len(line)-1]
			}

			if len(line) == 0 || line[0] == '#' {
				continue
			}

			parts, err := splitLineBytes(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", p.line, err)
			}
			if len(parts) == 0 {
				continue
			}

			switch parts[0] {
			case "locale":
				if len(parts) != 2 {
					return nil, fmt.Errorf("line %d: locale requires: <tag>", p.line)
				}
				cfg.Locale = parts[1]
			case "timezone":
				if len(parts) != 2 {
					return nil, fmt.Errorf("line %d: timezone requires: <zone>", p.line)
				}
				cfg.Timezone = parts[1]
			case "profile":
				if err := p.parseProfile(cfg, parts[1:]); err != nil {
					return nil, fmt.Errorf("line %d: %w", p.line, err)
				}
			case "engine":
				if err := p.parseEngine(cfg, parts[1:]); err != nil {
					return nil, fmt.Errorf("line %d: %w", p.line, err)
				}
			default:
				return nil, fmt.Errorf("line %d: unknown directive: %s", p.line, parts[0])
			}
		}
	}

	return cfg, nil
}

// splitLineBytes splits on blanks outside double quotes. Quotes are dropped,
// so key="a b" yields the token key=a b.
func splitLineBytes(line []byte) ([]string, error) {
	parts := make([]string, 0, 8)
	var tok strings.Builder
	inQuote, have := false, false

	for _, ch := range line {
		switch {
		case ch == '"':
			inQuote = !inQuote
			have = true
		case (ch == ' ' || ch == '\t') && !inQuote:
			if have {
				parts = append(parts, tok.String())
				tok.Reset()
				have = false
			}
		default:
			tok.WriteByte(ch)
			have = true
		}
	}
	if inQuote {
		return nil, fmt.Errorf("unterminated quote")
	}
	if have {
		parts = append(parts, tok.String())
	}
	return parts, nil
}

func (p *DSLParser) parseProfile(cfg *Config, parts []string) error {
	if len(parts) < 2 {
		return fmt.Errorf("profile requires: <name> <action> [key=value...]")
	}
	prof := &Profile{Name: parts[0], Action: Action(parts[1])}
	for _, kv := range parts[2:] {
		idx := strings.Index(kv, "=")
		if idx == -1 {
			return fmt.Errorf("profile %s: expected key=value, got %q", prof.Name, kv)
		}
		key, val := kv[:idx], kv[idx+1:]
		var err error
		switch key {
		case "hours":
			var h float64
			if h, err = strconv.ParseFloat(val, 64); err == nil {
				prof.Rules.HoursLimit = Hours(h)
			}
		case "time":
			prof.Rules.CheckTime, err = parseBoolPtr(val)
		case "creator":
			prof.Rules.CheckCreator, err = parseBoolPtr(val)
		case "role":
			prof.Rules.CheckRole, err = parseBoolPtr(val)
		case "same_day":
			prof.Rules.CheckSameDay, err = parseBoolPtr(val)
		case "status":
			prof.Rules.CheckStatus, err = parseBoolPtr(val)
		case "roles":
			prof.Rules.AllowedRoles = parseList(val)
		case "statuses":
			prof.Rules.EditableStatuses = parseList(val)
		case "granularity":
			prof.Rules.Granularity = Granularity(val)
		case "role_source":
			prof.Rules.RoleSource = RoleSource(val)
		case "desc":
			prof.Description = val
		default:
			return fmt.Errorf("profile %s: unknown key %q", prof.Name, key)
		}
		if err != nil {
			return fmt.Errorf("profile %s: %s: %w", prof.Name, key, err)
		}
	}
	cfg.Profiles = append(cfg.Profiles, prof)
	return nil
}

func (p *DSLParser) parseEngine(cfg *Config, parts []string) error {
	for _, kv := range parts {
		idx := strings.Index(kv, "=")
		if idx == -1 {
			continue
		}
		key, val := kv[:idx], kv[idx+1:]
		var err error
		switch key {
		case "cache_ttl":
			cfg.Engine.ProfileCacheTTL, err = strconv.ParseInt(val, 10, 64)
		case "counters":
			cfg.Engine.ProfileCacheNumCounters, err = strconv.ParseInt(val, 10, 64)
		case "max_cost":
			cfg.Engine.ProfileCacheMaxCost, err = strconv.ParseInt(val, 10, 64)
		case "audit_buffer":
			cfg.Engine.AuditBufferSize, err = strconv.Atoi(val)
		case "workers":
			cfg.Engine.BatchWorkerCount, err = strconv.Atoi(val)
		}
		if err != nil {
			return fmt.Errorf("engine %s: %w", key, err)
		}
	}
	return nil
}

func parseBoolPtr(s string) (*bool, error) {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// parseList splits a comma list; an empty value is an explicit empty list.
func parseList(s string) []string {
	out := []string{}
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
