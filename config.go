package recordperm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents a complete recordperm configuration
type Config struct {
	Version  uint16       `json:"version" yaml:"version"`
	Locale   string       `json:"locale,omitempty" yaml:"locale,omitempty"`
	Timezone string       `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	Profiles []*Profile   `json:"profiles" yaml:"profiles"`
	Engine   EngineConfig `json:"engine" yaml:"engine"`
}

type EngineConfig struct {
	ProfileCacheTTL         int64 `json:"profile_cache_ttl_ms" yaml:"profile_cache_ttl_ms"`
	ProfileCacheNumCounters int64 `json:"profile_cache_num_counters" yaml:"profile_cache_num_counters"`
	ProfileCacheMaxCost     int64 `json:"profile_cache_max_cost" yaml:"profile_cache_max_cost"`
	AuditBufferSize         int   `json:"audit_buffer_size" yaml:"audit_buffer_size"`
	BatchWorkerCount        int   `json:"batch_worker_count" yaml:"batch_worker_count"`
}

// DefaultEngineConfig returns the settings NewEngine starts from.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		ProfileCacheTTL:         30_000,
		ProfileCacheNumCounters: 10_000,
		ProfileCacheMaxCost:     1_000,
		AuditBufferSize:         1024,
		BatchWorkerCount:        4,
	}
}

// withDefaults fills unset (non-positive) fields from DefaultEngineConfig.
func (c EngineConfig) withDefaults() EngineConfig {
	d := DefaultEngineConfig()
	if c.ProfileCacheTTL <= 0 {
		c.ProfileCacheTTL = d.ProfileCacheTTL
	}
	if c.ProfileCacheNumCounters <= 0 {
		c.ProfileCacheNumCounters = d.ProfileCacheNumCounters
	}
	if c.ProfileCacheMaxCost <= 0 {
		c.ProfileCacheMaxCost = d.ProfileCacheMaxCost
	}
	if c.AuditBufferSize <= 0 {
		c.AuditBufferSize = d.AuditBufferSize
	}
	if c.BatchWorkerCount <= 0 {
		c.BatchWorkerCount = d.BatchWorkerCount
	}
	return c
}

func (c EngineConfig) profileCacheTTL() time.Duration {
	return time.Duration(c.ProfileCacheTTL) * time.Millisecond
}

// Validate checks every profile and the zone name.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	seen := make(map[string]bool, len(c.Profiles))
	for i, p := range c.Profiles {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("profile #%d: %w", i, err)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: duplicate profile %s", ErrInvalidProfile, p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// Location loads the configured zone. An empty timezone means time.Local.
func (c *Config) Location() (*time.Location, error) {
	if strings.TrimSpace(c.Timezone) == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ConfigLoader loads configuration from various formats
type ConfigLoader struct{}

func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{}
}

func (l *ConfigLoader) LoadYAML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *ConfigLoader) LoadJSON(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDSL parses the line-oriented profile syntax
func (l *ConfigLoader) LoadDSL(data []byte) (*Config, error) {
	return NewDSLParser().Parse(data)
}

// Load picks a decoder from the file extension: .yaml/.yml, .json or .rp (DSL).
func (l *ConfigLoader) Load(name string, data []byte) (*Config, error) {
	switch {
	case strings.HasSuffix(name, ".yaml"), strings.HasSuffix(name, ".yml"):
		return l.LoadYAML(data)
	case strings.HasSuffix(name, ".json"):
		return l.LoadJSON(data)
	case strings.HasSuffix(name, ".rp"), strings.HasSuffix(name, ".dsl"):
		return l.LoadDSL(data)
	}
	return nil, fmt.Errorf("unsupported config format: %s", name)
}

// ToYAML exports config to YAML
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// ToJSON exports config to JSON
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// ApplyConfig applies locale, timezone and engine settings, then upserts every
// profile into the profile store.
func (e *Engine) ApplyConfig(ctx context.Context, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	e.mu.Lock()
	if cfg.Timezone != "" {
		e.loc = loc
	}
	if cfg.Locale != "" {
		e.catalog = CatalogFor(cfg.Locale)
	}
	// cache sizing and the audit buffer are fixed once the engine runs
	if cfg.Engine.ProfileCacheTTL > 0 {
		e.settings.ProfileCacheTTL = cfg.Engine.ProfileCacheTTL
	}
	if cfg.Engine.BatchWorkerCount > 0 {
		e.settings.BatchWorkerCount = cfg.Engine.BatchWorkerCount
	}
	e.mu.Unlock()

	for _, p := range cfg.Profiles {
		if err := e.PutProfile(ctx, p); err != nil {
			return fmt.Errorf("apply profile %s: %w", p.Name, err)
		}
	}
	e.InvalidateProfileCache()
	return nil
}
