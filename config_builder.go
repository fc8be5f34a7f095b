package recordperm

// ConfigBuilder provides fluent API for building configurations
type ConfigBuilder struct {
	cfg *Config
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		cfg: &Config{
			Version:  1,
			Profiles: []*Profile{},
			Engine:   DefaultEngineConfig(),
		},
	}
}

func (b *ConfigBuilder) Version(v uint16) *ConfigBuilder {
	b.cfg.Version = v
	return b
}

func (b *ConfigBuilder) Locale(locale string) *ConfigBuilder {
	b.cfg.Locale = locale
	return b
}

func (b *ConfigBuilder) Timezone(tz string) *ConfigBuilder {
	b.cfg.Timezone = tz
	return b
}

func (b *ConfigBuilder) AddProfile(p *Profile) *ConfigBuilder {
	b.cfg.Profiles = append(b.cfg.Profiles, p)
	return b
}

func (b *ConfigBuilder) EngineSettings(fn func(*EngineConfig)) *ConfigBuilder {
	fn(&b.cfg.Engine)
	return b
}

func (b *ConfigBuilder) Build() *Config {
	return b.cfg
}

func (b *ConfigBuilder) ToYAML() ([]byte, error) {
	return b.cfg.ToYAML()
}

func (b *ConfigBuilder) ToJSON() ([]byte, error) {
	return b.cfg.ToJSON()
}
