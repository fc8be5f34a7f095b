package recordperm

// ProfileBuilder provides a fluent API for profiles
type ProfileBuilder struct{ p *Profile }

func NewProfileBuilder(name string, action Action) *ProfileBuilder {
	return &ProfileBuilder{p: &Profile{Name: name, Action: action}}
}

func (b *ProfileBuilder) Description(d string) *ProfileBuilder { b.p.Description = d; return b }
func (b *ProfileBuilder) CheckTime(on bool) *ProfileBuilder    { b.p.Rules.CheckTime = Bool(on); return b }
func (b *ProfileBuilder) CheckCreator(on bool) *ProfileBuilder { b.p.Rules.CheckCreator = Bool(on); return b }
func (b *ProfileBuilder) CheckRole(on bool) *ProfileBuilder    { b.p.Rules.CheckRole = Bool(on); return b }
func (b *ProfileBuilder) CheckSameDay(on bool) *ProfileBuilder { b.p.Rules.CheckSameDay = Bool(on); return b }
func (b *ProfileBuilder) CheckStatus(on bool) *ProfileBuilder  { b.p.Rules.CheckStatus = Bool(on); return b }
func (b *ProfileBuilder) HoursLimit(h float64) *ProfileBuilder { b.p.Rules.HoursLimit = Hours(h); return b }
func (b *ProfileBuilder) AllowedRoles(r ...string) *ProfileBuilder {
	b.p.Rules.AllowedRoles = append([]string{}, r...)
	return b
}
func (b *ProfileBuilder) EditableStatuses(s ...string) *ProfileBuilder {
	b.p.Rules.EditableStatuses = append([]string{}, s...)
	return b
}
func (b *ProfileBuilder) Granularity(g Granularity) *ProfileBuilder { b.p.Rules.Granularity = g; return b }
func (b *ProfileBuilder) RoleSource(s RoleSource) *ProfileBuilder   { b.p.Rules.RoleSource = s; return b }
func (b *ProfileBuilder) Build() *Profile                           { return b.p }
