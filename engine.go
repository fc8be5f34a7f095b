package recordperm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/oarkflow/recordperm/logger"
)

// ErrNoStore is returned by write operations on an engine built without the
// store they need.
var ErrNoStore = errors.New("no store configured")

// EngineOption configures an Engine
type EngineOption func(*Engine) error

// Engine evaluates named profiles against records. It is safe for concurrent use.
type Engine struct {
	profiles    ProfileStore
	auditStore  AuditStore
	logger      logger.Logger
	traceIDFunc logger.TraceIDFunc
	clock       func() time.Time
	settings    EngineConfig

	// resolved profiles by name
	profileCache *ristretto.Cache

	mu      sync.RWMutex
	loc     *time.Location
	catalog *Catalog
	closed  bool
	// bumped on every profile write; a cache fill that started under an
	// older generation is discarded
	profileGen uint64

	// asynchronous audit channel so evaluation never waits on storage
	auditCh   chan AuditEntry
	auditDone chan struct{}
}

// NewEngine builds an engine over profiles. A nil store serves the built-in
// profiles only.
func NewEngine(profiles ProfileStore, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		profiles: profiles,
		logger:   logger.NewNullLogger(),
		clock:    time.Now,
		settings: DefaultEngineConfig(),
		loc:      time.Local,
		catalog:  English,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	if e.traceIDFunc == nil {
		e.traceIDFunc = uuid.NewString
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: e.settings.ProfileCacheNumCounters,
		MaxCost:     e.settings.ProfileCacheMaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("profile cache: %w", err)
	}
	e.profileCache = cache

	if e.auditStore != nil {
		e.auditCh = make(chan AuditEntry, e.settings.AuditBufferSize)
		e.auditDone = make(chan struct{})
		go e.auditWorker()
	}
	return e, nil
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(clock func() time.Time) EngineOption {
	return func(e *Engine) error {
		if clock == nil {
			return errors.New("clock must not be nil")
		}
		e.clock = clock
		return nil
	}
}

// WithLocation sets the zone in which "today" is computed and naive record
// timestamps are interpreted.
func WithLocation(loc *time.Location) EngineOption {
	return func(e *Engine) error {
		if loc == nil {
			return errors.New("location must not be nil")
		}
		e.loc = loc
		return nil
	}
}

// WithLocale picks the reason catalog, e.g. "th" or an Accept-Language value.
func WithLocale(locale string) EngineOption {
	return func(e *Engine) error {
		e.catalog = CatalogFor(locale)
		return nil
	}
}

// WithCatalog installs a custom reason catalog.
func WithCatalog(c *Catalog) EngineOption {
	return func(e *Engine) error {
		if c == nil {
			return errors.New("catalog must not be nil")
		}
		e.catalog = c
		return nil
	}
}

// WithAuditStore enables asynchronous decision auditing.
func WithAuditStore(s AuditStore) EngineOption {
	return func(e *Engine) error {
		e.auditStore = s
		return nil
	}
}

// WithEngineConfig sets cache sizes, audit buffering and batch parallelism.
func WithEngineConfig(cfg EngineConfig) EngineOption {
	return func(e *Engine) error {
		e.settings = cfg.withDefaults()
		return nil
	}
}

// Close stops the audit worker after draining queued entries.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	if e.auditCh != nil {
		close(e.auditCh)
	}
	e.mu.Unlock()
	if e.auditDone != nil {
		<-e.auditDone
	}
	e.profileCache.Close()
}

// Location returns the zone the engine evaluates in.
func (e *Engine) Location() *time.Location {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loc
}

func (e *Engine) currentSettings() EngineConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.settings
}

// ============================================================================
// DECISIONS
// ============================================================================

// CanEdit evaluates an edit against profile; an empty profile means record.edit.
func (e *Engine) CanEdit(ctx context.Context, rec *Record, user *ActingUser, profile string) (Decision, error) {
	if profile == "" {
		profile = ProfileRecordEdit
	}
	return e.Check(ctx, ActionEdit, rec, user, profile)
}

// CanDelete evaluates a delete against profile; an empty profile means record.delete.
func (e *Engine) CanDelete(ctx context.Context, rec *Record, user *ActingUser, profile string) (Decision, error) {
	if profile == "" {
		profile = ProfileRecordDelete
	}
	return e.Check(ctx, ActionDelete, rec, user, profile)
}

// Check evaluates action against a named profile. Denials are returned as a
// Decision; an error means the profile could not be resolved.
func (e *Engine) Check(ctx context.Context, action Action, rec *Record, user *ActingUser, profile string) (Decision, error) {
	p, err := e.profileFor(ctx, action, profile)
	if err != nil {
		return Decision{}, err
	}
	return e.decide(ctx, action, rec, user, p.Config(), p.Name, e.clock(), nil, false, false), nil
}

// CheckWith evaluates action against an inline rule-set.
func (e *Engine) CheckWith(ctx context.Context, action Action, rec *Record, user *ActingUser, cfg RuleConfig) Decision {
	return e.decide(ctx, action, rec, user, cfg, "", e.clock(), nil, false, false)
}

// Explain is Check with a rule-by-rule trace.
func (e *Engine) Explain(ctx context.Context, action Action, rec *Record, user *ActingUser, profile string) (Decision, error) {
	p, err := e.profileFor(ctx, action, profile)
	if err != nil {
		return Decision{}, err
	}
	return e.decide(ctx, action, rec, user, p.Config(), p.Name, e.clock(), nil, true, false), nil
}

// CheckRequest is one row of a batch
type CheckRequest struct {
	Profile string      `json:"profile"`
	Action  Action      `json:"action,omitempty"` // defaults to the profile's action
	Record  *Record     `json:"record"`
	User    *ActingUser `json:"user"`
}

// BatchEvaluate evaluates every request at the same instant, e.g. one row per
// record of a list screen. Profiles are resolved up front so a bad name fails
// the whole batch before anything is evaluated.
func (e *Engine) BatchEvaluate(ctx context.Context, reqs []CheckRequest) ([]Decision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resolved := make(map[string]*Profile, 4)
	for _, r := range reqs {
		p, ok := resolved[r.Profile]
		if !ok {
			var err error
			if p, err = e.resolveProfile(ctx, r.Profile); err != nil {
				return nil, err
			}
			resolved[r.Profile] = p
		}
		if r.Action != "" && r.Action != p.Action {
			return nil, fmt.Errorf("%w: profile %s is for %s, not %s", ErrInvalidProfile, p.Name, p.Action, r.Action)
		}
	}

	now := e.clock()
	out := make([]Decision, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.currentSettings().BatchWorkerCount)
	for i := range reqs {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r := reqs[i]
			p := resolved[r.Profile]
			out[i] = e.decide(gctx, p.Action, r.Record, r.User, p.Config(), p.Name, now, nil, false, false)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ExplainRequest is the wire form of an explain call
type ExplainRequest struct {
	Profile string     `json:"profile"`
	Action  Action     `json:"action,omitempty"`
	Record  Record     `json:"record"`
	User    ActingUser `json:"user"`
	Locale  string     `json:"locale,omitempty"`
	// At evaluates at a fixed instant instead of now. Such what-if
	// evaluations are not audited.
	At time.Time `json:"at,omitempty"`
}

// ExplainRequest evaluates a wire request with trace.
func (e *Engine) ExplainRequest(ctx context.Context, req *ExplainRequest) (Decision, error) {
	return e.evaluateRequest(ctx, req, true)
}

func (e *Engine) evaluateRequest(ctx context.Context, req *ExplainRequest, trace bool) (Decision, error) {
	if req == nil {
		return Decision{}, errors.New("nil explain request")
	}
	p, err := e.resolveProfile(ctx, req.Profile)
	if err != nil {
		return Decision{}, err
	}
	action := req.Action
	if action == "" {
		action = p.Action
	}
	if action != p.Action {
		return Decision{}, fmt.Errorf("%w: profile %s is for %s, not %s", ErrInvalidProfile, p.Name, p.Action, action)
	}
	now, simulated := req.At, !req.At.IsZero()
	if !simulated {
		now = e.clock()
	}
	var catalog *Catalog
	if req.Locale != "" {
		catalog = CatalogFor(req.Locale)
	}
	rec, user := req.Record, req.User
	return e.decide(ctx, action, &rec, &user, p.Config(), p.Name, now, catalog, trace, simulated), nil
}

func (e *Engine) decide(ctx context.Context, action Action, rec *Record, user *ActingUser, cfg RuleConfig, profile string, now time.Time, catalog *Catalog, trace, simulated bool) Decision {
	e.mu.RLock()
	opts := evalOptions{loc: e.loc, catalog: e.catalog, trace: trace}
	e.mu.RUnlock()
	if catalog != nil {
		opts.catalog = catalog
	}
	d := evaluate(action, rec, user, cfg, now, opts)

	traceID := e.traceIDFunc()
	var recordID, userID string
	if rec != nil {
		recordID = rec.ID
	}
	if user != nil {
		userID = user.ID
	}
	e.logger.Debug("record permission decision",
		"trace_id", traceID,
		"profile", profile,
		"action", string(action),
		"record", recordID,
		"user", userID,
		"allowed", d.Allowed,
		"rule", string(d.Rule),
		"code", string(d.Code),
		"simulated", simulated,
	)
	if simulated {
		return d
	}
	e.audit(AuditEntry{
		ID:        uuid.NewString(),
		TraceID:   traceID,
		Timestamp: now,
		Profile:   profile,
		Action:    action,
		RecordID:  recordID,
		UserID:    userID,
		Decision:  d,
	})
	return d
}

func (e *Engine) audit(entry AuditEntry) {
	if e.auditCh == nil {
		return
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}
	select {
	case e.auditCh <- entry:
	default:
		// drop if channel is full to avoid blocking the caller
		e.logger.Error("audit buffer full, dropping entry", "trace_id", entry.TraceID)
	}
}

func (e *Engine) auditWorker() {
	defer close(e.auditDone)
	bg := context.Background()
	for entry := range e.auditCh {
		entry := entry
		if err := e.auditStore.LogDecision(bg, &entry); err != nil {
			e.logger.Error("audit store write failed", "trace_id", entry.TraceID, "error", err.Error())
		}
	}
}

// GetAccessLog queries the audit store.
func (e *Engine) GetAccessLog(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error) {
	if e.auditStore == nil {
		return nil, fmt.Errorf("audit log: %w", ErrNoStore)
	}
	return e.auditStore.GetAccessLog(ctx, filter)
}

// ============================================================================
// PROFILE OPERATIONS
// ============================================================================

// GetProfile resolves a profile by name from the store, then the built-ins.
func (e *Engine) GetProfile(ctx context.Context, name string) (*Profile, error) {
	p, err := e.resolveProfile(ctx, name)
	if err != nil {
		return nil, err
	}
	// the resolved profile is shared with the cache
	return p.Clone(), nil
}

// PutProfile validates and stores p, replacing any profile of the same name.
func (e *Engine) PutProfile(ctx context.Context, p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if e.profiles == nil {
		return fmt.Errorf("put profile %s: %w", p.Name, ErrNoStore)
	}
	p.UpdatedAt = e.clock()
	if err := e.profiles.PutProfile(ctx, p); err != nil {
		e.logger.Error("profile store write failed", "profile", p.Name, "error", err.Error())
		return fmt.Errorf("put profile %s: %w", p.Name, err)
	}
	e.forgetProfile(p.Name)
	e.logger.Info("profile stored", "profile", p.Name, "action", string(p.Action))
	return nil
}

// DeleteProfile removes a stored profile. A built-in of the same name becomes
// visible again.
func (e *Engine) DeleteProfile(ctx context.Context, name string) error {
	if e.profiles == nil {
		return fmt.Errorf("delete profile %s: %w", name, ErrNoStore)
	}
	if err := e.profiles.DeleteProfile(ctx, name); err != nil {
		return fmt.Errorf("delete profile %s: %w", name, err)
	}
	e.forgetProfile(name)
	return nil
}

// ListProfiles returns built-ins merged with stored profiles, the stored
// version winning on a name clash.
func (e *Engine) ListProfiles(ctx context.Context) ([]*Profile, error) {
	byName := make(map[string]*Profile)
	for _, p := range BuiltinProfiles() {
		byName[p.Name] = p
	}
	if e.profiles != nil {
		stored, err := e.profiles.ListProfiles(ctx)
		if err != nil {
			return nil, fmt.Errorf("list profiles: %w", err)
		}
		for _, p := range stored {
			byName[p.Name] = p
		}
	}
	out := make([]*Profile, 0, len(byName))
	for _, p := range byName {
		out = append(out, p)
	}
	sortProfiles(out)
	return out, nil
}

// GetProfileHistory returns the superseded versions of a stored profile,
// oldest first, when the store keeps them.
func (e *Engine) GetProfileHistory(ctx context.Context, name string) ([]*Profile, error) {
	hs, ok := e.profiles.(ProfileHistoryStore)
	if !ok {
		return nil, fmt.Errorf("profile history: %w", ErrNoStore)
	}
	return hs.GetProfileHistory(ctx, name)
}

// InvalidateProfileCache drops every cached profile.
func (e *Engine) InvalidateProfileCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profileGen++
	e.profileCache.Clear()
}

func (e *Engine) forgetProfile(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profileGen++
	e.profileCache.Del(name)
}

// cacheProfile stores p unless a profile write happened since gen was read.
func (e *Engine) cacheProfile(name string, p *Profile, gen uint64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.profileGen != gen {
		return
	}
	e.profileCache.SetWithTTL(name, p, 1, e.settings.profileCacheTTL())
	// settle the buffered write so a later Del cannot be overtaken by it
	e.profileCache.Wait()
}

func (e *Engine) profileFor(ctx context.Context, action Action, name string) (*Profile, error) {
	p, err := e.resolveProfile(ctx, name)
	if err != nil {
		return nil, err
	}
	if p.Action != action {
		return nil, fmt.Errorf("%w: profile %s is for %s, not %s", ErrInvalidProfile, p.Name, p.Action, action)
	}
	return p, nil
}

func (e *Engine) resolveProfile(ctx context.Context, name string) (*Profile, error) {
	if v, ok := e.profileCache.Get(name); ok {
		if p, ok := v.(*Profile); ok {
			return p, nil
		}
	}
	e.mu.RLock()
	gen := e.profileGen
	e.mu.RUnlock()

	var p *Profile
	if e.profiles != nil {
		stored, err := e.profiles.GetProfile(ctx, name)
		switch {
		case err == nil:
			p = stored
		case !errors.Is(err, ErrProfileNotFound):
			e.logger.Error("profile store read failed", "profile", name, "error", err.Error())
			return nil, fmt.Errorf("get profile %s: %w", name, err)
		}
	}
	if p == nil {
		builtin, ok := builtinProfile(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
		}
		p = builtin
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	e.cacheProfile(name, p, gen)
	return p, nil
}
