package stores

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oarkflow/recordperm"
)

// MemoryProfileStore implements profile persistence in-memory for testing/demo
type MemoryProfileStore struct {
	mu        sync.RWMutex
	profiles  map[string]*recordperm.Profile
	histories map[string][]*recordperm.Profile
}

func NewMemoryProfileStore() *MemoryProfileStore {
	return &MemoryProfileStore{
		profiles:  make(map[string]*recordperm.Profile),
		histories: make(map[string][]*recordperm.Profile),
	}
}

func (s *MemoryProfileStore) GetProfile(ctx context.Context, name string) (*recordperm.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", recordperm.ErrProfileNotFound, name)
	}
	return p.Clone(), nil
}

func (s *MemoryProfileStore) PutProfile(ctx context.Context, p *recordperm.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Version = 1
	if old, ok := s.profiles[p.Name]; ok {
		s.histories[p.Name] = append(s.histories[p.Name], old.Clone())
		p.Version = old.Version + 1
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}
	s.profiles[p.Name] = p.Clone()
	return nil
}

func (s *MemoryProfileStore) DeleteProfile(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[name]; !ok {
		return fmt.Errorf("%w: %s", recordperm.ErrProfileNotFound, name)
	}
	delete(s.profiles, name)
	return nil
}

func (s *MemoryProfileStore) ListProfiles(ctx context.Context) ([]*recordperm.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*recordperm.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		result = append(result, p.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (s *MemoryProfileStore) GetProfileHistory(ctx context.Context, name string) ([]*recordperm.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h := s.histories[name]
	out := make([]*recordperm.Profile, 0, len(h))
	for _, p := range h {
		out = append(out, p.Clone())
	}
	return out, nil
}

// MemoryAuditStore keeps audit entries in memory, newest last
type MemoryAuditStore struct {
	mu      sync.RWMutex
	entries []*recordperm.AuditEntry
}

func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{entries: make([]*recordperm.AuditEntry, 0)}
}

func (s *MemoryAuditStore) LogDecision(ctx context.Context, entry *recordperm.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *entry
	s.entries = append(s.entries, &cp)
	return nil
}

func (s *MemoryAuditStore) GetAccessLog(ctx context.Context, filter recordperm.AuditFilter) ([]*recordperm.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	result := make([]*recordperm.AuditEntry, 0)
	for _, e := range s.entries {
		if !filter.Matches(e) {
			continue
		}
		result = append(result, e)
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

// Len returns the number of stored entries.
func (s *MemoryAuditStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
