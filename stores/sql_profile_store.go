package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oarkflow/recordperm"
	"github.com/oarkflow/squealx"
)

// SQLProfileStore persists profiles in SQL (squealx). Every overwrite keeps
// the previous version in profile_history.
type SQLProfileStore struct {
	db *squealx.DB
}

func NewSQLProfileStore(db *squealx.DB) *SQLProfileStore {
	return &SQLProfileStore{db: db}
}

func (s *SQLProfileStore) GetProfile(ctx context.Context, name string) (*recordperm.Profile, error) {
	q := `SELECT name, action, description, rules_json, version, updated_at FROM profiles WHERE name = :name`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"name": name})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, fmt.Errorf("%w: %s", recordperm.ErrProfileNotFound, name)
	}
	return scanProfile(r)
}

func (s *SQLProfileStore) PutProfile(ctx context.Context, p *recordperm.Profile) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}
	rules, err := json.Marshal(p.Rules)
	if err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}
	old, err := s.GetProfile(ctx, p.Name)
	switch {
	case err == nil:
		if err := s.insertHistory(ctx, old); err != nil {
			return err
		}
		p.Version = old.Version + 1
		q := `UPDATE profiles SET action=:action, description=:description, rules_json=:rules_json, version=:version, updated_at=:updated_at WHERE name=:name`
		_, err = s.db.NamedExecContext(ctx, q, profileParams(p, rules))
		return err
	case errors.Is(err, recordperm.ErrProfileNotFound):
		p.Version = 1
		q := `INSERT INTO profiles(name, action, description, rules_json, version, updated_at) VALUES(:name, :action, :description, :rules_json, :version, :updated_at)`
		_, err = s.db.NamedExecContext(ctx, q, profileParams(p, rules))
		return err
	default:
		return err
	}
}

func (s *SQLProfileStore) DeleteProfile(ctx context.Context, name string) error {
	if _, err := s.GetProfile(ctx, name); err != nil {
		return err
	}
	q := `DELETE FROM profiles WHERE name = :name`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"name": name})
	return err
}

func (s *SQLProfileStore) ListProfiles(ctx context.Context) ([]*recordperm.Profile, error) {
	q := `SELECT name, action, description, rules_json, version, updated_at FROM profiles ORDER BY name`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*recordperm.Profile, 0)
	for r.Next() {
		p, err := scanProfile(r)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *SQLProfileStore) GetProfileHistory(ctx context.Context, name string) ([]*recordperm.Profile, error) {
	q := `SELECT name, action, description, rules_json, version, updated_at FROM profile_history WHERE name = :name ORDER BY version`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"name": name})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*recordperm.Profile, 0)
	for r.Next() {
		p, err := scanProfile(r)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *SQLProfileStore) insertHistory(ctx context.Context, p *recordperm.Profile) error {
	rules, err := json.Marshal(p.Rules)
	if err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}
	q := `INSERT INTO profile_history(name, version, action, description, rules_json, updated_at) VALUES(:name, :version, :action, :description, :rules_json, :updated_at)`
	_, err = s.db.NamedExecContext(ctx, q, profileParams(p, rules))
	return err
}

func profileParams(p *recordperm.Profile, rules []byte) map[string]any {
	return map[string]any{
		"name":        p.Name,
		"action":      string(p.Action),
		"description": p.Description,
		"rules_json":  string(rules),
		"version":     p.Version,
		"updated_at":  formatTimestamp(p.UpdatedAt),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(r rowScanner) (*recordperm.Profile, error) {
	var name, action, description, rulesJSON string
	var version int
	var updatedRaw any
	if err := r.Scan(&name, &action, &description, &rulesJSON, &version, &updatedRaw); err != nil {
		return nil, err
	}
	p := &recordperm.Profile{
		Name:        name,
		Action:      recordperm.Action(action),
		Description: description,
		Version:     version,
		UpdatedAt:   scanTime(updatedRaw),
	}
	if err := json.Unmarshal([]byte(rulesJSON), &p.Rules); err != nil {
		return nil, fmt.Errorf("decode rules of %s: %w", name, err)
	}
	return p, nil
}
