package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oarkflow/recordperm"
)

// RedisProfileStore keeps profiles as JSON values in one Redis hash (field: profile name)
type RedisProfileStore struct {
	client *redis.Client
	key    string
}

func NewRedisProfileStore(client *redis.Client) *RedisProfileStore {
	return &RedisProfileStore{client: client, key: "recordperm:profiles"}
}

// WithKey returns a copy of the store using another hash key, e.g. per ward.
func (r *RedisProfileStore) WithKey(key string) *RedisProfileStore {
	return &RedisProfileStore{client: r.client, key: key}
}

func (r *RedisProfileStore) GetProfile(ctx context.Context, name string) (*recordperm.Profile, error) {
	raw, err := r.client.HGet(ctx, r.key, name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", recordperm.ErrProfileNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return decodeProfile(raw)
}

// PutProfile bumps the version with an optimistic WATCH transaction.
func (r *RedisProfileStore) PutProfile(ctx context.Context, p *recordperm.Profile) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}
	return r.client.Watch(ctx, func(tx *redis.Tx) error {
		p.Version = 1
		raw, err := tx.HGet(ctx, r.key, p.Name).Result()
		switch {
		case err == nil:
			old, derr := decodeProfile(raw)
			if derr != nil {
				return derr
			}
			p.Version = old.Version + 1
		case !errors.Is(err, redis.Nil):
			return err
		}
		b, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode profile: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, r.key, p.Name, string(b))
			return nil
		})
		return err
	}, r.key)
}

func (r *RedisProfileStore) DeleteProfile(ctx context.Context, name string) error {
	n, err := r.client.HDel(ctx, r.key, name).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", recordperm.ErrProfileNotFound, name)
	}
	return nil
}

func (r *RedisProfileStore) ListProfiles(ctx context.Context) ([]*recordperm.Profile, error) {
	all, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*recordperm.Profile, 0, len(all))
	for _, raw := range all {
		p, err := decodeProfile(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func decodeProfile(raw string) (*recordperm.Profile, error) {
	p := &recordperm.Profile{}
	if err := json.Unmarshal([]byte(raw), p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return p, nil
}
