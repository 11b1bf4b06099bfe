package staterepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/talentmatch/internal/orchestration"
)

const keyPrefix = "agentstate:"

var ErrNotFound = errors.New("no paused run for this id")

// kv is the slice of the redis client the repository needs; the narrow
// surface keeps it fakeable in tests.
type kv interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Repo persists paused orchestration states keyed by run id. The state is
// stored as the exact JSON produced at pause time so resume sees the same
// bytes.
type Repo struct {
	client kv
	ttl    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *Repo {
	return &Repo{client: client, ttl: ttl}
}

func newWithKV(client kv, ttl time.Duration) *Repo {
	return &Repo{client: client, ttl: ttl}
}

func (r *Repo) Save(ctx context.Context, runID string, st *orchestration.State) error {
	if runID == "" {
		return errors.New("run id required")
	}
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := r.client.Set(ctx, keyPrefix+runID, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func (r *Repo) Load(ctx context.Context, runID string) (*orchestration.State, error) {
	val, err := r.client.Get(ctx, keyPrefix+runID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load state: %w", err)
	}
	var st orchestration.State
	if err := json.Unmarshal([]byte(val), &st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &st, nil
}

func (r *Repo) Delete(ctx context.Context, runID string) error {
	if err := r.client.Del(ctx, keyPrefix+runID).Err(); err != nil {
		return fmt.Errorf("delete state: %w", err)
	}
	return nil
}
