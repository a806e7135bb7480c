// Package redis stores profiles, tasks and memories as JSON documents in Redis.
//
// Keys:
//
//	manas:profile:{user}   string, JSON profile
//	manas:tasks:{user}     hash, task id -> JSON task
//	manas:memories:{user}  list, JSON memories, newest first
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/hrygo/manas/internal/profile"
	"github.com/hrygo/manas/store"
)

const keyPrefix = "manas:"

type DB struct {
	client  *redis.Client
	profile *profile.Profile
}

// NewDB connects to the Redis URL in profile.DSN.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	opts, err := redis.ParseURL(profile.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse redis url")
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "failed to connect to redis")
	}

	return &DB{client: client, profile: profile}, nil
}

func (d *DB) Close() error {
	return d.client.Close()
}

// Migrate is a no-op: documents need no schema.
func (d *DB) Migrate(context.Context) error {
	return nil
}

func profileKey(userID string) string { return keyPrefix + "profile:" + userID }
func tasksKey(userID string) string   { return keyPrefix + "tasks:" + userID }
func memoryKey(userID string) string  { return keyPrefix + "memories:" + userID }

func (d *DB) GetUserProfile(ctx context.Context, userID string) (*store.UserProfile, error) {
	raw, err := d.client.Get(ctx, profileKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user profile: %w", err)
	}

	var p store.UserProfile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user profile: %w", err)
	}
	return &p, nil
}

func (d *DB) UpsertUserProfile(ctx context.Context, p *store.UserProfile) (*store.UserProfile, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal user profile: %w", err)
	}
	if err := d.client.Set(ctx, profileKey(p.UserID), raw, 0).Err(); err != nil {
		return nil, fmt.Errorf("failed to set user profile: %w", err)
	}
	return p.Clone(), nil
}
