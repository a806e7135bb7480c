package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hrygo/manas/store"
)

func (d *DB) CreateMemory(ctx context.Context, create *store.Memory) (*store.Memory, error) {
	raw, err := json.Marshal(create)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal memory: %w", err)
	}
	if err := d.client.LPush(ctx, memoryKey(create.UserID), raw).Err(); err != nil {
		return nil, fmt.Errorf("failed to create memory: %w", err)
	}
	return create, nil
}

// ListMemories requires find.UserID: memories are partitioned by user.
func (d *DB) ListMemories(ctx context.Context, find *store.FindMemory) ([]*store.Memory, error) {
	if find.UserID == nil {
		return nil, fmt.Errorf("failed to list memories: user id is required")
	}

	values, err := d.client.LRange(ctx, memoryKey(*find.UserID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}

	var memories []*store.Memory
	for _, v := range values {
		var m store.Memory
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, fmt.Errorf("failed to unmarshal memory: %w", err)
		}
		if find.ID != nil && m.ID != *find.ID {
			continue
		}
		memories = append(memories, &m)
		if find.Limit > 0 && len(memories) == find.Limit {
			break
		}
	}
	return memories, nil
}

func (d *DB) DeleteMemory(ctx context.Context, delete *store.DeleteMemory) (int, error) {
	key := memoryKey(delete.UserID)
	if delete.ID == nil {
		n, err := d.client.LLen(ctx, key).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to count memories: %w", err)
		}
		if err := d.client.Del(ctx, key).Err(); err != nil {
			return 0, fmt.Errorf("failed to delete memories: %w", err)
		}
		return int(n), nil
	}

	values, err := d.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list memories: %w", err)
	}
	for _, v := range values {
		var m store.Memory
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return 0, fmt.Errorf("failed to unmarshal memory: %w", err)
		}
		if m.ID != *delete.ID {
			continue
		}
		n, err := d.client.LRem(ctx, key, 1, v).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to delete memory: %w", err)
		}
		return int(n), nil
	}
	return 0, nil
}
