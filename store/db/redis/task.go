package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hrygo/manas/store"
)

func (d *DB) CreateTask(ctx context.Context, create *store.Task) (*store.Task, error) {
	raw, err := json.Marshal(create)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task: %w", err)
	}
	if err := d.client.HSet(ctx, tasksKey(create.UserID), create.ID, raw).Err(); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return create, nil
}

// ListTasks requires find.UserID: tasks are partitioned by user.
func (d *DB) ListTasks(ctx context.Context, find *store.FindTask) ([]*store.Task, error) {
	if find.UserID == nil {
		return nil, fmt.Errorf("failed to list tasks: user id is required")
	}

	var values []string
	if find.ID != nil {
		v, err := d.client.HGet(ctx, tasksKey(*find.UserID), *find.ID).Result()
		if err == redis.Nil {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get task: %w", err)
		}
		values = []string{v}
	} else {
		all, err := d.client.HGetAll(ctx, tasksKey(*find.UserID)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to list tasks: %w", err)
		}
		for _, v := range all {
			values = append(values, v)
		}
	}

	tasks := make([]*store.Task, 0, len(values))
	for _, v := range values {
		var task store.Task
		if err := json.Unmarshal([]byte(v), &task); err != nil {
			return nil, fmt.Errorf("failed to unmarshal task: %w", err)
		}
		if find.Status != nil && task.Status != *find.Status {
			continue
		}
		tasks = append(tasks, &task)
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedTs != tasks[j].CreatedTs {
			return tasks[i].CreatedTs < tasks[j].CreatedTs
		}
		return tasks[i].ID < tasks[j].ID
	})
	return tasks, nil
}

func (d *DB) UpdateTask(ctx context.Context, update *store.UpdateTask) (*store.Task, error) {
	key := tasksKey(update.UserID)
	var task store.Task

	// Read-modify-write without WATCH; a user's turns are serialized upstream.
	raw, err := d.client.HGet(ctx, key, update.ID).Bytes()
	if err == redis.Nil {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	if err := json.Unmarshal(raw, &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}

	if update.Title != nil {
		task.Title = *update.Title
	}
	if update.Status != nil {
		task.Status = *update.Status
	}
	if update.Priority != nil {
		task.Priority = *update.Priority
	}
	if update.DueDate != nil {
		due := *update.DueDate
		task.DueDate = &due
	}
	task.UpdatedTs = time.Now().Unix()

	if _, err := d.CreateTask(ctx, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (d *DB) DeleteTask(ctx context.Context, delete *store.DeleteTask) error {
	n, err := d.client.HDel(ctx, tasksKey(delete.UserID), delete.ID).Result()
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
