package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hrygo/manas/store"
)

func (d *DB) CreateTask(ctx context.Context, create *store.Task) (*store.Task, error) {
	query := `
		INSERT INTO task (id, user_id, title, status, priority, due_ts, created_ts, updated_ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	var due sql.NullInt64
	if create.DueDate != nil {
		due = sql.NullInt64{Int64: create.DueDate.Unix(), Valid: true}
	}
	if _, err := d.db.ExecContext(ctx, query,
		create.ID,
		create.UserID,
		create.Title,
		string(create.Status),
		create.Priority,
		due,
		create.CreatedTs,
		create.UpdatedTs,
	); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return create, nil
}

func (d *DB) ListTasks(ctx context.Context, find *store.FindTask) ([]*store.Task, error) {
	query := `
		SELECT id, user_id, title, status, priority, due_ts, created_ts, updated_ts
		FROM task
		WHERE 1=1
	`
	var args []interface{}
	argIndex := 1

	if find.ID != nil {
		query += fmt.Sprintf(" AND id = $%d", argIndex)
		args = append(args, *find.ID)
		argIndex++
	}
	if find.UserID != nil {
		query += fmt.Sprintf(" AND user_id = $%d", argIndex)
		args = append(args, *find.UserID)
		argIndex++
	}
	if find.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, string(*find.Status))
	}
	query += " ORDER BY created_ts ASC, seq ASC"

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*store.Task
	for rows.Next() {
		var (
			task   store.Task
			status string
			due    sql.NullInt64
		)
		err := rows.Scan(
			&task.ID,
			&task.UserID,
			&task.Title,
			&status,
			&task.Priority,
			&due,
			&task.CreatedTs,
			&task.UpdatedTs,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		task.Status = store.TaskStatus(status)
		if due.Valid {
			t := time.Unix(due.Int64, 0)
			task.DueDate = &t
		}
		tasks = append(tasks, &task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

func (d *DB) UpdateTask(ctx context.Context, update *store.UpdateTask) (*store.Task, error) {
	set := []string{"updated_ts = $1"}
	args := []interface{}{time.Now().Unix()}
	argIndex := 2

	if update.Title != nil {
		set = append(set, fmt.Sprintf("title = $%d", argIndex))
		args = append(args, *update.Title)
		argIndex++
	}
	if update.Status != nil {
		set = append(set, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, string(*update.Status))
		argIndex++
	}
	if update.Priority != nil {
		set = append(set, fmt.Sprintf("priority = $%d", argIndex))
		args = append(args, *update.Priority)
		argIndex++
	}
	if update.DueDate != nil {
		set = append(set, fmt.Sprintf("due_ts = $%d", argIndex))
		args = append(args, update.DueDate.Unix())
		argIndex++
	}

	query := fmt.Sprintf(`UPDATE task SET %s WHERE id = $%d AND user_id = $%d`, strings.Join(set, ", "), argIndex, argIndex+1)
	args = append(args, update.ID, update.UserID)

	result, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, store.ErrNotFound
	}

	tasks, err := d.ListTasks(ctx, &store.FindTask{ID: &update.ID})
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, store.ErrNotFound
	}
	return tasks[0], nil
}

func (d *DB) DeleteTask(ctx context.Context, delete *store.DeleteTask) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM task WHERE id = $1 AND user_id = $2`, delete.ID, delete.UserID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}
