package postgres

import (
	"context"
	"fmt"

	"github.com/hrygo/manas/store"
)

func (d *DB) CreateMemory(ctx context.Context, create *store.Memory) (*store.Memory, error) {
	query := `
		INSERT INTO memory (id, user_id, content, source, created_ts)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := d.db.ExecContext(ctx, query, create.ID, create.UserID, create.Content, create.Source, create.CreatedTs); err != nil {
		return nil, fmt.Errorf("failed to create memory: %w", err)
	}
	return create, nil
}

func (d *DB) ListMemories(ctx context.Context, find *store.FindMemory) ([]*store.Memory, error) {
	query := `
		SELECT id, user_id, content, source, created_ts
		FROM memory
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
	query += " ORDER BY created_ts DESC, seq DESC"
	if find.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	defer rows.Close()

	var memories []*store.Memory
	for rows.Next() {
		var m store.Memory
		if err := rows.Scan(&m.ID, &m.UserID, &m.Content, &m.Source, &m.CreatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan memory: %w", err)
		}
		memories = append(memories, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	return memories, nil
}

func (d *DB) DeleteMemory(ctx context.Context, delete *store.DeleteMemory) (int, error) {
	query := `DELETE FROM memory WHERE user_id = $1`
	args := []interface{}{delete.UserID}
	if delete.ID != nil {
		query += ` AND id = $2`
		args = append(args, *delete.ID)
	}

	result, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete memory: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted memories: %w", err)
	}
	return int(n), nil
}
