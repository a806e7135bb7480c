package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/hrygo/manas/store"
)

func (d *DB) CreateMemory(ctx context.Context, create *store.Memory) (*store.Memory, error) {
	stmt := `INSERT INTO memory (id, user_id, content, source, created_ts) VALUES (?, ?, ?, ?, ?)`
	if _, err := d.db.ExecContext(ctx, stmt, create.ID, create.UserID, create.Content, create.Source, create.CreatedTs); err != nil {
		return nil, fmt.Errorf("failed to create memory: %w", err)
	}
	return create, nil
}

func (d *DB) ListMemories(ctx context.Context, find *store.FindMemory) ([]*store.Memory, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.ID; v != nil {
		where, args = append(where, "id = ?"), append(args, *v)
	}
	if v := find.UserID; v != nil {
		where, args = append(where, "user_id = ?"), append(args, *v)
	}

	query := `
		SELECT id, user_id, content, source, created_ts
		FROM memory
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts DESC, rowid DESC`
	if find.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", find.Limit)
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
	stmt, args := `DELETE FROM memory WHERE user_id = ?`, []any{delete.UserID}
	if delete.ID != nil {
		stmt, args = stmt+` AND id = ?`, append(args, *delete.ID)
	}

	result, err := d.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete memory: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted memories: %w", err)
	}
	return int(n), nil
}
