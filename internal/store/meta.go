package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// GetMeta reads a metadata slot; unset slots yield nil
func (s *Store) GetMeta(ctx context.Context, id, key string) (interface{}, error) {
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT meta_value FROM record_meta WHERE record_id = ? AND meta_key = ?`, id, key,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !raw.Valid) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var value interface{}
	if err := decodeJSON([]byte(raw.String), &value); err != nil {
		return nil, fmt.Errorf("decode meta %s of %s: %w", key, id, err)
	}
	return value, nil
}

// SetMeta writes a metadata slot, replacing any previous value
func (s *Store) SetMeta(ctx context.Context, id, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode meta %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO record_meta (record_id, meta_key, meta_value) VALUES (?, ?, ?)
		ON CONFLICT(record_id, meta_key) DO UPDATE SET meta_value = excluded.meta_value`,
		id, key, string(data),
	)
	return err
}
