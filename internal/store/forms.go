package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kilupskalvis/entryrev/internal/models"
)

// GetForm retrieves a form definition by ID
func (s *Store) GetForm(ctx context.Context, id string) (*models.Form, error) {
	form := models.Form{ID: id}
	var fields string
	err := s.db.QueryRowContext(ctx, `SELECT title, fields FROM forms WHERE id = ?`, id).Scan(&form.Title, &fields)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("form %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(fields), &form.Fields); err != nil {
		return nil, fmt.Errorf("decode form %s: %w", id, err)
	}
	return &form, nil
}

// SaveForm inserts or replaces a form definition
func (s *Store) SaveForm(ctx context.Context, form *models.Form) error {
	fields, err := json.Marshal(form.Fields)
	if err != nil {
		return fmt.Errorf("encode form fields: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO forms (id, title, fields) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title, fields = excluded.fields`,
		form.ID, form.Title, string(fields),
	)
	return err
}
