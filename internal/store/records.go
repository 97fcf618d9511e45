package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kilupskalvis/entryrev/internal/models"
)

const recordColumns = `r.id, r.form_id, r.status, r.fields, r.attributes, r.date_created, r.date_updated`

// GetRecord retrieves a record by ID
func (s *Store) GetRecord(ctx context.Context, id string) (*models.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records r WHERE r.id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// CreateRecord inserts a new record
func (s *Store) CreateRecord(ctx context.Context, rec *models.Record) (string, error) {
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	status := rec.Status
	if status == "" {
		status = models.StatusActive
	}

	fields, attrs, err := encodeRecordData(rec)
	if err != nil {
		return "", err
	}

	now := time.Now()
	created, updated := rec.DateCreated, rec.DateUpdated
	if created.IsZero() {
		created = now
	}
	if updated.IsZero() {
		updated = created
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (id, form_id, status, fields, attributes, date_created, date_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, rec.FormID, string(status), fields, attrs, formatTimestamp(created), formatTimestamp(updated),
	)
	if err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}
	return id, nil
}

// UpdateRecord overwrites the mutable columns of a record
func (s *Store) UpdateRecord(ctx context.Context, rec *models.Record) error {
	fields, attrs, err := encodeRecordData(rec)
	if err != nil {
		return err
	}
	status := rec.Status
	if status == "" {
		status = models.StatusActive
	}
	updated := rec.DateUpdated
	if updated.IsZero() {
		updated = time.Now()
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE records SET status = ?, fields = ?, attributes = ?, date_updated = ?
		WHERE id = ?`,
		string(status), fields, attrs, formatTimestamp(updated), rec.ID,
	)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	return requireAffected(res, rec.ID)
}

// TouchRecord sets the last modified time of a record
func (s *Store) TouchRecord(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE records SET date_updated = ? WHERE id = ?`, formatTimestamp(at), id)
	if err != nil {
		return fmt.Errorf("touch record: %w", err)
	}
	return requireAffected(res, id)
}

// DeleteRecord removes a record and its metadata atomically
func (s *Store) DeleteRecord(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if err := requireAffected(res, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM record_meta WHERE record_id = ?`, id); err != nil {
		return fmt.Errorf("delete record meta: %w", err)
	}
	return tx.Commit()
}

// FindRecords returns records whose metadata slot matches the filter, oldest first
func (s *Store) FindRecords(ctx context.Context, filter models.MetaFilter, page models.Page) ([]*models.Record, error) {
	query, args, err := findQuery(recordColumns, filter, page)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// FindRecordIDs is FindRecords without loading record bodies
func (s *Store) FindRecordIDs(ctx context.Context, filter models.MetaFilter, page models.Page) ([]string, error) {
	query, args, err := findQuery("r.id", filter, page)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func findQuery(columns string, filter models.MetaFilter, page models.Page) (string, []interface{}, error) {
	value, err := json.Marshal(filter.Value)
	if err != nil {
		return "", nil, fmt.Errorf("encode filter value: %w", err)
	}

	limit := page.Limit
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	query := `
		SELECT ` + columns + `
		FROM records r
		JOIN record_meta m ON m.record_id = r.id
		WHERE m.meta_key = ? AND m.meta_value = ?
		ORDER BY r.seq
		LIMIT ? OFFSET ?`
	return query, []interface{}{filter.Key, string(value), limit, page.Offset}, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var rec models.Record
	var status, fields, created, updated string
	var attrs sql.NullString

	if err := row.Scan(&rec.ID, &rec.FormID, &status, &fields, &attrs, &created, &updated); err != nil {
		return nil, err
	}

	rec.Status = models.Status(status)
	rec.DateCreated = parseTimestamp(created)
	rec.DateUpdated = parseTimestamp(updated)

	rec.Fields = models.FieldMap{}
	if err := decodeJSON([]byte(fields), &rec.Fields); err != nil {
		return nil, fmt.Errorf("decode fields of %s: %w", rec.ID, err)
	}
	if attrs.Valid && attrs.String != "" && attrs.String != "null" {
		if err := decodeJSON([]byte(attrs.String), &rec.Attributes); err != nil {
			return nil, fmt.Errorf("decode attributes of %s: %w", rec.ID, err)
		}
	}
	return &rec, nil
}

func encodeRecordData(rec *models.Record) (string, sql.NullString, error) {
	fieldMap := rec.Fields
	if fieldMap == nil {
		fieldMap = models.FieldMap{}
	}
	fields, err := json.Marshal(fieldMap)
	if err != nil {
		return "", sql.NullString{}, fmt.Errorf("encode fields: %w", err)
	}
	if len(rec.Attributes) == 0 {
		return string(fields), sql.NullString{}, nil
	}
	attrs, err := json.Marshal(rec.Attributes)
	if err != nil {
		return "", sql.NullString{}, fmt.Errorf("encode attributes: %w", err)
	}
	return string(fields), sql.NullString{String: string(attrs), Valid: true}, nil
}

// decodeJSON keeps numbers as json.Number so integer values survive a round trip
func decodeJSON(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func requireAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("record %s: %w", id, models.ErrNotFound)
	}
	return nil
}
