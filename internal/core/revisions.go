package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kilupskalvis/entryrev/internal/models"
)

// MaxListRevisions caps how many revisions List returns for one record
const MaxListRevisions = 200

// RevisionStore persists revisions as host records with status revision and
// keeps their metadata in the host's metadata slots.
type RevisionStore struct {
	host Host
	loc  *time.Location
}

// NewRevisionStore creates a RevisionStore. Times are rendered in loc.
func NewRevisionStore(host Host, loc *time.Location) *RevisionStore {
	if loc == nil {
		loc = time.Local
	}
	return &RevisionStore{host: host, loc: loc}
}

// Save stores snapshot as a new revision with meta and returns its ID. When a
// metadata write fails the half-created revision is removed.
func (s *RevisionStore) Save(ctx context.Context, snapshot *models.Record, meta models.RevisionMeta) (string, error) {
	rec := snapshot.Clone()
	rec.ID = ""
	rec.Status = models.StatusRevision
	rec.Fields = StripReserved(rec.Fields)

	id, err := s.host.CreateRecord(ctx, rec)
	if err != nil {
		return "", fmt.Errorf("create revision: %w: %w", models.ErrStorage, err)
	}

	slots := []struct {
		key   string
		value interface{}
	}{
		{models.MetaParentID, meta.ParentID},
		{models.MetaCreatedAt, meta.CreatedAt.In(s.loc).Format(time.RFC3339Nano)},
		{models.MetaCreatedAtUTC, meta.CreatedAtUTC.UTC().Format(time.RFC3339Nano)},
		{models.MetaCreatedBy, meta.CreatedBy},
		{models.MetaChangedFields, map[string]interface{}(meta.ChangedFields)},
	}
	for _, slot := range slots {
		if err := s.host.SetMeta(ctx, id, slot.key, slot.value); err != nil {
			_ = s.host.DeleteRecord(ctx, id)
			return "", fmt.Errorf("set revision meta %s: %w: %w", slot.key, models.ErrStorage, err)
		}
	}
	return id, nil
}

// Get returns a revision by ID. ErrNotFound is returned when the record is
// missing or is not a revision.
func (s *RevisionStore) Get(ctx context.Context, id string) (*models.Revision, error) {
	rec, err := s.host.GetRecord(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("revision %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("get revision %s: %w: %w", id, models.ErrStorage, err)
	}
	if !rec.IsRevision() {
		return nil, fmt.Errorf("revision %s: %w", id, models.ErrNotFound)
	}
	return s.load(ctx, rec)
}

// List returns up to MaxListRevisions revisions of parentID, oldest first
func (s *RevisionStore) List(ctx context.Context, parentID string) ([]*models.Revision, error) {
	records, err := s.host.FindRecords(ctx,
		models.MetaFilter{Key: models.MetaParentID, Value: parentID},
		models.Page{Limit: MaxListRevisions})
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w: %w", models.ErrStorage, err)
	}

	revisions := make([]*models.Revision, 0, len(records))
	for _, rec := range records {
		if !rec.IsRevision() {
			continue
		}
		rev, err := s.load(ctx, rec)
		if err != nil {
			return nil, err
		}
		revisions = append(revisions, rev)
	}
	return revisions, nil
}

// ListIDs returns the IDs of every revision of parentID, oldest first
func (s *RevisionStore) ListIDs(ctx context.Context, parentID string) ([]string, error) {
	ids, err := s.host.FindRecordIDs(ctx,
		models.MetaFilter{Key: models.MetaParentID, Value: parentID},
		models.Page{})
	if err != nil {
		return nil, fmt.Errorf("list revision ids: %w: %w", models.ErrStorage, err)
	}
	return ids, nil
}

// Delete removes a revision and its metadata
func (s *RevisionStore) Delete(ctx context.Context, id string) error {
	if err := s.host.DeleteRecord(ctx, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("revision %s: %w", id, models.ErrNotFound)
		}
		return fmt.Errorf("delete revision %s: %w: %w", id, models.ErrStorage, err)
	}
	return nil
}

func (s *RevisionStore) load(ctx context.Context, rec *models.Record) (*models.Revision, error) {
	values := make(map[string]interface{}, len(models.ReservedKeys))
	for _, key := range models.ReservedKeys {
		v, err := s.host.GetMeta(ctx, rec.ID, key)
		if err != nil {
			return nil, fmt.Errorf("get revision meta %s: %w: %w", key, models.ErrStorage, err)
		}
		values[key] = v
	}

	meta := models.RevisionMeta{
		ParentID:      metaString(values[models.MetaParentID]),
		CreatedAt:     metaTime(values[models.MetaCreatedAt]),
		CreatedAtUTC:  metaTime(values[models.MetaCreatedAtUTC]).UTC(),
		CreatedBy:     metaString(values[models.MetaCreatedBy]),
		ChangedFields: metaFields(values[models.MetaChangedFields]),
	}
	if !meta.CreatedAt.IsZero() {
		meta.CreatedAt = meta.CreatedAt.In(s.loc)
	}
	return &models.Revision{Record: rec, Meta: meta}, nil
}

func metaString(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case json.Number:
		return s.String()
	default:
		return fmt.Sprint(s)
	}
}

func metaTime(v interface{}) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func metaFields(v interface{}) models.FieldMap {
	switch m := v.(type) {
	case map[string]interface{}:
		return models.FieldMap(m)
	case models.FieldMap:
		return m
	}
	return models.FieldMap{}
}
