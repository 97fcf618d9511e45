// Package entries is the host-side record service: it fronts a storage
// backend and announces record updates on the hook bus.
package entries

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kilupskalvis/entryrev/internal/hooks"
	"github.com/kilupskalvis/entryrev/internal/models"
	"github.com/kilupskalvis/entryrev/internal/store"
)

// Service wraps a RecordStore with update notifications
type Service struct {
	store store.RecordStore
	bus   *hooks.Bus
	log   *slog.Logger
	now   func() time.Time
}

// NewService creates a Service over st publishing on bus
func NewService(st store.RecordStore, bus *hooks.Bus, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store: st,
		bus:   bus,
		log:   logger.With("component", "entries"),
		now:   time.Now,
	}
}

// GetRecord returns a record by ID
func (s *Service) GetRecord(ctx context.Context, id string) (*models.Record, error) {
	return s.store.GetRecord(ctx, id)
}

// CreateRecord stores a new record. No event is emitted for creation.
func (s *Service) CreateRecord(ctx context.Context, rec *models.Record) (string, error) {
	now := s.now()
	rec = rec.Clone()
	if rec.DateCreated.IsZero() {
		rec.DateCreated = now
	}
	rec.DateUpdated = now
	return s.store.CreateRecord(ctx, rec)
}

// UpdateRecord replaces the fields of record rec.ID, and its attributes when
// rec.Attributes is non-nil, then emits AfterUpdate with the previous state.
func (s *Service) UpdateRecord(ctx context.Context, rec *models.Record) error {
	previous, err := s.store.GetRecord(ctx, rec.ID)
	if err != nil {
		return err
	}

	next := previous.Clone()
	next.Fields = rec.Fields.Clone()
	if rec.Attributes != nil {
		next.Attributes = rec.Attributes
	}
	next.DateUpdated = s.now()

	if err := s.store.UpdateRecord(ctx, next); err != nil {
		return err
	}

	s.log.Debug("record updated", "record_id", rec.ID)
	s.bus.EmitAfterUpdate(ctx, hooks.AfterUpdate{
		FormID:   previous.FormID,
		RecordID: previous.ID,
		Previous: previous,
	})
	return nil
}

// UpdateFields merges changes into the record's current fields and saves it.
// A nil value removes the field.
func (s *Service) UpdateFields(ctx context.Context, id string, changes models.FieldMap) (*models.Record, error) {
	current, err := s.store.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.IsRevision() {
		return nil, fmt.Errorf("record %s is a revision and cannot be edited", id)
	}

	fields := current.Fields.Clone()
	for k, v := range changes {
		if v == nil {
			delete(fields, k)
			continue
		}
		fields[k] = v
	}

	if err := s.UpdateRecord(ctx, &models.Record{ID: id, Fields: fields}); err != nil {
		return nil, err
	}
	return s.store.GetRecord(ctx, id)
}

// DeleteRecord removes a record and its metadata
func (s *Service) DeleteRecord(ctx context.Context, id string) error {
	return s.store.DeleteRecord(ctx, id)
}

// TouchRecord sets the last modified time of a record
func (s *Service) TouchRecord(ctx context.Context, id string, at time.Time) error {
	return s.store.TouchRecord(ctx, id, at)
}

// FindRecords returns records with matching metadata, oldest first
func (s *Service) FindRecords(ctx context.Context, filter models.MetaFilter, page models.Page) ([]*models.Record, error) {
	return s.store.FindRecords(ctx, filter, page)
}

// FindRecordIDs returns IDs of records with matching metadata, oldest first
func (s *Service) FindRecordIDs(ctx context.Context, filter models.MetaFilter, page models.Page) ([]string, error) {
	return s.store.FindRecordIDs(ctx, filter, page)
}

// GetMeta reads a metadata slot
func (s *Service) GetMeta(ctx context.Context, id, key string) (interface{}, error) {
	return s.store.GetMeta(ctx, id, key)
}

// SetMeta writes a metadata slot
func (s *Service) SetMeta(ctx context.Context, id, key string, value interface{}) error {
	return s.store.SetMeta(ctx, id, key, value)
}

// GetForm returns a form definition
func (s *Service) GetForm(ctx context.Context, id string) (*models.Form, error) {
	return s.store.GetForm(ctx, id)
}

// SaveForm stores a form definition
func (s *Service) SaveForm(ctx context.Context, form *models.Form) error {
	return s.store.SaveForm(ctx, form)
}

// MetaColumns lists the metadata columns contributed by subscribers
func (s *Service) MetaColumns() []models.MetaColumn {
	return s.bus.MetaColumns(nil)
}

// Bus returns the event bus the service publishes on
func (s *Service) Bus() *hooks.Bus {
	return s.bus
}
