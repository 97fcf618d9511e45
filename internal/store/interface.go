package store

import (
	"context"
	"time"

	"github.com/kilupskalvis/entryrev/internal/models"
)

// RecordStore is the contract a host storage backend fulfils.
// Missing records are reported as models.ErrNotFound.
type RecordStore interface {
	GetRecord(ctx context.Context, id string) (*models.Record, error)
	// CreateRecord persists rec and returns its ID. An ID is generated when rec.ID is empty.
	CreateRecord(ctx context.Context, rec *models.Record) (string, error)
	// UpdateRecord overwrites fields, attributes, status and update time of an existing record.
	UpdateRecord(ctx context.Context, rec *models.Record) error
	// DeleteRecord removes the record and all of its metadata.
	DeleteRecord(ctx context.Context, id string) error
	TouchRecord(ctx context.Context, id string, at time.Time) error

	// FindRecords returns records whose metadata matches filter, in creation order.
	FindRecords(ctx context.Context, filter models.MetaFilter, page models.Page) ([]*models.Record, error)
	FindRecordIDs(ctx context.Context, filter models.MetaFilter, page models.Page) ([]string, error)

	// GetMeta returns nil without error when the slot is unset.
	GetMeta(ctx context.Context, id, key string) (interface{}, error)
	SetMeta(ctx context.Context, id, key string, value interface{}) error

	GetForm(ctx context.Context, id string) (*models.Form, error)
	SaveForm(ctx context.Context, form *models.Form) error

	Close() error
}

// Verify that *Store implements RecordStore at compile time
var _ RecordStore = (*Store)(nil)
