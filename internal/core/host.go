package core

import (
	"context"
	"time"

	"github.com/kilupskalvis/entryrev/internal/models"
)

// Host is the record storage system revision tracking runs against.
// entries.Service is the production implementation.
type Host interface {
	GetRecord(ctx context.Context, id string) (*models.Record, error)
	CreateRecord(ctx context.Context, rec *models.Record) (string, error)
	UpdateRecord(ctx context.Context, rec *models.Record) error
	DeleteRecord(ctx context.Context, id string) error
	TouchRecord(ctx context.Context, id string, at time.Time) error
	FindRecords(ctx context.Context, filter models.MetaFilter, page models.Page) ([]*models.Record, error)
	FindRecordIDs(ctx context.Context, filter models.MetaFilter, page models.Page) ([]string, error)
	GetMeta(ctx context.Context, id, key string) (interface{}, error)
	SetMeta(ctx context.Context, id, key string, value interface{}) error
}

// Suppressor pauses host update notifications while held
type Suppressor interface {
	Suppress() (release func())
}
