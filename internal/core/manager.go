package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kilupskalvis/entryrev/internal/hooks"
	"github.com/kilupskalvis/entryrev/internal/models"
)

// RecordRef names the record a capture applies to, either by ID or by value
type RecordRef struct {
	ID     string
	Record *models.Record
}

// ByID refers to a record by its ID
func ByID(id string) RecordRef {
	return RecordRef{ID: id}
}

// ByRecord refers to an already loaded record
func ByRecord(rec *models.Record) RecordRef {
	return RecordRef{Record: rec}
}

// Manager owns the revision lifecycle of host records
type Manager struct {
	host      Host
	revisions *RevisionStore
	log       *slog.Logger
	loc       *time.Location
	now       func() time.Time
}

// NewManager creates a Manager over host. Revision dates are recorded in loc
// alongside UTC.
func NewManager(host Host, logger *slog.Logger, loc *time.Location) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Manager{
		host:      host,
		revisions: NewRevisionStore(host, loc),
		log:       logger.With("component", "revisions"),
		loc:       loc,
		now:       time.Now,
	}
}

// Capture stores previous as a revision of the referenced record when their
// fields differ. It returns true when a revision was written. Failures are
// logged and reported as false so the triggering update is never aborted.
func (m *Manager) Capture(ctx context.Context, ref RecordRef, previous *models.Record) bool {
	current, err := m.resolve(ctx, ref)
	if err != nil {
		m.log.Warn("capture: cannot resolve record", "record_id", ref.ID, "error", err)
		return false
	}
	if previous == nil {
		m.log.Warn("capture: no previous state", "record_id", current.ID)
		return false
	}
	if current.IsRevision() {
		return false
	}

	changed := DiffFields(StripReserved(previous.Fields), StripReserved(current.Fields))
	if len(changed) == 0 {
		m.log.Debug("capture: no changes", "record_id", current.ID)
		return false
	}

	now := m.now()
	meta := models.RevisionMeta{
		ParentID:      current.ID,
		CreatedAt:     now.In(m.loc),
		CreatedAtUTC:  now.UTC(),
		CreatedBy:     ActorFrom(ctx),
		ChangedFields: changed,
	}

	snapshot := previous.Clone()
	snapshot.FormID = current.FormID
	id, err := m.revisions.Save(ctx, snapshot, meta)
	if err != nil {
		m.log.Error("capture: save revision failed", "record_id", current.ID, "error", err)
		return false
	}

	if err := m.host.TouchRecord(ctx, current.ID, now); err != nil {
		m.log.Warn("capture: touch record failed", "record_id", current.ID, "error", err)
	}

	m.log.Info("revision captured",
		"record_id", current.ID,
		"revision_id", id,
		"changed", len(changed),
		"actor", meta.CreatedBy)
	return true
}

func (m *Manager) resolve(ctx context.Context, ref RecordRef) (*models.Record, error) {
	if ref.Record != nil {
		return ref.Record, nil
	}
	if ref.ID == "" {
		return nil, fmt.Errorf("empty record reference: %w", models.ErrNotFound)
	}
	return m.host.GetRecord(ctx, ref.ID)
}

// ListRevisions returns the revisions of a record, oldest first
func (m *Manager) ListRevisions(ctx context.Context, recordID string) ([]*models.Revision, error) {
	return m.revisions.List(ctx, recordID)
}

// ListRevisionIDs returns the IDs of every revision of a record, oldest first
func (m *Manager) ListRevisionIDs(ctx context.Context, recordID string) ([]string, error) {
	return m.revisions.ListIDs(ctx, recordID)
}

// LatestRevision returns the newest revision of a record, or nil when none
func (m *Manager) LatestRevision(ctx context.Context, recordID string) (*models.Revision, error) {
	ids, err := m.revisions.ListIDs(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return m.revisions.Get(ctx, ids[len(ids)-1])
}

// GetRevision returns a revision by ID
func (m *Manager) GetRevision(ctx context.Context, revisionID string) (*models.Revision, error) {
	return m.revisions.Get(ctx, revisionID)
}

// DeleteRevision removes one revision. A missing revision, or an ID that
// names a live record, is reported as models.ErrNotFound.
func (m *Manager) DeleteRevision(ctx context.Context, revisionID string) (bool, error) {
	if _, err := m.revisions.Get(ctx, revisionID); err != nil {
		return false, err
	}
	if err := m.revisions.Delete(ctx, revisionID); err != nil {
		return false, err
	}
	m.log.Info("revision deleted", "revision_id", revisionID)
	return true, nil
}

// DeleteAllRevisions removes every revision of a record. The result maps each
// revision ID to its deletion error, nil when deleted. Failures do not stop
// the remaining deletions and nothing is rolled back.
func (m *Manager) DeleteAllRevisions(ctx context.Context, recordID string) (map[string]error, error) {
	ids, err := m.revisions.ListIDs(ctx, recordID)
	if err != nil {
		return nil, err
	}

	results := make(map[string]error, len(ids))
	for _, id := range ids {
		results[id] = m.revisions.Delete(ctx, id)
		if results[id] != nil {
			m.log.Warn("delete revision failed", "record_id", recordID, "revision_id", id, "error", results[id])
		}
	}
	m.log.Info("revisions deleted", "record_id", recordID, "count", len(ids))
	return results, nil
}

// Subscribe registers revision capture for every host update on bus and adds
// the revision metadata columns to host listings.
func (m *Manager) Subscribe(bus *hooks.Bus) {
	bus.OnAfterUpdate(func(ctx context.Context, ev hooks.AfterUpdate) {
		m.Capture(ctx, ByID(ev.RecordID), ev.Previous)
	})
	bus.OnMetaColumns(func(cols []models.MetaColumn) []models.MetaColumn {
		return append(models.RevisionMetaColumns(), cols...)
	})
}
