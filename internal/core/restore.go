package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kilupskalvis/entryrev/internal/models"
)

// Policy tunes restore behaviour
type Policy struct {
	// RestoreMeta restores the revision's administrative attributes instead
	// of keeping the current ones.
	RestoreMeta bool
	// DeleteAfterRestore removes the restored revision once applied.
	DeleteAfterRestore bool
}

// Restorer writes a revision's content back into its live record
type Restorer struct {
	host    Host
	manager *Manager
	guard   Suppressor
	policy  Policy
	log     *slog.Logger
}

// NewRestorer creates a Restorer. guard silences host update notifications
// while the restored content is written.
func NewRestorer(host Host, manager *Manager, guard Suppressor, policy Policy, logger *slog.Logger) *Restorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Restorer{
		host:    host,
		manager: manager,
		guard:   guard,
		policy:  policy,
		log:     logger.With("component", "restore"),
	}
}

// Restore applies revision revisionID to record recordID. The record's state
// before the restore is kept as a new revision. With DeleteAfterRestore the
// restored revision is then removed and a failure to remove it, including
// models.ErrNotFound, is returned with false.
func (r *Restorer) Restore(ctx context.Context, recordID, revisionID string) (bool, error) {
	rev, err := r.manager.GetRevision(ctx, revisionID)
	if err != nil {
		return false, err
	}
	if rev.Meta.ParentID != recordID {
		return false, fmt.Errorf("revision %s of record %s: %w", revisionID, recordID, models.ErrNotFound)
	}

	current, err := r.host.GetRecord(ctx, recordID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return false, fmt.Errorf("record %s: %w", recordID, models.ErrNotFound)
		}
		return false, fmt.Errorf("get record %s: %w: %w", recordID, models.ErrStorage, err)
	}
	if current.IsRevision() {
		return false, fmt.Errorf("record %s: %w", recordID, models.ErrNotFound)
	}

	attrs := current.Attributes
	if r.policy.RestoreMeta {
		attrs = rev.Record.Attributes
	}
	payload := &models.Record{
		ID:         recordID,
		Fields:     StripReserved(rev.Record.Fields),
		Attributes: stripReservedAttrs(attrs),
	}

	if err := r.write(ctx, payload); err != nil {
		return false, fmt.Errorf("restore record %s: %w: %w", recordID, models.ErrStorage, err)
	}

	if !r.manager.Capture(ctx, ByID(recordID), current) {
		r.log.Debug("restore: pre-restore state not captured", "record_id", recordID, "revision_id", revisionID)
	}

	r.log.Info("revision restored",
		"record_id", recordID,
		"revision_id", revisionID,
		"actor", ActorFrom(ctx))

	if r.policy.DeleteAfterRestore {
		return r.manager.DeleteRevision(ctx, revisionID)
	}
	return true, nil
}

func (r *Restorer) write(ctx context.Context, payload *models.Record) error {
	release := r.guard.Suppress()
	defer release()
	return r.host.UpdateRecord(ctx, payload)
}
