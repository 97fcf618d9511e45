package core

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/kilupskalvis/entryrev/internal/entries"
	"github.com/kilupskalvis/entryrev/internal/hooks"
	"github.com/kilupskalvis/entryrev/internal/models"
	"github.com/kilupskalvis/entryrev/internal/store"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	host     *entries.Service
	bus      *hooks.Bus
	manager  *Manager
	restorer *Restorer
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newFixture wires a sqlite-backed host with revision capture subscribed.
func newFixture(t *testing.T, policy Policy) *fixture {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "entries.db"))
	require.NoError(t, err)
	require.NoError(t, st.Initialize())
	t.Cleanup(func() { st.Close() })

	bus := hooks.NewBus()
	host := entries.NewService(st, bus, discardLogger())
	manager := NewManager(host, discardLogger(), time.UTC)
	manager.Subscribe(bus)

	return &fixture{
		host:     host,
		bus:      bus,
		manager:  manager,
		restorer: NewRestorer(host, manager, bus, policy, discardLogger()),
	}
}

func (f *fixture) createRecord(t *testing.T, fields models.FieldMap) string {
	t.Helper()
	id, err := f.host.CreateRecord(context.Background(), &models.Record{
		FormID: "contact",
		Fields: fields,
		Attributes: map[string]interface{}{
			"owner_id": "u-1",
		},
	})
	require.NoError(t, err)
	return id
}

func (f *fixture) update(t *testing.T, id string, fields models.FieldMap) {
	t.Helper()
	require.NoError(t, f.host.UpdateRecord(context.Background(), &models.Record{ID: id, Fields: fields}))
}

func (f *fixture) revisionIDs(t *testing.T, id string) []string {
	t.Helper()
	ids, err := f.manager.ListRevisionIDs(context.Background(), id)
	require.NoError(t, err)
	return ids
}
