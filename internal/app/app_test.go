package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/kilupskalvis/entryrev/internal/config"
	"github.com/kilupskalvis/entryrev/internal/core"
	"github.com/kilupskalvis/entryrev/internal/models"
	"github.com/kilupskalvis/entryrev/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg, err := config.Initialize(t.TempDir(), config.Config{
		TokenSecret:  "secret",
		Capabilities: map[string][]string{"u-1": {security.CapabilityEditEntries}},
	})
	require.NoError(t, err)

	a, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNew_RequiresSecret(t *testing.T) {
	cfg, err := config.Initialize(t.TempDir(), config.Config{})
	require.NoError(t, err)

	_, err = New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestApp_RestoreThroughGate(t *testing.T) {
	a := newTestApp(t)
	ctx := core.WithActor(context.Background(), "u-1")

	id, err := a.Entries.CreateRecord(ctx, &models.Record{FormID: "f", Fields: models.FieldMap{"name": "Alice"}})
	require.NoError(t, err)
	_, err = a.Entries.UpdateFields(ctx, id, models.FieldMap{"name": "Alicia"})
	require.NoError(t, err)

	rev, err := a.Manager.LatestRevision(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, rev)

	token, err := a.Tokens.Issue("u-1", id, rev.ID())
	require.NoError(t, err)

	gate, err := a.Gate()
	require.NoError(t, err)
	require.NoError(t, gate.Authorize(ctx, "u-1", id, rev.ID(), token))

	ok, err := a.Restorer.Restore(ctx, id, rev.ID())
	require.NoError(t, err)
	assert.True(t, ok)

	rec, err := a.Entries.GetRecord(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Alice", rec.Fields["name"])

	assert.Len(t, a.Entries.MetaColumns(), len(models.ReservedKeys))
}
