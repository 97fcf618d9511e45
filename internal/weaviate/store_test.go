package weaviate

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/kilupskalvis/entryrev/internal/core"
	"github.com/kilupskalvis/entryrev/internal/entries"
	"github.com/kilupskalvis/entryrev/internal/hooks"
	"github.com/kilupskalvis/entryrev/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *MockClient) {
	t.Helper()
	mock := NewMockClient()
	st := NewStore(mock, "", "")
	require.NoError(t, st.Initialize(context.Background()))
	return st, mock
}

func TestParseVersion(t *testing.T) {
	v, err := parseVersion("1.25.3")
	require.NoError(t, err)
	assert.Equal(t, 1, v.Major)
	assert.Equal(t, 25, v.Minor)
	assert.True(t, v.SupportsCursor())

	old, err := parseVersion("1.17.0")
	require.NoError(t, err)
	assert.False(t, old.SupportsCursor())

	_, err = parseVersion("latest")
	assert.Error(t, err)
}

func TestStore_Initialize(t *testing.T) {
	st, mock := newTestStore(t)

	assert.Contains(t, mock.Classes, DefaultRecordClass)
	assert.Contains(t, mock.Classes, DefaultFormClass)
	assert.True(t, st.useCursor)

	mock.Version = "1.12.0"
	require.NoError(t, st.Initialize(context.Background()))
	assert.False(t, st.useCursor)
}

func TestStore_RecordRoundTrip(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	id, err := st.CreateRecord(ctx, &models.Record{
		FormID:      "contact",
		Fields:      models.FieldMap{"name": "Alice", "age": 30},
		Attributes:  map[string]interface{}{"owner_id": "u-1"},
		DateCreated: created,
		DateUpdated: created,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	rec, err := st.GetRecord(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "contact", rec.FormID)
	assert.Equal(t, models.StatusActive, rec.Status)
	assert.Equal(t, "Alice", rec.Fields["name"])
	assert.Equal(t, json.Number("30"), rec.Fields["age"])
	assert.Equal(t, "u-1", rec.Attributes["owner_id"])
	assert.True(t, rec.DateCreated.Equal(created))

	rec.Fields["name"] = "Bob"
	require.NoError(t, st.UpdateRecord(ctx, rec))

	later := created.Add(time.Hour)
	require.NoError(t, st.TouchRecord(ctx, id, later))

	rec, err = st.GetRecord(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Bob", rec.Fields["name"])
	assert.True(t, rec.DateUpdated.Equal(later))
}

func TestStore_NotFound(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	missing := "7b1f0e3c-8a59-4b7e-9f0a-3d2c1b4a5e6f"

	_, err := st.GetRecord(ctx, missing)
	assert.True(t, errors.Is(err, models.ErrNotFound))

	_, err = st.GetRecord(ctx, "not-a-uuid")
	assert.True(t, errors.Is(err, models.ErrNotFound))

	assert.ErrorIs(t, st.DeleteRecord(ctx, missing), models.ErrNotFound)
	assert.ErrorIs(t, st.UpdateRecord(ctx, &models.Record{ID: missing}), models.ErrNotFound)
	assert.ErrorIs(t, st.SetMeta(ctx, missing, "k", "v"), models.ErrNotFound)

	_, err = st.GetForm(ctx, "nope")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestStore_MetaSurvivesUpdate(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	id, err := st.CreateRecord(ctx, &models.Record{FormID: "f", Fields: models.FieldMap{"a": "1"}})
	require.NoError(t, err)

	v, err := st.GetMeta(ctx, id, "parent_id")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, st.SetMeta(ctx, id, "parent_id", "rec-1"))
	require.NoError(t, st.SetMeta(ctx, id, "changed_fields", map[string]interface{}{"a": "2"}))

	rec, err := st.GetRecord(ctx, id)
	require.NoError(t, err)
	rec.Fields["a"] = "3"
	require.NoError(t, st.UpdateRecord(ctx, rec))

	v, err = st.GetMeta(ctx, id, "parent_id")
	require.NoError(t, err)
	assert.Equal(t, "rec-1", v)

	v, err = st.GetMeta(ctx, id, "changed_fields")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"a": "2"}, v)
}

func TestStore_FindRecordsOrderAndPage(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		id, err := st.CreateRecord(ctx, &models.Record{FormID: "f", Fields: models.FieldMap{"n": i}})
		require.NoError(t, err)
		require.NoError(t, st.SetMeta(ctx, id, "parent_id", "rec-1"))
		ids = append(ids, id)
	}
	other, err := st.CreateRecord(ctx, &models.Record{FormID: "f"})
	require.NoError(t, err)
	require.NoError(t, st.SetMeta(ctx, other, "parent_id", "rec-2"))

	filter := models.MetaFilter{Key: "parent_id", Value: "rec-1"}

	all, err := st.FindRecordIDs(ctx, filter, models.Page{})
	require.NoError(t, err)
	assert.Equal(t, ids, all)

	page, err := st.FindRecords(ctx, filter, models.Page{Offset: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[1], page[0].ID)
	assert.Equal(t, ids[2], page[1].ID)

	none, err := st.FindRecordIDs(ctx, filter, models.Page{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStore_Forms(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	form := &models.Form{
		ID:     "contact",
		Title:  "Contact",
		Fields: []models.FormField{{Key: "name", Label: "Name"}},
	}
	require.NoError(t, st.SaveForm(ctx, form))

	form.Title = "Contact us"
	require.NoError(t, st.SaveForm(ctx, form))

	got, err := st.GetForm(ctx, "contact")
	require.NoError(t, err)
	assert.Equal(t, form, got)
}

func TestStore_ClientErrors(t *testing.T) {
	st, mock := newTestStore(t)
	mock.Err = errors.New("connection refused")

	_, err := st.CreateRecord(context.Background(), &models.Record{FormID: "f"})
	assert.Error(t, err)
	assert.False(t, errors.Is(err, models.ErrNotFound))
}

func TestStore_RevisionLifecycle(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	bus := hooks.NewBus()
	host := entries.NewService(st, bus, logger)
	manager := core.NewManager(host, logger, time.UTC)
	manager.Subscribe(bus)
	restorer := core.NewRestorer(host, manager, bus, core.Policy{}, logger)

	id, err := host.CreateRecord(ctx, &models.Record{FormID: "contact", Fields: models.FieldMap{"name": "Alice"}})
	require.NoError(t, err)
	require.NoError(t, host.UpdateRecord(ctx, &models.Record{ID: id, Fields: models.FieldMap{"name": "Alicia"}}))

	revs, err := manager.ListRevisions(ctx, id)
	require.NoError(t, err)
	require.Len(t, revs, 1)
	assert.Equal(t, models.FieldMap{"name": "Alicia"}, revs[0].Meta.ChangedFields)

	ok, err := restorer.Restore(ctx, id, revs[0].ID())
	require.NoError(t, err)
	assert.True(t, ok)

	rec, err := host.GetRecord(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Alice", rec.Fields["name"])

	results, err := manager.DeleteAllRevisions(ctx, id)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	ids, err := manager.ListRevisionIDs(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
