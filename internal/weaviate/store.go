package weaviate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kilupskalvis/entryrev/internal/models"
	"github.com/kilupskalvis/entryrev/internal/store"
)

// Default class names
const (
	DefaultRecordClass = "EntryRecord"
	DefaultFormClass   = "EntryForm"
)

// Object property names. Field maps are kept as JSON text because form field
// keys are not valid Weaviate property names.
const (
	propFormID      = "formId"
	propStatus      = "status"
	propFields      = "fields"
	propAttributes  = "attributes"
	propMeta        = "meta"
	propDateCreated = "dateCreated"
	propDateUpdated = "dateUpdated"
	propSeq         = "createdSeq"

	propTitle = "title"
)

var recordProperties = []string{
	propFormID, propStatus, propFields, propAttributes, propMeta,
	propDateCreated, propDateUpdated, propSeq,
}

var formProperties = []string{propFormID, propTitle, propFields}

// formNamespace derives stable object IDs for form definitions
var formNamespace = uuid.MustParse("0d6f2c5e-3b8a-4f1e-9c7d-5a2b8e4f6a10")

// Store is a store.RecordStore on top of Weaviate objects
type Store struct {
	client      ClientInterface
	recordClass string
	formClass   string
	useCursor   bool

	// serializes read-modify-write of object properties
	mu      sync.Mutex
	lastSeq int64
}

var _ store.RecordStore = (*Store)(nil)

// NewStore creates a Store using the given classes, defaulting empty names
func NewStore(client ClientInterface, recordClass, formClass string) *Store {
	if recordClass == "" {
		recordClass = DefaultRecordClass
	}
	if formClass == "" {
		formClass = DefaultFormClass
	}
	return &Store{
		client:      client,
		recordClass: recordClass,
		formClass:   formClass,
		useCursor:   true,
	}
}

// Initialize creates the record and form classes and picks the pagination
// method supported by the server.
func (s *Store) Initialize(ctx context.Context) error {
	version, err := s.client.GetServerVersion(ctx)
	if err != nil {
		return err
	}
	s.useCursor = version.SupportsCursor()

	if err := s.client.EnsureClass(ctx, s.recordClass, recordProperties); err != nil {
		return err
	}
	return s.client.EnsureClass(ctx, s.formClass, formProperties)
}

// Close is a no-op; the Weaviate client holds no resources
func (s *Store) Close() error {
	return nil
}

// GetRecord returns a record by ID
func (s *Store) GetRecord(ctx context.Context, id string) (*models.Record, error) {
	rec, _, err := s.getRecord(ctx, id)
	return rec, err
}

// CreateRecord stores a new record and returns its ID
func (s *Store) CreateRecord(ctx context.Context, rec *models.Record) (string, error) {
	rec = rec.Clone()
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Status == "" {
		rec.Status = models.StatusActive
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seq := time.Now().UnixNano()
	if seq <= s.lastSeq {
		seq = s.lastSeq + 1
	}
	s.lastSeq = seq

	props, err := encodeRecord(rec, map[string]json.RawMessage{})
	if err != nil {
		return "", err
	}
	props[propSeq] = fmt.Sprintf("%020d", seq)

	if err := s.client.CreateObject(ctx, &Object{ID: rec.ID, Class: s.recordClass, Properties: props}); err != nil {
		return "", fmt.Errorf("create record: %w", err)
	}
	return rec.ID, nil
}

// UpdateRecord replaces the stored record
func (s *Store) UpdateRecord(ctx context.Context, rec *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, obj, err := s.getRecord(ctx, rec.ID)
	if err != nil {
		return err
	}
	meta, err := decodeMeta(obj.Properties)
	if err != nil {
		return err
	}
	props, err := encodeRecord(rec, meta)
	if err != nil {
		return err
	}
	props[propSeq] = obj.Properties[propSeq]
	obj.Properties = props
	return s.updateObject(ctx, obj)
}

// TouchRecord sets the last modified time of a record
func (s *Store) TouchRecord(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, obj, err := s.getRecord(ctx, id)
	if err != nil {
		return err
	}
	obj.Properties[propDateUpdated] = formatTimestamp(at)
	return s.updateObject(ctx, obj)
}

// DeleteRecord removes a record and its metadata
func (s *Store) DeleteRecord(ctx context.Context, id string) error {
	if err := s.client.DeleteObject(ctx, s.recordClass, id); err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return fmt.Errorf("record %s: %w", id, models.ErrNotFound)
		}
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// FindRecords returns records whose metadata slot matches filter, oldest first
func (s *Store) FindRecords(ctx context.Context, filter models.MetaFilter, page models.Page) ([]*models.Record, error) {
	matches, err := s.find(ctx, filter, page)
	if err != nil {
		return nil, err
	}
	records := make([]*models.Record, 0, len(matches))
	for _, m := range matches {
		records = append(records, m.record)
	}
	return records, nil
}

// FindRecordIDs returns IDs of records whose metadata matches, oldest first
func (s *Store) FindRecordIDs(ctx context.Context, filter models.MetaFilter, page models.Page) ([]string, error) {
	matches, err := s.find(ctx, filter, page)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.record.ID)
	}
	return ids, nil
}

// GetMeta reads a metadata slot, nil when unset
func (s *Store) GetMeta(ctx context.Context, id, key string) (interface{}, error) {
	_, obj, err := s.getRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	meta, err := decodeMeta(obj.Properties)
	if err != nil {
		return nil, err
	}
	raw, ok := meta[key]
	if !ok {
		return nil, nil
	}
	var v interface{}
	if err := decodeJSON(raw, &v); err != nil {
		return nil, fmt.Errorf("decode meta %s: %w", key, err)
	}
	return v, nil
}

// SetMeta writes a metadata slot
func (s *Store) SetMeta(ctx context.Context, id, key string, value interface{}) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode meta %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, obj, err := s.getRecord(ctx, id)
	if err != nil {
		return err
	}
	meta, err := decodeMeta(obj.Properties)
	if err != nil {
		return err
	}
	meta[key] = encoded
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	obj.Properties[propMeta] = string(data)
	return s.updateObject(ctx, obj)
}

// GetForm returns a form definition
func (s *Store) GetForm(ctx context.Context, id string) (*models.Form, error) {
	obj, err := s.client.GetObject(ctx, s.formClass, formObjectID(id))
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return nil, fmt.Errorf("form %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("get form: %w", err)
	}

	form := &models.Form{
		ID:    stringProp(obj.Properties, propFormID),
		Title: stringProp(obj.Properties, propTitle),
	}
	if err := decodeJSON([]byte(stringProp(obj.Properties, propFields)), &form.Fields); err != nil {
		return nil, fmt.Errorf("decode form fields: %w", err)
	}
	return form, nil
}

// SaveForm creates or replaces a form definition
func (s *Store) SaveForm(ctx context.Context, form *models.Form) error {
	fields, err := json.Marshal(form.Fields)
	if err != nil {
		return fmt.Errorf("encode form fields: %w", err)
	}
	obj := &Object{
		ID:    formObjectID(form.ID),
		Class: s.formClass,
		Properties: map[string]interface{}{
			propFormID: form.ID,
			propTitle:  form.Title,
			propFields: string(fields),
		},
	}

	err = s.client.UpdateObject(ctx, obj)
	if errors.Is(err, ErrObjectNotFound) {
		err = s.client.CreateObject(ctx, obj)
	}
	if err != nil {
		return fmt.Errorf("save form: %w", err)
	}
	return nil
}

type match struct {
	record *models.Record
	seq    string
}

func (s *Store) find(ctx context.Context, filter models.MetaFilter, page models.Page) ([]match, error) {
	want, err := canonicalJSON(filter.Value)
	if err != nil {
		return nil, fmt.Errorf("encode filter: %w", err)
	}

	objs, err := s.client.GetAllObjects(ctx, s.recordClass, s.useCursor)
	if err != nil {
		return nil, fmt.Errorf("find records: %w", err)
	}

	var matches []match
	for _, obj := range objs {
		meta, err := decodeMeta(obj.Properties)
		if err != nil {
			return nil, err
		}
		raw, ok := meta[filter.Key]
		if !ok {
			continue
		}
		got, err := canonicalRaw(raw)
		if err != nil || !bytes.Equal(got, want) {
			continue
		}
		rec, err := decodeRecord(obj)
		if err != nil {
			return nil, err
		}
		matches = append(matches, match{record: rec, seq: stringProp(obj.Properties, propSeq)})
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].seq < matches[j].seq })

	if page.Offset > 0 {
		if page.Offset >= len(matches) {
			return nil, nil
		}
		matches = matches[page.Offset:]
	}
	if page.Limit > 0 && len(matches) > page.Limit {
		matches = matches[:page.Limit]
	}
	return matches, nil
}

func (s *Store) getRecord(ctx context.Context, id string) (*models.Record, *Object, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil, fmt.Errorf("record %s: %w", id, models.ErrNotFound)
	}
	obj, err := s.client.GetObject(ctx, s.recordClass, id)
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return nil, nil, fmt.Errorf("record %s: %w", id, models.ErrNotFound)
		}
		return nil, nil, fmt.Errorf("get record: %w", err)
	}
	rec, err := decodeRecord(obj)
	if err != nil {
		return nil, nil, err
	}
	return rec, obj, nil
}

func (s *Store) updateObject(ctx context.Context, obj *Object) error {
	if err := s.client.UpdateObject(ctx, obj); err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return fmt.Errorf("record %s: %w", obj.ID, models.ErrNotFound)
		}
		return fmt.Errorf("update record: %w", err)
	}
	return nil
}

func formObjectID(formID string) string {
	return uuid.NewSHA1(formNamespace, []byte(formID)).String()
}

func encodeRecord(rec *models.Record, meta map[string]json.RawMessage) (map[string]interface{}, error) {
	fields, err := json.Marshal(rec.Fields)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	attrs := []byte("{}")
	if rec.Attributes != nil {
		if attrs, err = json.Marshal(rec.Attributes); err != nil {
			return nil, fmt.Errorf("encode attributes: %w", err)
		}
	}
	metaData, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode meta: %w", err)
	}

	return map[string]interface{}{
		propFormID:      rec.FormID,
		propStatus:      string(rec.Status),
		propFields:      string(fields),
		propAttributes:  string(attrs),
		propMeta:        string(metaData),
		propDateCreated: formatTimestamp(rec.DateCreated),
		propDateUpdated: formatTimestamp(rec.DateUpdated),
	}, nil
}

func decodeRecord(obj *Object) (*models.Record, error) {
	rec := &models.Record{
		ID:          obj.ID,
		FormID:      stringProp(obj.Properties, propFormID),
		Status:      models.Status(stringProp(obj.Properties, propStatus)),
		Fields:      models.FieldMap{},
		DateCreated: parseTimestamp(stringProp(obj.Properties, propDateCreated)),
		DateUpdated: parseTimestamp(stringProp(obj.Properties, propDateUpdated)),
	}
	if data := stringProp(obj.Properties, propFields); data != "" {
		if err := decodeJSON([]byte(data), &rec.Fields); err != nil {
			return nil, fmt.Errorf("decode fields of %s: %w", obj.ID, err)
		}
	}
	if data := stringProp(obj.Properties, propAttributes); data != "" && data != "{}" {
		if err := decodeJSON([]byte(data), &rec.Attributes); err != nil {
			return nil, fmt.Errorf("decode attributes of %s: %w", obj.ID, err)
		}
	}
	return rec, nil
}

func decodeMeta(props map[string]interface{}) (map[string]json.RawMessage, error) {
	meta := map[string]json.RawMessage{}
	data := stringProp(props, propMeta)
	if data == "" {
		return meta, nil
	}
	if err := json.Unmarshal([]byte(data), &meta); err != nil {
		return nil, fmt.Errorf("decode meta: %w", err)
	}
	return meta, nil
}

func canonicalJSON(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return canonicalRaw(data)
}

// canonicalRaw re-encodes JSON so equal values compare byte-equal
func canonicalRaw(data []byte) ([]byte, error) {
	var v interface{}
	if err := decodeJSON(data, &v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func decodeJSON(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func stringProp(props map[string]interface{}, key string) string {
	s, _ := props[key].(string)
	return s
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
