// Package models defines the core data structures used throughout entryrev
// including records, forms, revisions and the revision metadata schema.
package models

import "time"

// Status separates live records from revision snapshots
type Status string

const (
	StatusActive   Status = "active"
	StatusRevision Status = "revision"
)

// FieldMap maps a form field key to its submitted value
type FieldMap map[string]interface{}

// Clone returns a shallow copy of the map
func (f FieldMap) Clone() FieldMap {
	out := make(FieldMap, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Record represents a form entry held by the host storage
type Record struct {
	ID          string                 `json:"id"`
	FormID      string                 `json:"form_id"`
	Status      Status                 `json:"status"`
	Fields      FieldMap               `json:"fields"`
	Attributes  map[string]interface{} `json:"attributes,omitempty"` // owner_id, source_url, is_starred, ...
	DateCreated time.Time              `json:"date_created"`
	DateUpdated time.Time              `json:"date_updated"`
}

// Clone returns a copy whose maps can be modified independently
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.Fields = r.Fields.Clone()
	if r.Attributes != nil {
		out.Attributes = make(map[string]interface{}, len(r.Attributes))
		for k, v := range r.Attributes {
			out.Attributes[k] = v
		}
	}
	return &out
}

// IsRevision returns true if the record is a revision snapshot
func (r *Record) IsRevision() bool {
	return r.Status == StatusRevision
}

// MetaFilter selects records whose metadata slot Key holds Value
type MetaFilter struct {
	Key   string
	Value interface{}
}

// Page bounds a listing. Limit 0 means no limit.
type Page struct {
	Offset int
	Limit  int
}
