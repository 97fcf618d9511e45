package models

import "time"

// Revision metadata keys. They are reserved: never written onto a live record.
const (
	MetaParentID      = "parent_id"
	MetaCreatedAt     = "created_at"
	MetaCreatedAtUTC  = "created_at_utc"
	MetaCreatedBy     = "created_by"
	MetaChangedFields = "changed_fields"
)

// ReservedKeys lists every revision metadata key
var ReservedKeys = []string{
	MetaParentID,
	MetaCreatedAt,
	MetaCreatedAtUTC,
	MetaCreatedBy,
	MetaChangedFields,
}

// IsReserved reports whether key is a revision metadata key
func IsReserved(key string) bool {
	for _, k := range ReservedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// RevisionMeta is the bookkeeping attached to a revision record
type RevisionMeta struct {
	ParentID      string    `json:"parent_id"`
	CreatedAt     time.Time `json:"created_at"`     // local time zone
	CreatedAtUTC  time.Time `json:"created_at_utc"` // same instant in UTC
	CreatedBy     string    `json:"created_by"`
	ChangedFields FieldMap  `json:"changed_fields"`
}

// Revision is an immutable snapshot of a record plus its capture metadata
type Revision struct {
	Record *Record
	Meta   RevisionMeta
}

// ID returns the revision record ID
func (r *Revision) ID() string {
	return r.Record.ID
}

// ShortID returns a shortened revision ID (first 8 characters)
func (r *Revision) ShortID() string {
	if len(r.Record.ID) > 8 {
		return r.Record.ID[:8]
	}
	return r.Record.ID
}

// MetaColumn describes an extra metadata column contributed to host listings
type MetaColumn struct {
	Key       string
	Label     string
	IsNumeric bool
}

// RevisionMetaColumns is the metadata schema contributed by revision tracking
func RevisionMetaColumns() []MetaColumn {
	return []MetaColumn{
		{Key: MetaParentID, Label: "Revision Parent Entry ID"},
		{Key: MetaCreatedAt, Label: "Revision Date"},
		{Key: MetaCreatedAtUTC, Label: "Revision Date (UTC)"},
		{Key: MetaCreatedBy, Label: "Revision Created By"},
		{Key: MetaChangedFields, Label: "Revision Changed Content"},
	}
}
