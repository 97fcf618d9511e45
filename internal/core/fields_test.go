package core

import (
	"testing"

	"github.com/kilupskalvis/entryrev/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestDiffFields_ReportsChangedValues(t *testing.T) {
	prev := models.FieldMap{"name": "Alice", "email": "a@example.com"}
	next := models.FieldMap{"name": "Alicia", "email": "a@example.com"}

	assert.Equal(t, models.FieldMap{"name": "Alicia"}, DiffFields(prev, next))
}

func TestDiffFields_IdenticalIsEmpty(t *testing.T) {
	fields := models.FieldMap{"name": "Alice", "age": 30}

	changed := DiffFields(fields, fields.Clone())
	assert.NotNil(t, changed)
	assert.Empty(t, changed)
}

func TestDiffFields_TypeOnlyChangeIgnored(t *testing.T) {
	prev := models.FieldMap{"age": 30, "active": "1"}
	next := models.FieldMap{"age": "30", "active": true}

	assert.Empty(t, DiffFields(prev, next))
}

func TestDiffFields_NewKeyAlwaysIncluded(t *testing.T) {
	prev := models.FieldMap{"name": "Alice"}
	next := models.FieldMap{"name": "Alice", "phone": ""}

	assert.Equal(t, models.FieldMap{"phone": ""}, DiffFields(prev, next))
}

func TestDiffFields_RemovedKeyNotSurfaced(t *testing.T) {
	prev := models.FieldMap{"name": "Alice", "phone": "555"}
	next := models.FieldMap{"name": "Alice"}

	assert.Empty(t, DiffFields(prev, next))
}

func TestDiffFields_ResultIsSubsetOfNext(t *testing.T) {
	prev := models.FieldMap{"a": 1, "b": "x", "c": nil}
	next := models.FieldMap{"a": 2, "b": "x", "c": "", "d": "new"}

	changed := DiffFields(prev, next)
	for k, v := range changed {
		assert.Equal(t, next[k], v)
		if old, ok := prev[k]; ok {
			assert.False(t, LooseEqual(old, v))
		}
	}
	assert.Equal(t, models.FieldMap{"a": 2, "d": "new"}, changed)
}

func TestStripReserved(t *testing.T) {
	fields := models.FieldMap{
		"name":                   "Alice",
		models.MetaParentID:      "rec-1",
		models.MetaChangedFields: map[string]interface{}{"name": "Alice"},
	}

	stripped := StripReserved(fields)
	assert.Equal(t, models.FieldMap{"name": "Alice"}, stripped)
	assert.Len(t, fields, 3, "input should be untouched")
}
