package cli

import (
	"testing"

	"github.com/kilupskalvis/entryrev/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==================== Assignment Tests ====================

func TestParseAssignments(t *testing.T) {
	fields, err := parseAssignments([]string{"name=Alice", "note=a=b", "empty="})
	require.NoError(t, err)
	assert.Equal(t, models.FieldMap{"name": "Alice", "note": "a=b", "empty": ""}, fields)
}

func TestParseAssignments_Invalid(t *testing.T) {
	_, err := parseAssignments([]string{"name"})
	assert.Error(t, err)

	_, err = parseAssignments([]string{"=x"})
	assert.Error(t, err)
}

// ==================== Form Import Tests ====================

func TestParseForm(t *testing.T) {
	form, err := parseForm([]byte(`
id: contact
title: Contact
fields:
  - key: name
    label: Name
  - key: email
    label: Email
`))
	require.NoError(t, err)
	assert.Equal(t, "contact", form.ID)
	require.Len(t, form.Fields, 2)
	assert.Equal(t, "Email", form.Field("email").Label)
}

func TestParseForm_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing id", "title: x\n"},
		{"field without key", "id: f\nfields:\n  - label: Name\n"},
		{"duplicate key", "id: f\nfields:\n  - key: a\n  - key: a\n"},
		{"not yaml", "id: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseForm([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abcdefgh", shortID("abcdefghijkl"))
	assert.Equal(t, "abc", shortID("abc"))
}
