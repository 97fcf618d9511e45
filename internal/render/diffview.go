package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/a-h/templ"
	"github.com/kilupskalvis/entryrev/internal/core"
	"github.com/kilupskalvis/entryrev/internal/models"
	"github.com/kilupskalvis/entryrev/internal/textdiff"
)

// FieldDiff is the rendered diff of one field
type FieldDiff struct {
	Key      string
	Label    string
	Fragment *textdiff.Fragment
}

// FieldDiffs compares rev with the live record field by field. Fields follow
// the form order; fields unknown to the form come last, sorted by key.
func (r *Renderer) FieldDiffs(ctx context.Context, rev *models.Revision, current *models.Record) ([]FieldDiff, error) {
	form, err := r.records.GetForm(ctx, current.FormID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	oldFields := core.StripReserved(rev.Record.Fields)
	newFields := core.StripReserved(current.Fields)

	var diffs []FieldDiff
	for _, key := range fieldOrder(form, oldFields, newFields) {
		label := key
		if f := form.Field(key); f != nil && f.Label != "" {
			label = f.Label
		}
		if core.LooseEqual(oldFields[key], newFields[key]) {
			continue
		}
		opts := r.cfg.Diff
		opts.Title = label
		frag, ok := textdiff.RenderDiff(label, stringify(oldFields[key]), stringify(newFields[key]), opts)
		if !ok {
			continue
		}
		diffs = append(diffs, FieldDiff{Key: key, Label: label, Fragment: frag})
	}
	return diffs, nil
}

// DiffView renders every differing field of rev against current. It returns
// ErrNotApplicable when the two are identical.
func (r *Renderer) DiffView(ctx context.Context, rev *models.Revision, current *models.Record) (templ.Component, error) {
	diffs, err := r.FieldDiffs(ctx, rev, current)
	if err != nil {
		return nil, err
	}
	if len(diffs) == 0 {
		return nil, ErrNotApplicable
	}

	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<div class="entry-revision-diff">`); err != nil {
			return err
		}
		for _, d := range diffs {
			if err := d.Fragment.Component().Render(ctx, w); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</div>`)
		return err
	}), nil
}

func fieldOrder(form *models.Form, maps ...models.FieldMap) []string {
	seen := map[string]bool{}
	var keys []string
	if form != nil {
		for _, f := range form.Fields {
			if !seen[f.Key] {
				seen[f.Key] = true
				keys = append(keys, f.Key)
			}
		}
	}
	var rest []string
	for _, m := range maps {
		for k := range m {
			if !seen[k] {
				seen[k] = true
				rest = append(rest, k)
			}
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

// stringify turns a field value into display text
func stringify(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case json.Number:
		return s.String()
	case bool:
		if s {
			return "1"
		}
		return ""
	case []interface{}:
		parts := make([]string, 0, len(s))
		for _, item := range s {
			parts = append(parts, stringify(item))
		}
		return strings.Join(parts, ", ")
	case map[string]interface{}:
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Sprint(s)
		}
		return string(data)
	default:
		return fmt.Sprint(s)
	}
}
