package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
	"github.com/dustin/go-humanize"
	"github.com/kilupskalvis/entryrev/internal/core"
	"github.com/kilupskalvis/entryrev/internal/models"
)

// Default list texts
const (
	DefaultContainerClass = "entry-revisions"
	DefaultNoRevisions    = "This entry has no revisions."
	DefaultNotFound       = "The entry could not be found."
	// DefaultFormat slots: avatar, author, relative time, date
	DefaultFormat = "%[1]s %[2]s, %[3]s ago (%[4]s)"
	dateLayout    = "2006-01-02 15:04"
)

// ListOptions controls RevisionList output
type ListOptions struct {
	ContainerClass string
	AutoParagraph  bool
	NoRevisions    string
	NotFound       string
	Format         string
}

// DefaultListOptions returns the standard list options
func DefaultListOptions() ListOptions {
	return ListOptions{
		ContainerClass: DefaultContainerClass,
		AutoParagraph:  true,
		NoRevisions:    DefaultNoRevisions,
		NotFound:       DefaultNotFound,
		Format:         DefaultFormat,
	}
}

func (o ListOptions) withDefaults() ListOptions {
	d := DefaultListOptions()
	if o.ContainerClass == "" {
		o.ContainerClass = d.ContainerClass
	}
	if o.NoRevisions == "" {
		o.NoRevisions = d.NoRevisions
	}
	if o.NotFound == "" {
		o.NotFound = d.NotFound
	}
	if o.Format == "" {
		o.Format = d.Format
	}
	return o
}

// ListItem is one rendered revision entry
type ListItem struct {
	Revision *models.Revision
	Title    string // HTML
	URL      string
}

// RevisionItems returns the revisions of recordID that differ from the live
// record, newest first, with their rendered titles.
func (r *Renderer) RevisionItems(ctx context.Context, recordID string, format string) ([]ListItem, error) {
	current, err := r.records.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	revs, err := r.revisions.ListRevisions(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if format == "" {
		format = DefaultFormat
	}

	items := make([]ListItem, 0, len(revs))
	for i := len(revs) - 1; i >= 0; i-- {
		rev := revs[i]
		if !differs(rev.Record.Fields, current.Fields) {
			continue
		}
		items = append(items, ListItem{
			Revision: rev,
			Title:    r.revisionTitle(ctx, rev, format),
			URL:      r.RevisionURL(rev),
		})
	}
	return items, nil
}

// RevisionList renders the revisions of recordID that differ from the live
// record. A missing record renders the NotFound message.
func (r *Renderer) RevisionList(ctx context.Context, recordID string, opts ListOptions) (templ.Component, error) {
	opts = opts.withDefaults()

	items, err := r.RevisionItems(ctx, recordID, opts.Format)
	if errors.Is(err, models.ErrNotFound) {
		return r.message(opts, opts.NotFound), nil
	}
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return r.message(opts, opts.NoRevisions), nil
	}

	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<ul class="` + templ.EscapeString(opts.ContainerClass) + `">`)
		for _, item := range items {
			b.WriteString(`<li><a href="` + templ.EscapeString(item.URL) + `">` + item.Title + `</a></li>`)
		}
		b.WriteString(`</ul>`)
		_, err := io.WriteString(w, b.String())
		return err
	}), nil
}

func (r *Renderer) message(opts ListOptions, text string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		body := templ.EscapeString(text)
		if opts.AutoParagraph {
			body = "<p>" + body + "</p>"
		}
		_, err := io.WriteString(w, `<div class="`+templ.EscapeString(opts.ContainerClass)+`">`+body+`</div>`)
		return err
	})
}

func (r *Renderer) revisionTitle(ctx context.Context, rev *models.Revision, format string) string {
	a := r.actor(ctx, rev.Meta.CreatedBy)
	created := rev.Meta.CreatedAt
	if created.IsZero() {
		created = rev.Record.DateCreated
	}
	ago := strings.TrimSpace(humanize.RelTime(created, r.now(), "", ""))
	date := created.In(r.cfg.Location).Format(dateLayout)

	return fmt.Sprintf(format,
		avatarHTML(a),
		templ.EscapeString(a.Name),
		templ.EscapeString(ago),
		templ.EscapeString(date))
}

// differs reports whether two field sets are not loosely equal
func differs(a, b models.FieldMap) bool {
	a, b = core.StripReserved(a), core.StripReserved(b)
	return len(core.DiffFields(a, b)) > 0 || len(core.DiffFields(b, a)) > 0
}
