// Package render builds the HTML shown for revision history: the revision
// list of a record, the field-by-field diff of one revision against the live
// record, and signed restore links.
package render

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kilupskalvis/entryrev/internal/models"
	"github.com/kilupskalvis/entryrev/internal/security"
	"github.com/kilupskalvis/entryrev/internal/textdiff"
)

// ErrNotApplicable is returned when there is nothing to render
var ErrNotApplicable = errors.New("not applicable")

// RecordReader loads live records and their form definitions
type RecordReader interface {
	GetRecord(ctx context.Context, id string) (*models.Record, error)
	GetForm(ctx context.Context, id string) (*models.Form, error)
}

// RevisionLister lists revisions of a record, oldest first
type RevisionLister interface {
	ListRevisions(ctx context.Context, recordID string) ([]*models.Revision, error)
}

// Config holds presentation settings
type Config struct {
	BaseURL  string
	Location *time.Location
	Diff     textdiff.Options
}

// Renderer produces revision views
type Renderer struct {
	records   RecordReader
	revisions RevisionLister
	tokens    *security.Tokens
	actors    ActorDirectory
	cfg       Config
	now       func() time.Time
}

// New creates a Renderer
func New(records RecordReader, revisions RevisionLister, tokens *security.Tokens, actors ActorDirectory, cfg Config) *Renderer {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if actors == nil {
		actors = StaticDirectory{}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Renderer{
		records:   records,
		revisions: revisions,
		tokens:    tokens,
		actors:    actors,
		cfg:       cfg,
		now:       time.Now,
	}
}

// RevisionURL links to the diff view of a revision
func (r *Renderer) RevisionURL(rev *models.Revision) string {
	return fmt.Sprintf("%s/entries/%s/revisions/%s", r.cfg.BaseURL,
		url.PathEscape(rev.Meta.ParentID), url.PathEscape(rev.ID()))
}

// RestoreURL returns a signed link that restores rev when followed by actor
func (r *Renderer) RestoreURL(rev *models.Revision, actor string) (string, error) {
	if r.tokens == nil {
		return "", errors.New("restore tokens are not configured")
	}
	token, err := r.tokens.Issue(actor, rev.Meta.ParentID, rev.ID())
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("revision", rev.ID())
	q.Set("token", token)
	return fmt.Sprintf("%s/entries/%s/restore?%s", r.cfg.BaseURL, url.PathEscape(rev.Meta.ParentID), q.Encode()), nil
}
