// Package textdiff renders a split-view HTML diff of two text values.
//
// Lines are aligned with difflib opcodes. Replaced lines that are similar
// enough are shown side by side with word-level <del>/<ins> markup; lines
// that changed beyond recognition are shown as a separate removal and
// addition.
package textdiff

import (
	"context"
	"io"
	"strings"
	"unicode"

	"github.com/a-h/templ"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// Default option values
const (
	DefaultThreshold  = 0.9
	DefaultEmptyValue = "(empty)"
	DefaultTitleLeft  = "Entry Revision"
	DefaultTitleRight = "Current Entry"
)

// Options controls how a diff is rendered
type Options struct {
	// Threshold is the largest line distance (1 - similarity) at which a
	// replaced pair is still rendered inline.
	Threshold float64
	// EmptyValue is shown in place of an empty side.
	EmptyValue string
	Title      string // defaults to the label
	TitleLeft  string
	TitleRight string
	// ShowTitles adds the left/right sub-title row.
	ShowTitles bool
}

// DefaultOptions returns the standard rendering options
func DefaultOptions() Options {
	return Options{
		Threshold:  DefaultThreshold,
		EmptyValue: DefaultEmptyValue,
		TitleLeft:  DefaultTitleLeft,
		TitleRight: DefaultTitleRight,
		ShowTitles: true,
	}
}

func (o Options) withDefaults(label string) Options {
	if o.Threshold <= 0 {
		o.Threshold = DefaultThreshold
	}
	if o.EmptyValue == "" {
		o.EmptyValue = DefaultEmptyValue
	}
	if o.Title == "" {
		o.Title = label
	}
	if o.TitleLeft == "" {
		o.TitleLeft = DefaultTitleLeft
	}
	if o.TitleRight == "" {
		o.TitleRight = DefaultTitleRight
	}
	return o
}

// RowKind classifies a diff row
type RowKind string

const (
	RowContext RowKind = "context"
	RowChanged RowKind = "changed"
	RowDeleted RowKind = "deleted"
	RowAdded   RowKind = "added"
)

// Row is one line of the split view. Left and Right are escaped HTML.
type Row struct {
	Kind  RowKind
	Left  string
	Right string
}

// Fragment is a rendered field diff
type Fragment struct {
	Label string
	Rows  []Row
	opts  Options
}

// RenderDiff compares old and new and returns the rendered fragment. The
// second return value is false when the texts are equal.
func RenderDiff(label, oldText, newText string, opts Options) (*Fragment, bool) {
	if oldText == newText {
		return nil, false
	}
	opts = opts.withDefaults(label)

	a := splitLines(oldText)
	b := splitLines(newText)

	frag := &Fragment{Label: label, opts: opts}
	matcher := difflib.NewMatcher(a, b)
	for _, op := range matcher.GetOpCodes() {
		switch op.Tag {
		case 'e':
			for i := op.I1; i < op.I2; i++ {
				text := templ.EscapeString(a[i])
				frag.Rows = append(frag.Rows, Row{Kind: RowContext, Left: text, Right: text})
			}
		case 'd':
			for i := op.I1; i < op.I2; i++ {
				frag.Rows = append(frag.Rows, Row{Kind: RowDeleted, Left: templ.EscapeString(a[i])})
			}
		case 'i':
			for j := op.J1; j < op.J2; j++ {
				frag.Rows = append(frag.Rows, Row{Kind: RowAdded, Right: templ.EscapeString(b[j])})
			}
		case 'r':
			frag.Rows = append(frag.Rows, replaceRows(a[op.I1:op.I2], b[op.J1:op.J2], opts.Threshold)...)
		}
	}
	return frag, true
}

func replaceRows(olds, news []string, threshold float64) []Row {
	var rows []Row
	n := len(olds)
	if len(news) > n {
		n = len(news)
	}
	for k := 0; k < n; k++ {
		switch {
		case k >= len(olds):
			rows = append(rows, Row{Kind: RowAdded, Right: templ.EscapeString(news[k])})
		case k >= len(news):
			rows = append(rows, Row{Kind: RowDeleted, Left: templ.EscapeString(olds[k])})
		case distance(olds[k], news[k]) < threshold:
			left, right := inlineDiff(olds[k], news[k])
			rows = append(rows, Row{Kind: RowChanged, Left: left, Right: right})
		default:
			rows = append(rows,
				Row{Kind: RowDeleted, Left: templ.EscapeString(olds[k])},
				Row{Kind: RowAdded, Right: templ.EscapeString(news[k])})
		}
	}
	return rows
}

// distance is 1 - similarity of the characters of a and b
func distance(a, b string) float64 {
	m := difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, ""))
	return 1 - m.Ratio()
}

// inlineDiff marks word-level changes between two lines
func inlineDiff(a, b string) (string, string) {
	dmp := diffmatchpatch.New()
	ta, tb, tokens := dmp.DiffLinesToChars(joinTokens(a), joinTokens(b))
	diffs := dmp.DiffMain(ta, tb, false)
	diffs = dmp.DiffCharsToLines(diffs, tokens)
	for i := range diffs {
		diffs[i].Text = strings.ReplaceAll(diffs[i].Text, "\n", "")
	}
	diffs = dmp.DiffCleanupSemantic(diffs)

	var left, right strings.Builder
	for _, d := range diffs {
		text := templ.EscapeString(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			left.WriteString(text)
			right.WriteString(text)
		case diffmatchpatch.DiffDelete:
			left.WriteString("<del>" + text + "</del>")
		case diffmatchpatch.DiffInsert:
			right.WriteString("<ins>" + text + "</ins>")
		}
	}
	return left.String(), right.String()
}

// joinTokens puts each word and each whitespace run on its own line so the
// line-mode differ works on words.
func joinTokens(s string) string {
	var b strings.Builder
	var prevSpace bool
	for i, r := range s {
		space := unicode.IsSpace(r)
		if i > 0 && space != prevSpace {
			b.WriteByte('\n')
		}
		b.WriteRune(r)
		prevSpace = space
	}
	b.WriteByte('\n')
	return b.String()
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Split(s, "\n")
}

// Component renders the fragment as a split-view table
func (f *Fragment) Component() templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, f.String())
		return err
	})
}

// String returns the fragment as HTML
func (f *Fragment) String() string {
	var b strings.Builder
	b.WriteString(`<table class="diff">`)
	b.WriteString(`<colgroup><col class="label"><col class="content diffsplit left"><col class="content diffsplit middle"><col class="content diffsplit right"></colgroup>`)
	b.WriteString(`<tbody>`)
	b.WriteString(`<tr><th class="diff-title" colspan="4">` + templ.EscapeString(f.opts.Title) + `</th></tr>`)
	if f.opts.ShowTitles {
		b.WriteString(`<tr class="diff-sub-title"><td></td><th>` + templ.EscapeString(f.opts.TitleLeft) +
			`</th><td></td><th>` + templ.EscapeString(f.opts.TitleRight) + `</th></tr>`)
	}
	for _, row := range f.Rows {
		b.WriteString(f.rowHTML(row))
	}
	b.WriteString(`</tbody></table>`)
	return b.String()
}

func (f *Fragment) rowHTML(row Row) string {
	label := `<th scope="row">` + templ.EscapeString(f.Label) + `</th>`

	switch row.Kind {
	case RowContext:
		return `<tr><td></td><td class="diff-context">` + row.Left + `</td><td></td><td class="diff-context">` + row.Right + `</td></tr>`
	case RowChanged:
		return `<tr>` + label + `<td class="diff-deletedline">` + f.cell(row.Left) + `</td><td></td><td class="diff-addedline">` + f.cell(row.Right) + `</td></tr>`
	case RowDeleted:
		return `<tr>` + label + `<td class="diff-deletedline"><del>` + f.cell(row.Left) + `</del></td><td></td><td>&nbsp;</td></tr>`
	default:
		return `<tr><td></td><td>&nbsp;</td><td></td><td class="diff-addedline"><ins>` + f.cell(row.Right) + `</ins></td></tr>`
	}
}

// cell substitutes the empty placeholder for a blank side
func (f *Fragment) cell(html string) string {
	if html == "" {
		return `<span class="diff-empty">` + templ.EscapeString(f.opts.EmptyValue) + `</span>`
	}
	return html
}
