package textdiff

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderDiff_Identical(t *testing.T) {
	frag, ok := RenderDiff("Name", "Alice", "Alice", DefaultOptions())
	assert.False(t, ok)
	assert.Nil(t, frag)
}

func TestRenderDiff_SimilarLineInline(t *testing.T) {
	frag, ok := RenderDiff("Bio", "the quick brown fox", "the quick red fox", DefaultOptions())
	require.True(t, ok)
	require.Len(t, frag.Rows, 1)

	row := frag.Rows[0]
	assert.Equal(t, RowChanged, row.Kind)
	assert.Contains(t, row.Left, "<del>brown</del>")
	assert.Contains(t, row.Right, "<ins>red</ins>")
	assert.Contains(t, row.Left, "the quick ")
}

func TestRenderDiff_DissimilarLineSplit(t *testing.T) {
	opts := DefaultOptions()
	opts.Threshold = 0.1

	frag, ok := RenderDiff("Name", "Alice", "Zoltan", opts)
	require.True(t, ok)
	require.Len(t, frag.Rows, 2)
	assert.Equal(t, RowDeleted, frag.Rows[0].Kind)
	assert.Equal(t, "Alice", frag.Rows[0].Left)
	assert.Equal(t, RowAdded, frag.Rows[1].Kind)
	assert.Equal(t, "Zoltan", frag.Rows[1].Right)
}

func TestRenderDiff_ContextAndAddedLines(t *testing.T) {
	frag, ok := RenderDiff("Notes", "line one\nline two", "line one\nline two\nline three", DefaultOptions())
	require.True(t, ok)
	require.Len(t, frag.Rows, 3)
	assert.Equal(t, RowContext, frag.Rows[0].Kind)
	assert.Equal(t, RowContext, frag.Rows[1].Kind)
	assert.Equal(t, RowAdded, frag.Rows[2].Kind)
}

func TestRenderDiff_EscapesHTML(t *testing.T) {
	frag, ok := RenderDiff("<b>Label</b>", "<script>a</script>", "", DefaultOptions())
	require.True(t, ok)

	html := frag.String()
	assert.NotContains(t, html, "<script>")
	assert.NotContains(t, html, "<b>Label")
	assert.Contains(t, html, "&lt;script&gt;")
}

func TestRenderDiff_EmptySidePlaceholder(t *testing.T) {
	opts := DefaultOptions()
	opts.EmptyValue = "nothing here"

	frag, ok := RenderDiff("Phone", "", "555-1234", opts)
	require.True(t, ok)
	assert.Contains(t, frag.String(), "nothing here")
}

func TestFragment_Layout(t *testing.T) {
	frag, ok := RenderDiff("Name", "Alice", "Alicia", DefaultOptions())
	require.True(t, ok)

	html := frag.String()
	assert.True(t, strings.HasPrefix(html, `<table class="diff">`))
	assert.Contains(t, html, `<th scope="row">Name</th>`)
	assert.Contains(t, html, DefaultTitleLeft)
	assert.Contains(t, html, DefaultTitleRight)
	assert.Contains(t, html, `<th class="diff-title" colspan="4">Name</th>`)
}

func TestFragment_CustomTitles(t *testing.T) {
	opts := DefaultOptions()
	opts.Title = "Email address"
	opts.ShowTitles = false

	frag, ok := RenderDiff("email", "a@x", "b@x", opts)
	require.True(t, ok)

	html := frag.String()
	assert.Contains(t, html, "Email address")
	assert.NotContains(t, html, DefaultTitleLeft)
}

func TestFragment_Component(t *testing.T) {
	frag, ok := RenderDiff("Name", "Alice", "Alicia", DefaultOptions())
	require.True(t, ok)

	var buf bytes.Buffer
	require.NoError(t, frag.Component().Render(context.Background(), &buf))
	assert.Equal(t, frag.String(), buf.String())
}
