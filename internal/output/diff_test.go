package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderDocumentDiff(t *testing.T) {
	t.Run("equal documents produce no diff", func(t *testing.T) {
		doc := []byte("routes:\n  pkg1:\n    type: code\n")
		out, err := RenderDocumentDiff("before", doc, "after", doc, false)
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("both empty", func(t *testing.T) {
		out, err := RenderDocumentDiff("before", nil, "after", []byte("  "), false)
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("route change is reported", func(t *testing.T) {
		before := []byte("routes:\n  old-pkg:\n    type: code\n")
		after := []byte("routes:\n  new-pkg:\n    type: code\n")
		out, err := RenderDocumentDiff("before", before, "after", after, false)
		require.NoError(t, err)
		assert.Contains(t, out, "routes")
		assert.Contains(t, out, "new-pkg")
	})

	t.Run("json input is accepted", func(t *testing.T) {
		before := []byte(`{"routes": {}}`)
		after := []byte(`{"routes": {"pkg1": {"type": "code"}}}`)
		out, err := RenderDocumentDiff("before", before, "after", after, false)
		require.NoError(t, err)
		assert.Contains(t, out, "pkg1")
	})
}

func TestIndentDiff(t *testing.T) {
	assert.Equal(t, "", IndentDiff("", "  "))
	assert.Equal(t, "  a\n  b\n", IndentDiff("a\n\nb", "  "))
}
