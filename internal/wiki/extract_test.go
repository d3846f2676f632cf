package wiki

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wikicite/archiver/internal/citetemplates"
)

func TestExtractCitations(t *testing.T) {
	registry := citetemplates.NewRegistry()

	t.Run("extracts known citation templates", func(t *testing.T) {
		content := `Text {{cite web |url=http://a.test |title=A}} and ` +
			`{{infobox company |name=X}} and {{cite web |title=No URL here}}.`

		citations := ExtractCitations(content, registry)
		require.Len(t, citations, 2)

		assert.Equal(t, "http://a.test", citations[0].URL)
		assert.False(t, citations[0].Dead)
		assert.False(t, citations[0].AlreadyArchived)

		// The URL-less citation is still reported; the caller discards it.
		assert.Empty(t, citations[1].URL)
	})

	t.Run("detects dead-link flag", func(t *testing.T) {
		content := `{{cite web |url=http://a.test |deadlink=yes}}`

		citations := ExtractCitations(content, registry)
		require.Len(t, citations, 1)
		assert.True(t, citations[0].Dead)
	})

	t.Run("detects already archived citations", func(t *testing.T) {
		content := `{{cite web |url=http://a.test |archive-url=http://archive.test/1}}`

		citations := ExtractCitations(content, registry)
		require.Len(t, citations, 1)
		assert.True(t, citations[0].AlreadyArchived)
	})

	t.Run("url alias is honored", func(t *testing.T) {
		content := `{{cite web |ссылка=http://a.test}}`

		citations := ExtractCitations(content, registry)
		require.Len(t, citations, 1)
		assert.Equal(t, "http://a.test", citations[0].URL)
	})
}
