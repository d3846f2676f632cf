package wiki

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTemplates(t *testing.T) {
	t.Run("single template with parameters", func(t *testing.T) {
		content := `Intro text.<ref>{{cite web |url=http://example.com/a |title=A}}</ref> More text.`

		calls := ParseTemplates(content)
		require.Len(t, calls, 1)

		assert.Equal(t, "cite web", calls[0].Name)
		assert.Equal(t, "{{cite web |url=http://example.com/a |title=A}}", calls[0].Wikitext)

		url, ok := calls[0].Param("url")
		require.True(t, ok)
		assert.Equal(t, "http://example.com/a", url)
	})

	t.Run("multiple templates in document order", func(t *testing.T) {
		content := `{{cite web |url=http://a.test}} and {{cite web |url=http://b.test}}`

		calls := ParseTemplates(content)
		require.Len(t, calls, 2)

		first, _ := calls[0].Param("url")
		second, _ := calls[1].Param("url")
		assert.Equal(t, "http://a.test", first)
		assert.Equal(t, "http://b.test", second)
	})

	t.Run("nested template stays inside parent value", func(t *testing.T) {
		content := `{{cite web |url=http://a.test |quote={{lang|en|hello}}}}`

		calls := ParseTemplates(content)
		require.Len(t, calls, 1)

		quote, ok := calls[0].Param("quote")
		require.True(t, ok)
		assert.Equal(t, "{{lang|en|hello}}", quote)
	})

	t.Run("pipe inside wiki link is not a separator", func(t *testing.T) {
		content := `{{cite web |url=http://a.test |title=[[Foo|Bar]]}}`

		calls := ParseTemplates(content)
		require.Len(t, calls, 1)

		title, ok := calls[0].Param("title")
		require.True(t, ok)
		assert.Equal(t, "[[Foo|Bar]]", title)
	})

	t.Run("unbalanced braces are skipped", func(t *testing.T) {
		content := `{{cite web |url=http://a.test`
		assert.Empty(t, ParseTemplates(content))
	})

	t.Run("param aliases match case-insensitively", func(t *testing.T) {
		content := `{{cite web |URL=http://a.test}}`

		calls := ParseTemplates(content)
		require.Len(t, calls, 1)

		url, ok := calls[0].Param("url")
		require.True(t, ok)
		assert.Equal(t, "http://a.test", url)
	})
}
