package citetemplates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryResolve(t *testing.T) {
	registry := NewRegistry()

	t.Run("resolves seeded template", func(t *testing.T) {
		tpl, err := registry.Resolve("cite web")
		require.NoError(t, err)

		assert.Equal(t, "url", tpl.URLParam)
		assert.Equal(t, "archive-url", tpl.ArchiveURLParam)
		assert.Equal(t, "archive-date", tpl.ArchiveDateParam)
		assert.Equal(t, "deadlink", tpl.DeadParam)
	})

	t.Run("matching is case-insensitive and trims whitespace", func(t *testing.T) {
		tpl, err := registry.Resolve("  Cite Web ")
		require.NoError(t, err)
		assert.Equal(t, "cite web", tpl.Name)
	})

	t.Run("unknown template is a tagged error", func(t *testing.T) {
		_, err := registry.Resolve("cite mystery")
		assert.ErrorIs(t, err, ErrUnknownTemplate)
	})
}

func TestRegistryRegister(t *testing.T) {
	registry := NewRegistry()

	registry.Register(Template{
		Name:             "Cite News",
		URLParam:         "url",
		ArchiveURLParam:  "archiveurl",
		ArchiveDateParam: "archivedate",
	})

	tpl, err := registry.Resolve("cite news")
	require.NoError(t, err)
	assert.Equal(t, "archiveurl", tpl.ArchiveURLParam)
	assert.Empty(t, tpl.DeadParam)
}
