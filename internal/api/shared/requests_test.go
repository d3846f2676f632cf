package shared

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		PageID int64 `json:"page_id"`
	}

	t.Run("decodes a valid body", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/api/tasks", strings.NewReader(`{"page_id": 42}`))

		var p payload
		require.NoError(t, DecodeJSON(r, &p))
		assert.Equal(t, int64(42), p.PageID)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/api/tasks", strings.NewReader(`not json`))

		var p payload
		assert.Error(t, DecodeJSON(r, &p))
	})
}
