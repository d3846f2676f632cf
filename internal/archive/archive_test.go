package archive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestTimetravelClientListMementos(t *testing.T) {
	t.Run("decodes ordered memento list", func(t *testing.T) {
		var requestedPath string
		server := httptest.NewServer(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				requestedPath = r.URL.Path
				fmt.Fprint(w, `{"mementos":{"list":[
					{"uri":"http://archive.test/1","datetime":"2021-06-01T00:00:00Z"},
					{"uri":"http://archive.test/2","datetime":"2021-07-01T00:00:00Z"}
				]}}`)
			}),
		)
		defer server.Close()

		client := NewTimetravelClient(server.URL, server.Client(), testLogger)
		reference := time.Date(2021, 6, 15, 10, 30, 0, 0, time.UTC)

		mementos, err := client.ListMementos(context.Background(), "http://example.com/a", reference)
		require.NoError(t, err)
		require.Len(t, mementos, 2)

		assert.Equal(t, "/api/json/20210615103000/http://example.com/a", requestedPath)
		assert.Equal(t, "http://archive.test/1", mementos[0].URI)
		assert.Equal(t, "http://archive.test/2", mementos[1].URI)
		assert.Equal(t, time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC), mementos[0].Timestamp)
	})

	t.Run("404 means no snapshots", func(t *testing.T) {
		server := httptest.NewServer(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			}),
		)
		defer server.Close()

		client := NewTimetravelClient(server.URL, server.Client(), testLogger)

		mementos, err := client.ListMementos(context.Background(), "http://example.com/a", time.Now())
		require.NoError(t, err)
		assert.Empty(t, mementos)
	})
}

func TestSnapshotVerifier(t *testing.T) {
	t.Run("title match is case-insensitive", func(t *testing.T) {
		server := httptest.NewServer(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `<html><body>About EXAMPLE co and friends</body></html>`)
			}),
		)
		defer server.Close()

		verifier := NewSnapshotVerifier(server.Client(), testLogger)

		matched, err := verifier.Verify(context.Background(), "Example Co", server.URL)
		require.NoError(t, err)
		assert.True(t, matched)
	})

	t.Run("non-matching content", func(t *testing.T) {
		server := httptest.NewServer(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `<html><body>Something unrelated</body></html>`)
			}),
		)
		defer server.Close()

		verifier := NewSnapshotVerifier(server.Client(), testLogger)

		matched, err := verifier.Verify(context.Background(), "Example Co", server.URL)
		require.NoError(t, err)
		assert.False(t, matched)
	})

	t.Run("title with regex metacharacters", func(t *testing.T) {
		server := httptest.NewServer(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `Article about C++ (programming language)`)
			}),
		)
		defer server.Close()

		verifier := NewSnapshotVerifier(server.Client(), testLogger)

		matched, err := verifier.Verify(context.Background(), "C++ (programming language)", server.URL)
		require.NoError(t, err)
		assert.True(t, matched)
	})

	t.Run("unreachable snapshot", func(t *testing.T) {
		server := httptest.NewServer(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			}),
		)
		defer server.Close()

		verifier := NewSnapshotVerifier(server.Client(), testLogger)

		matched, err := verifier.Verify(context.Background(), "Example Co", server.URL)
		assert.ErrorIs(t, err, ErrUnreachable)
		assert.False(t, matched)
	})
}
