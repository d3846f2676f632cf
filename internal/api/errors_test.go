package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wikicite/archiver/internal/service"
	"github.com/wikicite/archiver/internal/store"
)

func TestMapErrorToStatusCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{name: "task not found", err: service.ErrTaskNotFound, want: http.StatusNotFound},
		{name: "source not found", err: service.ErrSourceNotFound, want: http.StatusNotFound},
		{
			name: "page not found",
			err:  service.ErrPageNotFound,
			want: http.StatusUnprocessableEntity,
		},
		{name: "terminal task", err: service.ErrInvalidTaskState, want: http.StatusConflict},
		{name: "bad page token", err: store.ErrInvalidPageToken, want: http.StatusBadRequest},
		{name: "invalid entity", err: store.ErrInvalidEntity, want: http.StatusBadRequest},
		{name: "unknown", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, MapErrorToStatusCode(tc.err))
		})
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	assert.Equal(t, "Task not found", GetSafeErrorMessage(service.ErrTaskNotFound))
	assert.Equal(t, "Page not found", GetSafeErrorMessage(service.ErrPageNotFound))
	assert.Equal(t, "Task is already in a terminal state",
		GetSafeErrorMessage(service.ErrInvalidTaskState))

	// Internal details never leak for unknown errors.
	leaky := errors.New("pq: connection refused host=10.0.0.5")
	msg := GetSafeErrorMessage(leaky)
	assert.Equal(t, "An unexpected error occurred", msg)
	assert.NotContains(t, msg, "10.0.0.5")

	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(nil))
}
