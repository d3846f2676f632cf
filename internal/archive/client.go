// Package archive provides the archived-snapshot collaborators: a lookup
// client that lists memento candidates for a URL and a verifier that
// fetches a candidate and checks it against the citing page's title.
package archive

import (
	"context"
	"errors"
	"time"

	"github.com/wikicite/archiver/internal/domain"
)

// ErrUnreachable is returned when a snapshot cannot be fetched. The
// verification worker treats it as "not matched" for that memento, never
// as an aborting error.
var ErrUnreachable = errors.New("snapshot unreachable")

// Client lists archived snapshot candidates for a URL. The returned
// ordering is provider-defined, typically closest to referenceDate
// first, and may be empty.
type Client interface {
	ListMementos(ctx context.Context, uri string, referenceDate time.Time) ([]domain.Memento, error)
}

// Verifier reports whether a snapshot's content plausibly matches the
// citing page's subject.
type Verifier interface {
	// Verify fetches the snapshot at mementoURI and reports whether
	// pageTitle appears in its content. Fetch failures return an error
	// alongside false.
	Verify(ctx context.Context, pageTitle, mementoURI string) (bool, error)
}
