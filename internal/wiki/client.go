// Package wiki provides the wiki read/write collaborator contract used
// by the pipeline, a MediaWiki API implementation of it, and the
// wikitext scanning needed to extract citation templates from page
// content.
package wiki

import (
	"context"
	"errors"
)

// Common wiki client errors.
var (
	// ErrPageNotFound is returned when the requested page does not exist.
	ErrPageNotFound = errors.New("page not found")

	// ErrEditConflict is returned when a commit is rejected because the
	// page changed underneath the edit.
	ErrEditConflict = errors.New("edit conflict")
)

// Page is the current state of a wiki page: its latest revision id and
// the full wikitext content of that revision.
type Page struct {
	PageID     int64
	Title      string
	RevisionID int64
	Content    string
}

// CommitResult reports the revision created by a successful commit.
type CommitResult struct {
	NewRevisionID int64
}

// Client reads current page content and commits edited content as a new
// revision. Implementations own their timeout behavior; the pipeline
// imposes none of its own.
type Client interface {
	// ReadPage fetches the latest revision of the page with the given id.
	// Returns ErrPageNotFound if the page does not exist.
	ReadPage(ctx context.Context, pageID int64) (*Page, error)

	// Commit saves content as a new revision of the titled page.
	// Returns ErrEditConflict if the edit is rejected as conflicting.
	Commit(ctx context.Context, pageTitle, content, summary string, minor bool) (*CommitResult, error)
}
