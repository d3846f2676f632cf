package archive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
)

// maxSnapshotBytes caps how much of a snapshot body is read for matching.
const maxSnapshotBytes = 4 << 20

// SnapshotVerifier implements Verifier by fetching snapshot content over
// HTTP and matching the page title case-insensitively against it.
type SnapshotVerifier struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSnapshotVerifier creates a verifier. If httpClient is nil,
// http.DefaultClient is used.
func NewSnapshotVerifier(httpClient *http.Client, logger *slog.Logger) *SnapshotVerifier {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &SnapshotVerifier{
		httpClient: httpClient,
		logger:     logger.With("component", "snapshot_verifier"),
	}
}

// Ensure SnapshotVerifier implements the Verifier interface
var _ Verifier = (*SnapshotVerifier)(nil)

// Verify implements Verifier.Verify.
func (v *SnapshotVerifier) Verify(ctx context.Context, pageTitle, mementoURI string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mementoURI, nil)
	if err != nil {
		return false, fmt.Errorf("failed to build snapshot request: %w", err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("%w: status %d", ErrUnreachable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	pattern, err := regexp.Compile("(?i)" + regexp.QuoteMeta(pageTitle))
	if err != nil {
		return false, fmt.Errorf("failed to compile title pattern: %w", err)
	}

	matched := pattern.Match(body)
	v.logger.Debug("snapshot verified",
		"uri", mementoURI,
		"page_title", pageTitle,
		"matched", matched)

	return matched, nil
}
