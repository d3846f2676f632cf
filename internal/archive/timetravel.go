package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/wikicite/archiver/internal/domain"
)

// mementoDateFormat is the timestamp layout the timetravel API expects
// in request paths.
const mementoDateFormat = "20060102150405"

// TimetravelClient implements Client against a memento aggregator
// exposing the timetravel JSON API.
type TimetravelClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewTimetravelClient creates a lookup client for the given aggregator
// base URL. If httpClient is nil, http.DefaultClient is used.
func NewTimetravelClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *TimetravelClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &TimetravelClient{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger.With("component", "timetravel_client"),
	}
}

// Ensure TimetravelClient implements the Client interface
var _ Client = (*TimetravelClient)(nil)

type timemapResponse struct {
	Mementos struct {
		List []struct {
			URI      string    `json:"uri"`
			Datetime time.Time `json:"datetime"`
		} `json:"list"`
	} `json:"mementos"`
}

// ListMementos implements Client.ListMementos via
// GET <base>/api/json/<yyyyMMddHHmmss>/<uri>.
func (c *TimetravelClient) ListMementos(
	ctx context.Context,
	uri string,
	referenceDate time.Time,
) ([]domain.Memento, error) {
	requestURL := fmt.Sprintf(
		"%s/api/json/%s/%s",
		c.baseURL,
		referenceDate.UTC().Format(mementoDateFormat),
		uri,
	)
	c.logger.Debug("request to", "url", requestURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build memento request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("memento lookup failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// The aggregator answers 404 for URLs with no snapshots at all.
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("memento lookup returned status %d", resp.StatusCode)
	}

	var timemap timemapResponse
	if err := json.NewDecoder(resp.Body).Decode(&timemap); err != nil {
		return nil, fmt.Errorf("failed to decode memento response: %w", err)
	}

	mementos := make([]domain.Memento, 0, len(timemap.Mementos.List))
	for _, m := range timemap.Mementos.List {
		mementos = append(mementos, domain.Memento{
			URI:       m.URI,
			Timestamp: m.Datetime,
		})
	}

	c.logger.Debug("mementos listed", "url", uri, "count", len(mementos))
	return mementos, nil
}
