package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// MediaWikiClient implements Client against the MediaWiki action API.
type MediaWikiClient struct {
	apiURL     string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewMediaWikiClient creates a client for the given api.php endpoint.
// If httpClient is nil, http.DefaultClient is used.
func NewMediaWikiClient(
	apiURL, userAgent string,
	httpClient *http.Client,
	logger *slog.Logger,
) *MediaWikiClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &MediaWikiClient{
		apiURL:     apiURL,
		userAgent:  userAgent,
		httpClient: httpClient,
		logger:     logger.With("component", "mediawiki_client"),
	}
}

// Ensure MediaWikiClient implements the Client interface
var _ Client = (*MediaWikiClient)(nil)

type queryResponse struct {
	Query struct {
		Pages []struct {
			PageID    int64  `json:"pageid"`
			Title     string `json:"title"`
			Missing   bool   `json:"missing"`
			Revisions []struct {
				RevID int64 `json:"revid"`
				Slots struct {
					Main struct {
						Content string `json:"content"`
					} `json:"main"`
				} `json:"slots"`
			} `json:"revisions"`
		} `json:"pages"`
	} `json:"query"`
}

type editResponse struct {
	Edit struct {
		Result   string `json:"result"`
		NewRevID int64  `json:"newrevid"`
	} `json:"edit"`
	Error struct {
		Code string `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
}

// ReadPage implements Client.ReadPage using action=query with the
// revisions prop, latest revision only.
func (c *MediaWikiClient) ReadPage(ctx context.Context, pageID int64) (*Page, error) {
	params := url.Values{
		"action":        {"query"},
		"pageids":       {strconv.FormatInt(pageID, 10)},
		"prop":          {"revisions"},
		"rvslots":       {"main"},
		"rvprop":        {"ids|content"},
		"format":        {"json"},
		"formatversion": {"2"},
	}

	var res queryResponse
	if err := c.get(ctx, params, &res); err != nil {
		return nil, fmt.Errorf("failed to query page %d: %w", pageID, err)
	}

	if len(res.Query.Pages) == 0 || res.Query.Pages[0].Missing {
		return nil, fmt.Errorf("%w: page id %d", ErrPageNotFound, pageID)
	}

	page := res.Query.Pages[0]
	if len(page.Revisions) == 0 {
		return nil, fmt.Errorf("%w: page id %d has no revisions", ErrPageNotFound, pageID)
	}

	latest := page.Revisions[0]
	c.logger.Debug("page fetched",
		"page_id", pageID,
		"page_title", page.Title,
		"revision_id", latest.RevID)

	return &Page{
		PageID:     page.PageID,
		Title:      page.Title,
		RevisionID: latest.RevID,
		Content:    latest.Slots.Main.Content,
	}, nil
}

// Commit implements Client.Commit using action=edit.
func (c *MediaWikiClient) Commit(
	ctx context.Context,
	pageTitle, content, summary string,
	minor bool,
) (*CommitResult, error) {
	form := url.Values{
		"action":  {"edit"},
		"title":   {pageTitle},
		"text":    {content},
		"summary": {summary},
		"format":  {"json"},
	}
	if minor {
		form.Set("minor", "1")
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.apiURL,
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build edit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("edit request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read edit response: %w", err)
	}

	var res editResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("failed to decode edit response: %w", err)
	}

	if res.Error.Code == "editconflict" {
		return nil, fmt.Errorf("%w: %s", ErrEditConflict, res.Error.Info)
	}
	if res.Error.Code != "" {
		return nil, fmt.Errorf("edit failed: %s: %s", res.Error.Code, res.Error.Info)
	}
	if res.Edit.Result != "Success" {
		return nil, fmt.Errorf("edit failed with result %q", res.Edit.Result)
	}

	c.logger.Info("page committed",
		"page_title", pageTitle,
		"new_revision_id", res.Edit.NewRevID)

	return &CommitResult{NewRevisionID: res.Edit.NewRevID}, nil
}

func (c *MediaWikiClient) get(ctx context.Context, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		c.apiURL+"?"+params.Encode(),
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
