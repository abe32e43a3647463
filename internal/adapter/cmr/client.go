// Package cmr searches NASA's Common Metadata Repository for VNP46A2
// granules. It implements domain.GranuleCatalog.
package cmr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/nocturna/skyglow-etl/internal/domain"
	"github.com/nocturna/skyglow-etl/internal/observability"
)

const defaultBaseURL = "https://cmr.earthdata.nasa.gov/search/granules.json"

// pageSize caps one search response. A one-month window over a city-scale
// bounding box yields at most ~45 granules, well under this.
const pageSize = 200

// Client implements domain.GranuleCatalog against the CMR search API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a CMR granule search client. The token is an Earthdata
// bearer token; an empty token still works for public collections.
func NewClient(token string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: defaultBaseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// Search returns granules of the configured product intersecting bounds
// within [start, end]. Results come back in CMR's default order; callers
// rank them themselves.
func (c *Client) Search(ctx context.Context, bounds domain.BoundingBox, start, end time.Time) ([]domain.Granule, error) {
	params := url.Values{
		"short_name":   {domain.ProductShortName},
		"bounding_box": {bounds.String()},
		"temporal":     {fmt.Sprintf("%s,%s", start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))},
		"page_size":    {strconv.Itoa(pageSize)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.CatalogAPIDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		c.metrics.CatalogRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("granule search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.CatalogRequests.WithLabelValues("error").Inc()
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("CMR API error: status %d: %s", resp.StatusCode, body)
	}

	var cmrResp response
	if err := json.NewDecoder(resp.Body).Decode(&cmrResp); err != nil {
		c.metrics.CatalogRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("decode response: %w", err)
	}

	granules := make([]domain.Granule, 0, len(cmrResp.Feed.Entry))
	for _, e := range cmrResp.Feed.Entry {
		g, err := e.toGranule()
		if err != nil {
			c.logger.Warn("skipping unparseable granule entry", "id", e.ID, "error", err)
			continue
		}
		granules = append(granules, g)
	}

	if len(granules) == 0 {
		c.metrics.CatalogRequests.WithLabelValues("empty").Inc()
	} else {
		c.metrics.CatalogRequests.WithLabelValues("success").Inc()
	}
	c.logger.Debug("granule search complete",
		"bounds", bounds.String(),
		"start", start.Format(time.RFC3339),
		"end", end.Format(time.RFC3339),
		"granules", len(granules))
	return granules, nil
}

// CMR API response types (ECHO10 Atom-like JSON feed).

type response struct {
	Feed feed `json:"feed"`
}

type feed struct {
	Entry []entry `json:"entry"`
}

type entry struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	TimeStart  string `json:"time_start"`
	CloudCover string `json:"cloud_cover"`
	Links      []link `json:"links"`
}

type link struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

// dataLinkRel marks a link to the granule payload itself, as opposed to
// browse imagery or metadata.
const dataLinkRel = "http://esipfed.org/ns/fedsearch/1.1/data#"

func (e entry) toGranule() (domain.Granule, error) {
	acquired, err := time.Parse(time.RFC3339, e.TimeStart)
	if err != nil {
		return domain.Granule{}, fmt.Errorf("parse time_start %q: %w", e.TimeStart, err)
	}

	// CMR reports cloud_cover as a string; absence means unknown, which is
	// treated as fully clouded so selection never prefers an unscreened scene.
	cloud := 100.0
	if e.CloudCover != "" {
		cloud, err = strconv.ParseFloat(e.CloudCover, 64)
		if err != nil {
			return domain.Granule{}, fmt.Errorf("parse cloud_cover %q: %w", e.CloudCover, err)
		}
	}

	ref := ""
	for _, l := range e.Links {
		if l.Rel == dataLinkRel {
			ref = l.Href
			break
		}
	}

	return domain.Granule{
		ID:                e.ID,
		CloudCoverPercent: cloud,
		AcquisitionTime:   acquired,
		DownloadReference: ref,
	}, nil
}
