// Package nbastats fetches league standings from the stats.nba.com API.
//
// stats.nba.com answers with "result sets": named tables with a header row
// and a rowSet. The Standings result set maps one-to-one onto
// provider.Table. The API rejects requests that do not look like they come
// from nba.com, so the client sends browser headers.
// Rate limiting is handled via a token bucket limiter.
package nbastats

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/albapepper/scoracle-standings/internal/provider"
)

const (
	DefaultBaseURL    = "https://stats.nba.com/stats"
	DefaultSeasonType = "Regular Season"
	leagueIDNBA       = "00"
	standingsPath     = "/leaguestandingsv3"
	standingsSet      = "Standings"
)

// Options configures a Client. Zero values fall back to defaults, except
// Timeout, where zero means no per-request limit.
type Options struct {
	BaseURL           string
	Season            string // "2025-26"; empty means the season in progress at fetch time
	SeasonType        string
	RequestsPerMinute int
	Timeout           time.Duration // per request; 0 leaves the bound to the caller's context
}

// Client is the HTTP client for the stats.nba.com standings endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	season     string
	seasonType string
	limiter    *rate.Limiter
	logger     *slog.Logger
	now        func() time.Time
}

// NewClient creates a stats.nba.com client with rate limiting.
func NewClient(opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.SeasonType == "" {
		opts.SeasonType = DefaultSeasonType
	}
	if opts.RequestsPerMinute <= 0 {
		opts.RequestsPerMinute = 30
	}
	if opts.Timeout < 0 {
		opts.Timeout = 0
	}
	rps := float64(opts.RequestsPerMinute) / 60.0
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		baseURL:    opts.BaseURL,
		season:     opts.Season,
		seasonType: opts.SeasonType,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		logger:     logger,
		now:        time.Now,
	}
}

// resultSet is one named table in a stats.nba.com response.
type resultSet struct {
	Name    string          `json:"name"`
	Headers []string        `json:"headers"`
	RowSet  [][]interface{} `json:"rowSet"`
}

type statsResponse struct {
	Resource   string      `json:"resource"`
	ResultSets []resultSet `json:"resultSets"`
}

// FetchStandings returns the Standings result set for the configured season.
func (c *Client) FetchStandings(ctx context.Context) (*provider.Table, error) {
	season := c.season
	if season == "" {
		season = SeasonFor(c.now())
	}
	params := url.Values{
		"LeagueID":   {leagueIDNBA},
		"Season":     {season},
		"SeasonType": {c.seasonType},
	}

	resp, err := c.get(ctx, standingsPath, params)
	if err != nil {
		return nil, fmt.Errorf("fetch standings %s: %w", season, err)
	}

	for _, rs := range resp.ResultSets {
		if rs.Name != standingsSet {
			continue
		}
		c.logger.Debug("Standings fetched", "season", season, "rows", len(rs.RowSet))
		return &provider.Table{Headers: rs.Headers, Rows: rs.RowSet}, nil
	}
	return nil, fmt.Errorf("fetch standings %s: result set %q not found", season, standingsSet)
}

// get performs a rate-limited GET request to a stats.nba.com endpoint.
func (c *Client) get(ctx context.Context, path string, params url.Values) (*statsResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	setBrowserHeaders(req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stats.nba.com %s returned %d: %s", path, resp.StatusCode, truncate(body, 200))
	}

	var result statsResponse
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &result, nil
}

func setBrowserHeaders(h http.Header) {
	h.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
	h.Set("Accept", "application/json, text/plain, */*")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Origin", "https://www.nba.com")
	h.Set("Referer", "https://www.nba.com/")
	h.Set("x-nba-stats-origin", "stats")
	h.Set("x-nba-stats-token", "true")
}

// SeasonFor returns the stats.nba.com season id in progress at t. A season
// starts in October, so 2026-03-01 is in "2025-26".
func SeasonFor(t time.Time) string {
	start := t.Year()
	if t.Month() < time.October {
		start--
	}
	return fmt.Sprintf("%d-%02d", start, (start+1)%100)
}

// truncate returns a truncated string representation for error messages.
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
