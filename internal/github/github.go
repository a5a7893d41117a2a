// Package github is the implementation of the traffic fetcher component.
// The traffic fetcher is responsible for pulling raw per-day traffic series
// from the GitHub REST API, one call per repository and kind.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/traffic-insights/traffic-insights/internal/constants"
	"github.com/traffic-insights/traffic-insights/internal/traffic"
	"github.com/ubuntu/decorate"
)

// ErrInvalidTimestamp is returned when a traffic point carries a timestamp
// that does not follow the documented day format.
var ErrInvalidTimestamp = errors.New("invalid traffic point timestamp")

// Client fetches traffic series from the GitHub API.
type Client struct {
	http       *http.Client
	baseURL    string
	apiVersion string
}

type options struct {
	httpClient *http.Client
	baseURL    string
	apiVersion string
}

// Options represents an optional function to override Client default values.
type Options func(*options)

// WithBaseURL overrides the GitHub API base URL.
func WithBaseURL(url string) Options {
	return func(o *options) {
		o.baseURL = url
	}
}

// WithHTTPClient overrides the HTTP client used for API calls.
func WithHTTPClient(c *http.Client) Options {
	return func(o *options) {
		o.httpClient = c
	}
}

// New returns a new Client.
func New(args ...Options) Client {
	opts := options{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    constants.DefaultAPIBaseURL,
		apiVersion: constants.APIVersion,
	}
	for _, opt := range args {
		opt(&opts)
	}

	return Client{
		http:       opts.httpClient,
		baseURL:    opts.baseURL,
		apiVersion: opts.apiVersion,
	}
}

// wirePoint is the upstream shape of a single traffic point.
// Timestamps stay strings until validated.
type wirePoint struct {
	Timestamp string `json:"timestamp"`
	Count     int    `json:"count"`
	Uniques   int    `json:"uniques"`
}

// wireSeries is the upstream payload shape. The API also reports aggregate
// count and uniques fields at the top level, which are ignored here.
type wireSeries struct {
	Clones []wirePoint `json:"clones"`
	Views  []wirePoint `json:"views"`
}

// FetchTraffic pulls the daily traffic series of the given kind for a repository.
//
// The returned series keeps the raw response payload alongside the decoded
// points so callers can republish it unmodified. Timestamps are validated
// here, at the fetch boundary, so malformed data never travels further in.
func (c Client) FetchTraffic(ctx context.Context, repository, token string, kind traffic.Kind) (s traffic.Series, err error) {
	defer decorate.OnError(&err, "failed to fetch %s traffic for %s", kind, repository)
	slog.Debug("Fetching traffic data", "repository", repository, "kind", kind)

	url := fmt.Sprintf("%s/repos/%s/traffic/%s?per=day", c.baseURL, repository, kind)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return traffic.Series{}, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Authorization", "token "+token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", c.apiVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return traffic.Series{}, fmt.Errorf("failed to send HTTP request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return traffic.Series{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return traffic.Series{}, fmt.Errorf("failed to read response body: %v", err)
	}

	points, err := decodeSeries(body, kind)
	if err != nil {
		return traffic.Series{}, err
	}

	return traffic.Series{Kind: kind, Points: points, Raw: body}, nil
}

// decodeSeries validates the payload against the fixed upstream schema and
// parses point timestamps. A missing series key decodes as an empty series,
// matching an upstream response with no recorded traffic.
func decodeSeries(body []byte, kind traffic.Kind) ([]traffic.Point, error) {
	var wire wireSeries
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("failed to unmarshal traffic payload: %v", err)
	}

	wirePoints := wire.Clones
	if kind == traffic.KindViews {
		wirePoints = wire.Views
	}

	points := make([]traffic.Point, 0, len(wirePoints))
	for _, wp := range wirePoints {
		ts, err := time.Parse(constants.TimestampFormat, wp.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidTimestamp, wp.Timestamp, err)
		}
		points = append(points, traffic.Point{
			Timestamp: ts,
			Count:     wp.Count,
			Uniques:   wp.Uniques,
		})
	}

	return points, nil
}
