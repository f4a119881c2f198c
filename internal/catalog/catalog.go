// Package catalog fetches and normalizes the developer's project listings.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/wolfman30/realty-lead-agent/pkg/logging"
)

const defaultTimeout = 10 * time.Second

// ErrUpstreamStatus is returned when the listing API answers with a non-200 status.
var ErrUpstreamStatus = errors.New("catalog: unexpected upstream status")

var catalogTracer = otel.Tracer("realty.internal.catalog")

// Fetcher returns catalog projects.
type Fetcher interface {
	Fetch(ctx context.Context, q Query) ([]Project, error)
}

// Client calls the public project listing API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	group      singleflight.Group
	logger     *logging.Logger
}

// NewClient creates a catalog client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Fetch lists projects. Concurrent calls with the same query share one
// upstream request.
func (c *Client) Fetch(ctx context.Context, q Query) ([]Project, error) {
	endpoint := c.listURL(q)
	v, err, shared := c.group.Do(endpoint, func() (any, error) {
		return c.fetch(ctx, endpoint)
	})
	if err != nil {
		return nil, err
	}
	projects := v.([]Project)
	if shared {
		// callers may mutate their slice
		projects = append([]Project(nil), projects...)
	}
	return projects, nil
}

func (c *Client) fetch(ctx context.Context, endpoint string) ([]Project, error) {
	ctx, span := catalogTracer.Start(ctx, "catalog.fetch")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("catalog: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("catalog: request failed: %w", err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: %d", ErrUpstreamStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("catalog: read body: %w", err)
	}

	projects, skipped, err := decodeProjects(body, c.baseURL)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if skipped > 0 {
		c.logger.Warn("catalog: skipped malformed project records", "skipped", skipped)
	}
	span.SetAttributes(attribute.Int("catalog.projects", len(projects)))
	c.logger.Debug("catalog: fetched projects", "count", len(projects))
	return projects, nil
}

func (c *Client) listURL(q Query) string {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = 1000
	}
	params := url.Values{}
	params.Set("search", q.Search)
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("pageSize", strconv.Itoa(q.PageSize))
	params.Set("propertyCategory", fallback(q.PropertyCategory, "All"))
	params.Set("country", fallback(q.Country, "india"))
	params.Set("isComplete", strconv.FormatBool(q.IsComplete))
	params.Set("priceRange", fallback(q.PriceRange, "all"))
	return c.baseURL + "/api/projects?" + params.Encode()
}

func decodeProjects(body []byte, baseURL string) ([]Project, int, error) {
	var envelope struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, 0, fmt.Errorf("catalog: decode envelope: %w", err)
	}

	projects := make([]Project, 0, len(envelope.Data))
	skipped := 0
	for _, item := range envelope.Data {
		p, ok := normalize(item, baseURL)
		if !ok {
			skipped++
			continue
		}
		projects = append(projects, p)
	}
	return projects, skipped, nil
}

func normalize(item json.RawMessage, baseURL string) (Project, bool) {
	var raw map[string]any
	if err := json.Unmarshal(item, &raw); err != nil {
		return Project{}, false
	}

	p := Project{
		ID:         scalarString(raw["_id"]),
		Name:       strings.TrimSpace(scalarString(raw["name"])),
		Slug:       strings.TrimSpace(scalarString(raw["slug"])),
		PriceRange: scalarString(raw["price"]),
		Possession: scalarString(raw["possession"]),
	}
	if p.ID == "" && p.Name == "" {
		return Project{}, false
	}
	if p.ID == "" {
		p.ID = scalarString(raw["id"])
	}

	city := strings.TrimSpace(scalarString(raw["city"]))
	p.Location = location(city, p.Slug)
	if p.Slug != "" && baseURL != "" {
		p.Link = baseURL + "/projects/" + p.Slug
	}
	p.Configurations = stringList(raw["typebhk"], "bhktype")
	p.Images = stringList(raw["images"], "url")
	p.Amenities = stringList(raw["amenities"], "name")
	return p, true
}

// location renders "city, Sector N" where N is the second-to-last slug part.
func location(city, slug string) string {
	parts := strings.Split(slug, "-")
	if len(parts) < 2 {
		return city
	}
	sector := strings.TrimSpace(parts[len(parts)-2])
	if sector == "" {
		return city
	}
	if city == "" {
		return "Sector " + sector
	}
	return city + ", Sector " + sector
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// stringList flattens a list of strings or objects carrying key.
func stringList(v any, key string) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		var s string
		switch t := item.(type) {
		case map[string]any:
			s = scalarString(t[key])
		default:
			s = scalarString(t)
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func fallback(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
