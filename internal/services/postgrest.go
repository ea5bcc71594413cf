package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ours334/player/internal/shared"
	"golang.org/x/time/rate"
)

// fetchAllPageSize is the page size used by [Client.FetchAll] scans.
const fetchAllPageSize = 1000

// Filter is one PostgREST row filter. A nil Value renders as is.null
// regardless of Operator.
type Filter struct {
	Column   string
	Operator string
	Value    any
}

// Eq builds an equality filter.
func Eq(column string, value any) Filter {
	return Filter{Column: column, Operator: "eq", Value: value}
}

// FetchOptions shapes a read request.
type FetchOptions struct {
	Filters []Filter
	Select  string
	OrderBy []string
	Limit   int
	Offset  int
}

// Client talks to the remote store's REST endpoint. All requests carry the
// service key, so the client must never be driven directly by untrusted
// callers.
type Client struct {
	baseURL string
	key     string
	schema  string
	http    *http.Client
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewClient builds a client from the remote configuration. Missing
// credentials surface as [shared.ErrMissingCredentials].
func NewClient(cfg shared.RemoteConfig, logger *log.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	key := strings.TrimSpace(cfg.ServiceKey)
	if base == "" || key == "" {
		return nil, fmt.Errorf("%w: remote url and service key are required", shared.ErrMissingCredentials)
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &Client{
		baseURL: base + "/rest/v1",
		key:     key,
		schema:  cfg.Schema,
		http:    &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(20), 40),
		logger:  logger,
	}, nil
}

// BaseURL returns the resolved REST endpoint, mainly for logging.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func encodeFilterValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func applyFilters(query url.Values, filters []Filter) {
	for _, filter := range filters {
		operator := filter.Operator
		if operator == "" {
			operator = "eq"
		}
		if filter.Value == nil {
			query.Add(filter.Column, "is.null")
			continue
		}
		query.Add(filter.Column, operator+"."+encodeFilterValue(filter.Value))
	}
}

func (o FetchOptions) query() url.Values {
	query := url.Values{}
	applyFilters(query, o.Filters)
	if o.Select != "" {
		query.Set("select", o.Select)
	}
	if len(o.OrderBy) > 0 {
		query.Set("order", strings.Join(o.OrderBy, ","))
	}
	if o.Limit > 0 {
		query.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Offset > 0 {
		query.Set("offset", strconv.Itoa(o.Offset))
	}
	return query
}

// doRequest performs one authenticated request against a table endpoint and
// returns the response. The caller owns the body.
func (c *Client) doRequest(ctx context.Context, method, table string, query url.Values, body any, prefer string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := c.baseURL + "/" + table
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}
	if c.schema != "" && c.schema != "public" {
		// Non-public schemas are addressed through profile headers, not paths.
		req.Header.Set("Accept-Profile", c.schema)
		req.Header.Set("Content-Profile", c.schema)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRemoteRequest, err)
	}
	return resp, nil
}

// do runs doRequest and fails on non-2xx statuses, returning the open body
// otherwise.
func (c *Client) do(ctx context.Context, method, table string, query url.Values, body any, prefer string) (*http.Response, error) {
	resp, err := c.doRequest(ctx, method, table, query, body, prefer)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: %s %s returned %d: %s", shared.ErrRemoteRequest, method, table, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return resp, nil
}

func decodeRows(body io.Reader) ([]map[string]any, error) {
	var rows []map[string]any
	if err := json.NewDecoder(body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode rows: %w", err)
	}
	return rows, nil
}

// Fetch reads rows matching the options.
func (c *Client) Fetch(ctx context.Context, table string, opts FetchOptions) ([]map[string]any, error) {
	resp, err := c.do(ctx, http.MethodGet, table, opts.query(), nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return decodeRows(resp.Body)
}

// FetchOne reads the first row matching the options, or nil when none match.
func (c *Client) FetchOne(ctx context.Context, table string, opts FetchOptions) (map[string]any, error) {
	opts.Limit = 1
	rows, err := c.Fetch(ctx, table, opts)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// FetchAll scans the whole table in id order, paging by the last seen id so
// the scan stays stable while rows are appended. A short page ends the scan.
func (c *Client) FetchAll(ctx context.Context, table string, opts FetchOptions) ([]map[string]any, error) {
	var (
		all    []map[string]any
		lastID float64
	)
	for {
		page := opts
		page.Filters = append(append([]Filter{}, opts.Filters...), Filter{Column: "id", Operator: "gt", Value: int64(lastID)})
		page.OrderBy = []string{"id.asc"}
		page.Limit = fetchAllPageSize
		page.Offset = 0

		rows, err := c.Fetch(ctx, table, page)
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
		if len(rows) < fetchAllPageSize {
			return all, nil
		}

		id, ok := rows[len(rows)-1]["id"].(float64)
		if !ok {
			return nil, fmt.Errorf("%w: %s rows have no numeric id", shared.ErrRemoteRequest, table)
		}
		lastID = id
	}
}

// Insert writes rows and returns the stored representation.
func (c *Client) Insert(ctx context.Context, table string, rows any) ([]map[string]any, error) {
	resp, err := c.do(ctx, http.MethodPost, table, url.Values{}, rows, "return=representation")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return decodeRows(resp.Body)
}

// Upsert writes rows, merging duplicates on the given conflict columns.
func (c *Client) Upsert(ctx context.Context, table string, rows any, onConflict string) error {
	query := url.Values{}
	if onConflict != "" {
		query.Set("on_conflict", onConflict)
	}
	resp, err := c.do(ctx, http.MethodPost, table, query, rows, "resolution=merge-duplicates,return=minimal")
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// Patch updates every row matching the filters.
func (c *Client) Patch(ctx context.Context, table string, filters []Filter, values map[string]any) error {
	query := url.Values{}
	applyFilters(query, filters)
	resp, err := c.do(ctx, http.MethodPatch, table, query, values, "return=minimal")
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// Delete removes every row matching the filters. At least one filter is
// required; an unfiltered delete would truncate the table.
func (c *Client) Delete(ctx context.Context, table string, filters []Filter) error {
	if len(filters) == 0 {
		return fmt.Errorf("%w: refusing unfiltered delete on %s", shared.ErrInvalidArgument, table)
	}
	query := url.Values{}
	applyFilters(query, filters)
	resp, err := c.do(ctx, http.MethodDelete, table, query, nil, "return=minimal")
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// Count returns the exact row count via a HEAD request's Content-Range.
func (c *Client) Count(ctx context.Context, table string, filters []Filter) (int64, error) {
	query := url.Values{}
	applyFilters(query, filters)
	query.Set("select", "id")

	resp, err := c.do(ctx, http.MethodHead, table, query, nil, "count=exact")
	if err != nil {
		return 0, err
	}
	resp.Body.Close()

	// Content-Range looks like "0-24/3573" or "*/0" for an empty table.
	contentRange := resp.Header.Get("Content-Range")
	slash := strings.LastIndex(contentRange, "/")
	if slash < 0 {
		return 0, fmt.Errorf("%w: missing Content-Range count for %s", shared.ErrRemoteRequest, table)
	}
	count, err := strconv.ParseInt(contentRange[slash+1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad Content-Range %q", shared.ErrRemoteRequest, contentRange)
	}
	return count, nil
}

// TableExists probes the table with a zero-row read. PostgREST answers 404
// for unknown relations.
func (c *Client) TableExists(ctx context.Context, table string) (bool, error) {
	query := url.Values{}
	query.Set("select", "id")
	query.Set("limit", "0")

	resp, err := c.doRequest(ctx, http.MethodGet, table, query, nil, "")
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("%w: probe of %s returned %d", shared.ErrRemoteRequest, table, resp.StatusCode)
	}
}

// MaxID returns the highest id in the table, or 0 when it is empty.
func (c *Client) MaxID(ctx context.Context, table string) (int64, error) {
	row, err := c.FetchOne(ctx, table, FetchOptions{
		Select:  "id",
		OrderBy: []string{"id.desc"},
	})
	if err != nil {
		return 0, err
	}
	if row == nil {
		return 0, nil
	}
	id, ok := row["id"].(float64)
	if !ok {
		return 0, fmt.Errorf("%w: %s id is not numeric", shared.ErrRemoteRequest, table)
	}
	return int64(id), nil
}
