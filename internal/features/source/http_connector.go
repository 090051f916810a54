package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPConnector reads from a paged JSON API. Three pagination idioms
// are handled uniformly: a total-count field, a last-page link, or
// plain per-page exhaustion.
type HTTPConnector struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPConnector(cfg Config) *HTTPConnector {
	timeout := time.Duration(cfg.FetchTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPConnector{
		baseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// TestConnection probes the API root
func (c *HTTPConnector) TestConnection(ctx context.Context) (*ServerInfo, error) {
	body, _, err := c.get(ctx, "/", nil)
	if err != nil {
		return nil, err
	}

	info := &ServerInfo{Flavor: "api", Version: "unknown"}
	var payload map[string]interface{}
	if json.Unmarshal(body, &payload) == nil {
		if v, ok := payload["version"].(string); ok {
			info.Version = v
		}
	}
	return info, nil
}

// FetchPage reads one page of a collection
func (c *HTTPConnector) FetchPage(ctx context.Context, resource string, page, perPage int, filters map[string]interface{}) (*Page, error) {
	if page < 1 {
		page = 1
	}

	params := url.Values{}
	params.Set("page", fmt.Sprintf("%d", page))
	params.Set("per_page", fmt.Sprintf("%d", perPage))
	for k, v := range filters {
		params.Set(k, fmt.Sprintf("%v", v))
	}

	body, header, err := c.get(ctx, "/"+resource, params)
	if err != nil {
		return nil, err
	}

	return parsePage(body, header, page, perPage)
}

// FetchByID reads a single resource
func (c *HTTPConnector) FetchByID(ctx context.Context, resource, id string) (map[string]interface{}, error) {
	body, _, err := c.get(ctx, fmt.Sprintf("/%s/%s", resource, id), nil)
	if err != nil {
		return nil, err
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode %s %s: %w", resource, id, err)
	}

	// Some APIs wrap the entity in a singular envelope
	singular := strings.TrimSuffix(resource, "s")
	if inner, ok := payload[singular].(map[string]interface{}); ok {
		return inner, nil
	}
	return payload, nil
}

// FetchSubResource reads a child collection of one resource
func (c *HTTPConnector) FetchSubResource(ctx context.Context, resource, id, sub string) ([]map[string]interface{}, error) {
	var all []map[string]interface{}
	page := 1
	for {
		body, header, err := c.get(ctx, fmt.Sprintf("/%s/%s/%s", resource, id, sub), url.Values{
			"page": []string{fmt.Sprintf("%d", page)},
		})
		if err != nil {
			return nil, err
		}

		p, err := parsePage(body, header, page, 0)
		if err != nil {
			return nil, err
		}
		all = append(all, p.Rows...)
		if !p.HasMore {
			return all, nil
		}
		page++
	}
}

func (c *HTTPConnector) Close() error { return nil }

func (c *HTTPConnector) Type() string { return "api" }

func (c *HTTPConnector) get(ctx context.Context, path string, params url.Values) ([]byte, http.Header, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, nil, &ConnectionError{Op: "request", Err: err}
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, &ConnectionError{Op: "fetch", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, nil, &ConnectionError{Op: "auth", Err: fmt.Errorf("status %d from %s", resp.StatusCode, path)}
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	case resp.StatusCode >= 500:
		return nil, nil, &ConnectionError{Op: "fetch", Err: fmt.Errorf("status %d from %s", resp.StatusCode, path)}
	case resp.StatusCode >= 400:
		return nil, nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &ConnectionError{Op: "read", Err: err}
	}
	return body, resp.Header, nil
}

// parsePage normalizes the three pagination idioms into one Page.
// Accepted shapes: a bare JSON array, or an envelope with the rows
// under "data"/"items"/"results" plus optional "total_count"/"total"
// and optional last-page hints ("last_page", links.next).
func parsePage(body []byte, header http.Header, page, perPage int) (*Page, error) {
	p := &Page{Total: -1}

	var arr []map[string]interface{}
	if err := json.Unmarshal(body, &arr); err == nil {
		p.Rows = arr
		p.HasMore = perPage > 0 && len(arr) == perPage
		return p, nil
	}

	var envelope map[string]interface{}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode page: %w", err)
	}

	for _, key := range []string{"data", "items", "results"} {
		if raw, ok := envelope[key].([]interface{}); ok {
			for _, item := range raw {
				if row, ok := item.(map[string]interface{}); ok {
					p.Rows = append(p.Rows, row)
				}
			}
			break
		}
	}

	// Idiom 1: total count field
	for _, key := range []string{"total_count", "total"} {
		if n, ok := envelope[key].(float64); ok {
			p.Total = int64(n)
			if perPage > 0 {
				p.HasMore = int64(page*perPage) < p.Total
			}
			return p, nil
		}
	}

	// Idiom 2: last-page link or field
	if lastPage, ok := envelope["last_page"].(float64); ok {
		p.HasMore = page < int(lastPage)
		return p, nil
	}
	if links, ok := envelope["links"].(map[string]interface{}); ok {
		next, _ := links["next"].(string)
		p.HasMore = next != ""
		return p, nil
	}
	if next := header.Get("Link"); strings.Contains(next, `rel="next"`) {
		p.HasMore = true
		return p, nil
	}

	// Idiom 3: per-page exhaustion
	p.HasMore = perPage > 0 && len(p.Rows) == perPage
	return p, nil
}
