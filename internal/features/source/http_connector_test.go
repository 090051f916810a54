package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConnector(handler http.Handler) (*HTTPConnector, *httptest.Server) {
	server := httptest.NewServer(handler)
	c := NewHTTPConnector(Config{APIBaseURL: server.URL, APIKey: "secret"})
	return c, server
}

func TestFetchPageBareArray(t *testing.T) {
	c, server := newTestConnector(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"id": 1}, {"id": 2}, {"id": 3},
		})
	}))
	defer server.Close()

	p, err := c.FetchPage(context.Background(), "tickets", 1, 3, nil)
	require.NoError(t, err)
	assert.Len(t, p.Rows, 3)
	assert.True(t, p.HasMore, "a full page means there may be more")
	assert.EqualValues(t, -1, p.Total)

	// A short page means exhaustion
	p, err = c.FetchPage(context.Background(), "tickets", 1, 5, nil)
	require.NoError(t, err)
	assert.False(t, p.HasMore)
}

func TestFetchPageTotalCountEnvelope(t *testing.T) {
	c, server := newTestConnector(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data":        []map[string]interface{}{{"id": 1}, {"id": 2}},
			"total_count": 5,
		})
	}))
	defer server.Close()

	p, err := c.FetchPage(context.Background(), "tickets", 1, 2, nil)
	require.NoError(t, err)
	assert.Len(t, p.Rows, 2)
	assert.EqualValues(t, 5, p.Total)
	assert.True(t, p.HasMore)

	p, err = c.FetchPage(context.Background(), "tickets", 3, 2, nil)
	require.NoError(t, err)
	assert.False(t, p.HasMore, "page 3 of 5 rows at 2 per page is the last")
}

func TestFetchPageLastPageEnvelope(t *testing.T) {
	c, server := newTestConnector(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"items":     []map[string]interface{}{{"id": page}},
			"last_page": 2,
		})
	}))
	defer server.Close()

	p, err := c.FetchPage(context.Background(), "tickets", 1, 10, nil)
	require.NoError(t, err)
	assert.True(t, p.HasMore)

	p, err = c.FetchPage(context.Background(), "tickets", 2, 10, nil)
	require.NoError(t, err)
	assert.False(t, p.HasMore)
}

func TestAuthFailureIsConnectionError(t *testing.T) {
	c, server := newTestConnector(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := c.FetchPage(context.Background(), "tickets", 1, 10, nil)
	require.Error(t, err)
	assert.True(t, IsConnectionError(err), "auth failure must classify as a connection error")
}

func TestFetchByIDNotFound(t *testing.T) {
	c, server := newTestConnector(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := c.FetchByID(context.Background(), "contacts", "77")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound), "a missing record is a per-record condition")
	assert.False(t, IsConnectionError(err), "a missing record must not read as connection loss")
}

func TestFetchByIDUnwrapsSingularEnvelope(t *testing.T) {
	c, server := newTestConnector(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tickets/42", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"ticket": map[string]interface{}{"id": 42, "subject": "hello"},
		})
	}))
	defer server.Close()

	row, err := c.FetchByID(context.Background(), "tickets", "42")
	require.NoError(t, err)
	assert.Equal(t, "hello", row["subject"])
}

func TestFetchSubResourceFollowsPages(t *testing.T) {
	c, server := newTestConnector(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tickets/7/comments", r.URL.Path)
		page := r.URL.Query().Get("page")
		if page == "1" {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data":  []map[string]interface{}{{"id": 1}, {"id": 2}},
				"links": map[string]interface{}{"next": fmt.Sprintf("%s/tickets/7/comments?page=2", r.Host)},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data":  []map[string]interface{}{{"id": 3}},
			"links": map[string]interface{}{"next": ""},
		})
	}))
	defer server.Close()

	rows, err := c.FetchSubResource(context.Background(), "tickets", "7", "comments")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestTestConnectionReportsVersion(t *testing.T) {
	c, server := newTestConnector(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"version": "4.2.0"})
	}))
	defer server.Close()

	info, err := c.TestConnection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "api", info.Flavor)
	assert.Equal(t, "4.2.0", info.Version)
}
