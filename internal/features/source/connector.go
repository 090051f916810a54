package source

import (
	"context"
	"errors"
	"fmt"
)

// ConnectionError covers unreachable host, auth failure and timeout.
// It is always fatal to the operation that hit it.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("source connection failed during %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IsConnectionError reports whether err is (or wraps) a ConnectionError
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// ErrNotFound marks a fetch of one specific record that the source says
// does not exist. Callers check it with errors.Is; it is a per-record
// condition, never a connection failure.
var ErrNotFound = errors.New("record not found in source")

// ServerInfo is what a successful connection test reports
type ServerInfo struct {
	Flavor  string `json:"flavor"`
	Version string `json:"version"`
}

// Schema describes the introspected source structure
type Schema struct {
	Tables []Table `json:"tables"`
}

type Table struct {
	Name        string       `json:"name"`
	Columns     []Column     `json:"columns"`
	ForeignKeys []ForeignKey `json:"foreign_keys"`
}

type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// ForeignKey records Table.Column -> RefTable.RefColumn
type ForeignKey struct {
	Table     string `json:"table"`
	Column    string `json:"column"`
	RefTable  string `json:"ref_table"`
	RefColumn string `json:"ref_column"`
}

func (s *Schema) Table(name string) *Table {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i]
		}
	}
	return nil
}

// RowStream is a lazy, finite sequence of rows. It is not restartable:
// callers must re-issue the query to read again.
type RowStream interface {
	Next() bool
	Row() map[string]interface{}
	Err() error
	Close() error
}

// Page is one page of rows from a paged read
type Page struct {
	Rows    []map[string]interface{} `json:"rows"`
	HasMore bool                     `json:"has_more"`
	Total   int64                    `json:"total"` // -1 when the source does not report it
}

// Reader is the adapter contract every source kind satisfies. A
// relational source maps resources to tables; an HTTP source maps them
// to API collections. The orchestrator only ever sees this interface.
type Reader interface {
	TestConnection(ctx context.Context) (*ServerInfo, error)
	FetchPage(ctx context.Context, resource string, page, perPage int, filters map[string]interface{}) (*Page, error)
	FetchByID(ctx context.Context, resource, id string) (map[string]interface{}, error)
	FetchSubResource(ctx context.Context, resource, id, sub string) ([]map[string]interface{}, error)
	Close() error
	Type() string
}

// Config carries the connection parameters of an import profile,
// decoupled from the profile package to avoid an import cycle.
type Config struct {
	SourceType string // "postgres", "mysql", "api"
	Host       string
	Port       int
	Database   string
	Username   string
	Password   string
	APIBaseURL string
	APIKey     string

	ConnectTimeoutSeconds int
	FetchTimeoutSeconds   int
}

// Open constructs the connector for a profile's source type
func Open(ctx context.Context, cfg Config) (Reader, error) {
	switch cfg.SourceType {
	case "postgres", "mysql":
		return OpenSQL(ctx, cfg)
	case "api":
		return NewHTTPConnector(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported source type: %q", cfg.SourceType)
	}
}
