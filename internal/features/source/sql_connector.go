package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

// SQLConnector reads from an external postgres or mysql database
type SQLConnector struct {
	dbType       string // "postgres" or "mysql"
	db           *sql.DB
	fetchTimeout time.Duration
}

// OpenSQL opens and pings a relational source
func OpenSQL(ctx context.Context, cfg Config) (*SQLConnector, error) {
	c := &SQLConnector{
		dbType:       cfg.SourceType,
		fetchTimeout: time.Duration(cfg.FetchTimeoutSeconds) * time.Second,
	}
	if c.fetchTimeout <= 0 {
		c.fetchTimeout = 60 * time.Second
	}

	connStr, err := buildConnectionString(cfg)
	if err != nil {
		return nil, &ConnectionError{Op: "open", Err: err}
	}

	driver := c.dbType
	if c.dbType == "postgres" {
		driver = "postgres"
	}

	db, err := sql.Open(driver, connStr)
	if err != nil {
		return nil, &ConnectionError{Op: "open", Err: err}
	}

	connectTimeout := time.Duration(cfg.ConnectTimeoutSeconds) * time.Second
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, &ConnectionError{Op: "ping", Err: err}
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	c.db = db
	return c, nil
}

func buildConnectionString(cfg Config) (string, error) {
	if cfg.Host == "" || cfg.Database == "" || cfg.Username == "" {
		return "", fmt.Errorf("missing required connection parameters")
	}

	port := cfg.Port
	if port == 0 {
		if cfg.SourceType == "postgres" {
			port = 5432
		} else {
			port = 3306
		}
	}

	if cfg.SourceType == "postgres" {
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.Host, port, cfg.Username, cfg.Password, cfg.Database,
		), nil
	}

	// MySQL
	return fmt.Sprintf(
		"%s:%s@tcp(%s:%d)/%s?parseTime=true",
		cfg.Username, cfg.Password, cfg.Host, port, cfg.Database,
	), nil
}

// TestConnection pings the source and reports its version
func (c *SQLConnector) TestConnection(ctx context.Context) (*ServerInfo, error) {
	if c.db == nil {
		return nil, &ConnectionError{Op: "test", Err: fmt.Errorf("connection not established")}
	}
	if err := c.db.PingContext(ctx); err != nil {
		return nil, &ConnectionError{Op: "test", Err: err}
	}

	var version string
	query := "SELECT version()"
	if err := c.db.QueryRowContext(ctx, query).Scan(&version); err != nil {
		version = "unknown"
	}

	return &ServerInfo{Flavor: c.dbType, Version: version}, nil
}

// IntrospectSchema reads tables, columns and foreign keys from
// information_schema
func (c *SQLConnector) IntrospectSchema(ctx context.Context) (*Schema, error) {
	tables, err := c.listTables(ctx)
	if err != nil {
		return nil, err
	}

	fks, err := c.listForeignKeys(ctx)
	if err != nil {
		return nil, err
	}

	schema := &Schema{}
	for _, name := range tables {
		cols, err := c.listColumns(ctx, name)
		if err != nil {
			return nil, err
		}
		t := Table{Name: name, Columns: cols}
		for _, fk := range fks {
			if fk.Table == name {
				t.ForeignKeys = append(t.ForeignKeys, fk)
			}
		}
		schema.Tables = append(schema.Tables, t)
	}
	return schema, nil
}

func (c *SQLConnector) listTables(ctx context.Context) ([]string, error) {
	var query string
	if c.dbType == "postgres" {
		query = `SELECT table_name FROM information_schema.tables WHERE table_schema = 'public' ORDER BY table_name`
	} else {
		query = `SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() ORDER BY table_name`
	}

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func (c *SQLConnector) listColumns(ctx context.Context, table string) ([]Column, error) {
	var query string
	if c.dbType == "postgres" {
		query = `
			SELECT column_name, data_type, is_nullable
			FROM information_schema.columns
			WHERE table_name = $1
			ORDER BY ordinal_position
		`
	} else {
		query = `
			SELECT column_name, data_type, is_nullable
			FROM information_schema.columns
			WHERE table_name = ?
			ORDER BY ordinal_position
		`
	}

	rows, err := c.db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("failed to get columns for %s: %w", table, err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var name, dataType, nullable string
		if err := rows.Scan(&name, &dataType, &nullable); err != nil {
			return nil, err
		}
		cols = append(cols, Column{Name: name, Type: dataType, Nullable: nullable == "YES"})
	}
	return cols, rows.Err()
}

func (c *SQLConnector) listForeignKeys(ctx context.Context) ([]ForeignKey, error) {
	var query string
	if c.dbType == "postgres" {
		query = `
			SELECT tc.table_name, kcu.column_name, ccu.table_name, ccu.column_name
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
			  ON tc.constraint_name = kcu.constraint_name
			JOIN information_schema.constraint_column_usage ccu
			  ON tc.constraint_name = ccu.constraint_name
			WHERE tc.constraint_type = 'FOREIGN KEY'
		`
	} else {
		query = `
			SELECT table_name, column_name, referenced_table_name, referenced_column_name
			FROM information_schema.key_column_usage
			WHERE referenced_table_name IS NOT NULL
			  AND table_schema = DATABASE()
		`
	}

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list foreign keys: %w", err)
	}
	defer rows.Close()

	var fks []ForeignKey
	for rows.Next() {
		var fk ForeignKey
		if err := rows.Scan(&fk.Table, &fk.Column, &fk.RefTable, &fk.RefColumn); err != nil {
			return nil, err
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

// StreamQuery executes a query and yields rows one at a time without
// buffering the result set
func (c *SQLConnector) StreamQuery(ctx context.Context, query string, args []interface{}, chunkSize int) (RowStream, error) {
	if c.db == nil {
		return nil, &ConnectionError{Op: "query", Err: fmt.Errorf("connection not established")}
	}

	queryCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	rows, err := c.db.QueryContext(queryCtx, query, args...)
	if err != nil {
		cancel()
		return nil, &ConnectionError{Op: "query", Err: err}
	}

	columns, err := rows.Columns()
	if err != nil {
		rows.Close()
		cancel()
		return nil, err
	}

	return &sqlRowStream{rows: rows, columns: columns, cancel: cancel}, nil
}

// RowCount returns the row count of a table, optionally filtered
func (c *SQLConnector) RowCount(ctx context.Context, table, where string) (int64, error) {
	if c.db == nil {
		return 0, &ConnectionError{Op: "count", Err: fmt.Errorf("connection not established")}
	}

	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
	if strings.TrimSpace(where) != "" {
		query += " WHERE " + where
	}

	var count int64
	if err := c.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// FetchPage reads one page of a table ordered by id, so the Reader
// contract works against relational sources too
func (c *SQLConnector) FetchPage(ctx context.Context, resource string, page, perPage int, filters map[string]interface{}) (*Page, error) {
	if page < 1 {
		page = 1
	}

	var query strings.Builder
	var args []interface{}
	query.WriteString(fmt.Sprintf("SELECT * FROM %s", resource))

	if len(filters) > 0 {
		conditions := make([]string, 0, len(filters))
		for field, value := range filters {
			args = append(args, value)
			conditions = append(conditions, fmt.Sprintf("%s = %s", field, c.placeholder(len(args))))
		}
		query.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}

	query.WriteString(fmt.Sprintf(" ORDER BY id LIMIT %d OFFSET %d", perPage, (page-1)*perPage))

	stream, err := c.StreamQuery(ctx, query.String(), args, perPage)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var rows []map[string]interface{}
	for stream.Next() {
		rows = append(rows, stream.Row())
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}

	return &Page{Rows: rows, HasMore: len(rows) == perPage, Total: -1}, nil
}

// FetchByID reads a single row by primary key
func (c *SQLConnector) FetchByID(ctx context.Context, resource, id string) (map[string]interface{}, error) {
	query := fmt.Sprintf("SELECT * FROM %s WHERE id = %s", resource, c.placeholder(1))
	stream, err := c.StreamQuery(ctx, query, []interface{}{id}, 1)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if !stream.Next() {
		if err := stream.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%s %s not found", resource, id)
	}
	return stream.Row(), nil
}

// FetchSubResource reads child rows via the conventional foreign key
// column <resource singular>_id
func (c *SQLConnector) FetchSubResource(ctx context.Context, resource, id, sub string) ([]map[string]interface{}, error) {
	fkColumn := strings.TrimSuffix(resource, "s") + "_id"
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = %s ORDER BY id", sub, fkColumn, c.placeholder(1))

	stream, err := c.StreamQuery(ctx, query, []interface{}{id}, 0)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var rows []map[string]interface{}
	for stream.Next() {
		rows = append(rows, stream.Row())
	}
	return rows, stream.Err()
}

func (c *SQLConnector) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *SQLConnector) Type() string {
	return c.dbType
}

func (c *SQLConnector) placeholder(index int) string {
	if c.dbType == "postgres" {
		return fmt.Sprintf("$%d", index)
	}
	return "?"
}

// sqlRowStream adapts sql.Rows to RowStream
type sqlRowStream struct {
	rows    *sql.Rows
	columns []string
	current map[string]interface{}
	err     error
	cancel  context.CancelFunc
}

func (s *sqlRowStream) Next() bool {
	if !s.rows.Next() {
		s.err = s.rows.Err()
		return false
	}

	values := make([]interface{}, len(s.columns))
	valuePtrs := make([]interface{}, len(s.columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	if err := s.rows.Scan(valuePtrs...); err != nil {
		s.err = err
		return false
	}

	row := make(map[string]interface{}, len(s.columns))
	for i, col := range s.columns {
		val := values[i]
		if b, ok := val.([]byte); ok {
			row[col] = string(b)
		} else {
			row[col] = val
		}
	}
	s.current = row
	return true
}

func (s *sqlRowStream) Row() map[string]interface{} { return s.current }

func (s *sqlRowStream) Err() error { return s.err }

func (s *sqlRowStream) Close() error {
	defer s.cancel()
	return s.rows.Close()
}
