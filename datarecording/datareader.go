package datarecording

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"reflect"
	"slices"
	"strings"
)

// QueryParams selects and orders the rows returned by a query.
type QueryParams struct {
	// Where is an SQL condition with "?" placeholders, without the WHERE
	// keyword, for example "IsPrefetch = ? AND Latency > ?".
	Where string
	Args  []any

	// OrderBy is an SQL ordering without the ORDER BY keywords, for example
	// "StartTime DESC".
	OrderBy string

	// Limit caps the number of rows. Zero returns every row.
	Limit  int
	Offset int
}

// DataReader reads back the tables written by a DataRecorder.
type DataReader interface {
	// MapTable tells the reader which struct the rows of a table decode
	// into. Columns without a field of the same name are dropped.
	MapTable(tableName string, sampleEntry any)

	// ListTables returns the mapped tables in alphabetical order.
	ListTables() []string

	// Query returns pointers to the decoded rows and the number of rows that
	// match params.Where, ignoring the limit.
	Query(ctx context.Context, tableName string, params QueryParams) (
		results []any,
		totalCount int,
		err error,
	)

	Close() error
}

type sqliteReader struct {
	db     *sql.DB
	tables map[string]reflect.Type
}

// NewReader opens a database written by New. The path includes the .sqlite3
// suffix.
func NewReader(path string) DataReader {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		log.Panic(err)
	}

	return NewReaderWithDB(db)
}

// NewReaderWithDB creates a DataReader on an open database.
func NewReaderWithDB(db *sql.DB) DataReader {
	return &sqliteReader{
		db:     db,
		tables: make(map[string]reflect.Type),
	}
}

func (r *sqliteReader) MapTable(tableName string, sampleEntry any) {
	r.tables[tableName] = reflect.TypeOf(sampleEntry)
}

func (r *sqliteReader) ListTables() []string {
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

func (r *sqliteReader) Query(
	ctx context.Context,
	tableName string,
	params QueryParams,
) ([]any, int, error) {
	entryType, ok := r.tables[tableName]
	if !ok {
		return nil, 0, fmt.Errorf("table %s is not mapped", tableName)
	}

	where := ""
	if params.Where != "" {
		where = " WHERE " + params.Where
	}

	var total int

	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+tableName+where, params.Args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting %s: %w", tableName, err)
	}

	rows, err := r.db.QueryContext(ctx,
		selectStatement(tableName, where, params), params.Args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying %s: %w", tableName, err)
	}
	defer rows.Close()

	results, err := decodeRows(rows, entryType)
	if err != nil {
		return nil, 0, err
	}

	return results, total, nil
}

func selectStatement(tableName, where string, params QueryParams) string {
	var sb strings.Builder

	sb.WriteString("SELECT * FROM ")
	sb.WriteString(tableName)
	sb.WriteString(where)

	if params.OrderBy != "" {
		sb.WriteString(" ORDER BY " + params.OrderBy)
	}

	if params.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", params.Limit)

		if params.Offset > 0 {
			fmt.Fprintf(&sb, " OFFSET %d", params.Offset)
		}
	}

	return sb.String()
}

// decodeRows scans each row into a new value of entryType, matching columns
// to fields by name.
func decodeRows(rows *sql.Rows, entryType reflect.Type) ([]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	fieldIndex := make([]int, len(columns))
	for i, col := range columns {
		fieldIndex[i] = -1

		if f, ok := entryType.FieldByName(col); ok && len(f.Index) == 1 {
			fieldIndex[i] = f.Index[0]
		}
	}

	var results []any

	for rows.Next() {
		entry := reflect.New(entryType)
		targets := make([]any, len(columns))

		for i, idx := range fieldIndex {
			if idx < 0 {
				targets[i] = new(any)
				continue
			}

			targets[i] = entry.Elem().Field(idx).Addr().Interface()
		}

		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}

		results = append(results, entry.Interface())
	}

	return results, rows.Err()
}

func (r *sqliteReader) Close() error {
	return r.db.Close()
}
