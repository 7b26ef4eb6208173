package facts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

// undefinedTable is the PostgreSQL error code for a missing relation
const undefinedTable = "42P01"

// PostgresSource implements Source with one PostgreSQL table per category
type PostgresSource struct {
	db          *sql.DB
	tablePrefix string
	logger      zerolog.Logger
}

// OpenPostgres opens a lib/pq connection pool for dsn
func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// NewPostgresSource creates a source reading tables named <prefix><category>
func NewPostgresSource(db *sql.DB, tablePrefix string, logger zerolog.Logger) *PostgresSource {
	return &PostgresSource{
		db:          db,
		tablePrefix: tablePrefix,
		logger:      logger.With().Str("component", "postgres_source").Logger(),
	}
}

// ReadEventRows selects every row of the category table
func (s *PostgresSource) ReadEventRows(ctx context.Context, category EventCategory) ([]Record, error) {
	table := pq.QuoteIdentifier(s.tablePrefix + string(category))

	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+table)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == undefinedTable {
			return nil, ErrSourceNotFound
		}
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}

	var records []Record
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}

		record := make(Record, len(columns))
		for i, col := range columns {
			record[col] = normalizeSQLValue(values[i])
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", table, err)
	}

	s.logger.Debug().
		Str("table", table).
		Int("rows", len(records)).
		Msg("table read")

	return records, nil
}

// normalizeSQLValue converts driver values into the types Record consumers expect
func normalizeSQLValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case int64:
		return float64(val)
	case float32:
		return float64(val)
	default:
		return val
	}
}
