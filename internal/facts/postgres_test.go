package facts

import (
	"bytes"
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresSourceReadEventRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "okr_calls"`)).
		WillReturnRows(sqlmock.NewRows([]string{"Campaign", "CSAT", "TalkTime", "Wrapup"}).
			AddRow("Acme", 4.5, int64(12), []byte("Resolved")).
			AddRow("Beta", nil, int64(3), []byte("Callback")))

	src := NewPostgresSource(db, "okr_", zerolog.New(&bytes.Buffer{}))
	rows, err := src.ReadEventRows(context.Background(), CategoryCalls)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "Acme", rows[0]["Campaign"])
	assert.Equal(t, 4.5, rows[0]["CSAT"])
	assert.Equal(t, float64(12), rows[0]["TalkTime"])
	assert.Equal(t, "Resolved", rows[0]["Wrapup"])
	assert.Nil(t, rows[1]["CSAT"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSourceMissingTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "okr_coaching"`)).
		WillReturnError(&pq.Error{Code: "42P01", Message: `relation "okr_coaching" does not exist`})

	src := NewPostgresSource(db, "okr_", zerolog.New(&bytes.Buffer{}))
	_, err = src.ReadEventRows(context.Background(), CategoryCoaching)
	assert.ErrorIs(t, err, ErrSourceNotFound)

	reader := NewReader(src, zerolog.New(&bytes.Buffer{}))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "okr_coaching"`)).
		WillReturnError(&pq.Error{Code: "42P01"})
	table, err := reader.ReadEventRows(context.Background(), CategoryCoaching)
	require.NoError(t, err)
	assert.Equal(t, 0, table.Len())
}

func TestPostgresSourceQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "okr_tasks"`)).
		WillReturnError(&pq.Error{Code: "57014", Message: "canceling statement due to statement timeout"})

	src := NewPostgresSource(db, "okr_", zerolog.New(&bytes.Buffer{}))
	_, err = src.ReadEventRows(context.Background(), CategoryTasks)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSourceNotFound)
}
