package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataspeak-agent/server/internal/agent/model"
)

func newMockStore(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgres(db), mock
}

func TestListTables(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT table_name FROM information_schema.tables`).
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("qualified_leads"))
	mock.ExpectQuery(`SELECT column_name FROM information_schema.columns`).
		WithArgs("public", "qualified_leads").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).
			AddRow("id").AddRow("email").AddRow("score"))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "qualified_leads"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(120)))

	tables, err := s.ListTables(context.Background())
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "qualified_leads", tables[0].Name)
	assert.Equal(t, int64(120), tables[0].RowCount)
	assert.Equal(t, []string{"id", "email", "score"}, tables[0].Columns)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDescribeTable_UnknownTable(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT column_name FROM information_schema.columns`).
		WithArgs("public", "missing").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}))

	_, err := s.DescribeTable(context.Background(), "missing")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRecords_FiltersAndLimit(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT "email", "name" FROM "qualified_leads" WHERE "email" = \$1 LIMIT 100`).
		WithArgs("ana@exemplo.com").
		WillReturnRows(sqlmock.NewRows([]string{"email", "name"}).
			AddRow("ana@exemplo.com", []byte("Ana")))

	rows, err := s.ListRecords(context.Background(), "qualified_leads", model.ListOptions{
		Columns: []string{"email", "name"},
		Filters: map[string]any{"email": "ana@exemplo.com"},
		Limit:   100,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Ana", rows[0]["name"], "byte slices come back as strings")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRecords_RejectsBadIdentifier(t *testing.T) {
	s, _ := newMockStore(t)

	_, err := s.ListRecords(context.Background(), "leads; DROP TABLE users", model.ListOptions{})
	assert.Error(t, err, "identifier validation must run before any statement")
}

func TestCountRecords(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "conversas" WHERE "status" = \$1`).
		WithArgs("open").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(7)))

	n, err := s.CountRecords(context.Background(), "conversas", map[string]any{"status": "open"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAggregate_CountDistinct(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT COUNT\(DISTINCT "email"\) FROM "qualified_leads"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(float64(54)))

	v, err := s.Aggregate(context.Background(), "qualified_leads", model.Aggregation{
		Type:   model.AggCountDistinct,
		Column: "email",
	})
	require.NoError(t, err)
	assert.Equal(t, float64(54), v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAggregate_UnsupportedType(t *testing.T) {
	s, _ := newMockStore(t)

	_, err := s.Aggregate(context.Background(), "qualified_leads", model.Aggregation{Type: "median"})
	assert.Error(t, err)
}

func TestExecuteRawQuery(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT email FROM qualified_leads`).
		WillReturnRows(sqlmock.NewRows([]string{"email"}).AddRow("ana@exemplo.com"))

	rows, err := s.ExecuteRawQuery(context.Background(), "SELECT email FROM qualified_leads;")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ana@exemplo.com", rows[0]["email"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteRawQuery_RejectsNonSelect(t *testing.T) {
	s, _ := newMockStore(t)

	for _, q := range []string{
		"DELETE FROM qualified_leads",
		"SELECT 1; DROP TABLE qualified_leads",
		"UPDATE conversas SET status = 'closed'",
	} {
		_, err := s.ExecuteRawQuery(context.Background(), q)
		assert.Error(t, err, q)
	}
}
