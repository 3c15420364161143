// Package store implements the tabular data store collaborators. The Postgres
// implementation discovers tables through information_schema and executes the
// constrained operations with parameterized statements only.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/lib/pq"

	"github.com/dataspeak-agent/server/internal/agent/model"
	errx "github.com/dataspeak-agent/server/internal/core/error"
	logx "github.com/dataspeak-agent/server/pkg/logger"
)

// identRe accepts plain SQL identifiers. Anything else is rejected before it
// reaches a statement, even quoted.
var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Postgres implements model.DataStore and model.RawQueryExecutor on top of a
// database/sql pool.
type Postgres struct {
	db     *sql.DB
	schema string
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, schema: "public"}
}

func (s *Postgres) ListTables(ctx context.Context) ([]model.TableInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name`, s.schema)
	if err != nil {
		return nil, errx.WrapStore(err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errx.WrapStore(err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.WrapStore(err)
	}

	tables := make([]model.TableInfo, 0, len(names))
	for _, name := range names {
		info, err := s.DescribeTable(ctx, name)
		if err != nil {
			// Skip tables that vanish between discovery and describe.
			logx.Warn().Err(err).Str("table", name).Msg("describe failed during catalog listing")
			continue
		}
		tables = append(tables, *info)
	}
	return tables, nil
}

func (s *Postgres) DescribeTable(ctx context.Context, name string) (*model.TableInfo, error) {
	ident, err := quoteIdent(name)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT column_name FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`, s.schema, name)
	if err != nil {
		return nil, errx.WrapStore(err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, errx.WrapStore(err)
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.WrapStore(err)
	}
	if len(columns) == 0 {
		return nil, errx.WrapStore(sql.ErrNoRows)
	}

	var rowCount int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", ident)
	if err := s.db.QueryRowContext(ctx, query).Scan(&rowCount); err != nil {
		return nil, errx.WrapStore(err)
	}

	return &model.TableInfo{Name: name, RowCount: rowCount, Columns: columns}, nil
}

func (s *Postgres) ListRecords(ctx context.Context, table string, opts model.ListOptions) ([]map[string]any, error) {
	ident, err := quoteIdent(table)
	if err != nil {
		return nil, err
	}

	projection := "*"
	if len(opts.Columns) > 0 {
		quoted := make([]string, 0, len(opts.Columns))
		for _, col := range opts.Columns {
			q, err := quoteIdent(col)
			if err != nil {
				return nil, err
			}
			quoted = append(quoted, q)
		}
		projection = strings.Join(quoted, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", projection, ident)

	where, args, err := whereClause(opts.Filters)
	if err != nil {
		return nil, err
	}
	b.WriteString(where)

	if opts.OrderBy != "" {
		order, err := quoteIdent(opts.OrderBy)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&b, " ORDER BY %s", order)
	}
	if opts.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", opts.Limit)
	}
	if opts.Offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, errx.WrapStore(err)
	}
	defer rows.Close()

	return scanRows(rows)
}

func (s *Postgres) CountRecords(ctx context.Context, table string, filters map[string]any) (int64, error) {
	ident, err := quoteIdent(table)
	if err != nil {
		return 0, err
	}

	where, args, err := whereClause(filters)
	if err != nil {
		return 0, err
	}

	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", ident, where)
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, errx.WrapStore(err)
	}
	return count, nil
}

func (s *Postgres) Aggregate(ctx context.Context, table string, agg model.Aggregation) (float64, error) {
	ident, err := quoteIdent(table)
	if err != nil {
		return 0, err
	}

	var expr string
	switch agg.Type {
	case model.AggCount:
		expr = "COUNT(*)"
	case model.AggCountDistinct, model.AggSum, model.AggAvg, model.AggMin, model.AggMax:
		col, err := quoteIdent(agg.Column)
		if err != nil {
			return 0, err
		}
		switch agg.Type {
		case model.AggCountDistinct:
			expr = fmt.Sprintf("COUNT(DISTINCT %s)", col)
		case model.AggSum:
			expr = fmt.Sprintf("SUM(%s)", col)
		case model.AggAvg:
			expr = fmt.Sprintf("AVG(%s)", col)
		case model.AggMin:
			expr = fmt.Sprintf("MIN(%s)", col)
		case model.AggMax:
			expr = fmt.Sprintf("MAX(%s)", col)
		}
	default:
		return 0, errx.New(fmt.Errorf("unsupported aggregation %q", agg.Type), 400, errx.StoreErrorMessage)
	}

	where, args, err := whereClause(agg.Filters)
	if err != nil {
		return 0, err
	}

	var value sql.NullFloat64
	query := fmt.Sprintf("SELECT %s FROM %s%s", expr, ident, where)
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&value); err != nil {
		return 0, errx.WrapStore(err)
	}
	return value.Float64, nil
}

// ExecuteRawQuery runs a model-drafted statement. Only a single SELECT is
// accepted; anything else is rejected without touching the database.
func (s *Postgres) ExecuteRawQuery(ctx context.Context, query string) ([]map[string]any, error) {
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(query), ";"))
	lowered := strings.ToLower(trimmed)
	if !strings.HasPrefix(lowered, "select") || strings.Contains(trimmed, ";") {
		return nil, errx.New(fmt.Errorf("only single SELECT statements are allowed"), 400, errx.StoreErrorMessage)
	}

	rows, err := s.db.QueryContext(ctx, trimmed)
	if err != nil {
		return nil, errx.WrapStore(err)
	}
	defer rows.Close()

	return scanRows(rows)
}

func quoteIdent(name string) (string, error) {
	if !identRe.MatchString(name) {
		return "", errx.New(fmt.Errorf("invalid identifier %q", name), 400, errx.StoreErrorMessage)
	}
	return pq.QuoteIdentifier(name), nil
}

// whereClause renders equality filters with positional placeholders. Keys are
// sorted so statements are stable across calls.
func whereClause(filters map[string]any) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conds := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for i, k := range keys {
		ident, err := quoteIdent(k)
		if err != nil {
			return "", nil, err
		}
		conds = append(conds, fmt.Sprintf("%s = $%d", ident, i+1))
		args = append(args, filters[k])
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, errx.WrapStore(err)
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errx.WrapStore(err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			switch v := values[i].(type) {
			case []byte:
				row[col] = string(v)
			default:
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.WrapStore(err)
	}
	return out, nil
}
