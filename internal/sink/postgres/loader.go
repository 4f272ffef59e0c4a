// Package postgres applies an analysis result to a PostgreSQL database:
// it creates the enum types and the table, then inserts the analyzed rows.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/KaramelBytes/tabschema-cli/internal/analysis"
	"github.com/KaramelBytes/tabschema-cli/internal/schema"
	"github.com/KaramelBytes/tabschema-cli/internal/sqlgen"
)

// Execer is satisfied by *pgx.Conn, pgx.Tx and *pgxpool.Pool.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// TxBeginner is satisfied by *pgx.Conn and *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Loader executes DDL and inserts through an Execer.
type Loader struct {
	db  Execer
	log *zap.Logger
}

// NewLoader wraps db. A nil logger disables logging.
func NewLoader(db Execer, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{db: db, log: logger.Named("postgres")}
}

// CreateSchema creates the enum types and the table for cols. types
// overrides the SQL type of named columns, see ColumnTypes.
func (l *Loader) CreateSchema(ctx context.Context, table string, cols []schema.ColumnMetadata, types map[string]string) error {
	for _, stmt := range sqlgen.StatementsWithTypes(table, cols, types) {
		l.log.Debug("exec ddl", zap.String("sql", stmt))
		if _, err := l.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

// InsertRows inserts rows with insertSQL, converting each field according to
// the matching column type. It returns the number of rows affected.
func (l *Loader) InsertRows(ctx context.Context, insertSQL string, cols []schema.ColumnMetadata, rows [][]string) (int64, error) {
	var total int64
	for i, row := range rows {
		args, err := ConvertRow(cols, row)
		if err != nil {
			return total, fmt.Errorf("row %d: %w", i+1, err)
		}
		tag, err := l.db.Exec(ctx, insertSQL, args...)
		if err != nil {
			return total, fmt.Errorf("insert row %d: %w", i+1, err)
		}
		total += tag.RowsAffected()
	}
	l.log.Debug("rows inserted", zap.Int64("rows", total))
	return total, nil
}

// Apply creates the schema for res and inserts rows inside one transaction.
// Enum types list every value observed during analysis so that all analyzed
// rows can be inserted.
func Apply(ctx context.Context, db TxBeginner, table string, res *analysis.Result, rows [][]string, logger *zap.Logger) (n int64, err error) {
	if res == nil {
		return 0, errors.New("no analysis result")
	}
	tx, err := db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	cols := EnumComplete(res)
	l := NewLoader(tx, logger)
	if err = l.CreateSchema(ctx, table, cols, ColumnTypes(cols, rows)); err != nil {
		return 0, err
	}
	n, err = l.InsertRows(ctx, sqlgen.InsertTemplate(table, cols), cols, rows)
	if err != nil {
		return n, err
	}
	if err = tx.Commit(ctx); err != nil {
		return n, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// EnumComplete returns the columns of res in header order with every enum
// column's SampleValues extended to all observed values: samples first, then
// the rest in lexical order.
func EnumComplete(res *analysis.Result) []schema.ColumnMetadata {
	cols := res.OrderedColumns()
	for i, c := range cols {
		if c.DataType != schema.Enum {
			continue
		}
		v, ok := res.Verdicts[c.Name]
		if !ok {
			continue
		}
		seen := make(map[string]bool, len(c.SampleValues))
		labels := append([]string(nil), c.SampleValues...)
		for _, s := range labels {
			seen[s] = true
		}
		var rest []string
		for val := range v.Debug.ValueFrequencies {
			if !seen[val] {
				rest = append(rest, val)
			}
		}
		sort.Strings(rest)
		cols[i].SampleValues = append(labels, rest...)
	}
	return cols
}

// ColumnTypes widens Integer columns to BIGINT when any of rows holds a
// value outside the 32-bit INTEGER range. Columns that fit are left out.
func ColumnTypes(cols []schema.ColumnMetadata, rows [][]string) map[string]string {
	var types map[string]string
	for i, c := range cols {
		if c.DataType != schema.Integer {
			continue
		}
		for _, row := range rows {
			if i >= len(row) {
				continue
			}
			v, err := strconv.ParseInt(strings.TrimSpace(row[i]), 10, 64)
			if err != nil || (v >= math.MinInt32 && v <= math.MaxInt32) {
				continue
			}
			if types == nil {
				types = make(map[string]string)
			}
			types[c.Name] = "BIGINT"
			break
		}
	}
	return types
}

// ConvertRow converts row into insert arguments for cols.
func ConvertRow(cols []schema.ColumnMetadata, row []string) ([]any, error) {
	args := make([]any, len(cols))
	for i, c := range cols {
		raw := ""
		if i < len(row) {
			raw = row[i]
		}
		v, err := ConvertValue(c.DataType, raw)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c.Name, err)
		}
		args[i] = v
	}
	return args, nil
}

// ConvertValue maps a raw cell to a driver value. Blank cells become NULL.
func ConvertValue(t schema.DataType, raw string) (any, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil, nil
	}
	switch t {
	case schema.Integer:
		return strconv.ParseInt(v, 10, 64)
	case schema.Float:
		return strconv.ParseFloat(v, 64)
	case schema.Boolean:
		switch strings.ToLower(v) {
		case "true", "t", "yes", "y", "1":
			return true, nil
		case "false", "f", "no", "n", "0":
			return false, nil
		}
		return nil, fmt.Errorf("invalid boolean %q", v)
	case schema.Enum:
		return v, nil
	default:
		return raw, nil
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
