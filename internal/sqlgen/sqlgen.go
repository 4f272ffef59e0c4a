// Package sqlgen turns resolved column metadata into PostgreSQL DDL and a
// positional insert template.
package sqlgen

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/KaramelBytes/tabschema-cli/internal/schema"
)

// DefaultTable is used when the caller passes an empty table name.
const DefaultTable = "my_table"

type queryBuilder struct {
	b strings.Builder
}

func newQueryBuilder(initial string) *queryBuilder {
	qb := &queryBuilder{}
	qb.b.WriteString(initial)
	return qb
}

func (q *queryBuilder) push(sql string) { q.b.WriteString(sql) }

func (q *queryBuilder) build() string { return q.b.String() }

// Generate emits the CREATE TYPE/CREATE TABLE script and the insert template
// for cols. Output follows the order of cols, so callers pass columns in
// header order to get byte-reproducible SQL.
func Generate(table string, cols []schema.ColumnMetadata) schema.SQLStatements {
	return schema.SQLStatements{
		CreateTable:    strings.Join(Statements(table, cols), "\n"),
		InsertTemplate: InsertTemplate(table, cols),
	}
}

// Statements returns one CREATE TYPE statement per enum column followed by
// the CREATE TABLE statement, each terminated by a semicolon.
func Statements(table string, cols []schema.ColumnMetadata) []string {
	return StatementsWithTypes(table, cols, nil)
}

// StatementsWithTypes is Statements with per-column SQL type overrides keyed
// by column name. Enum columns ignore overrides.
func StatementsWithTypes(table string, cols []schema.ColumnMetadata, overrides map[string]string) []string {
	enumTypes := EnumTypeNames(table, cols)
	var out []string
	for i, c := range cols {
		if c.DataType != schema.Enum {
			continue
		}
		labels := make([]string, len(c.SampleValues))
		for j, v := range c.SampleValues {
			labels[j] = QuoteLiteral(v)
		}
		out = append(out, fmt.Sprintf("CREATE TYPE %s AS ENUM (%s);", QuoteIdent(enumTypes[i]), strings.Join(labels, ", ")))
	}

	defs := make([]string, 0, len(cols))
	for i, c := range cols {
		sqlType := c.DataType.SQLType()
		if c.DataType == schema.Enum {
			sqlType = QuoteIdent(enumTypes[i])
		} else if o, ok := overrides[c.Name]; ok {
			sqlType = o
		}
		null := "NOT NULL"
		if c.Nullable {
			null = "NULL"
		}
		defs = append(defs, fmt.Sprintf("    %s %s %s", QuoteIdent(c.Name), sqlType, null))
	}
	create := newQueryBuilder(fmt.Sprintf("CREATE TABLE %s (\n", TableIdent(table)))
	create.push(strings.Join(defs, ",\n"))
	create.push("\n);")
	return append(out, create.build())
}

// InsertTemplate returns the parameterized INSERT for cols with placeholders
// $1..$N in column order.
func InsertTemplate(table string, cols []schema.ColumnMetadata) string {
	names := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	for i, c := range cols {
		names[i] = QuoteIdent(c.Name)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	insert := newQueryBuilder(fmt.Sprintf("INSERT INTO %s (", TableIdent(table)))
	insert.push(strings.Join(names, ", "))
	insert.push(") VALUES (")
	insert.push(strings.Join(placeholders, ", "))
	insert.push(");")
	return insert.build()
}

// TableIdent returns the quoted table identifier the statements use.
func TableIdent(table string) string { return QuoteIdent(tableName(table)) }

func tableName(table string) string {
	table = strings.TrimSpace(table)
	if table == "" {
		return DefaultTable
	}
	return table
}

// EnumTypeName derives the lowercase enum type name for a column.
func EnumTypeName(column string) string {
	base := NormalizeIdent(column)
	if base == "" {
		base = "column"
	}
	return base + "_type"
}

// EnumTypeNames returns the enum type name of each column, empty for
// non-enum columns. Names that collide with an earlier type or with the
// table get _2, _3 suffixes, since types and tables share one namespace.
func EnumTypeNames(table string, cols []schema.ColumnMetadata) []string {
	names := make([]string, len(cols))
	seen := map[string]bool{strings.ToLower(tableName(table)): true}
	for i, c := range cols {
		if c.DataType != schema.Enum {
			continue
		}
		base := EnumTypeName(c.Name)
		name := base
		for n := 2; seen[name]; n++ {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		seen[name] = true
		names[i] = name
	}
	return names
}

// NormalizeIdent lowercases s and folds separators to underscores, dropping
// anything outside [a-z0-9_].
func NormalizeIdent(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	lastUnderscore := false
	for _, r := range s {
		if r == ' ' || r == '-' || r == '.' || r == '/' || r == '\\' || r == ':' || r == ';' {
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
			continue
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
			lastUnderscore = r == '_'
		}
	}
	out := strings.Trim(b.String(), "_")
	if out != "" && out[0] >= '0' && out[0] <= '9' {
		out = "c_" + out
	}
	return out
}

// QuoteIdent returns name unchanged when PostgreSQL would read it back as
// the same identifier: lowercase, plain and not a reserved word. Everything
// else is double-quoted.
func QuoteIdent(name string) string {
	if isPlainIdent(name) && !reservedWords[name] {
		return name
	}
	return pgx.Identifier{name}.Sanitize()
}

// QuoteLiteral renders s as a single-quoted SQL string literal.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func isPlainIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// reservedWords are the keywords PostgreSQL rejects as bare column or table
// names (reserved and type/function-name keywords).
var reservedWords = map[string]bool{
	"all": true, "analyse": true, "analyze": true, "and": true, "any": true,
	"array": true, "as": true, "asc": true, "asymmetric": true, "authorization": true,
	"binary": true, "both": true, "case": true, "cast": true, "check": true,
	"collate": true, "collation": true, "column": true, "concurrently": true, "constraint": true,
	"create": true, "cross": true, "current_catalog": true, "current_date": true, "current_role": true,
	"current_schema": true, "current_time": true, "current_timestamp": true, "current_user": true, "default": true,
	"deferrable": true, "desc": true, "distinct": true, "do": true, "else": true,
	"end": true, "except": true, "false": true, "fetch": true, "for": true,
	"foreign": true, "freeze": true, "from": true, "full": true, "grant": true,
	"group": true, "having": true, "ilike": true, "in": true, "initially": true,
	"inner": true, "intersect": true, "into": true, "is": true, "isnull": true,
	"join": true, "lateral": true, "leading": true, "left": true, "like": true,
	"limit": true, "localtime": true, "localtimestamp": true, "natural": true, "not": true,
	"notnull": true, "null": true, "offset": true, "on": true, "only": true,
	"or": true, "order": true, "outer": true, "overlaps": true, "placing": true,
	"primary": true, "references": true, "returning": true, "right": true, "select": true,
	"session_user": true, "similar": true, "some": true, "symmetric": true, "system_user": true,
	"table": true, "tablesample": true, "then": true, "to": true, "trailing": true,
	"true": true, "union": true, "unique": true, "user": true, "using": true,
	"variadic": true, "verbose": true, "when": true, "where": true, "window": true,
	"with": true,
}
