package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/tabschema-cli/internal/analysis"
	"github.com/KaramelBytes/tabschema-cli/internal/schema"
)

type execCall struct {
	sql  string
	args []any
}

type fakeExecer struct {
	calls  []execCall
	failOn string
}

func (f *fakeExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	if f.failOn != "" && strings.Contains(sql, f.failOn) {
		return pgconn.CommandTag{}, errors.New("boom")
	}
	if strings.HasPrefix(sql, "INSERT") {
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	}
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

// fakeTx implements the parts of pgx.Tx the loader touches.
type fakeTx struct {
	pgx.Tx
	fakeExecer
	committed  bool
	rolledBack bool
}

func (f *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return f.fakeExecer.Exec(ctx, sql, args...)
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rolledBack = true
	return nil
}

type fakeDB struct{ tx *fakeTx }

func (d *fakeDB) Begin(context.Context) (pgx.Tx, error) { return d.tx, nil }

func TestConvertValue(t *testing.T) {
	cases := []struct {
		typ  schema.DataType
		raw  string
		want any
	}{
		{schema.Integer, " 42 ", int64(42)},
		{schema.Float, "10.50", 10.5},
		{schema.Boolean, "Yes", true},
		{schema.Boolean, "0", false},
		{schema.Enum, " Fire ", "Fire"},
		{schema.Text, " padded ", " padded "},
		{schema.Integer, "", nil},
		{schema.Text, "  ", nil},
	}
	for _, tc := range cases {
		got, err := ConvertValue(tc.typ, tc.raw)
		require.NoError(t, err, "%s %q", tc.typ, tc.raw)
		assert.Equal(t, tc.want, got, "%s %q", tc.typ, tc.raw)
	}

	_, err := ConvertValue(schema.Integer, "4.5")
	assert.Error(t, err)
	_, err = ConvertValue(schema.Boolean, "maybe")
	assert.Error(t, err)
}

func TestLoader_CreateSchemaAndInsert(t *testing.T) {
	cols := []schema.ColumnMetadata{
		{Name: "grade", DataType: schema.Enum, SampleValues: []string{"A", "B"}},
		{Name: "score", DataType: schema.Integer, Nullable: true},
	}
	db := &fakeExecer{}
	l := NewLoader(db, nil)

	require.NoError(t, l.CreateSchema(context.Background(), "results", cols, nil))
	require.Len(t, db.calls, 2)
	assert.Equal(t, "CREATE TYPE grade_type AS ENUM ('A', 'B');", db.calls[0].sql)
	assert.True(t, strings.HasPrefix(db.calls[1].sql, "CREATE TABLE results ("))

	n, err := l.InsertRows(context.Background(), "INSERT INTO results (grade, score) VALUES ($1, $2);", cols,
		[][]string{{"A", "90"}, {"B", ""}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, []any{"A", int64(90)}, db.calls[2].args)
	assert.Equal(t, []any{"B", nil}, db.calls[3].args)
}

func TestLoader_InsertReportsRow(t *testing.T) {
	cols := []schema.ColumnMetadata{{Name: "n", DataType: schema.Integer}}
	l := NewLoader(&fakeExecer{}, nil)
	_, err := l.InsertRows(context.Background(), "INSERT INTO t (n) VALUES ($1);", cols, [][]string{{"1"}, {"x"}})
	assert.ErrorContains(t, err, "row 2: column n")
}

func TestApply_CommitsAndListsAllEnumValues(t *testing.T) {
	var b strings.Builder
	b.WriteString("id,kind\n")
	kinds := []string{"a", "b", "c", "d", "e", "f", "g"}
	for i := 0; i < 21; i++ {
		fmt.Fprintf(&b, "%d,%s\n", i, kinds[i%len(kinds)])
	}
	data := []byte(b.String())
	res, err := analysis.Analyze(data)
	require.NoError(t, err)
	require.Equal(t, schema.Enum, res.Columns["kind"].DataType)
	require.Len(t, res.Columns["kind"].SampleValues, 5)
	_, rows, err := analysis.ReadRows(data, 0, 0)
	require.NoError(t, err)

	tx := &fakeTx{}
	n, err := Apply(context.Background(), &fakeDB{tx: tx}, "things", res, rows, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(21), n)
	assert.True(t, tx.committed)
	assert.False(t, tx.rolledBack)
	assert.Equal(t, "CREATE TYPE kind_type AS ENUM ('a', 'b', 'c', 'd', 'e', 'f', 'g');", tx.calls[0].sql)
	assert.Equal(t, "INSERT INTO things (id, kind) VALUES ($1, $2);", tx.calls[2].sql)
}

func TestApply_RollsBackOnFailure(t *testing.T) {
	res, err := analysis.Analyze([]byte("n\n1\n2\n"))
	require.NoError(t, err)

	tx := &fakeTx{fakeExecer: fakeExecer{failOn: "CREATE TABLE"}}
	_, err = Apply(context.Background(), &fakeDB{tx: tx}, "t", res, [][]string{{"1"}}, nil)
	assert.ErrorContains(t, err, "boom")
	assert.True(t, tx.rolledBack)
	assert.False(t, tx.committed)
}

func TestColumnTypes_WidensLargeIntegers(t *testing.T) {
	cols := []schema.ColumnMetadata{
		{Name: "small", DataType: schema.Integer},
		{Name: "big", DataType: schema.Integer},
		{Name: "neg", DataType: schema.Integer, Nullable: true},
		{Name: "label", DataType: schema.Text},
	}
	rows := [][]string{
		{"2147483647", "1", "-2147483648", "3000000000"},
		{"-5", "3000000000", "", "x"},
		{"7", "2", "-2147483649"},
	}
	assert.Equal(t, map[string]string{"big": "BIGINT", "neg": "BIGINT"}, ColumnTypes(cols, rows))
	assert.Nil(t, ColumnTypes(cols, [][]string{{"1", "2", "3", "4"}}))
}

func TestApply_CreatesBigintForLargeValues(t *testing.T) {
	data := []byte("id,total\n1,3000000000\n2,5\n")
	res, err := analysis.Analyze(data)
	require.NoError(t, err)
	require.Equal(t, schema.Integer, res.Columns["total"].DataType)
	_, rows, err := analysis.ReadRows(data, 0, 0)
	require.NoError(t, err)

	tx := &fakeTx{}
	_, err = Apply(context.Background(), &fakeDB{tx: tx}, "ledger", res, rows, nil)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE ledger (\n"+
		"    id INTEGER NOT NULL,\n"+
		"    total BIGINT NOT NULL\n"+
		");", tx.calls[0].sql)
	assert.Equal(t, []any{int64(1), int64(3000000000)}, tx.calls[1].args)
}
