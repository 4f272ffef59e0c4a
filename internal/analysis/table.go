// Package analysis infers column types, nullability and categorical sets from
// tabular text and assembles the result consumed by the CLI and the sinks.
package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/tabschema-cli/internal/schema"
	"github.com/KaramelBytes/tabschema-cli/internal/sqlgen"
)

// DefaultMaxRows bounds how many data rows a single analysis reads.
const DefaultMaxRows = 1000

// Options controls analysis behavior for tabular data.
type Options struct {
	// MaxRows limits data rows processed; values <= 0 use DefaultMaxRows.
	MaxRows int
	// SampleRows is how many leading rows are kept verbatim.
	SampleRows int
	// SampleValues is how many distinct values are kept per column.
	SampleValues int
	// Delimiter for CSV. If 0, sniffed from the file extension and header line.
	Delimiter rune
	// TableName is used in the emitted SQL; empty means sqlgen.DefaultTable.
	TableName string
	// Workers > 1 analyzes column distributions concurrently.
	Workers int
	// Sheet and SheetIndex (1-based) select the worksheet of an .xlsx input.
	Sheet      string
	SheetIndex int

	Distribution DistributionConfig
}

// DefaultOptions returns reasonable defaults for dataset analysis.
func DefaultOptions() Options {
	return Options{
		MaxRows:      DefaultMaxRows,
		SampleRows:   5,
		SampleValues: 5,
		TableName:    sqlgen.DefaultTable,
		Workers:      1,
		Distribution: DefaultDistributionConfig(),
	}
}

func (o Options) normalized() Options {
	if o.MaxRows <= 0 {
		o.MaxRows = DefaultMaxRows
	}
	if o.SampleRows < 0 {
		o.SampleRows = 5
	}
	if o.SampleValues <= 0 {
		o.SampleValues = 5
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	if o.Distribution == (DistributionConfig{}) {
		o.Distribution = DefaultDistributionConfig()
	}
	return o
}

// Result is the outcome of one analysis call. ColumnOrder lists column names
// in header order; Verdicts keeps the categorical analysis per column and is
// serialized with it so stored results keep their value frequencies.
type Result struct {
	Name        string                           `json:"name,omitempty" yaml:"name,omitempty"`
	RowCount    int                              `json:"row_count" yaml:"row_count"`
	ColumnCount int                              `json:"column_count" yaml:"column_count"`
	Columns     map[string]schema.ColumnMetadata `json:"columns" yaml:"columns"`
	ColumnOrder []string                         `json:"column_order" yaml:"column_order"`
	SampleRows  [][]string                       `json:"sample_rows" yaml:"sample_rows"`
	SQL         *schema.SQLStatements            `json:"sql_statements,omitempty" yaml:"sql_statements,omitempty"`
	Truncated   bool                             `json:"truncated,omitempty" yaml:"truncated,omitempty"`
	Verdicts    map[string]DistributionAnalysis  `json:"verdicts,omitempty" yaml:"verdicts,omitempty"`
}

// OrderedColumns returns column metadata in header order.
func (r *Result) OrderedColumns() []schema.ColumnMetadata {
	out := make([]schema.ColumnMetadata, 0, len(r.ColumnOrder))
	for _, name := range r.ColumnOrder {
		out = append(out, r.Columns[name])
	}
	return out
}

// Source is a bounded stream of data rows under a header.
type Source interface {
	Header() []string
	// Next returns io.EOF when no rows remain.
	Next() ([]string, error)
	Truncated() bool
}

// Analyzer runs the inference pipeline. It holds no per-call state and is
// safe for concurrent use.
type Analyzer struct {
	opt Options
	log *zap.Logger
}

// New creates an Analyzer. A nil logger disables logging.
func New(opt Options, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{opt: opt.normalized(), log: logger.Named("analysis")}
}

// Options returns the effective options.
func (a *Analyzer) Options() Options { return a.opt }

// Analyze infers the schema of delimited text in data.
func Analyze(data []byte) (*Result, error) {
	return New(DefaultOptions(), nil).Analyze(context.Background(), data)
}

// Analyze infers the schema of delimited text in data.
func (a *Analyzer) Analyze(ctx context.Context, data []byte) (*Result, error) {
	delim := a.opt.Delimiter
	if delim == 0 {
		delim = SniffDelimiter(data)
	}
	src, err := NewRowSource(bytes.NewReader(data), delim, a.opt.MaxRows)
	if err != nil {
		return nil, err
	}
	return a.AnalyzeSource(ctx, src)
}

// AnalyzeFile reads path and analyzes it. Files ending in .xlsx are read as
// workbooks; anything else as delimited text.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	src, err := a.OpenSource(path, data)
	if err != nil {
		return nil, err
	}
	res, err := a.AnalyzeSource(ctx, src)
	if err != nil {
		return nil, err
	}
	res.Name = filepath.Base(path)
	return res, nil
}

// OpenSource picks a row source for data based on the file name.
func (a *Analyzer) OpenSource(name string, data []byte) (Source, error) {
	if strings.EqualFold(filepath.Ext(name), ".xlsx") {
		return NewXLSXSource(data, a.opt.Sheet, a.opt.SheetIndex, a.opt.MaxRows)
	}
	delim := a.opt.Delimiter
	if delim == 0 {
		delim = delimiterForPath(name)
	}
	if delim == 0 {
		delim = SniffDelimiter(data)
	}
	return NewRowSource(bytes.NewReader(data), delim, a.opt.MaxRows)
}

// AnalyzeSource drains src and builds the result.
func (a *Analyzer) AnalyzeSource(ctx context.Context, src Source) (*Result, error) {
	names := uniqueNames(src.Header())
	accs := make([]*ColumnAccumulator, len(names))
	for i, n := range names {
		accs[i] = NewColumnAccumulator(n)
	}

	res := &Result{ColumnOrder: names, ColumnCount: len(names)}
	for {
		if res.RowCount%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		res.RowCount++
		if len(res.SampleRows) < a.opt.SampleRows {
			res.SampleRows = append(res.SampleRows, append([]string(nil), rec...))
		}
		for i, v := range rec {
			if i >= len(accs) {
				return nil, &ColumnLookupError{Row: res.RowCount, Index: i, Columns: len(accs)}
			}
			accs[i].Observe(v)
		}
	}
	res.Truncated = src.Truncated()

	states := make([]ColumnState, len(accs))
	verdicts := make([]DistributionAnalysis, len(accs))
	for i, acc := range accs {
		states[i] = acc.Finalize()
	}
	if err := a.analyzeColumns(ctx, states, verdicts); err != nil {
		return nil, err
	}

	res.Columns = make(map[string]schema.ColumnMetadata, len(states))
	res.Verdicts = make(map[string]DistributionAnalysis, len(states))
	for i, st := range states {
		md := a.columnMetadata(st, verdicts[i])
		res.Columns[st.Name] = md
		res.Verdicts[st.Name] = verdicts[i]
		a.log.Debug("column resolved",
			zap.String("column", st.Name),
			zap.String("type", string(md.DataType)),
			zap.Bool("nullable", md.Nullable),
			zap.Int("distinct", md.UniqueCount),
			zap.Bool("categorical", verdicts[i].IsCategorical),
			zap.Float64("confidence", verdicts[i].ConfidenceScore),
			zap.Float64("unique_ratio", verdicts[i].Debug.UniqueRatio),
			zap.Float64("repeat_ratio", verdicts[i].Debug.RepeatRatio),
			zap.Float64("distribution_score", verdicts[i].Debug.DistributionScore),
			zap.Float64("entropy", verdicts[i].Debug.Entropy),
			zap.String("rejected", verdicts[i].Debug.Rejected),
		)
	}

	sql := sqlgen.Generate(a.opt.TableName, res.OrderedColumns())
	res.SQL = &sql
	a.log.Debug("analysis complete",
		zap.Int("rows", res.RowCount),
		zap.Int("columns", res.ColumnCount),
		zap.Bool("truncated", res.Truncated),
	)
	return res, nil
}

// analyzeColumns fills verdicts[i] for states[i]. Columns are independent, so
// with Workers > 1 they are spread over an errgroup; each goroutine writes
// only its own slot.
func (a *Analyzer) analyzeColumns(ctx context.Context, states []ColumnState, verdicts []DistributionAnalysis) error {
	cfg := a.opt.Distribution
	if a.opt.Workers <= 1 || len(states) < 2 {
		for i := range states {
			verdicts[i] = AnalyzeDistribution(states[i].Frequencies, cfg)
		}
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opt.Workers)
	for i := range states {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			verdicts[i] = AnalyzeDistribution(states[i].Frequencies, cfg)
			return nil
		})
	}
	return g.Wait()
}

func (a *Analyzer) columnMetadata(st ColumnState, verdict DistributionAnalysis) schema.ColumnMetadata {
	n := a.opt.SampleValues
	if n > len(st.Distinct) {
		n = len(st.Distinct)
	}
	samples := make([]string, n)
	copy(samples, st.Distinct[:n])
	return schema.ColumnMetadata{
		Name:         st.Name,
		DataType:     resolveColumn(st, verdict),
		SampleValues: samples,
		Nullable:     st.Nullable(),
		UniqueCount:  len(st.Distinct),
	}
}

// uniqueNames trims header names, fills blanks, and suffixes duplicates so
// each column keeps its own entry in the name map.
func uniqueNames(header []string) []string {
	out := make([]string, len(header))
	used := make(map[string]bool, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		candidate := name
		for n := 2; used[candidate]; n++ {
			candidate = fmt.Sprintf("%s_%d", name, n)
		}
		used[candidate] = true
		out[i] = candidate
	}
	return out
}
