package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/tabschema-cli/internal/analysis"
	"github.com/KaramelBytes/tabschema-cli/internal/sink/postgres"
	"github.com/KaramelBytes/tabschema-cli/internal/sqlgen"
)

var (
	apDSN        string
	apTable      string
	apDelimiter  string
	apSampleRows int
	apMaxRows    int
	apWorkers    int
	apSheetName  string
	apSheetIndex int
	apDryRun     bool
	apTimeoutSec int
)

var applyCmd = &cobra.Command{
	Use:   "apply <file>",
	Short: "Create the inferred table in PostgreSQL and load the analyzed rows",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		opt, err := commandOptions(cmd, apTable, apDelimiter, apSampleRows, apMaxRows, apWorkers, apSheetName, apSheetIndex)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		an := analysis.New(opt, log)
		src, err := an.OpenSource(path, data)
		if err != nil {
			return err
		}
		res, err := an.AnalyzeSource(cmd.Context(), src)
		if err != nil {
			return err
		}
		// The sources are single-pass; reopen to collect the same rows.
		rows, err := drainRows(an, path, data)
		if err != nil {
			return err
		}
		cols := postgres.EnumComplete(res)
		table := opt.TableName
		if table == "" {
			table = sqlgen.DefaultTable
		}

		out := cmd.OutOrStdout()
		if apDryRun {
			for _, stmt := range sqlgen.StatementsWithTypes(table, cols, postgres.ColumnTypes(cols, rows)) {
				fmt.Fprintln(out, stmt)
			}
			fmt.Fprintln(out, sqlgen.InsertTemplate(table, cols))
			fmt.Fprintf(out, "-- %d rows would be inserted\n", len(rows))
			return nil
		}

		dsn := apDSN
		if dsn == "" && cfg != nil {
			dsn = cfg.PostgresDSN
		}
		if dsn == "" {
			return errors.New("no database: pass --dsn or set postgres_dsn (tabschema config set postgres_dsn ...)")
		}
		ctx := cmd.Context()
		if apTimeoutSec > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(apTimeoutSec)*time.Second)
			defer cancel()
		}
		conn, err := pgx.Connect(ctx, dsn)
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		defer conn.Close(ctx)

		n, err := postgres.Apply(ctx, conn, table, res, rows, log)
		if err != nil {
			return err
		}
		log.Info("apply finished", zap.String("table", table), zap.Int64("rows", n))
		fmt.Fprintf(out, "✓ Created %s and inserted %d rows\n", sqlgen.TableIdent(table), n)
		if res.Truncated {
			fmt.Fprintf(out, "⚠ Only the first %d rows were analyzed and loaded\n", res.RowCount)
		}
		return nil
	},
}

func drainRows(an *analysis.Analyzer, path string, data []byte) ([][]string, error) {
	src, err := an.OpenSource(path, data)
	if err != nil {
		return nil, err
	}
	var rows [][]string
	for {
		row, err := src.Next()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
}

func init() {
	rootCmd.AddCommand(applyCmd)
	applyCmd.Flags().StringVar(&apDSN, "dsn", "", "PostgreSQL connection string (default from config postgres_dsn)")
	applyCmd.Flags().BoolVar(&apDryRun, "dry-run", false, "print the statements without connecting")
	applyCmd.Flags().IntVar(&apTimeoutSec, "timeout", 0, "overall timeout in seconds (0 = none)")
	addAnalysisFlags(applyCmd, &apTable, &apDelimiter, &apSampleRows, &apMaxRows, &apWorkers, &apSheetName, &apSheetIndex)
}
