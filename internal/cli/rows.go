package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/activerow/pkg/record"
)

func newInsertCmd() *cobra.Command {
	var sets, exprs []string
	cmd := &cobra.Command{
		Use:   "insert <table>",
		Short: "Insert a row and print it as stored",
		Long: `Insert builds a new row from --set and --expr assignments, validates it
and saves it. The stored image, including generated keys and defaults, is
printed.

Example:
  activerow insert items --set name=widget --set price=2.5
  activerow insert items --set name=widget --expr created_at=CURRENT_TIMESTAMP`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := parseAssignments(sets, exprs)
			if err != nil {
				return userError(err)
			}
			s, err := attach(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			tbl, err := s.table(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := checkColumns(tbl.Columns(), data); err != nil {
				return userError(err)
			}
			row, err := tbl.Create(data)
			if err != nil {
				return classify(err)
			}
			if _, err := row.Save(cmd.Context()); err != nil {
				return classify(err)
			}
			return printRow(cmd.OutOrStdout(), row)
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "column=value assignment (repeatable)")
	cmd.Flags().StringArrayVar(&exprs, "expr", nil, "column=SQL expression inlined verbatim (repeatable)")
	return cmd
}

func newUpdateCmd() *cobra.Command {
	var sets, exprs []string
	cmd := &cobra.Command{
		Use:   "update <table> <key>...",
		Short: "Change columns of an existing row",
		Long: `Update loads the row with the given primary key, applies the assignments
and saves only the columns whose value changed. Composite keys are given
in primary key order.

Example:
  activerow update items 1 --set price=3.75
  activerow update memberships 7 2 --set role=admin`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := parseAssignments(sets, exprs)
			if err != nil {
				return userError(err)
			}
			if len(data) == 0 {
				return userError(fmt.Errorf("nothing to update: pass --set or --expr"))
			}
			s, err := attach(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			tbl, err := s.table(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := checkColumns(tbl.Columns(), data); err != nil {
				return userError(err)
			}
			row, err := findRow(cmd.Context(), tbl, args[1:])
			if err != nil {
				return err
			}
			for _, col := range tbl.Columns() {
				v, ok := data[col]
				if !ok {
					continue
				}
				if err := row.Set(col, v); err != nil {
					return classify(err)
				}
			}
			if _, err := row.Save(cmd.Context()); err != nil {
				return classify(err)
			}
			return printRow(cmd.OutOrStdout(), row)
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "column=value assignment (repeatable)")
	cmd.Flags().StringArrayVar(&exprs, "expr", nil, "column=SQL expression inlined verbatim (repeatable)")
	return cmd
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <table> <key>...",
		Short: "Print a row by primary key",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := attach(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			tbl, err := s.table(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			row, err := findRow(cmd.Context(), tbl, args[1:])
			if err != nil {
				return err
			}
			return printRow(cmd.OutOrStdout(), row)
		},
	}
}

func newBulkInsertCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "bulk-insert <table>",
		Short: "Insert JSONL rows in one statement",
		Long: `Bulk-insert reads one JSON object per line from --file (or stdin) and
inserts them all with a single multi-row statement inside a transaction.
Every object must carry the same columns. Rows skip validation and hooks.

With bulk_failure: swallow (the default) a failed statement is rolled back
and reported as zero rows inserted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return userError(fmt.Errorf("open %s: %w", file, err))
				}
				defer f.Close()
				in = f
			}
			rows, err := readJSONL(in)
			if err != nil {
				return userError(err)
			}

			s, err := attach(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			tbl, err := s.table(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			n, err := tbl.BulkInsert(cmd.Context(), rows)
			if err != nil {
				return classify(err)
			}
			out := cmd.OutOrStdout()
			if flags.jsonMode {
				fmt.Fprintf(out, "{\"inserted\":%d}\n", n)
				return nil
			}
			fmt.Fprintf(out, "inserted %d rows\n", n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSONL input file (default stdin)")
	return cmd
}

func findRow(ctx context.Context, tbl *record.Table, args []string) (*record.Row, error) {
	pk := tbl.PrimaryKey()
	if len(args) != len(pk) {
		return nil, userError(fmt.Errorf("%s has primary key (%s): got %d key values",
			tbl.Name(), strings.Join(pk, ", "), len(args)))
	}
	key := make([]any, len(args))
	for i, a := range args {
		key[i] = parseScalar(a)
	}
	row, err := tbl.Find(ctx, key...)
	if err != nil {
		return nil, classify(err)
	}
	return row, nil
}

// printRow writes the row as JSON with --json, otherwise one column per
// line.
func printRow(w io.Writer, row *record.Row) error {
	if flags.jsonMode {
		data, err := row.ToJSON()
		if err != nil {
			return sysError(fmt.Errorf("marshal row: %w", err))
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	}
	values := row.Values()
	for _, col := range values.Keys() {
		v, _ := row.Get(col)
		if v == nil {
			v = "NULL"
		}
		fmt.Fprintf(w, "%s: %v\n", col, v)
	}
	return nil
}
