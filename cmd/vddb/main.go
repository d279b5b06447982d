// Command vddb is a thin operator CLI over a vddb database: every
// subcommand maps directly onto one query.Query variant. There is no
// SQL surface here — "exec" takes a JSON-encoded query.Query document
// for anything this CLI's flags don't cover (joins, aggregates,
// MAKE/DROP INDEX).
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/omerghazali/vddb"
	"github.com/omerghazali/vddb/query"
	"github.com/omerghazali/vddb/schema"
)

func main() {
	var dataDir string

	root := &cobra.Command{
		Use:   "vddb",
		Short: "Operate a vddb columnar database",
	}
	root.PersistentFlags().StringVar(&dataDir, "data-dir", "", "database data directory (required)")

	root.AddCommand(createTableCmd(&dataDir))
	root.AddCommand(insertCmd(&dataDir))
	root.AddCommand(selectCmd(&dataDir))
	root.AddCommand(deleteCmd(&dataDir))
	root.AddCommand(dropTableCmd(&dataDir))
	root.AddCommand(execCmd(&dataDir))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openDB(dataDir string) (*vddb.DB, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("--data-dir is required")
	}
	return vddb.Open(dataDir)
}

func parseColumnSpec(spec string) (schema.Column, error) {
	parts := strings.SplitN(spec, ":", 2)
	if len(parts) != 2 {
		return schema.Column{}, fmt.Errorf("invalid column spec %q, want name:type", spec)
	}
	var dt vddb.DataType
	switch strings.ToLower(parts[1]) {
	case "int32":
		dt = vddb.Int32
	case "float32":
		dt = vddb.Float32
	case "string":
		dt = vddb.String
	default:
		return schema.Column{}, fmt.Errorf("unknown column type %q", parts[1])
	}
	return schema.Column{Name: parts[0], DataType: dt}, nil
}

func createTableCmd(dataDir *string) *cobra.Command {
	var table string
	var columnSpecs []string
	cmd := &cobra.Command{
		Use:   "create-table",
		Short: "Create a table",
		RunE: func(_ *cobra.Command, _ []string) error {
			db, err := openDB(*dataDir)
			if err != nil {
				return err
			}
			columns := make([]schema.Column, len(columnSpecs))
			for i, spec := range columnSpecs {
				col, err := parseColumnSpec(spec)
				if err != nil {
					return err
				}
				columns[i] = col
			}
			_, err = db.Execute(query.Query{Kind: query.QueryCreateTable, Table: table, TableColumns: columns})
			return err
		},
	}
	cmd.Flags().StringVar(&table, "table", "", "table name (required)")
	cmd.Flags().StringSliceVar(&columnSpecs, "column", nil, "column spec name:type, repeatable")
	return cmd
}

func parseValue(dt vddb.DataType, raw string) (vddb.Value, error) {
	switch dt {
	case vddb.Int32:
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return vddb.Value{}, fmt.Errorf("invalid int32 %q: %w", raw, err)
		}
		return vddb.NewInt32(int32(n)), nil
	case vddb.Float32:
		f, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return vddb.Value{}, fmt.Errorf("invalid float32 %q: %w", raw, err)
		}
		return vddb.NewFloat32(float32(f)), nil
	default:
		return vddb.NewString(raw), nil
	}
}

func insertCmd(dataDir *string) *cobra.Command {
	var table string
	var values []string
	cmd := &cobra.Command{
		Use:   "insert",
		Short: "Insert one row",
		RunE: func(_ *cobra.Command, _ []string) error {
			db, err := openDB(*dataDir)
			if err != nil {
				return err
			}
			tableDef, ok := db.Schema().Table(table)
			if !ok {
				return fmt.Errorf("table %s not found", table)
			}
			if len(values) != len(tableDef.Columns) {
				return fmt.Errorf("table %s expects %d values, got %d", table, len(tableDef.Columns), len(values))
			}
			row := make([]vddb.Value, len(values))
			for i, raw := range values {
				v, err := parseValue(tableDef.Columns[i].DataType, raw)
				if err != nil {
					return err
				}
				row[i] = v
			}
			_, err = db.Execute(query.Query{Kind: query.QueryInsert, Table: table, Values: row})
			return err
		},
	}
	cmd.Flags().StringVar(&table, "table", "", "table name (required)")
	cmd.Flags().StringSliceVar(&values, "values", nil, "row values in column order")
	return cmd
}

func selectCmd(dataDir *string) *cobra.Command {
	var table string
	var columns []string
	var eq string
	cmd := &cobra.Command{
		Use:   "select",
		Short: "Select rows, optionally filtered by one Column=Value equality",
		RunE: func(_ *cobra.Command, _ []string) error {
			db, err := openDB(*dataDir)
			if err != nil {
				return err
			}
			cond, err := parseEqCondition(db, table, eq)
			if err != nil {
				return err
			}
			rows, err := db.Execute(query.Query{Kind: query.QuerySelect, Table: table, ProjectColumns: columns, Condition: cond})
			if err != nil {
				return err
			}
			return printRows(rows)
		},
	}
	cmd.Flags().StringVar(&table, "table", "", "table name (required)")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "columns to project, default all")
	cmd.Flags().StringVar(&eq, "eq", "", "Column=Value equality filter")
	return cmd
}

func parseEqCondition(db *vddb.DB, table, eq string) (*query.Condition, error) {
	if eq == "" {
		return nil, nil
	}
	parts := strings.SplitN(eq, "=", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid --eq %q, want Column=Value", eq)
	}
	tableDef, ok := db.Schema().Table(table)
	if !ok {
		return nil, fmt.Errorf("table %s not found", table)
	}
	col, ok := tableDef.Column(parts[0])
	if !ok {
		return nil, fmt.Errorf("column %s.%s not found", table, parts[0])
	}
	v, err := parseValue(col.DataType, parts[1])
	if err != nil {
		return nil, err
	}
	return query.Equal(parts[0], v), nil
}

func deleteCmd(dataDir *string) *cobra.Command {
	var table string
	var eq string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete rows, optionally filtered by one Column=Value equality",
		RunE: func(_ *cobra.Command, _ []string) error {
			db, err := openDB(*dataDir)
			if err != nil {
				return err
			}
			cond, err := parseEqCondition(db, table, eq)
			if err != nil {
				return err
			}
			_, err = db.Execute(query.Query{Kind: query.QueryDelete, Table: table, Condition: cond})
			return err
		},
	}
	cmd.Flags().StringVar(&table, "table", "", "table name (required)")
	cmd.Flags().StringVar(&eq, "eq", "", "Column=Value equality filter; omit to delete every row")
	return cmd
}

func dropTableCmd(dataDir *string) *cobra.Command {
	var table string
	cmd := &cobra.Command{
		Use:   "drop-table",
		Short: "Drop a table and all its files",
		RunE: func(_ *cobra.Command, _ []string) error {
			db, err := openDB(*dataDir)
			if err != nil {
				return err
			}
			_, err = db.Execute(query.Query{Kind: query.QueryDropTable, Table: table})
			return err
		},
	}
	cmd.Flags().StringVar(&table, "table", "", "table name (required)")
	return cmd
}

func execCmd(dataDir *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Execute a JSON-encoded query.Query document (covers joins, aggregates, MAKE/DROP INDEX)",
		RunE: func(_ *cobra.Command, _ []string) error {
			db, err := openDB(*dataDir)
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var q query.Query
			if err := json.Unmarshal(raw, &q); err != nil {
				return fmt.Errorf("decoding query document: %w", err)
			}
			rows, err := db.Execute(q)
			if err != nil {
				return err
			}
			return printRows(rows)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to a JSON query.Query document (required)")
	return cmd
}

func printRows(rows [][]vddb.Value) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}
