package vddb

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"

	"github.com/omerghazali/vddb/query"
	"github.com/omerghazali/vddb/schema"
	"github.com/omerghazali/vddb/txn"
)

// TestScenarios drives testdata/ scripts through a fresh DB per file,
// covering the CREATE/INSERT/SELECT/DELETE/commit/rollback sequences a
// caller composes Query values for.
func TestScenarios(t *testing.T) {
	datadriven.Walk(t, "testdata", func(t *testing.T, path string) {
		db, err := Open(t.TempDir())
		if err != nil {
			t.Fatal(err)
		}
		var pending *txn.Transaction
		datadriven.RunTest(t, path, func(t *testing.T, d *datadriven.TestData) string {
			switch d.Cmd {
			case "create-table":
				var table string
				d.ScanArgs(t, "table", &table)
				cols, err := parseColumns(d.Input)
				if err != nil {
					return err.Error()
				}
				q := query.Query{Kind: query.QueryCreateTable, Table: table, TableColumns: cols}
				return runQuery(db, pending, q)

			case "insert":
				var table string
				d.ScanArgs(t, "table", &table)
				sch := db.Schema()
				tbl, ok := sch.Table(table)
				if !ok {
					return fmt.Sprintf("table %s not found", table)
				}
				var out strings.Builder
				for _, line := range strings.Split(strings.TrimSpace(d.Input), "\n") {
					if line == "" {
						continue
					}
					row, err := parseRow(tbl, line)
					if err != nil {
						fmt.Fprintln(&out, err.Error())
						continue
					}
					q := query.Query{Kind: query.QueryInsert, Table: table, Values: row}
					if pending != nil {
						pending.AddQuery(q)
						continue
					}
					if _, err := db.Execute(q); err != nil {
						fmt.Fprintln(&out, err.Error())
					}
				}
				return out.String()

			case "select":
				var table string
				d.ScanArgs(t, "table", &table)
				var columns []string
				if d.HasArg("columns") {
					var raw string
					d.ScanArgs(t, "columns", &raw)
					columns = strings.Split(raw, ",")
				}
				tbl, ok := db.Schema().Table(table)
				if !ok {
					return fmt.Sprintf("table %s not found", table)
				}
				var cond *query.Condition
				if d.HasArg("cond") {
					var raw string
					d.ScanArgs(t, "cond", &raw)
					var err error
					cond, err = parseCondition(tbl, raw)
					if err != nil {
						return err.Error()
					}
				}
				q := query.Query{Kind: query.QuerySelect, Table: table, ProjectColumns: columns, Condition: cond}
				rows, err := db.Execute(q)
				if err != nil {
					return err.Error()
				}
				return formatRows(rows)

			case "aggregate":
				var table, kind, column string
				d.ScanArgs(t, "table", &table)
				d.ScanArgs(t, "kind", &kind)
				if d.HasArg("column") {
					d.ScanArgs(t, "column", &column)
				}
				rows, err := db.Execute(query.Query{Kind: query.QuerySelectAggregate, Table: table,
					Aggregations: []query.Aggregation{{Kind: aggregationKind(kind), Column: column}}})
				if err != nil {
					return err.Error()
				}
				return formatRows(rows)

			case "delete":
				var table string
				d.ScanArgs(t, "table", &table)
				tbl, ok := db.Schema().Table(table)
				if !ok {
					return fmt.Sprintf("table %s not found", table)
				}
				var cond *query.Condition
				if d.HasArg("cond") {
					var raw string
					d.ScanArgs(t, "cond", &raw)
					var err error
					cond, err = parseCondition(tbl, raw)
					if err != nil {
						return err.Error()
					}
				}
				return runQuery(db, pending, query.Query{Kind: query.QueryDelete, Table: table, Condition: cond})

			case "begin":
				tx := db.Begin()
				pending = &tx
				return fmt.Sprintf("txn %d started", tx.ID)

			case "commit":
				if pending == nil {
					return "no transaction in progress"
				}
				tx := *pending
				pending = nil
				rows, err := db.Commit(tx)
				if err != nil {
					return err.Error()
				}
				if len(rows) == 0 {
					return "ok"
				}
				return formatRows(rows)

			case "rollback":
				if pending == nil {
					return "no transaction in progress"
				}
				tx := *pending
				pending = nil
				if err := db.Rollback(tx); err != nil {
					return err.Error()
				}
				return "ok"

			default:
				t.Fatalf("unknown command %q", d.Cmd)
				return ""
			}
		})
	})
}

// runQuery queues q onto pending if a transaction is currently open in
// the script, otherwise executes it immediately against db.
func runQuery(db *DB, pending *txn.Transaction, q query.Query) string {
	if pending != nil {
		pending.AddQuery(q)
		return "queued"
	}
	_, err := db.Execute(q)
	if err != nil {
		return err.Error()
	}
	return "ok"
}

func parseColumns(input string) ([]schema.Column, error) {
	var cols []schema.Column
	for _, line := range strings.Split(strings.TrimSpace(input), "\n") {
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("expected \"name type\", got %q", line)
		}
		dt, err := parseDataType(fields[1])
		if err != nil {
			return nil, err
		}
		cols = append(cols, schema.Column{Name: fields[0], DataType: dt})
	}
	return cols, nil
}

func parseDataType(s string) (DataType, error) {
	switch strings.ToLower(s) {
	case "int32":
		return Int32, nil
	case "float32":
		return Float32, nil
	case "string":
		return String, nil
	default:
		return 0, fmt.Errorf("unknown data type %q", s)
	}
}

func parseRow(table schema.Table, line string) ([]Value, error) {
	fields := strings.Split(line, ",")
	if len(fields) != len(table.Columns) {
		return nil, fmt.Errorf("expected %d values, got %d", len(table.Columns), len(fields))
	}
	row := make([]Value, len(fields))
	for i, col := range table.Columns {
		v, err := parseValue(col.DataType, strings.TrimSpace(fields[i]))
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

func parseValue(dt DataType, raw string) (Value, error) {
	switch dt {
	case Int32:
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return Value{}, err
		}
		return NewInt32(int32(n)), nil
	case Float32:
		f, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return Value{}, err
		}
		return NewFloat32(float32(f)), nil
	case String:
		return NewString(raw), nil
	default:
		return Value{}, fmt.Errorf("unknown data type %v", dt)
	}
}

// parseCondition parses "Column<op>Value" where op is one of =, >, <
// (no surrounding spaces, so it survives datadriven's own arg parser).
// The literal is parsed using column's declared type, matching how a
// real caller builds Condition values against a known schema.
func parseCondition(table schema.Table, raw string) (*query.Condition, error) {
	opIdx := strings.IndexAny(raw, "=><")
	if opIdx < 0 {
		return nil, fmt.Errorf("expected \"column<op>value\", got %q", raw)
	}
	column, op, value := raw[:opIdx], string(raw[opIdx]), raw[opIdx+1:]
	var dt DataType
	found := false
	for _, col := range table.Columns {
		if col.Name == column {
			dt = col.DataType
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("column %q not found on table %q", column, table.Name)
	}
	v, err := parseValue(dt, value)
	if err != nil {
		return nil, err
	}
	switch op {
	case "=":
		return query.Equal(column, v), nil
	case ">":
		return query.GreaterThan(column, v), nil
	case "<":
		return query.LessThan(column, v), nil
	default:
		return nil, fmt.Errorf("unknown operator %q", op)
	}
}

func aggregationKind(s string) query.AggregationKind {
	switch strings.ToLower(s) {
	case "count":
		return query.AggregationCount
	case "sum":
		return query.AggregationSum
	case "avg":
		return query.AggregationAvg
	case "min":
		return query.AggregationMin
	case "max":
		return query.AggregationMax
	default:
		return query.AggregationCount
	}
}

func formatRows(rows [][]Value) string {
	var buf bytes.Buffer
	for _, row := range rows {
		for i, v := range row {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(formatValue(v))
		}
		buf.WriteByte('\n')
	}
	return buf.String()
}

func formatValue(v Value) string {
	switch v.Type {
	case Int32:
		return strconv.FormatInt(int64(v.I), 10)
	case Float32:
		return strconv.FormatFloat(float64(v.F), 'g', -1, 32)
	case String:
		return v.S
	default:
		return fmt.Sprintf("%v", v)
	}
}
