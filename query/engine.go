package query

import (
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/omerghazali/vddb/index"
	"github.com/omerghazali/vddb/internal/types"
	"github.com/omerghazali/vddb/schema"
	"github.com/omerghazali/vddb/storage"
)

// Engine executes Query values against a storage.Manager. It holds no
// state of its own beyond the manager reference: every call is one
// storage operation under the manager's coarse lock.
type Engine struct {
	storage *storage.Manager
}

func NewEngine(mgr *storage.Manager) *Engine {
	return &Engine{storage: mgr}
}

// Execute runs q and returns its result rows (empty for
// mutation-only operations).
func (e *Engine) Execute(q Query) ([][]types.Value, error) {
	switch q.Kind {
	case QueryCreateTable:
		return nil, e.storage.CreateTable(schema.Table{Name: q.Table, Columns: q.TableColumns})
	case QueryInsert:
		return nil, e.storage.InsertRow(q.Table, q.Values)
	case QueryDelete:
		return nil, e.storage.DeleteRows(q.Table, conditionOrNil(q.Condition))
	case QueryDropTable:
		return nil, e.storage.DropTable(q.Table)
	case QueryStartTransaction, QueryCommit, QueryRollback:
		return nil, nil
	case QuerySelect:
		columns := q.ProjectColumns
		if len(columns) == 0 {
			table, ok := e.storage.Schema().Table(q.Table)
			if !ok {
				return nil, errors.Wrapf(types.ErrInvalidData, "table %s not found", q.Table)
			}
			for _, c := range table.Columns {
				columns = append(columns, c.Name)
			}
		}
		return e.executeSelect(q.Table, columns, q.Condition)
	case QuerySelectAggregate:
		return e.executeAggregate(q.Table, q.Aggregations, q.Condition)
	case QueryJoin:
		return e.executeJoin(q.Table, q.RightTable, q.LeftColumn, q.RightColumn, q.ProjectColumns, q.Condition)
	case QueryMakeIndex:
		return nil, e.makeIndex(q.Table, q.IndexColumn)
	case QueryDropIndex:
		return nil, e.dropIndex(q.Table, q.IndexColumn)
	default:
		return nil, errors.Newf("query: unknown query kind %d", q.Kind)
	}
}

func conditionOrNil(c *Condition) storage.Condition {
	if c == nil {
		return nil
	}
	return c
}

func (e *Engine) executeSelect(table string, columns []string, cond *Condition) ([][]types.Value, error) {
	tableDef, ok := e.storage.Schema().Table(table)
	if !ok {
		return nil, errors.Wrapf(types.ErrInvalidData, "table %s not found", table)
	}
	for _, col := range columns {
		if _, ok := tableDef.Column(col); !ok {
			return nil, errors.Wrapf(types.ErrInvalidData, "column %s.%s not found", table, col)
		}
	}

	required := append([]string(nil), columns...)
	if cond != nil {
		for _, col := range cond.Columns() {
			if _, ok := tableDef.Column(col); !ok {
				return nil, errors.Wrapf(types.ErrInvalidData, "column %s.%s not found in condition", table, col)
			}
			if !contains(required, col) {
				required = append(required, col)
			}
		}
	}

	columnValues := make(map[string][]types.Value, len(required))
	minRowCount := -1
	for _, col := range required {
		values, err := e.storage.ReadColumn(table, col, conditionOrNil(cond))
		if err != nil {
			return nil, err
		}
		columnValues[col] = values
		if minRowCount == -1 || len(values) < minRowCount {
			minRowCount = len(values)
		}
	}
	if minRowCount < 0 {
		minRowCount = 0
	}

	var result [][]types.Value
	for i := 0; i < minRowCount; i++ {
		if cond != nil {
			matched, err := cond.EvalRow(columnValues, i)
			if err != nil {
				return nil, err
			}
			if !matched {
				continue
			}
		}
		row := make([]types.Value, len(columns))
		for j, col := range columns {
			row[j] = columnValues[col][i]
		}
		result = append(result, row)
	}
	return result, nil
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func (e *Engine) executeAggregate(table string, aggs []Aggregation, cond *Condition) ([][]types.Value, error) {
	tableDef, ok := e.storage.Schema().Table(table)
	if !ok {
		return nil, errors.Wrapf(types.ErrInvalidData, "table %s not found", table)
	}

	row := make([]types.Value, len(aggs))
	for i, agg := range aggs {
		column := agg.Column
		if agg.Kind == AggregationCount {
			column = "ID"
		}
		colDef, ok := tableDef.Column(column)
		if !ok {
			return nil, errors.Wrapf(types.ErrInvalidData, "column %s.%s not found", table, column)
		}
		values, err := e.storage.ReadColumn(table, column, conditionOrNil(cond))
		if err != nil {
			return nil, err
		}

		switch agg.Kind {
		case AggregationCount:
			row[i] = types.NewInt32(int32(len(values)))
		case AggregationSum, AggregationAvg:
			if colDef.DataType != types.Float32 && colDef.DataType != types.Int32 {
				return nil, errors.Wrapf(types.ErrInvalidData, "aggregate not supported for type %s", colDef.DataType)
			}
			var sum float64
			for _, v := range values {
				if v.Type == types.Float32 {
					sum += float64(v.F)
				} else {
					sum += float64(v.I)
				}
			}
			if agg.Kind == AggregationAvg {
				if len(values) > 0 {
					sum /= float64(len(values))
				} else {
					sum = 0
				}
			}
			row[i] = types.NewFloat32(float32(sum))
		case AggregationMin:
			row[i] = extremum(values, false)
		case AggregationMax:
			row[i] = extremum(values, true)
		}
	}
	return [][]types.Value{row}, nil
}

func extremum(values []types.Value, wantMax bool) types.Value {
	if len(values) == 0 {
		return types.NewFloat32(0)
	}
	best := values[0]
	for _, v := range values[1:] {
		if wantMax && v.Greater(best) {
			best = v
		} else if !wantMax && v.Less(best) {
			best = v
		}
	}
	return best
}

func (e *Engine) executeJoin(leftTable, rightTable, leftColumn, rightColumn string, columns []string, cond *Condition) ([][]types.Value, error) {
	leftValues, err := e.storage.ReadColumn(leftTable, leftColumn, conditionOrNil(cond))
	if err != nil {
		return nil, err
	}
	rightValues, err := e.storage.ReadColumn(rightTable, rightColumn, conditionOrNil(cond))
	if err != nil {
		return nil, err
	}

	columnValues := make(map[string][]types.Value, len(columns))
	minLeft, minRight := -1, -1
	for _, col := range columns {
		srcTable, colName := leftTable, col
		if idx := indexOfDot(col); idx >= 0 {
			srcTable, colName = col[:idx], col[idx+1:]
		}
		values, err := e.storage.ReadColumn(srcTable, colName, conditionOrNil(cond))
		if err != nil {
			return nil, err
		}
		if srcTable == rightTable {
			if minRight == -1 || len(values) < minRight {
				minRight = len(values)
			}
		} else {
			if minLeft == -1 || len(values) < minLeft {
				minLeft = len(values)
			}
		}
		columnValues[col] = values
	}
	if minLeft == -1 {
		minLeft = len(leftValues)
	}
	if minRight == -1 {
		minRight = len(rightValues)
	}
	if minLeft > len(leftValues) {
		minLeft = len(leftValues)
	}
	if minRight > len(rightValues) {
		minRight = len(rightValues)
	}

	var result [][]types.Value
	for i := 0; i < minLeft; i++ {
		for j := 0; j < minRight; j++ {
			if !leftValues[i].Equal(rightValues[j]) {
				continue
			}
			row := make([]types.Value, len(columns))
			for k, col := range columns {
				idx := i
				if hasPrefix(col, rightTable) {
					idx = j
				}
				values := columnValues[col]
				if idx >= len(values) {
					return nil, errors.Wrapf(types.ErrInvalidData, "index %d out of bounds for column %s (len %d)", idx, col, len(values))
				}
				row[k] = values[idx]
			}
			result = append(result, row)
		}
	}
	return result, nil
}

func indexOfDot(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return i
		}
	}
	return -1
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func (e *Engine) makeIndex(table, column string) error {
	tableDef, ok := e.storage.Schema().Table(table)
	if !ok {
		return errors.Wrapf(types.ErrInvalidData, "table %s not found", table)
	}
	colDef, ok := tableDef.Column(column)
	if !ok {
		return errors.Wrapf(types.ErrInvalidData, "column %s.%s not found", table, column)
	}

	path := filepath.Join(e.storage.DataDir(), "indexes", table+"_"+column+".idx")
	idx, err := index.Open(path, colDef.DataType)
	if err != nil {
		return err
	}
	values, err := e.storage.ReadColumn(table, column, nil)
	if err != nil {
		return err
	}
	if len(values) > 0 {
		if err := idx.Append(values, 0); err != nil {
			return err
		}
	}
	return e.storage.SetIndex(table, column, idx)
}

func (e *Engine) dropIndex(table, column string) error {
	idx, ok := e.storage.RemoveIndex(table, column)
	if !ok {
		return errors.Wrapf(types.ErrInvalidData, "index on column %s.%s not found", table, column)
	}
	return idx.Remove()
}
