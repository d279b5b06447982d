// Package query implements predicate evaluation, aggregation and the
// query engine that drives a storage.Manager through every operation
// the database exposes.
package query

import (
	"github.com/cockroachdb/errors"

	"github.com/omerghazali/vddb/internal/types"
)

// ConditionKind tags which comparison or combinator a Condition node
// represents.
type ConditionKind int

const (
	ConditionEqual ConditionKind = iota
	ConditionGreaterThan
	ConditionLessThan
	ConditionAnd
	ConditionOr
)

// Condition is a predicate tree: a comparison leaf names a column and
// a literal Value, or a combinator node joins two subtrees. It
// implements both block-level pruning (EvalBlock) and row-level
// filtering (EvalRow), satisfying storage.Condition and
// column.Condition structurally.
type Condition struct {
	Kind   ConditionKind
	Column string
	Value  types.Value
	Left   *Condition
	Right  *Condition
}

func Equal(column string, v types.Value) *Condition {
	return &Condition{Kind: ConditionEqual, Column: column, Value: v}
}

func GreaterThan(column string, v types.Value) *Condition {
	return &Condition{Kind: ConditionGreaterThan, Column: column, Value: v}
}

func LessThan(column string, v types.Value) *Condition {
	return &Condition{Kind: ConditionLessThan, Column: column, Value: v}
}

func And(left, right *Condition) *Condition {
	return &Condition{Kind: ConditionAnd, Left: left, Right: right}
}

func Or(left, right *Condition) *Condition {
	return &Condition{Kind: ConditionOr, Left: left, Right: right}
}

// EvalBlock decides whether a block with the given min/max for
// columnName can be skipped. A leaf referencing a different column
// cannot prune and reports true; cross-type leaves report false.
func (c *Condition) EvalBlock(columnName string, min, max types.Value) bool {
	switch c.Kind {
	case ConditionGreaterThan:
		if c.Column != columnName {
			return true
		}
		if max.Type != c.Value.Type {
			return false
		}
		return max.Greater(c.Value)
	case ConditionLessThan:
		if c.Column != columnName {
			return true
		}
		if min.Type != c.Value.Type {
			return false
		}
		return min.Less(c.Value)
	case ConditionEqual:
		if c.Column != columnName {
			return true
		}
		if min.Type != c.Value.Type {
			return false
		}
		return !min.Greater(c.Value) && !c.Value.Greater(max)
	case ConditionAnd:
		return c.Left.EvalBlock(columnName, min, max) && c.Right.EvalBlock(columnName, min, max)
	case ConditionOr:
		return c.Left.EvalBlock(columnName, min, max) || c.Right.EvalBlock(columnName, min, max)
	default:
		return true
	}
}

// EvalRow evaluates the predicate against row i of a materialized
// column set. It fails with ErrQuery if a referenced column was not
// materialized.
func (c *Condition) EvalRow(columns map[string][]types.Value, i int) (bool, error) {
	switch c.Kind {
	case ConditionEqual, ConditionGreaterThan, ConditionLessThan:
		vals, ok := columns[c.Column]
		if !ok {
			return false, errors.Wrapf(types.ErrQuery, "column %s not found", c.Column)
		}
		if i >= len(vals) {
			return false, nil
		}
		v := vals[i]
		switch c.Kind {
		case ConditionEqual:
			return v.Equal(c.Value), nil
		case ConditionGreaterThan:
			return v.Greater(c.Value), nil
		default:
			return v.Less(c.Value), nil
		}
	case ConditionAnd:
		left, err := c.Left.EvalRow(columns, i)
		if err != nil {
			return false, err
		}
		right, err := c.Right.EvalRow(columns, i)
		if err != nil {
			return false, err
		}
		return left && right, nil
	case ConditionOr:
		left, err := c.Left.EvalRow(columns, i)
		if err != nil {
			return false, err
		}
		right, err := c.Right.EvalRow(columns, i)
		if err != nil {
			return false, err
		}
		return left || right, nil
	default:
		return false, nil
	}
}

// Columns returns the deduplicated set of column names referenced
// anywhere in the predicate tree.
func (c *Condition) Columns() []string {
	seen := make(map[string]bool)
	var collect func(*Condition)
	collect = func(n *Condition) {
		if n == nil {
			return
		}
		switch n.Kind {
		case ConditionAnd, ConditionOr:
			collect(n.Left)
			collect(n.Right)
		default:
			seen[n.Column] = true
		}
	}
	collect(c)
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	return out
}
