package query

import (
	"github.com/omerghazali/vddb/internal/types"
	"github.com/omerghazali/vddb/schema"
)

// AggregationKind tags which reduction an Aggregation performs.
type AggregationKind int

const (
	AggregationCount AggregationKind = iota
	AggregationSum
	AggregationAvg
	AggregationMin
	AggregationMax
)

// Aggregation names a reduction and, for everything but Count, the
// column it reduces (Count always reduces the ID column).
type Aggregation struct {
	Kind   AggregationKind
	Column string
}

// QueryKind tags which operation a Query represents.
type QueryKind int

const (
	QueryCreateTable QueryKind = iota
	QueryInsert
	QuerySelect
	QuerySelectAggregate
	QueryJoin
	QueryDelete
	QueryDropTable
	QueryMakeIndex
	QueryDropIndex
	QueryStartTransaction
	QueryCommit
	QueryRollback
)

// Query is a tagged union over every operation the engine executes.
// Only the fields relevant to Kind are populated.
type Query struct {
	Kind QueryKind

	Table string

	// CreateTable
	TableColumns []schema.Column

	// Insert
	Values []types.Value

	// Select / SelectAggregate / Join / Delete
	ProjectColumns []string
	Condition      *Condition
	Aggregations   []Aggregation

	// Join
	RightTable  string
	LeftColumn  string
	RightColumn string

	// MakeIndex / DropIndex
	IndexColumn string
}
