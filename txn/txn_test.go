package txn

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/omerghazali/vddb/internal/types"
	"github.com/omerghazali/vddb/query"
	"github.com/omerghazali/vddb/schema"
	"github.com/omerghazali/vddb/storage"
)

func newManager(t *testing.T) (*Manager, *query.Engine, string) {
	t.Helper()
	dir := t.TempDir()
	mgr, err := storage.Open(dir, storage.Options{MaxRowsPerSegment: 3})
	require.NoError(t, err)
	engine := query.NewEngine(mgr)
	txMgr, err := Open(dir, engine, Options{})
	require.NoError(t, err)
	return txMgr, engine, dir
}

func TestCommitAppliesQueriesAndTruncatesWAL(t *testing.T) {
	txMgr, engine, dir := newManager(t)

	tx := txMgr.Begin()
	tx.AddQuery(query.Query{Kind: query.QueryCreateTable, Table: "T", TableColumns: []schema.Column{
		{Name: "ID", DataType: types.Int32},
	}})
	tx.AddQuery(query.Query{Kind: query.QueryInsert, Table: "T", Values: []types.Value{types.NewInt32(1)}})

	_, err := txMgr.Commit(tx)
	require.NoError(t, err)

	rows, err := engine.Execute(query.Query{Kind: query.QuerySelect, Table: "T", ProjectColumns: []string{"ID"}})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	info, err := os.Stat(filepath.Join(dir, "wal", "wal.log"))
	require.NoError(t, err)
	require.Zero(t, info.Size())
}

func TestRollbackLeavesStorageUntouched(t *testing.T) {
	txMgr, engine, _ := newManager(t)

	tx := txMgr.Begin()
	tx.AddQuery(query.Query{Kind: query.QueryCreateTable, Table: "T", TableColumns: []schema.Column{
		{Name: "ID", DataType: types.Int32},
	}})
	require.NoError(t, txMgr.Rollback(tx))

	_, err := engine.Execute(query.Query{Kind: query.QuerySelect, Table: "T", ProjectColumns: []string{"ID"}})
	require.Error(t, err)
}

func TestCommitFailureLeavesWALRecord(t *testing.T) {
	txMgr, _, dir := newManager(t)

	tx := txMgr.Begin()
	tx.AddQuery(query.Query{Kind: query.QueryInsert, Table: "Missing", Values: []types.Value{types.NewInt32(1)}})

	_, err := txMgr.Commit(tx)
	require.Error(t, err)

	info, err := os.Stat(filepath.Join(dir, "wal", "wal.log"))
	require.NoError(t, err)
	require.NotZero(t, info.Size())
}

func TestBeginAssignsIncreasingIDs(t *testing.T) {
	txMgr, _, _ := newManager(t)
	a := txMgr.Begin()
	b := txMgr.Begin()
	require.Less(t, a.ID, b.ID)
}
