package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/omerghazali/vddb/internal/types"
	"github.com/omerghazali/vddb/schema"
)

func openTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := Open(t.TempDir(), Options{MaxRowsPerSegment: 3})
	require.NoError(t, err)
	return m
}

func employees() schema.Table {
	return schema.Table{Name: "Employees", Columns: []schema.Column{
		{Name: "ID", DataType: types.Int32},
		{Name: "Name", DataType: types.String},
		{Name: "Salary", DataType: types.Float32},
	}}
}

func TestCreateTableAndInsert(t *testing.T) {
	m := openTestManager(t)
	require.NoError(t, m.CreateTable(employees()))

	require.NoError(t, m.InsertRow("Employees", []types.Value{types.NewInt32(1), types.NewString("Ada"), types.NewFloat32(100)}))
	require.NoError(t, m.InsertRow("Employees", []types.Value{types.NewInt32(2), types.NewString("Bob"), types.NewFloat32(200)}))

	// Still buffered below MaxRowsPerSegment.
	ids, err := m.ReadColumn("Employees", "ID", nil)
	require.NoError(t, err)
	require.Equal(t, []types.Value{types.NewInt32(1), types.NewInt32(2)}, ids)

	tbl, ok := m.Schema().Table("Employees")
	require.True(t, ok)
	require.Equal(t, int64(2), tbl.RowCount)
}

func TestInsertFlushesAtThreshold(t *testing.T) {
	m := openTestManager(t)
	require.NoError(t, m.CreateTable(employees()))
	for i := int32(1); i <= 3; i++ {
		require.NoError(t, m.InsertRow("Employees", []types.Value{types.NewInt32(i), types.NewString("x"), types.NewFloat32(float32(i))}))
	}
	store := m.columns["Employees"]["ID"]
	require.Equal(t, 1, store.BlockCount())
	require.Empty(t, m.pending["Employees"])
}

func TestInsertRejectsDuplicateID(t *testing.T) {
	m := openTestManager(t)
	require.NoError(t, m.CreateTable(employees()))
	// Three rows reach MaxRowsPerSegment, so they are flushed and the ID
	// index records them before the duplicate arrives.
	for i := int32(1); i <= 3; i++ {
		require.NoError(t, m.InsertRow("Employees", []types.Value{types.NewInt32(i), types.NewString("x"), types.NewFloat32(float32(i))}))
	}
	err := m.InsertRow("Employees", []types.Value{types.NewInt32(1), types.NewString("Dup"), types.NewFloat32(2)})
	require.Error(t, err)
}

func TestDeleteAllClearsTable(t *testing.T) {
	m := openTestManager(t)
	require.NoError(t, m.CreateTable(employees()))
	require.NoError(t, m.InsertRow("Employees", []types.Value{types.NewInt32(1), types.NewString("Ada"), types.NewFloat32(1)}))
	require.NoError(t, m.DeleteRows("Employees", nil))

	ids, err := m.ReadColumn("Employees", "ID", nil)
	require.NoError(t, err)
	require.Empty(t, ids)

	tbl, ok := m.Schema().Table("Employees")
	require.True(t, ok)
	require.Equal(t, int64(0), tbl.RowCount)
}

type idLessThanCondition struct{ threshold int32 }

func (c idLessThanCondition) EvalBlock(columnName string, min, max types.Value) bool {
	if columnName != "ID" {
		return true
	}
	return min.I < c.threshold
}

func (c idLessThanCondition) EvalRow(columns map[string][]types.Value, i int) (bool, error) {
	return columns["ID"][i].I < c.threshold, nil
}

func (c idLessThanCondition) Columns() []string { return []string{"ID"} }

func TestDeleteWithConditionKeepsNonMatching(t *testing.T) {
	m := openTestManager(t)
	require.NoError(t, m.CreateTable(employees()))
	for i := int32(1); i <= 4; i++ {
		require.NoError(t, m.InsertRow("Employees", []types.Value{types.NewInt32(i), types.NewString("x"), types.NewFloat32(float32(i))}))
	}
	require.NoError(t, m.DeleteRows("Employees", idLessThanCondition{threshold: 3}))

	ids, err := m.ReadColumn("Employees", "ID", nil)
	require.NoError(t, err)
	require.ElementsMatch(t, []types.Value{types.NewInt32(3), types.NewInt32(4)}, ids)
}

func TestDropTableRemovesAllFiles(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(dir, Options{MaxRowsPerSegment: 3})
	require.NoError(t, err)
	require.NoError(t, m.CreateTable(employees()))
	require.NoError(t, m.InsertRow("Employees", []types.Value{types.NewInt32(1), types.NewString("Ada"), types.NewFloat32(1)}))
	require.NoError(t, m.InsertRow("Employees", []types.Value{types.NewInt32(2), types.NewString("Bob"), types.NewFloat32(2)}))
	require.NoError(t, m.InsertRow("Employees", []types.Value{types.NewInt32(3), types.NewString("Cid"), types.NewFloat32(3)}))

	require.NoError(t, m.DropTable("Employees"))

	var residual []string
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if d.Name() == "schema.json" {
			return nil
		}
		residual = append(residual, path)
		return nil
	})
	require.NoError(t, err)
	require.Empty(t, residual)
}
