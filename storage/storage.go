// Package storage wires together per-column stores, secondary indexes
// and the table schema into the single StorageManager the query engine
// drives. It owns the pending-row buffer that batches inserts into
// blocks of MaxRowsPerSegment before they hit a column's append-only
// file.
package storage

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/omerghazali/vddb/block"
	"github.com/omerghazali/vddb/column"
	"github.com/omerghazali/vddb/index"
	"github.com/omerghazali/vddb/internal/metrics"
	"github.com/omerghazali/vddb/internal/types"
	"github.com/omerghazali/vddb/internal/vlog"
	"github.com/omerghazali/vddb/schema"
)

// Condition is the minimal surface the storage layer needs from a
// predicate. column.Condition covers block-level pruning; EvalRow and
// Columns support row-level filtering for DELETE. The query package's
// Condition type satisfies this structurally.
type Condition interface {
	column.Condition
	EvalRow(columns map[string][]types.Value, i int) (bool, error)
	Columns() []string
}

// indexedColumnNames returns which of a table's columns get a
// secondary index: "ID" and "Name" on first creation, but only "ID" when
// reloading an already-existing table definition (the original ID-only
// policy a reload must preserve, since "Name" indexes are rebuilt only
// at create time in the reference implementation).
func indexedColumnNames(fresh bool) map[string]bool {
	if fresh {
		return map[string]bool{"ID": true, "Name": true}
	}
	return map[string]bool{"ID": true}
}

func defaultCompression(dt types.DataType) types.CompressionType {
	if dt == types.String {
		return types.CompressionDictionary
	}
	return types.CompressionRLE
}

// Manager is the StorageManager: it owns every table's column stores
// and secondary indexes, the pending-row insert buffer, and a single
// coarse lock serializing all storage mutation and reads.
type Manager struct {
	mu sync.Mutex

	dataDir           string
	schema            *schema.Schema
	cache             *column.Cache
	physical          block.PhysicalCodec
	maxRowsPerSegment int
	logger            vlog.Logger
	metrics           *metrics.Metrics

	columns map[string]map[string]*column.Store
	indexes map[string]map[string]*index.Index

	pending map[string]map[string][]types.Value
}

// Options configures a Manager at Open time.
type Options struct {
	MaxRowsPerSegment int
	CacheCapacity     int64
	Physical          block.PhysicalCodec
	// Logger receives CreateTable/DropTable events. Defaults to a
	// no-op logger when unset.
	Logger vlog.Logger
	// Metrics records operation latency and error counts. Defaults to
	// an unregistered Metrics when unset.
	Metrics *metrics.Metrics
}

// Open loads the schema at dataDir and reconstructs every table's
// column stores and indexes (ID-only indexing for reloaded tables).
func Open(dataDir string, opts Options) (*Manager, error) {
	if opts.MaxRowsPerSegment <= 0 {
		opts.MaxRowsPerSegment = 3
	}
	for _, sub := range []string{"columns", "indexes", "metadata"} {
		if err := os.MkdirAll(filepath.Join(dataDir, sub), 0o755); err != nil {
			return nil, errors.Wrap(types.ErrIO, err.Error())
		}
	}
	sch, err := schema.Open(dataDir)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = vlog.NewNoopLogger()
	}
	metricsRecorder := opts.Metrics
	if metricsRecorder == nil {
		metricsRecorder = metrics.New(nil)
	}
	m := &Manager{
		dataDir:           dataDir,
		schema:            sch,
		cache:             column.NewCache(opts.CacheCapacity),
		physical:          opts.Physical,
		maxRowsPerSegment: opts.MaxRowsPerSegment,
		logger:            logger,
		metrics:           metricsRecorder,
		columns:           make(map[string]map[string]*column.Store),
		indexes:           make(map[string]map[string]*index.Index),
		pending:           make(map[string]map[string][]types.Value),
	}
	for _, table := range sch.Tables {
		if err := m.openTable(table, indexedColumnNames(false)); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Manager) openTable(table schema.Table, indexed map[string]bool) error {
	tableCols := make(map[string]*column.Store, len(table.Columns))
	tableIdx := make(map[string]*index.Index)
	for _, col := range table.Columns {
		store, err := column.Open(m.dataDir, col, m.physical, m.cache)
		if err != nil {
			return err
		}
		tableCols[col.Name] = store
		if indexed[col.Name] {
			idxPath := filepath.Join(m.dataDir, "indexes", table.Name+"_"+col.Name+".idx")
			idx, err := index.Open(idxPath, col.DataType)
			if err != nil {
				return err
			}
			tableIdx[col.Name] = idx
		}
	}
	m.columns[table.Name] = tableCols
	m.indexes[table.Name] = tableIdx
	return nil
}

func (m *Manager) DataDir() string { return m.dataDir }
func (m *Manager) Schema() *schema.Schema { return m.schema }

// ColumnBlockSizes reports the serialized size of every on-disk block
// for tableName.columnName, in append order, for read-only diagnostics
// (cmd/vddbstat).
func (m *Manager) ColumnBlockSizes(tableName, columnName string) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	store, ok := m.columns[tableName][columnName]
	if !ok {
		return nil, errors.Wrapf(types.ErrInvalidData, "column %s.%s not found", tableName, columnName)
	}
	return store.BlockSizes(), nil
}

// CreateTable registers a new table, opens its column stores, and
// indexes its ID and Name columns (if present).
func (m *Manager) CreateTable(table schema.Table) error {
	return m.metrics.Track("create_table", func() error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, exists := m.schema.Table(table.Name); exists {
			return errors.Wrapf(types.ErrInvalidData, "table %s already exists", table.Name)
		}
		if err := m.openTable(table, indexedColumnNames(true)); err != nil {
			return err
		}
		if err := m.schema.AddTable(table); err != nil {
			return err
		}
		m.logger.Infof("created table %s with %d columns", table.Name, len(table.Columns))
		return nil
	})
}

func (m *Manager) flushPending(table schema.Table) error {
	tablePending := m.pending[table.Name]
	delete(m.pending, table.Name)
	tableCols := m.columns[table.Name]
	tableIdx := m.indexes[table.Name]
	for _, col := range table.Columns {
		values := tablePending[col.Name]
		if len(values) == 0 {
			continue
		}
		store, ok := tableCols[col.Name]
		if !ok {
			return errors.Wrapf(types.ErrInvalidData, "column %s.%s not found", table.Name, col.Name)
		}
		offset, err := store.Append(values, defaultCompression(col.DataType))
		if err != nil {
			return err
		}
		if idx, ok := tableIdx[col.Name]; ok {
			if err := idx.Append(values, uint64(offset)); err != nil {
				return err
			}
		}
	}
	return nil
}

// InsertRow validates row against the table schema, rejects duplicate
// IDs via the ID index, buffers the row, flushing to the column stores
// once the buffer reaches MaxRowsPerSegment, and increments the
// table's persisted row count unconditionally. The ID index only holds
// flushed rows, so an ID that is still in the pending buffer is not
// detected as a duplicate.
func (m *Manager) InsertRow(tableName string, row []types.Value) error {
	return m.metrics.Track("insert_row", func() error {
		m.mu.Lock()
		defer m.mu.Unlock()

		table, ok := m.schema.Table(tableName)
		if !ok {
			return errors.Wrapf(types.ErrInvalidData, "table %s not found", tableName)
		}
		if err := schema.ValidateRow(table, row); err != nil {
			return err
		}

		if idIndex, ok := m.indexes[tableName]["ID"]; ok && len(row) > 0 {
			existing, err := idIndex.Lookup(row[0])
			if err != nil {
				return err
			}
			if len(existing) > 0 {
				return errors.Wrapf(types.ErrInvalidData, "duplicate ID: %v", row[0])
			}
		}

		tablePending, ok := m.pending[tableName]
		if !ok {
			tablePending = make(map[string][]types.Value)
			m.pending[tableName] = tablePending
		}
		for i, col := range table.Columns {
			tablePending[col.Name] = append(tablePending[col.Name], row[i])
		}

		if len(tablePending[table.Columns[0].Name]) >= m.maxRowsPerSegment {
			if err := m.flushPending(table); err != nil {
				return err
			}
		}

		return m.schema.SetRowCount(tableName, table.RowCount+1)
	})
}

// ReadColumn returns a column's values restricted by block-level
// pruning under cond (nil reads every stored block), with any
// not-yet-flushed pending values appended.
func (m *Manager) ReadColumn(tableName, columnName string, cond Condition) ([]types.Value, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readColumnLocked(tableName, columnName, cond)
}

func (m *Manager) readColumnLocked(tableName, columnName string, cond Condition) ([]types.Value, error) {
	store, ok := m.columns[tableName][columnName]
	if !ok {
		return nil, errors.Wrapf(types.ErrInvalidData, "column %s.%s not found", tableName, columnName)
	}
	var blockCond column.Condition
	if cond != nil {
		blockCond = cond
	}
	values, err := store.Read(blockCond)
	if err != nil {
		return nil, err
	}
	if pending := m.pending[tableName][columnName]; len(pending) > 0 {
		values = append(values, pending...)
	}
	return values, nil
}

// DeleteRows removes rows matching cond (every row if cond is nil) by
// reading every column fully, computing which row indices survive,
// clearing each column store and index, and re-appending the
// surviving values.
func (m *Manager) DeleteRows(tableName string, cond Condition) error {
	return m.metrics.Track("delete_rows", func() error {
		return m.deleteRows(tableName, cond)
	})
}

func (m *Manager) deleteRows(tableName string, cond Condition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	table, ok := m.schema.Table(tableName)
	if !ok {
		return errors.Wrapf(types.ErrInvalidData, "table %s not found", tableName)
	}
	tableCols := m.columns[tableName]
	tableIdx := m.indexes[tableName]

	if cond == nil {
		for _, col := range table.Columns {
			if err := tableCols[col.Name].Clear(); err != nil {
				return err
			}
			if idx, ok := tableIdx[col.Name]; ok {
				if err := idx.Clear(); err != nil {
					return err
				}
			}
		}
		delete(m.pending, tableName)
		return m.schema.SetRowCount(tableName, 0)
	}

	columnValues := make(map[string][]types.Value, len(table.Columns))
	minRowCount := -1
	for _, col := range table.Columns {
		values, err := m.readColumnLocked(tableName, col.Name, nil)
		if err != nil {
			return err
		}
		columnValues[col.Name] = values
		if minRowCount == -1 || len(values) < minRowCount {
			minRowCount = len(values)
		}
	}
	for _, name := range cond.Columns() {
		if _, ok := columnValues[name]; ok {
			continue
		}
		values, err := m.readColumnLocked(tableName, name, nil)
		if err != nil {
			return err
		}
		columnValues[name] = values
		if len(values) < minRowCount {
			minRowCount = len(values)
		}
	}
	if minRowCount < 0 {
		minRowCount = 0
	}

	var keepIndices []int
	for i := 0; i < minRowCount; i++ {
		matched, err := cond.EvalRow(columnValues, i)
		if err != nil {
			return err
		}
		if !matched {
			keepIndices = append(keepIndices, i)
		}
	}

	for _, col := range table.Columns {
		values := columnValues[col.Name]
		filtered := make([]types.Value, 0, len(keepIndices))
		for _, i := range keepIndices {
			if i < len(values) {
				filtered = append(filtered, values[i])
			}
		}
		store := tableCols[col.Name]
		if err := store.Clear(); err != nil {
			return err
		}
		if len(filtered) > 0 {
			if _, err := store.Append(filtered, defaultCompression(col.DataType)); err != nil {
				return err
			}
		}
		if idx, ok := tableIdx[col.Name]; ok {
			if err := idx.Clear(); err != nil {
				return err
			}
			if len(filtered) > 0 {
				if err := idx.Append(filtered, 0); err != nil {
					return err
				}
			}
		}
	}
	delete(m.pending, tableName)
	return m.schema.SetRowCount(tableName, int64(len(keepIndices)))
}

// SetIndex installs idx as the secondary index for tableName.columnName,
// used by MAKE INDEX after the index has been populated from existing
// data.
func (m *Manager) SetIndex(tableName, columnName string, idx *index.Index) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schema.Table(tableName); !ok {
		return errors.Wrapf(types.ErrInvalidData, "table %s not found", tableName)
	}
	tableIdx, ok := m.indexes[tableName]
	if !ok {
		tableIdx = make(map[string]*index.Index)
		m.indexes[tableName] = tableIdx
	}
	tableIdx[columnName] = idx
	return nil
}

// RemoveIndex detaches and returns the secondary index for
// tableName.columnName, used by DROP INDEX.
func (m *Manager) RemoveIndex(tableName, columnName string) (*index.Index, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tableIdx, ok := m.indexes[tableName]
	if !ok {
		return nil, false
	}
	idx, ok := tableIdx[columnName]
	if !ok {
		return nil, false
	}
	delete(tableIdx, columnName)
	return idx, true
}

// DropTable removes every column file, index file, and metadata file
// belonging to a table, then removes its schema entry.
func (m *Manager) DropTable(tableName string) error {
	return m.metrics.Track("drop_table", func() error {
		m.mu.Lock()
		defer m.mu.Unlock()

		tableDef, ok := m.schema.Table(tableName)
		if !ok {
			return errors.Wrapf(types.ErrInvalidData, "table %s not found", tableName)
		}

		tableCols, ok := m.columns[tableName]
		if ok {
			for _, store := range tableCols {
				if err := store.Remove(); err != nil {
					return err
				}
			}
		}
		delete(m.columns, tableName)

		tableIdx, ok := m.indexes[tableName]
		if ok {
			for _, idx := range tableIdx {
				if err := idx.Remove(); err != nil {
					return err
				}
			}
		}
		delete(m.indexes, tableName)
		// Index files that are not open in this process (for example the
		// Name index of a table reloaded with ID-only indexing) are
		// removed by path.
		for _, col := range tableDef.Columns {
			idxPath := filepath.Join(m.dataDir, "indexes", tableName+"_"+col.Name+".idx")
			if err := os.Remove(idxPath); err != nil && !os.IsNotExist(err) {
				return errors.Wrap(types.ErrIO, err.Error())
			}
		}

		delete(m.pending, tableName)
		if err := m.schema.RemoveTable(tableName); err != nil {
			return err
		}
		m.logger.Infof("dropped table %s", tableName)
		return nil
	})
}
