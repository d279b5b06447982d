// Package txn implements the write-ahead log and atomic multi-statement
// transaction wrapper around the query engine: a commit serializes the
// batch to the WAL, flushes, applies every query in order, then
// truncates the WAL; a rollback only truncates the WAL and touches no
// storage state.
package txn

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/flate"

	"github.com/omerghazali/vddb/internal/metrics"
	"github.com/omerghazali/vddb/internal/types"
	"github.com/omerghazali/vddb/internal/vlog"
	"github.com/omerghazali/vddb/query"
)

// Transaction is a named, ordered batch of queries awaiting commit or
// rollback.
type Transaction struct {
	ID      uint64
	Queries []query.Query
}

// AddQuery appends a query to the batch.
func (t *Transaction) AddQuery(q query.Query) {
	t.Queries = append(t.Queries, q)
}

// Manager owns the WAL file and hands out monotonically increasing
// transaction IDs.
type Manager struct {
	mu      sync.Mutex
	engine  *query.Engine
	nextID  uint64
	wal     *os.File
	logger  vlog.Logger
	metrics *metrics.Metrics
}

// Options configures a Manager at Open time.
type Options struct {
	// Logger receives commit/rollback events. Defaults to a no-op
	// logger when unset.
	Logger vlog.Logger
	// Metrics records commit/rollback latency and error counts.
	// Defaults to an unregistered Metrics when unset.
	Metrics *metrics.Metrics
}

// Open creates (or reuses) <dataDir>/wal/wal.log and returns a Manager
// driving engine.
func Open(dataDir string, engine *query.Engine, opts Options) (*Manager, error) {
	walDir := filepath.Join(dataDir, "wal")
	if err := os.MkdirAll(walDir, 0o755); err != nil {
		return nil, errors.Wrap(types.ErrIO, err.Error())
	}
	wal, err := os.OpenFile(filepath.Join(walDir, "wal.log"), os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrap(types.ErrIO, err.Error())
	}
	logger := opts.Logger
	if logger == nil {
		logger = vlog.NewNoopLogger()
	}
	metricsRecorder := opts.Metrics
	if metricsRecorder == nil {
		metricsRecorder = metrics.New(nil)
	}
	return &Manager{engine: engine, nextID: 1, wal: wal, logger: logger, metrics: metricsRecorder}, nil
}

// Begin allocates a new empty Transaction.
func (m *Manager) Begin() Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := Transaction{ID: m.nextID}
	m.nextID++
	return tx
}

// Commit writes the transaction's queries to the WAL, flushes, then
// executes every query via the engine in order, concatenating result
// rows. On any per-query failure the WAL record is left in place for
// the operator and the error is returned. On full success the WAL is
// truncated back to empty.
func (m *Manager) Commit(tx Transaction) ([][]types.Value, error) {
	var results [][]types.Value
	err := m.metrics.Track("txn_commit", func() error {
		m.mu.Lock()
		defer m.mu.Unlock()

		framed, err := encodeTransaction(tx)
		if err != nil {
			return err
		}
		if _, err := m.wal.Write(framed); err != nil {
			return errors.Wrap(types.ErrIO, err.Error())
		}
		if err := m.wal.Sync(); err != nil {
			return errors.Wrap(types.ErrIO, err.Error())
		}

		for _, q := range tx.Queries {
			rows, err := m.engine.Execute(q)
			if err != nil {
				m.logger.Errorf("transaction %d failed, WAL record retained: %v", tx.ID, err)
				return err
			}
			results = append(results, rows...)
		}

		if err := m.wal.Truncate(0); err != nil {
			return errors.Wrap(types.ErrIO, err.Error())
		}
		if _, err := m.wal.Seek(0, os.SEEK_SET); err != nil {
			return errors.Wrap(types.ErrIO, err.Error())
		}
		m.logger.Infof("transaction %d committed, %d queries applied", tx.ID, len(tx.Queries))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Rollback discards the batch: the WAL is truncated and no query is
// ever executed, so storage is left untouched.
func (m *Manager) Rollback(tx Transaction) error {
	return m.metrics.Track("txn_rollback", func() error {
		m.mu.Lock()
		defer m.mu.Unlock()
		_ = tx
		if err := m.wal.Truncate(0); err != nil {
			return errors.Wrap(types.ErrIO, err.Error())
		}
		if _, err := m.wal.Seek(0, os.SEEK_SET); err != nil {
			return errors.Wrap(types.ErrIO, err.Error())
		}
		return nil
	})
}

// encodeTransaction JSON-encodes tx, deflates the result, and prefixes
// it with a little-endian u32 length so a future reader can frame
// consecutive records without a replay path ever needing to exist.
func encodeTransaction(tx Transaction) ([]byte, error) {
	raw, err := json.Marshal(tx)
	if err != nil {
		return nil, errors.Wrap(types.ErrSerialization, err.Error())
	}
	var buf bytes.Buffer
	zw, err := flate.NewWriter(&buf, flate.BestSpeed)
	if err != nil {
		return nil, errors.Wrap(types.ErrIO, err.Error())
	}
	if _, err := zw.Write(raw); err != nil {
		return nil, errors.Wrap(types.ErrIO, err.Error())
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(types.ErrIO, err.Error())
	}
	framed := make([]byte, 4+buf.Len())
	binary.LittleEndian.PutUint32(framed, uint32(buf.Len()))
	copy(framed[4:], buf.Bytes())
	return framed, nil
}
