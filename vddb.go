// Package vddb is a disk-backed columnar analytical database: typed,
// compressed, append-only column stores; block-level predicate
// pruning; secondary indexes; and atomic multi-statement transactions
// backed by a write-ahead log.
package vddb

import (
	"github.com/omerghazali/vddb/block"
	"github.com/omerghazali/vddb/internal/metrics"
	"github.com/omerghazali/vddb/internal/types"
	"github.com/omerghazali/vddb/internal/vlog"
	"github.com/omerghazali/vddb/query"
	"github.com/omerghazali/vddb/schema"
	"github.com/omerghazali/vddb/storage"
	"github.com/omerghazali/vddb/txn"
)

// Re-exported value-domain types so callers never need to import
// internal/types directly.
type (
	Value           = types.Value
	DataType        = types.DataType
	CompressionType = types.CompressionType
	Column          = schema.Column
	Table           = schema.Table
)

const (
	Int32   = types.Int32
	Float32 = types.Float32
	String  = types.String
)

var (
	NewInt32   = types.NewInt32
	NewFloat32 = types.NewFloat32
	NewString  = types.NewString
)

// Re-exported error kinds every public method may wrap and return.
var (
	ErrSerialization = types.ErrSerialization
	ErrTypeMismatch  = types.ErrTypeMismatch
	ErrInvalidData   = types.ErrInvalidData
	ErrIO            = types.ErrIO
	ErrQuery         = types.ErrQuery
)

// Options configures a DB at Open time. The zero value is not valid;
// Open starts from its built-in defaults and applies each Option over
// them.
type Options struct {
	// MaxRowsPerSegment bounds how many pending rows a table buffers
	// before they are flushed into a new on-disk block.
	MaxRowsPerSegment int
	// BufferCacheBytes bounds the shared (column, offset) -> bytes LRU
	// cache. Zero disables caching.
	BufferCacheBytes int64
	// PhysicalCompression is the page-level codec wrapping every
	// logically-encoded block on disk.
	PhysicalCompression block.PhysicalCodec
	// Logger receives table lifecycle and transaction events. Defaults
	// to a no-op logger when unset.
	Logger vlog.Logger
	// Metrics records operation latency and error counts across the
	// storage and transaction layers. Defaults to an unregistered
	// Metrics when unset.
	Metrics *metrics.Metrics
}

// Option mutates an Options value.
type Option func(*Options)

// WithMaxRowsPerSegment overrides the default segment flush threshold.
func WithMaxRowsPerSegment(n int) Option {
	return func(o *Options) { o.MaxRowsPerSegment = n }
}

// WithBufferCacheBytes overrides the default buffer cache capacity.
func WithBufferCacheBytes(n int64) Option {
	return func(o *Options) { o.BufferCacheBytes = n }
}

// WithPhysicalCompression overrides the default page-level codec.
func WithPhysicalCompression(codec block.PhysicalCodec) Option {
	return func(o *Options) { o.PhysicalCompression = codec }
}

// WithLogger overrides the default no-op logger.
func WithLogger(logger vlog.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

// WithMetrics overrides the default unregistered Metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Options) { o.Metrics = m }
}

func defaultOptions() Options {
	return Options{
		MaxRowsPerSegment:   3,
		BufferCacheBytes:    64 << 20,
		PhysicalCompression: block.PhysicalSnappy,
		Logger:              vlog.NewNoopLogger(),
		Metrics:             metrics.New(nil),
	}
}

// DB is a single opened database: a storage manager backed by
// dataDir, the query engine driving it, and the transaction manager
// wrapping the engine in a write-ahead log.
type DB struct {
	storage *storage.Manager
	engine  *query.Engine
	txn     *txn.Manager
}

// Open opens (or creates) a database rooted at dataDir.
func Open(dataDir string, opts ...Option) (*DB, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	mgr, err := storage.Open(dataDir, storage.Options{
		MaxRowsPerSegment: options.MaxRowsPerSegment,
		CacheCapacity:     options.BufferCacheBytes,
		Physical:          options.PhysicalCompression,
		Logger:            options.Logger,
		Metrics:           options.Metrics,
	})
	if err != nil {
		return nil, err
	}
	engine := query.NewEngine(mgr)
	txMgr, err := txn.Open(dataDir, engine, txn.Options{
		Logger:  options.Logger,
		Metrics: options.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &DB{storage: mgr, engine: engine, txn: txMgr}, nil
}

// Execute runs a single query outside of any explicit transaction.
func (db *DB) Execute(q query.Query) ([][]Value, error) {
	return db.engine.Execute(q)
}

// Begin starts a new transaction.
func (db *DB) Begin() txn.Transaction {
	return db.txn.Begin()
}

// Commit durably applies every query queued on tx.
func (db *DB) Commit(tx txn.Transaction) ([][]Value, error) {
	return db.txn.Commit(tx)
}

// Rollback discards tx without applying any of its queries.
func (db *DB) Rollback(tx txn.Transaction) error {
	return db.txn.Rollback(tx)
}

// Schema exposes the database's table definitions.
func (db *DB) Schema() *schema.Schema {
	return db.storage.Schema()
}

// ColumnBlockSizes reports the serialized size of every on-disk block
// for table.column, in append order, for read-only diagnostics.
func (db *DB) ColumnBlockSizes(table, column string) ([]int64, error) {
	return db.storage.ColumnBlockSizes(table, column)
}
