// Package schema holds table/column definitions and their persistent
// JSON representation.
package schema

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/omerghazali/vddb/internal/types"
)

// Column is a positional {name, data type} pair; a Table's column
// order is the row layout every inserted row must follow.
type Column struct {
	Name     string
	DataType types.DataType
}

// Table is a named, ordered list of columns plus its current row
// count.
type Table struct {
	Name      string
	Columns   []Column
	RowCount  int64
}

// Column looks up a column definition by name.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Schema is the mapping from table name to Table, plus the absolute
// data directory it lives under. It is persisted as a single JSON
// document at <data_dir>/schema.json.
type Schema struct {
	DataDir string
	Tables  map[string]Table

	path string
}

// Open loads the schema at dataDir/schema.json, creating an empty one
// if the file does not yet exist (first open of a data directory).
func Open(dataDir string) (*Schema, error) {
	path := filepath.Join(dataDir, "schema.json")
	s := &Schema{DataDir: dataDir, Tables: make(map[string]Table), path: path}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, errors.Wrapf(types.ErrIO, "reading schema %s: %v", path, err)
	}
	var onDisk struct {
		DataDir string
		Tables  map[string]Table
	}
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		return nil, errors.Wrapf(types.ErrSerialization, "parsing schema %s: %v", path, err)
	}
	s.DataDir = onDisk.DataDir
	if onDisk.Tables != nil {
		s.Tables = onDisk.Tables
	}
	return s, nil
}

// Save persists the schema as JSON.
func (s *Schema) Save() error {
	raw, err := json.MarshalIndent(struct {
		DataDir string
		Tables  map[string]Table
	}{s.DataDir, s.Tables}, "", "  ")
	if err != nil {
		return errors.Wrap(types.ErrSerialization, err.Error())
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return errors.Wrapf(types.ErrIO, "writing schema %s: %v", s.path, err)
	}
	return nil
}

// AddTable registers a new table definition. Fails with InvalidData if
// a table of that name already exists.
func (s *Schema) AddTable(t Table) error {
	if _, exists := s.Tables[t.Name]; exists {
		return errors.Wrapf(types.ErrInvalidData, "table %s already exists", t.Name)
	}
	s.Tables[t.Name] = t
	return s.Save()
}

// Table looks up a table definition by name.
func (s *Schema) Table(name string) (Table, bool) {
	t, ok := s.Tables[name]
	return t, ok
}

// SetRowCount updates a table's row count in place and persists.
func (s *Schema) SetRowCount(name string, count int64) error {
	t, ok := s.Tables[name]
	if !ok {
		return errors.Wrapf(types.ErrInvalidData, "table %s not found", name)
	}
	t.RowCount = count
	s.Tables[name] = t
	return s.Save()
}

// RemoveTable deletes a table's schema entry and persists.
func (s *Schema) RemoveTable(name string) error {
	if _, ok := s.Tables[name]; !ok {
		return errors.Wrapf(types.ErrInvalidData, "table %s not found", name)
	}
	delete(s.Tables, name)
	return s.Save()
}

// ValidateRow checks a candidate row against a table's column
// definitions: length must match, and every value's type must match
// its positional column.
func ValidateRow(t Table, row []types.Value) error {
	if len(row) != len(t.Columns) {
		return errors.Wrapf(types.ErrInvalidData, "table %s expects %d columns, got %d", t.Name, len(t.Columns), len(row))
	}
	for i, col := range t.Columns {
		if row[i].Type != col.DataType {
			return errors.Wrapf(types.ErrTypeMismatch, "table %s column %s: expected %s, got %s", t.Name, col.Name, col.DataType, row[i].Type)
		}
	}
	return nil
}
