// Package engine implements the on-disk storage engine the registry loads
// databases through: a JSON-file-per-table layout under a database
// directory, with meta.json holding schema/bookkeeping and data.json
// holding rows.
package engine

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leengari/changetrack/internal/domain/schema"
	"github.com/leengari/changetrack/internal/domain/transaction"
	"github.com/leengari/changetrack/internal/storage/metadata"
	"github.com/leengari/changetrack/internal/storage/writer"
)

// StorageEngine is the storage-layer contract the registry depends on. A
// JSON-file implementation is provided by JSONEngine; other backends can
// satisfy the same interface without touching the registry.
type StorageEngine interface {
	LoadDatabase(dbPath string) (*schema.Database, error)
	CreateDatabase(name, basePath string) error
	DropDatabase(name, basePath string) error
	RenameDatabase(oldName, newName, basePath string) error
	SaveDatabase(db *schema.Database, tx *transaction.Transaction) error
	ListDatabases(basePath string) ([]string, error)
}

// JSONEngine is the default StorageEngine: one directory per database, one
// subdirectory per table, meta.json + data.json per table.
type JSONEngine struct{}

// NewJSONEngine constructs the default JSON-file storage engine.
func NewJSONEngine() *JSONEngine {
	return &JSONEngine{}
}

// LoadDatabase reads a database's meta.json and every table subdirectory
// beneath dbPath, returning a fully populated *schema.Database.
func (e *JSONEngine) LoadDatabase(dbPath string) (*schema.Database, error) {
	metaPath := filepath.Join(dbPath, "meta.json")

	raw, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read database meta: %w", err)
	}

	var meta metadata.DatabaseMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse database meta: %w", err)
	}

	db := &schema.Database{
		Name:   meta.Name,
		Path:   dbPath,
		Tables: make(map[string]*schema.Table),
	}

	entries, err := os.ReadDir(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read database directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		tablePath := filepath.Join(dbPath, entry.Name())
		table, err := loadTable(tablePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load table %s: %w", entry.Name(), err)
		}
		db.AddTable(table)
	}

	slog.Info("database loaded",
		slog.String("name", db.Name),
		slog.String("path", dbPath),
		slog.Int("table_count", len(db.Tables)))

	return db, nil
}

func loadTable(path string) (*schema.Table, error) {
	metaPath := filepath.Join(path, "meta.json")
	dataPath := filepath.Join(path, "data.json")

	metaBytes, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, err
	}

	var meta metadata.TableMeta
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, err
	}

	tableSchema := &schema.TableSchema{
		TableName: meta.Name,
		Columns:   make([]schema.Column, 0, len(meta.Columns)),
	}
	for _, c := range meta.Columns {
		tableSchema.Columns = append(tableSchema.Columns, schema.Column{
			Name:          c.Name,
			Type:          schema.ColumnType(c.Type),
			PrimaryKey:    c.PrimaryKey,
			Unique:        c.Unique,
			NotNull:       c.NotNull,
			AutoIncrement: c.AutoIncrement,
		})
	}

	t := &schema.Table{
		Name:         meta.Name,
		Path:         path,
		Schema:       tableSchema,
		LastInsertID: meta.LastInsertID,
	}

	if _, err := os.Stat(dataPath); err == nil {
		dataBytes, err := os.ReadFile(dataPath)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(dataBytes, &t.Rows); err != nil {
			return nil, err
		}
	}

	if err := schema.BuildIndexes(t); err != nil {
		return nil, fmt.Errorf("failed to build indexes for table %s: %w", t.Name, err)
	}

	slog.Debug("table loaded", slog.String("table", t.Name), slog.Int("rows", len(t.Rows)))
	return t, nil
}

// CreateDatabase creates a new, empty database directory with a meta.json.
func (e *JSONEngine) CreateDatabase(name, basePath string) error {
	dbPath := filepath.Join(basePath, name)

	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		return fmt.Errorf("database '%s' already exists", name)
	}

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	meta := metadata.DatabaseMeta{Name: name, Version: 1, Tables: []string{}}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	metaPath := filepath.Join(dbPath, "meta.json")
	if err := os.WriteFile(metaPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write meta.json: %w", err)
	}

	slog.Info("database created", slog.String("name", name), slog.String("path", dbPath))
	return nil
}

// DropDatabase deletes a database directory and everything beneath it.
func (e *JSONEngine) DropDatabase(name, basePath string) error {
	dbPath := filepath.Join(basePath, name)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return fmt.Errorf("database '%s' does not exist", name)
	}
	if err := os.RemoveAll(dbPath); err != nil {
		return fmt.Errorf("failed to remove database directory: %w", err)
	}
	slog.Info("database dropped", slog.String("name", name))
	return nil
}

// RenameDatabase renames a database directory on disk, updating its meta.json name.
func (e *JSONEngine) RenameDatabase(oldName, newName, basePath string) error {
	oldPath := filepath.Join(basePath, oldName)
	newPath := filepath.Join(basePath, newName)

	if _, err := os.Stat(oldPath); os.IsNotExist(err) {
		return fmt.Errorf("database '%s' does not exist", oldName)
	}
	if _, err := os.Stat(newPath); !os.IsNotExist(err) {
		return fmt.Errorf("database '%s' already exists", newName)
	}

	if err := os.Rename(oldPath, newPath); err != nil {
		return fmt.Errorf("failed to rename database directory: %w", err)
	}

	metaPath := filepath.Join(newPath, "meta.json")
	raw, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("failed to read meta.json after rename: %w", err)
	}
	var meta metadata.DatabaseMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return fmt.Errorf("failed to parse meta.json after rename: %w", err)
	}
	meta.Name = newName
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal renamed metadata: %w", err)
	}
	if err := os.WriteFile(metaPath, data, 0644); err != nil {
		return fmt.Errorf("failed to rewrite meta.json after rename: %w", err)
	}

	slog.Info("database renamed", slog.String("from", oldName), slog.String("to", newName))
	return nil
}

// SaveDatabase persists every table and the database's own meta.json. The tx
// argument identifies the save for logging only; this engine commits
// synchronously and has no deferred-write concept of its own.
func (e *JSONEngine) SaveDatabase(db *schema.Database, tx *transaction.Transaction) error {
	if tx != nil {
		slog.Debug("saving database", slog.String("name", db.Name), slog.String("tx_id", tx.ID))
	}
	return writer.SaveDatabase(db)
}

// ListDatabases returns the names of every database directory under basePath.
func (e *JSONEngine) ListDatabases(basePath string) ([]string, error) {
	entries, err := os.ReadDir(basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read base path: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(basePath, entry.Name(), "meta.json")); err == nil {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}
