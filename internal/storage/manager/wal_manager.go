package manager

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/leengari/changetrack/internal/domain/data"
	"github.com/leengari/changetrack/internal/domain/schema"
	"github.com/leengari/changetrack/internal/domain/transaction"
	"github.com/leengari/changetrack/internal/wal"
)

// WALManager bridges the WAL package with the storage layer
// It handles transaction lifecycle and logging operations
type WALManager struct {
	wal     *wal.WAL
	dbPath  string
	dbName  string
	enabled bool
}

// NewWALManager creates a new WAL manager for a database
// If enabled is false, all operations become no-ops
func NewWALManager(dbPath, dbName string, enabled bool) (*WALManager, error) {
	if !enabled {
		return &WALManager{
			dbPath:  dbPath,
			dbName:  dbName,
			enabled: false,
		}, nil
	}

	walPath := filepath.Join(dbPath, dbName+".wal")
	w, err := wal.NewWAL(walPath, dbName)
	if err != nil {
		return nil, fmt.Errorf("failed to create WAL: %w", err)
	}

	slog.Info("WAL initialized", "database", dbName, "path", walPath)

	return &WALManager{
		wal:     w,
		dbPath:  dbPath,
		dbName:  dbName,
		enabled: true,
	}, nil
}

// IsEnabled returns whether WAL is enabled
func (m *WALManager) IsEnabled() bool {
	return m.enabled && m.wal != nil
}

// BeginTransaction logs a transaction begin to WAL
func (m *WALManager) BeginTransaction(tx *transaction.Transaction) error {
	if !m.IsEnabled() {
		return nil
	}

	lsn, err := m.wal.BeginTransaction(tx.TxID)
	if err != nil {
		return fmt.Errorf("WAL BeginTransaction failed: %w", err)
	}

	slog.Debug("WAL: BeginTransaction", "txID", tx.TxID, "lsn", lsn)
	return nil
}

// LogInsert logs an insert operation to WAL
func (m *WALManager) LogInsert(tx *transaction.Transaction, table *schema.Table, row data.Row) error {
	if !m.IsEnabled() {
		return nil
	}

	// Extract primary key
	key, err := table.GetPrimaryKeyValue(row)
	if err != nil {
		return fmt.Errorf("failed to get primary key for WAL: %w", err)
	}

	// Serialize row to JSON
	value, err := row.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize row for WAL: %w", err)
	}

	lsn, err := m.wal.LogInsert(tx.TxID, table.Name, key, value)
	if err != nil {
		return fmt.Errorf("WAL LogInsert failed: %w", err)
	}

	slog.Debug("WAL: LogInsert", "txID", tx.TxID, "table", table.Name, "key", key, "lsn", lsn)
	return nil
}

// LogUpdate logs an update operation to WAL
func (m *WALManager) LogUpdate(tx *transaction.Transaction, table *schema.Table, key string, oldRow, newRow data.Row) error {
	if !m.IsEnabled() {
		return nil
	}

	oldValue, err := oldRow.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize old row for WAL: %w", err)
	}

	newValue, err := newRow.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize new row for WAL: %w", err)
	}

	lsn, err := m.wal.LogUpdate(tx.TxID, table.Name, key, oldValue, newValue)
	if err != nil {
		return fmt.Errorf("WAL LogUpdate failed: %w", err)
	}

	slog.Debug("WAL: LogUpdate", "txID", tx.TxID, "table", table.Name, "key", key, "lsn", lsn)
	return nil
}

// LogDelete logs a delete operation to WAL
func (m *WALManager) LogDelete(tx *transaction.Transaction, table *schema.Table, key string, oldRow data.Row) error {
	if !m.IsEnabled() {
		return nil
	}

	oldValue, err := oldRow.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize old row for WAL: %w", err)
	}

	lsn, err := m.wal.LogDelete(tx.TxID, table.Name, key, oldValue)
	if err != nil {
		return fmt.Errorf("WAL LogDelete failed: %w", err)
	}

	slog.Debug("WAL: LogDelete", "txID", tx.TxID, "table", table.Name, "key", key, "lsn", lsn)
	return nil
}

// Commit commits a transaction and fsyncs the WAL
func (m *WALManager) Commit(tx *transaction.Transaction) error {
	if !m.IsEnabled() {
		return nil
	}

	lsn, err := m.wal.Commit(tx.TxID)
	if err != nil {
		return fmt.Errorf("WAL Commit failed: %w", err)
	}

	slog.Debug("WAL: Commit", "txID", tx.TxID, "lsn", lsn)
	return nil
}

// Abort aborts a transaction
func (m *WALManager) Abort(tx *transaction.Transaction) error {
	if !m.IsEnabled() {
		return nil
	}

	lsn, err := m.wal.Abort(tx.TxID)
	if err != nil {
		return fmt.Errorf("WAL Abort failed: %w", err)
	}

	slog.Debug("WAL: Abort", "txID", tx.TxID, "lsn", lsn)
	return nil
}

// WriteCheckpoint writes a checkpoint record to WAL
// This should be called after successfully persisting all tables to JSON
func (m *WALManager) WriteCheckpoint(db *schema.Database) error {
	if !m.IsEnabled() {
		return nil
	}

	// Calculate checksums for all tables
	tables := make([]wal.TableChecksum, 0, len(db.Tables))
	for name, table := range db.Tables {
		dataPath := filepath.Join(table.Path, "data.json")
		metaPath := filepath.Join(table.Path, "meta.json")

		dataCRC, err := wal.CalculateFileCRC32(dataPath)
		if err != nil {
			slog.Warn("Failed to calculate data.json CRC", "table", name, "error", err)
			continue
		}

		metaCRC, err := wal.CalculateFileCRC32(metaPath)
		if err != nil {
			slog.Warn("Failed to calculate meta.json CRC", "table", name, "error", err)
			continue
		}

		tables = append(tables, wal.TableChecksum{
			TableName: name,
			DataCRC32: dataCRC,
			MetaCRC32: metaCRC,
		})
	}

	// Calculate database meta CRC
	dbMetaPath := filepath.Join(db.Path, "meta.json")
	dbCRC, err := wal.CalculateFileCRC32(dbMetaPath)
	if err != nil {
		slog.Warn("Failed to calculate database meta.json CRC", "error", err)
		dbCRC = 0
	}

	lsn, err := m.wal.WriteCheckpoint(tables, dbCRC)
	if err != nil {
		return fmt.Errorf("WAL WriteCheckpoint failed: %w", err)
	}

	slog.Info("WAL: Checkpoint written", "database", m.dbName, "tables", len(tables), "lsn", lsn)
	return nil
}

// Recover performs WAL recovery and returns operations to replay
func (m *WALManager) Recover() (*wal.RecoveryResult, error) {
	if !m.IsEnabled() {
		return nil, nil
	}

	walPath := filepath.Join(m.dbPath, m.dbName+".wal")
	recoveryMgr, err := wal.NewRecoveryManager(walPath, m.dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create recovery manager: %w", err)
	}
	defer recoveryMgr.Close()

	result, err := recoveryMgr.Recover()
	if err != nil {
		return nil, fmt.Errorf("WAL recovery failed: %w", err)
	}

	slog.Info("WAL: Recovery complete",
		"database", m.dbName,
		"records_scanned", result.RecordsScanned,
		"txns_replayed", result.TransactionsReplay,
		"txns_skipped", result.TransactionsSkipped,
	)

	return result, nil
}

// Sync forces an fsync on the WAL file
func (m *WALManager) Sync() error {
	if !m.IsEnabled() {
		return nil
	}
	return m.wal.Sync()
}

// Close closes the WAL file
func (m *WALManager) Close() error {
	if !m.IsEnabled() {
		return nil
	}
	slog.Info("WAL: Closing", "database", m.dbName)
	return m.wal.Close()
}

// DatabaseReplayTarget implements wal.ReplayTarget for replaying operations
type DatabaseReplayTarget struct {
	db *schema.Database
}

// NewDatabaseReplayTarget creates a replay target for a database
func NewDatabaseReplayTarget(db *schema.Database) *DatabaseReplayTarget {
	return &DatabaseReplayTarget{db: db}
}

// ReplayInsert applies an insert operation during recovery
func (t *DatabaseReplayTarget) ReplayInsert(tableName, key string, value json.RawMessage) error {
	table, ok := t.db.Tables[tableName]
	if !ok {
		slog.Warn("Replay: table not found, skipping insert", "table", tableName)
		return nil
	}

	row, err := data.FromJSON(value)
	if err != nil {
		return fmt.Errorf("failed to deserialize row: %w", err)
	}

	// Use a nil transaction since we're replaying
	// Insert directly to rows without full validation (data already validated when originally inserted)
	table.Lock()
	defer table.Unlock()

	table.Rows = append(table.Rows, row)
	table.MarkDirtyUnsafe()

	slog.Debug("Replay: Insert", "table", tableName, "key", key)
	return nil
}

// ReplayUpdate applies an update operation during recovery
func (t *DatabaseReplayTarget) ReplayUpdate(tableName, key string, newValue json.RawMessage) error {
	table, ok := t.db.Tables[tableName]
	if !ok {
		slog.Warn("Replay: table not found, skipping update", "table", tableName)
		return nil
	}

	newRow, err := data.FromJSON(newValue)
	if err != nil {
		return fmt.Errorf("failed to deserialize row: %w", err)
	}

	table.Lock()
	defer table.Unlock()

	// Find the row by primary key and update it
	pkCol := table.Schema.GetPrimaryKeyColumn()
	if pkCol == nil {
		return fmt.Errorf("table %s has no primary key", tableName)
	}

	for i, row := range table.Rows {
		if pkVal, exists := row.Data[pkCol.Name]; exists {
			pkStr := fmt.Sprintf("%v", pkVal)
			if pkStr == key {
				table.Rows[i] = newRow
				table.MarkDirtyUnsafe()
				slog.Debug("Replay: Update", "table", tableName, "key", key)
				return nil
			}
		}
	}

	slog.Warn("Replay: row not found for update", "table", tableName, "key", key)
	return nil
}

// ReplayDelete applies a delete operation during recovery
func (t *DatabaseReplayTarget) ReplayDelete(tableName, key string) error {
	table, ok := t.db.Tables[tableName]
	if !ok {
		slog.Warn("Replay: table not found, skipping delete", "table", tableName)
		return nil
	}

	table.Lock()
	defer table.Unlock()

	pkCol := table.Schema.GetPrimaryKeyColumn()
	if pkCol == nil {
		return fmt.Errorf("table %s has no primary key", tableName)
	}

	// Find and remove the row
	for i, row := range table.Rows {
		if pkVal, exists := row.Data[pkCol.Name]; exists {
			pkStr := fmt.Sprintf("%v", pkVal)
			if pkStr == key {
				table.Rows = append(table.Rows[:i], table.Rows[i+1:]...)
				table.MarkDirtyUnsafe()
				slog.Debug("Replay: Delete", "table", tableName, "key", key)
				return nil
			}
		}
	}

	slog.Warn("Replay: row not found for delete", "table", tableName, "key", key)
	return nil
}
