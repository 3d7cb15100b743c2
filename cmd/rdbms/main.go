package main

import (
	"encoding/hex"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/leengari/changetrack/internal/changeset"
	"github.com/leengari/changetrack/internal/domain/data"
	"github.com/leengari/changetrack/internal/domain/schema"
	"github.com/leengari/changetrack/internal/domain/transaction"
	"github.com/leengari/changetrack/internal/logging"
	"github.com/leengari/changetrack/internal/storage/engine"
	"github.com/leengari/changetrack/internal/storage/manager"
)

func main() {
	basePath := flag.String("base", "databases", "base directory for databases")
	dbName := flag.String("db", "demo", "database name to create/load")
	flag.Parse()

	logger, closeFn := logging.SetupLogger()
	defer closeFn()
	slog.SetDefault(logger)
	time.Sleep(1 * time.Second)
	slog.Info("Starting RDBMS application...")

	if err := os.MkdirAll(*basePath, 0755); err != nil {
		slog.Error("failed to create base directory", "error", err)
		os.Exit(1)
	}

	registry := manager.NewRegistry(*basePath, engine.NewJSONEngine())
	defer registry.CloseAll()

	if err := registry.Create(*dbName); err != nil {
		slog.Info("database already exists, continuing", "database", *dbName, "detail", err)
	}

	db, _, err := registry.GetWithWAL(*dbName)
	if err != nil {
		slog.Error("failed to load database", "error", err)
		os.Exit(1)
	}

	eventsTable := ensureEventsTable(db)

	slog.Info("recording a transaction with a change-capture session")
	if err := recordAndReplay(db, eventsTable); err != nil {
		slog.Error("change-capture demo failed", "error", err)
		os.Exit(1)
	}

	tx := transaction.NewTransaction()
	defer tx.Close()
	registry.SaveAll(tx)

	slog.Info("Application ready!")
}

// ensureEventsTable attaches (or constructs, on first run) an "events"
// table with a single-column integer primary key, the shape a
// change-capture session requires to derive a rowid.
func ensureEventsTable(db *schema.Database) *schema.Table {
	if t, ok := db.Tables[eventsTableName]; ok {
		return t
	}

	t := &schema.Table{
		Name: eventsTableName,
		Schema: &schema.TableSchema{
			TableName: eventsTableName,
			Columns: []schema.Column{
				{Name: "id", Type: schema.ColumnTypeInt, PrimaryKey: true, NotNull: true},
				{Name: "payload", Type: schema.ColumnTypeText},
			},
		},
		Indexes: make(map[string]*data.Index),
	}
	db.AddTable(t)
	if err := schema.BuildIndexes(t); err != nil {
		slog.Error("failed to build indexes for new table", "table", eventsTableName, "error", err)
	}
	return t
}

const eventsTableName = "events"

// recordAndReplay inserts one row and then updates it under a Session,
// encodes the resulting changeset, inverts it, and applies the
// inverse back onto the table — demonstrating the full capture/encode/
// invert/apply round trip end to end.
func recordAndReplay(db *schema.Database, t *schema.Table) error {
	sess := changeset.NewSession(db, db.Name)
	defer sess.Close()

	if err := sess.Attach(eventsTableName); err != nil {
		return err
	}

	if err := t.Insert(data.NewRow(map[string]interface{}{
		"id":      int64(1),
		"payload": "created",
	}), nil); err != nil {
		return err
	}

	if _, err := t.Update(func(r data.Row) bool {
		id, _ := r.Data["id"].(int64)
		return id == 1
	}, data.NewRow(map[string]interface{}{"payload": "updated"}), nil); err != nil {
		return err
	}

	if err := sess.Err(); err != nil {
		return err
	}

	cs, err := sess.Changeset()
	if err != nil {
		return err
	}
	slog.Info("captured changeset", "bytes", len(cs), "hex", hex.EncodeToString(cs))

	inverse, err := changeset.Invert(cs)
	if err != nil {
		return err
	}
	slog.Info("inverted changeset", "bytes", len(inverse))

	if err := changeset.Apply(db, inverse, changeset.DefaultConflictHandler); err != nil {
		return err
	}

	slog.Info("round trip complete", "row_count", len(t.SelectAll(nil)))
	return nil
}
