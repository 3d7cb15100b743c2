package schema

import (
	"fmt"
	"log/slog"

	"github.com/leengari/changetrack/internal/domain/data"
	"github.com/leengari/changetrack/internal/domain/errors"
)

// BuildIndexes rebuilds every primary/unique-column index for a table from
// its current rows. Called after load, after WAL replay, and whenever a
// bulk mutation makes incremental index maintenance impractical.
func BuildIndexes(table *Table) error {
	table.Lock()
	defer table.Unlock()

	table.Indexes = make(map[string]*data.Index)

	for _, col := range table.Schema.Columns {
		if !col.PrimaryKey && !col.Unique {
			continue
		}

		idx := &data.Index{
			Column: col.Name,
			Data:   make(map[interface{}][]int),
			Unique: col.PrimaryKey || col.Unique,
		}

		for rowPos, row := range table.Rows {
			val, ok := row.Data[col.Name]
			if !ok {
				if col.NotNull {
					return errors.NewNotNullViolation(table.Name, col.Name, rowPos)
				}
				continue
			}

			if col.AutoIncrement && col.PrimaryKey {
				switch v := val.(type) {
				case float64:
					val = int64(v) // JSON numbers decode as float64
				case int64, int:
					// already usable
				default:
					return fmt.Errorf("invalid auto-increment value in %s row %d: %v (want integer)",
						col.Name, rowPos, val)
				}
			}

			idx.Data[val] = append(idx.Data[val], rowPos)

			if idx.Unique && len(idx.Data[val]) > 1 {
				return errors.NewUniqueViolation(table.Name, col.Name, val, idx.Data[val])
			}
		}

		table.Indexes[col.Name] = idx

		slog.Debug("index built",
			slog.String("table", table.Name),
			slog.String("column", col.Name),
			slog.Int("unique_values", len(idx.Data)),
			slog.Bool("unique_constraint", idx.Unique))
	}

	return nil
}

// BuildDatabaseIndexes rebuilds indexes for every table in db.
func BuildDatabaseIndexes(db *Database) error {
	for name, table := range db.Tables {
		if err := BuildIndexes(table); err != nil {
			return fmt.Errorf("failed to build indexes for table %s: %w", name, err)
		}
	}
	return nil
}
