package changeset

import (
	"testing"

	"github.com/leengari/changetrack/internal/domain/data"
	"github.com/leengari/changetrack/internal/domain/schema"
)

// newTestDatabase builds an in-memory database with one "events" table
// (id INT PK, payload TEXT), the minimal shape a change-capture session
// can attach to.
func newTestDatabase(t *testing.T) (*schema.Database, *schema.Table) {
	t.Helper()

	db := &schema.Database{Name: "testdb"}
	tbl := &schema.Table{
		Name: "events",
		Schema: &schema.TableSchema{
			TableName: "events",
			Columns: []schema.Column{
				{Name: "id", Type: schema.ColumnTypeInt, PrimaryKey: true, NotNull: true},
				{Name: "payload", Type: schema.ColumnTypeText},
			},
		},
		Indexes: make(map[string]*data.Index),
	}
	db.AddTable(tbl)
	if err := schema.BuildIndexes(tbl); err != nil {
		t.Fatalf("failed to build indexes: %v", err)
	}
	return db, tbl
}

func insertRow(t *testing.T, tbl *schema.Table, id int64, payload string) {
	t.Helper()
	if err := tbl.Insert(data.NewRow(map[string]interface{}{
		"id":      id,
		"payload": payload,
	}), nil); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
}
