// Package metadata defines the on-disk meta.json shapes for databases and
// tables, shared by the storage engine (load) and the writer (save).
package metadata

// DatabaseMeta is the JSON shape of a database's meta.json.
type DatabaseMeta struct {
	Name    string   `json:"name"`
	Version int      `json:"version"`
	Tables  []string `json:"tables,omitempty"`
}

// TableMeta is the JSON shape of a table's meta.json.
type TableMeta struct {
	Name         string       `json:"name"`
	Columns      []ColumnMeta `json:"columns"`
	LastInsertID int64        `json:"last_insert_id,omitempty"`
	RowCount     int64        `json:"row_count,omitempty"`
}

// ColumnMeta is the JSON shape of one column entry within a TableMeta.
type ColumnMeta struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	PrimaryKey    bool   `json:"primary_key"`
	Unique        bool   `json:"unique"`
	NotNull       bool   `json:"not_null"`
	AutoIncrement bool   `json:"auto_increment,omitempty"`
}
