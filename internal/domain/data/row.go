package data

import (
	"encoding/json"
	"sync"
)

// Row represents a single table row
// Key = column name, Value = cell value
type Row struct {
	Data map[string]interface{}
	// mu is a placeholder for future row-level locking implementation
	// Currently unused but reserved for fine-grained concurrency control
	mu sync.Mutex
}

// NewRow creates a new Row with the given data
func NewRow(data map[string]interface{}) Row {
	return Row{
		Data: data,
	}
}

// Copy creates a deep copy of the row to prevent mutation
func (r Row) Copy() Row {
	copy := make(map[string]interface{}, len(r.Data))
	for k, v := range r.Data {
		copy[k] = v
	}
	return Row{
		Data: copy,
	}
}

// ToJSON serializes the row's data for WAL payloads and on-disk snapshots.
func (r Row) ToJSON() (json.RawMessage, error) {
	b, err := json.Marshal(r.Data)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}

// FromJSON reconstructs a Row from a WAL payload or on-disk snapshot.
func FromJSON(raw json.RawMessage) (Row, error) {
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return Row{}, err
	}
	return Row{Data: m}, nil
}
