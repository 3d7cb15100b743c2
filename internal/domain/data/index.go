package data

// Index is an in-memory index on a single column, mapping a cell value to
// the positions of rows in the owning table's Rows slice that hold it.
type Index struct {
	Column string
	Data   map[interface{}][]int
	Unique bool
}
