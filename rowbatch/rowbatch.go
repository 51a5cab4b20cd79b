// Package rowbatch defines the structured row batch abstraction that log
// replay consumes. A batch is an opaque collection of rows addressed by
// (row index, dotted column path) through typed getters. The log reader never
// depends on how a batch is materialized; JSON and parquet files both arrive
// here through the engine handlers.
package rowbatch

import "fmt"

type DataType int

const (
	String DataType = iota
	Bool
	Int
	Long
	StringList
	StringMap
)

func (t DataType) String() string {
	switch t {
	case String:
		return "string"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Long:
		return "long"
	case StringList:
		return "string list"
	case StringMap:
		return "string map"
	default:
		return fmt.Sprintf("DataType(%d)", int(t))
	}
}

// Batch is a read-only collection of structured rows. Getters return
// (value, present, error) where present is false when the column is null or
// absent for that row. A type mismatch between the stored value and the
// requested type is an error, not a null.
type Batch interface {
	NumRows() int
	GetString(row int, col string) (string, bool, error)
	GetBool(row int, col string) (bool, bool, error)
	GetInt(row int, col string) (int32, bool, error)
	GetLong(row int, col string) (int64, bool, error)
	GetStringList(row int, col string) ([]string, bool, error)
	GetStringMap(row int, col string) (map[string]string, bool, error)
}

// Column declares one (dotted path, type) pair a visitor reads.
type Column struct {
	Name string
	Type DataType
}

func Col(name string, typ DataType) Column {
	return Column{Name: name, Type: typ}
}

// RowVisitor is the callback protocol for reading a batch: the visitor
// declares up front which columns it reads and Visit is called once with
// getters bound in declaration order.
type RowVisitor interface {
	Columns() []Column
	Visit(rowCount int, g *Getters) error
}

func VisitRows(b Batch, v RowVisitor) error {
	g := &Getters{batch: b, cols: v.Columns()}
	return v.Visit(b.NumRows(), g)
}

// Getters provides typed access to the visitor's declared columns by index.
type Getters struct {
	batch Batch
	cols  []Column
}

func (g *Getters) col(idx int, want DataType) string {
	c := g.cols[idx]
	if c.Type != want {
		panic(fmt.Sprintf("getter %d (%s) declared as %s, read as %s", idx, c.Name, c.Type, want))
	}
	return c.Name
}

func (g *Getters) String(row, idx int) (string, bool, error) {
	return g.batch.GetString(row, g.col(idx, String))
}

func (g *Getters) Bool(row, idx int) (bool, bool, error) {
	return g.batch.GetBool(row, g.col(idx, Bool))
}

func (g *Getters) Int(row, idx int) (int32, bool, error) {
	return g.batch.GetInt(row, g.col(idx, Int))
}

func (g *Getters) Long(row, idx int) (int64, bool, error) {
	return g.batch.GetLong(row, g.col(idx, Long))
}

func (g *Getters) StringList(row, idx int) ([]string, bool, error) {
	return g.batch.GetStringList(row, g.col(idx, StringList))
}

func (g *Getters) StringMap(row, idx int) (map[string]string, bool, error) {
	return g.batch.GetStringMap(row, g.col(idx, StringMap))
}
