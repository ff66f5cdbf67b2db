// Package covidcounty holds the in-memory table used by the county pull: typed nullable
// columns, the Frame that orders them, and readers and writers for CSV files and databases.
package covidcounty

import (
	"fmt"
	"strings"
)

// Col is a named Vector
type Col struct {
	name string

	*Vector
}

// Frame is an ordered set of equal-length columns.
type Frame struct {
	head    *columnList
	current *columnList
}

type columnList struct {
	col *Col

	prior *columnList
	next  *columnList
}

// NewCol names data, which is passed to NewVector.
func NewCol(name string, data any) (*Col, error) {
	if !validName(name) {
		return nil, fmt.Errorf("invalid column name %q", name)
	}

	var (
		v *Vector
		e error
	)
	if v, e = NewVector(data); e != nil {
		return nil, fmt.Errorf("column %s: %w", name, e)
	}

	return &Col{name: name, Vector: v}, nil
}

func (c *Col) Name() string {
	return c.name
}

func (c *Col) Copy() *Col {
	return &Col{name: c.name, Vector: c.Vector.Copy()}
}

func NewFrame(cols ...*Col) (*Frame, error) {
	if cols == nil {
		return nil, fmt.Errorf("no columns in NewFrame")
	}

	f := &Frame{}
	for _, col := range cols {
		if e := f.AppendColumn(col); e != nil {
			return nil, e
		}
	}

	return f, nil
}

// Next iterates over the columns. reset starts back at the first column; nil marks the end.
func (f *Frame) Next(reset bool) *Col {
	if reset || f.current == nil {
		f.current = f.head
		if f.current == nil {
			return nil
		}

		return f.current.col
	}

	if f.current.next == nil {
		f.current = nil
		return nil
	}

	f.current = f.current.next

	return f.current.col
}

func (f *Frame) RowCount() int {
	if f.head == nil {
		return 0
	}

	return f.head.col.Len()
}

func (f *Frame) ColumnCount() int {
	cols := 0
	for c := f.head; c != nil; c = c.next {
		cols++
	}

	return cols
}

func (f *Frame) ColumnNames() []string {
	var names []string

	for h := f.head; h != nil; h = h.next {
		names = append(names, h.col.Name())
	}

	return names
}

func (f *Frame) ColumnTypes() []DataTypes {
	var dts []DataTypes

	for h := f.head; h != nil; h = h.next {
		dts = append(dts, h.col.VectorType())
	}

	return dts
}

func (f *Frame) Column(colName string) (*Col, error) {
	var (
		node *columnList
		e    error
	)
	if node, e = f.node(colName); e != nil {
		return nil, e
	}

	return node.col, nil
}

func (f *Frame) HasColumns(colNames ...string) bool {
	names := f.ColumnNames()
	for _, cn := range colNames {
		if !has(strings.TrimSpace(cn), names) {
			return false
		}
	}

	return true
}

// AppendColumn adds col at the end. Its length must match the frame's row count.
func (f *Frame) AppendColumn(col *Col) error {
	if col == nil {
		return fmt.Errorf("nil column in AppendColumn")
	}

	if f.head == nil {
		f.head = &columnList{col: col}
		return nil
	}

	if has(col.Name(), f.ColumnNames()) {
		return fmt.Errorf("duplicate column name: %s", col.Name())
	}

	if col.Len() != f.RowCount() {
		return fmt.Errorf("length mismatch: frame - %d, append col %s - %d", f.RowCount(), col.Name(), col.Len())
	}

	var tail *columnList
	for tail = f.head; tail.next != nil; tail = tail.next {
	}

	tail.next = &columnList{
		col:   col,
		prior: tail,
		next:  nil,
	}

	return nil
}

func (f *Frame) node(colName string) (*columnList, error) {
	for h := f.head; h != nil; h = h.next {
		if h.col.Name() == colName {
			return h, nil
		}
	}

	return nil, fmt.Errorf("column %s not found", colName)
}

func (f *Frame) DropColumns(colNames ...string) error {
	for _, cName := range colNames {
		var (
			node *columnList
			e    error
		)

		if node, e = f.node(cName); e != nil {
			return e
		}

		if node == f.head {
			if f.head.next == nil {
				return fmt.Errorf("cannot drop the last column %s", cName)
			}

			f.head = f.head.next
			f.head.prior = nil
			continue
		}

		node.prior.next = node.next
		if node.next != nil {
			node.next.prior = node.prior
		}
	}

	f.current = nil

	return nil
}

// KeepColumns returns a new Frame with colNames in the order given. The columns are shared, not copied.
func (f *Frame) KeepColumns(colNames ...string) (*Frame, error) {
	var cols []*Col

	for _, cn := range colNames {
		var (
			col *Col
			e   error
		)

		if col, e = f.Column(cn); e != nil {
			return nil, e
		}

		cols = append(cols, col)
	}

	return NewFrame(cols...)
}

// Row returns the values of row indx across all columns, as Element does.
func (f *Frame) Row(indx int) []any {
	var row []any
	for h := f.head; h != nil; h = h.next {
		row = append(row, h.col.Element(indx))
	}

	return row
}

func (f *Frame) String() string {
	return fmt.Sprintf("rows: %d\ncolumns: %s", f.RowCount(), strings.Join(f.ColumnNames(), ", "))
}
