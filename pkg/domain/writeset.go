package domain

// WriteSet is the full record set produced by one make step for one key:
// a master row followed by its dependent rows, committed as a unit.
//
// Ordering is preserved; masters must be added before their parts so that
// referential integrity holds row by row inside the transaction.
type WriteSet struct {
	rows []Record
}

func NewWriteSet(rows ...Record) *WriteSet {
	ws := &WriteSet{}
	ws.Add(rows...)
	return ws
}

func (w *WriteSet) Add(rows ...Record) *WriteSet {
	w.rows = append(w.rows, rows...)
	return w
}

func (w *WriteSet) Rows() []Record {
	if w == nil {
		return nil
	}
	return w.rows
}

func (w *WriteSet) Len() int {
	if w == nil {
		return 0
	}
	return len(w.rows)
}
