package pagedb

// Delete is Insert's mirror: consumes every tuple child produces (each must
// carry the RecordId it was read at), deletes it from its owning page under
// tid, then reports the count as a single result row.
type Delete struct {
	tid   TransactionId
	bp    *BufferPool
	hf    *HeapFile
	child OpIterator
	desc  TupleDesc

	count   int32
	emitted bool
	opened  bool
}

func NewDelete(tid TransactionId, bp *BufferPool, hf *HeapFile, child OpIterator) *Delete {
	return &Delete{
		tid:   tid,
		bp:    bp,
		hf:    hf,
		child: child,
		desc:  NewTupleDesc([]FieldSpec{{Name: "count", Type: IntType}}),
	}
}

func (d *Delete) Open() error {
	if err := d.child.Open(); err != nil {
		return err
	}
	var n int32
	for {
		has, err := d.child.HasNext()
		if err != nil {
			return err
		}
		if !has {
			break
		}
		t, err := d.child.Next()
		if err != nil {
			return err
		}
		if err := d.bp.DeleteTuple(d.tid, d.hf, t); err != nil {
			return err
		}
		n++
	}
	if err := d.child.Close(); err != nil {
		return err
	}
	d.count = n
	d.emitted = false
	d.opened = true
	return nil
}

func (d *Delete) Close() error {
	d.opened = false
	return nil
}

func (d *Delete) Rewind() error {
	if !d.opened {
		return newDbError(IllegalState, "delete operator rewound before Open")
	}
	d.emitted = false
	return nil
}

func (d *Delete) HasNext() (bool, error) {
	if !d.opened {
		return false, newDbError(IllegalState, "delete operator used before Open")
	}
	return !d.emitted, nil
}

func (d *Delete) Next() (*Tuple, error) {
	if !d.opened {
		return nil, newDbError(IllegalState, "delete operator used before Open")
	}
	if d.emitted {
		return nil, NoSuchElementError{What: "delete already reported its count"}
	}
	d.emitted = true
	return NewTuple(&d.desc, []DBValue{IntField(d.count)}), nil
}

func (d *Delete) GetTupleDesc() *TupleDesc { return &d.desc }
func (d *Delete) GetChildren() []OpIterator { return []OpIterator{d.child} }
func (d *Delete) SetChildren(children []OpIterator) {
	if len(children) == 1 {
		d.child = children[0]
	}
}
