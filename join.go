package pagedb

// Join is a nested-loops join: for each left tuple, scan all of right,
// emitting the concatenated tuple wherever pred holds. Nested-loops needs
// nothing beyond the plain iterator contract every other operator already
// provides.
type Join struct {
	pred  JoinPredicate
	left  OpIterator
	right OpIterator
	desc  TupleDesc

	curLeft *Tuple
	peeked  *Tuple
}

// NewJoin joins left and right on pred, concatenating matching rows left
// fields first.
func NewJoin(pred JoinPredicate, left, right OpIterator) *Join {
	return &Join{pred: pred, left: left, right: right, desc: concatTupleDesc(left.GetTupleDesc(), right.GetTupleDesc())}
}

func concatTupleDesc(a, b *TupleDesc) TupleDesc {
	fields := make([]field, 0, len(a.fields)+len(b.fields))
	fields = append(fields, a.fields...)
	fields = append(fields, b.fields...)
	return TupleDesc{fields: fields, totalLen: a.totalLen + b.totalLen}
}

func concatTuple(desc *TupleDesc, left, right *Tuple) *Tuple {
	values := make([]DBValue, 0, len(left.Values)+len(right.Values))
	values = append(values, left.Values...)
	values = append(values, right.Values...)
	return &Tuple{Desc: desc, Values: values}
}

func (j *Join) Open() error {
	if err := j.left.Open(); err != nil {
		return err
	}
	if err := j.right.Open(); err != nil {
		return err
	}
	j.curLeft = nil
	j.peeked = nil
	return nil
}

func (j *Join) Close() error {
	if err := j.left.Close(); err != nil {
		return err
	}
	return j.right.Close()
}

func (j *Join) Rewind() error {
	j.curLeft = nil
	j.peeked = nil
	if err := j.left.Rewind(); err != nil {
		return err
	}
	return j.right.Rewind()
}

// fill advances until a matching pair is buffered in j.peeked, or the join
// is exhausted.
func (j *Join) fill() error {
	for {
		if j.curLeft == nil {
			has, err := j.left.HasNext()
			if err != nil {
				return err
			}
			if !has {
				j.peeked = nil
				return nil
			}
			t, err := j.left.Next()
			if err != nil {
				return err
			}
			j.curLeft = t
			if err := j.right.Rewind(); err != nil {
				return err
			}
		}

		has, err := j.right.HasNext()
		if err != nil {
			return err
		}
		if !has {
			j.curLeft = nil
			continue
		}
		rt, err := j.right.Next()
		if err != nil {
			return err
		}
		ok, err := j.pred.Test(j.curLeft, rt)
		if err != nil {
			return err
		}
		if ok {
			j.peeked = concatTuple(&j.desc, j.curLeft, rt)
			return nil
		}
	}
}

func (j *Join) HasNext() (bool, error) {
	if j.peeked != nil {
		return true, nil
	}
	if err := j.fill(); err != nil {
		return false, err
	}
	return j.peeked != nil, nil
}

func (j *Join) Next() (*Tuple, error) {
	has, err := j.HasNext()
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, NoSuchElementError{What: "join exhausted"}
	}
	t := j.peeked
	j.peeked = nil
	return t, nil
}

func (j *Join) GetTupleDesc() *TupleDesc { return &j.desc }
func (j *Join) GetChildren() []OpIterator { return []OpIterator{j.left, j.right} }
func (j *Join) SetChildren(children []OpIterator) {
	if len(children) == 2 {
		j.left, j.right = children[0], children[1]
	}
}
