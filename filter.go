package pagedb

// Filter yields only the child's tuples that satisfy a Predicate.
type Filter struct {
	pred   Predicate
	child  OpIterator
	peeked *Tuple
}

// NewFilter wraps child, keeping only tuples for which pred holds.
func NewFilter(pred Predicate, child OpIterator) *Filter {
	return &Filter{pred: pred, child: child}
}

func (f *Filter) Open() error {
	return f.child.Open()
}

func (f *Filter) Close() error {
	return f.child.Close()
}

func (f *Filter) Rewind() error {
	f.peeked = nil
	return f.child.Rewind()
}

// fill pulls from the child until it finds the next tuple satisfying pred;
// peek caches that tuple in peeked so HasNext stays idempotent without
// consuming from the child twice.
func (f *Filter) fill() (*Tuple, bool, error) {
	for {
		has, err := f.child.HasNext()
		if err != nil || !has {
			return nil, false, err
		}
		t, err := f.child.Next()
		if err != nil {
			return nil, false, err
		}
		ok, err := f.pred.Test(t)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return t, true, nil
		}
	}
}

func (f *Filter) HasNext() (bool, error) {
	_, ok, err := f.peek()
	return ok, err
}

// peek caches the next matching tuple on f so HasNext and Next agree without
// double-consuming the child.
func (f *Filter) peek() (*Tuple, bool, error) {
	if f.peeked != nil {
		return f.peeked, true, nil
	}
	t, ok, err := f.fill()
	if err != nil || !ok {
		return nil, false, err
	}
	f.peeked = t
	return t, true, nil
}

func (f *Filter) Next() (*Tuple, error) {
	t, ok, err := f.peek()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NoSuchElementError{What: "filter exhausted"}
	}
	f.peeked = nil
	return t, nil
}

func (f *Filter) GetTupleDesc() *TupleDesc { return f.child.GetTupleDesc() }
func (f *Filter) GetChildren() []OpIterator { return []OpIterator{f.child} }
func (f *Filter) SetChildren(children []OpIterator) {
	if len(children) == 1 {
		f.child = children[0]
	}
}
