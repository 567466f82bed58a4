package pagedb

// AggregateOp adapts an Aggregator to the OpIterator contract: Open drains
// the child entirely (aggregation is inherently eager — no group's result
// is final until every input tuple has been seen), then serves the
// finished per-group rows through the aggregator's own iterator.
type AggregateOp struct {
	child OpIterator
	agg   Aggregator
	inner OpIterator
}

func NewAggregateOp(child OpIterator, agg Aggregator) *AggregateOp {
	return &AggregateOp{child: child, agg: agg}
}

func (a *AggregateOp) Open() error {
	// Reopening after Close serves the groups already computed; draining
	// the child again would merge every tuple into the aggregator twice.
	if a.inner != nil {
		return a.inner.Open()
	}
	if err := a.child.Open(); err != nil {
		return err
	}
	for {
		has, err := a.child.HasNext()
		if err != nil {
			return err
		}
		if !has {
			break
		}
		t, err := a.child.Next()
		if err != nil {
			return err
		}
		if err := a.agg.MergeTupleIntoGroup(t); err != nil {
			return err
		}
	}
	if err := a.child.Close(); err != nil {
		return err
	}
	a.inner = a.agg.Iterator()
	return a.inner.Open()
}

func (a *AggregateOp) Close() error {
	if a.inner == nil {
		return nil
	}
	return a.inner.Close()
}

// Rewind restarts iteration over the already-computed groups without
// re-draining the child or re-merging any tuple.
func (a *AggregateOp) Rewind() error {
	if a.inner == nil {
		return newDbError(IllegalState, "aggregate used before open")
	}
	return a.inner.Rewind()
}

func (a *AggregateOp) HasNext() (bool, error) {
	if a.inner == nil {
		return false, newDbError(IllegalState, "aggregate used before open")
	}
	return a.inner.HasNext()
}

func (a *AggregateOp) Next() (*Tuple, error) {
	if a.inner == nil {
		return nil, newDbError(IllegalState, "aggregate used before open")
	}
	return a.inner.Next()
}

func (a *AggregateOp) GetTupleDesc() *TupleDesc { return a.agg.Schema() }
func (a *AggregateOp) GetChildren() []OpIterator { return []OpIterator{a.child} }
func (a *AggregateOp) SetChildren(children []OpIterator) {
	if len(children) == 1 {
		a.child = children[0]
	}
}
