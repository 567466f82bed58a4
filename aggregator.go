package pagedb

// AggOp is one of the aggregate functions this engine supports: MIN/MAX
// /SUM/AVG/COUNT over ints, COUNT alone over strings.
type AggOp int

const (
	MinOp AggOp = iota
	MaxOp
	SumOp
	AvgOp
	CountOp
)

func (op AggOp) String() string {
	switch op {
	case MinOp:
		return "MIN"
	case MaxOp:
		return "MAX"
	case SumOp:
		return "SUM"
	case AvgOp:
		return "AVG"
	case CountOp:
		return "COUNT"
	default:
		return "UNKNOWN"
	}
}

// NoGrouping is the sentinel group-field index meaning "aggregate the whole
// input into a single group."
const NoGrouping = -1

// Aggregator accumulates a stream of tuples fed to it one at a time via
// MergeTupleIntoGroup, then hands back the finished per-group results as an
// OpIterator. Two implementations exist, chosen by the aggregated field's
// type: IntAggregator (all five ops) and StringAggregator (COUNT only).
type Aggregator interface {
	MergeTupleIntoGroup(t *Tuple) error
	Iterator() OpIterator
	// Schema reports the result schema without requiring any tuples to have
	// been merged yet, so AggregateOp can answer GetTupleDesc before Open.
	Schema() *TupleDesc
}

type intAccum struct {
	count int64
	sum   int64
	min   int32
	max   int32
}

func (a *intAccum) merge(v int32) {
	if a.count == 0 {
		a.min, a.max = v, v
	} else {
		if v < a.min {
			a.min = v
		}
		if v > a.max {
			a.max = v
		}
	}
	a.count++
	a.sum += int64(v)
}

func (a *intAccum) result(op AggOp) int32 {
	switch op {
	case MinOp:
		return a.min
	case MaxOp:
		return a.max
	case SumOp:
		return int32(a.sum)
	case AvgOp:
		// Keeps the running sum and count separately rather than an
		// incrementally-updated mean, so the division happens exactly once
		// at read time instead of compounding rounding error per tuple.
		return int32(a.sum / a.count)
	case CountOp:
		return int32(a.count)
	default:
		return 0
	}
}

// IntAggregator aggregates an integer field, optionally grouped by another
// field of either type, supporting all five aggregate ops and arbitrary
// (possibly string) grouping keys.
type IntAggregator struct {
	groupField     int
	groupFieldType FieldType
	aggField       int
	op             AggOp

	order  []DBValue
	groups map[DBValue]*intAccum
}

// NewIntAggregator builds an aggregator over aggField using op, grouped by
// groupField (or NoGrouping). Returns UnsupportedOperationError for any op
// outside {MIN, MAX, SUM, AVG, COUNT}.
func NewIntAggregator(groupField int, groupFieldType FieldType, aggField int, op AggOp) (*IntAggregator, error) {
	switch op {
	case MinOp, MaxOp, SumOp, AvgOp, CountOp:
	default:
		return nil, UnsupportedOperationError{Op: op, Why: "not one of MIN, MAX, SUM, AVG, COUNT"}
	}
	return &IntAggregator{
		groupField:     groupField,
		groupFieldType: groupFieldType,
		aggField:       aggField,
		op:             op,
		groups:         make(map[DBValue]*intAccum),
	}, nil
}

func (a *IntAggregator) groupKey(t *Tuple) DBValue {
	if a.groupField == NoGrouping {
		return DBValue{}
	}
	return t.Values[a.groupField]
}

func (a *IntAggregator) MergeTupleIntoGroup(t *Tuple) error {
	key := a.groupKey(t)
	acc, ok := a.groups[key]
	if !ok {
		acc = &intAccum{}
		a.groups[key] = acc
		a.order = append(a.order, key)
	}
	v := t.Values[a.aggField]
	if v.Type != IntType {
		return newDbError(TypeMismatch, "cannot aggregate non-int field with %v", a.op)
	}
	acc.merge(v.I)
	return nil
}

func (a *IntAggregator) Iterator() OpIterator {
	desc := a.resultDesc()
	rows := make([]*Tuple, 0, len(a.order))
	for _, key := range a.order {
		acc := a.groups[key]
		values := make([]DBValue, 0, 2)
		if a.groupField != NoGrouping {
			values = append(values, key)
		}
		values = append(values, IntField(acc.result(a.op)))
		rows = append(rows, NewTuple(&desc, values))
	}
	return newMaterializedIterator(desc, rows)
}

// Schema reports the output schema built by resultDesc: ungrouped is a
// single column named for the operator ("MIN", "COUNT", ...); grouped
// prepends a "groupby" column of the group field's type.
func (a *IntAggregator) Schema() *TupleDesc {
	desc := a.resultDesc()
	return &desc
}

func (a *IntAggregator) resultDesc() TupleDesc {
	var specs []FieldSpec
	if a.groupField != NoGrouping {
		specs = append(specs, FieldSpec{Name: "groupby", Type: a.groupFieldType, StrLen: 32})
	}
	specs = append(specs, FieldSpec{Name: a.op.String(), Type: IntType})
	return NewTupleDesc(specs)
}

// StringAggregator aggregates a string field. Only COUNT is defined over
// strings — MIN/MAX/SUM/AVG over text has no defined meaning here, so the
// constructor rejects any other op up front rather than at merge time.
type StringAggregator struct {
	groupField     int
	groupFieldType FieldType
	aggField       int

	order  []DBValue
	counts map[DBValue]int64
}

// NewStringAggregator builds a COUNT aggregator over aggField, grouped by
// groupField (or NoGrouping). Returns UnsupportedOperationError for any op
// other than CountOp.
func NewStringAggregator(groupField int, groupFieldType FieldType, aggField int, op AggOp) (*StringAggregator, error) {
	if op != CountOp {
		return nil, UnsupportedOperationError{Op: op, Why: "only count is defined over string fields"}
	}
	return &StringAggregator{
		groupField:     groupField,
		groupFieldType: groupFieldType,
		aggField:       aggField,
		counts:         make(map[DBValue]int64),
	}, nil
}

func (a *StringAggregator) groupKey(t *Tuple) DBValue {
	if a.groupField == NoGrouping {
		return DBValue{}
	}
	return t.Values[a.groupField]
}

func (a *StringAggregator) MergeTupleIntoGroup(t *Tuple) error {
	key := a.groupKey(t)
	a.counts[key]++
	if a.counts[key] == 1 {
		a.order = append(a.order, key)
	}
	return nil
}

func (a *StringAggregator) Iterator() OpIterator {
	desc := a.resultDesc()
	rows := make([]*Tuple, 0, len(a.order))
	for _, key := range a.order {
		values := make([]DBValue, 0, 2)
		if a.groupField != NoGrouping {
			values = append(values, key)
		}
		values = append(values, IntField(int32(a.counts[key])))
		rows = append(rows, NewTuple(&desc, values))
	}
	return newMaterializedIterator(desc, rows)
}

func (a *StringAggregator) Schema() *TupleDesc {
	desc := a.resultDesc()
	return &desc
}

func (a *StringAggregator) resultDesc() TupleDesc {
	var specs []FieldSpec
	if a.groupField != NoGrouping {
		specs = append(specs, FieldSpec{Name: "groupby", Type: a.groupFieldType, StrLen: 32})
	}
	specs = append(specs, FieldSpec{Name: CountOp.String(), Type: IntType})
	return NewTupleDesc(specs)
}

// materializedIterator serves a fixed, precomputed slice of tuples as an
// OpIterator leaf. Used by both aggregators' Iterator(), since aggregation
// is necessarily eager (every input tuple must be seen before any group's
// result is final).
type materializedIterator struct {
	desc   TupleDesc
	rows   []*Tuple
	pos    int
	opened bool
}

func newMaterializedIterator(desc TupleDesc, rows []*Tuple) *materializedIterator {
	return &materializedIterator{desc: desc, rows: rows}
}

func (it *materializedIterator) Open() error {
	it.pos = 0
	it.opened = true
	return nil
}

func (it *materializedIterator) Close() error {
	it.opened = false
	return nil
}

func (it *materializedIterator) Rewind() error {
	return it.Open()
}

func (it *materializedIterator) HasNext() (bool, error) {
	if !it.opened {
		return false, newDbError(IllegalState, "aggregate iterator used before Open")
	}
	return it.pos < len(it.rows), nil
}

func (it *materializedIterator) Next() (*Tuple, error) {
	has, err := it.HasNext()
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, NoSuchElementError{What: "aggregate results exhausted"}
	}
	t := it.rows[it.pos]
	it.pos++
	return t, nil
}

func (it *materializedIterator) GetTupleDesc() *TupleDesc        { return &it.desc }
func (it *materializedIterator) GetChildren() []OpIterator       { return nil }
func (it *materializedIterator) SetChildren(children []OpIterator) {}
