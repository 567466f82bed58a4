package pagedb

// CompareOp is a scalar comparison between two DBValues of the same type,
// used by both Filter (tuple field vs. constant) and Join (field vs.
// field).
type CompareOp int

const (
	Equals CompareOp = iota
	NotEquals
	LessThan
	LessThanOrEqual
	GreaterThan
	GreaterThanOrEqual
)

// apply evaluates a op b. Both values must share a type; comparing a
// StringType is lexicographic, an IntType is numeric.
func (op CompareOp) apply(a, b DBValue) (bool, error) {
	if a.Type != b.Type {
		return false, newDbError(TypeMismatch, "cannot compare %v with %v", a.Type, b.Type)
	}
	var cmp int
	switch a.Type {
	case IntType:
		switch {
		case a.I < b.I:
			cmp = -1
		case a.I > b.I:
			cmp = 1
		default:
			cmp = 0
		}
	case StringType:
		switch {
		case a.S < b.S:
			cmp = -1
		case a.S > b.S:
			cmp = 1
		default:
			cmp = 0
		}
	}
	switch op {
	case Equals:
		return a.Equal(b), nil
	case NotEquals:
		return !a.Equal(b), nil
	case LessThan:
		return cmp < 0, nil
	case LessThanOrEqual:
		return cmp <= 0, nil
	case GreaterThan:
		return cmp > 0, nil
	case GreaterThanOrEqual:
		return cmp >= 0, nil
	default:
		return false, newDbError(Unsupported, "unknown comparison op %d", op)
	}
}

// Predicate tests one tuple field against a constant, for Filter.
type Predicate struct {
	FieldIndex int
	Op         CompareOp
	Value      DBValue
}

func (p Predicate) Test(t *Tuple) (bool, error) {
	return p.Op.apply(t.Values[p.FieldIndex], p.Value)
}

// JoinPredicate tests a field from each side of a join against each other.
type JoinPredicate struct {
	LeftField  int
	Op         CompareOp
	RightField int
}

func (p JoinPredicate) Test(left, right *Tuple) (bool, error) {
	return p.Op.apply(left.Values[p.LeftField], right.Values[p.RightField])
}
