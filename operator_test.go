package pagedb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedTable(t *testing.T, rows [][2]any) (*HeapFile, *BufferPool) {
	t.Helper()
	restore := SetPageSizeForTesting(512)
	t.Cleanup(restore)

	desc := testSchema()
	path := filepath.Join(t.TempDir(), "seed.dat")
	hf, err := NewHeapFile(desc, path)
	require.NoError(t, err)

	bp := NewBufferPool(32)
	tid := NewTransactionId()
	for _, r := range rows {
		tup := NewTuple(hf.Schema(), []DBValue{IntField(r[0].(int32)), StringField(r[1].(string))})
		require.NoError(t, bp.InsertTuple(tid, hf, tup))
	}
	require.NoError(t, bp.TransactionComplete(tid, true))
	return hf, bp
}

func TestFilterKeepsOnlyMatchingTuples(t *testing.T) {
	hf, bp := seedTable(t, [][2]any{
		{int32(1), "a"}, {int32(2), "b"}, {int32(3), "c"},
	})
	tid := NewTransactionId()
	scan := NewSeqScan(hf, tid, bp, "t")
	pred := Predicate{FieldIndex: 0, Op: GreaterThan, Value: IntField(1)}
	f := NewFilter(pred, scan)

	require.NoError(t, f.Open())
	rows, err := drain(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	bp.TransactionComplete(tid, true)

	assert.Len(t, rows, 2)
	assert.Equal(t, int32(2), rows[0].Values[0].I)
	assert.Equal(t, int32(3), rows[1].Values[0].I)
}

func TestProjectNarrowsFields(t *testing.T) {
	hf, bp := seedTable(t, [][2]any{{int32(1), "only"}})
	tid := NewTransactionId()
	scan := NewSeqScan(hf, tid, bp, "t")
	proj, err := NewProject([]string{"name"}, scan)
	require.NoError(t, err)

	require.NoError(t, proj.Open())
	rows, err := drain(proj)
	require.NoError(t, err)
	proj.Close()
	bp.TransactionComplete(tid, true)

	require.Len(t, rows, 1)
	assert.Equal(t, 1, proj.GetTupleDesc().NumFields())
	assert.Equal(t, "only", rows[0].Values[0].S)
}

func TestJoinMatchesOnPredicate(t *testing.T) {
	leftHf, leftBp := seedTable(t, [][2]any{{int32(1), "a"}, {int32(2), "b"}})
	tid := NewTransactionId()
	left := NewSeqScan(leftHf, tid, leftBp, "l")
	right := NewSeqScan(leftHf, tid, leftBp, "r")
	pred := JoinPredicate{LeftField: 0, Op: Equals, RightField: 0}
	j := NewJoin(pred, left, right)

	require.NoError(t, j.Open())
	rows, err := drain(j)
	require.NoError(t, err)
	j.Close()
	leftBp.TransactionComplete(tid, true)

	// Each row should match exactly itself (self-join on equality), so the
	// result has as many rows as the table and each row's left/right id
	// fields agree.
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.Equal(t, r.Values[0].I, r.Values[2].I)
	}
}

func TestInsertOperatorReportsCountThenEOF(t *testing.T) {
	hf, bp := seedTable(t, nil)
	tid := NewTransactionId()
	desc := hf.Schema()
	rows := []*Tuple{
		NewTuple(desc, []DBValue{IntField(1), StringField("x")}),
		NewTuple(desc, []DBValue{IntField(2), StringField("y")}),
	}
	source := newMaterializedIterator(*desc, rows)
	ins := NewInsert(tid, bp, hf, source)

	require.NoError(t, ins.Open())
	has, err := ins.HasNext()
	require.NoError(t, err)
	require.True(t, has)
	result, err := ins.Next()
	require.NoError(t, err)
	assert.Equal(t, int32(2), result.Values[0].I)

	has, err = ins.HasNext()
	require.NoError(t, err)
	assert.False(t, has)
	_, err = ins.Next()
	assert.IsType(t, NoSuchElementError{}, err)

	bp.TransactionComplete(tid, true)
}

// TestOperatorIteratorLaws exercises the contract every OpIterator
// promises: HasNext is safe to call repeatedly, Next past exhaustion
// errors, and Rewind restarts without needing Open again.
func TestOperatorIteratorLaws(t *testing.T) {
	hf, bp := seedTable(t, [][2]any{{int32(1), "a"}, {int32(2), "b"}})
	tid := NewTransactionId()
	scan := NewSeqScan(hf, tid, bp, "t")

	require.NoError(t, scan.Open())
	first, err := drain(scan)
	require.NoError(t, err)
	require.Len(t, first, 2)

	has, err := scan.HasNext()
	require.NoError(t, err)
	assert.False(t, has)
	_, err = scan.Next()
	assert.IsType(t, NoSuchElementError{}, err)

	require.NoError(t, scan.Rewind())
	second, err := drain(scan)
	require.NoError(t, err)
	assert.Len(t, second, 2)

	require.NoError(t, scan.Close())
	bp.TransactionComplete(tid, true)
}

// TestInsertOperatorRejectsUseBeforeOpenOrAfterClose covers the IllegalState
// contract: calling HasNext/Next/Rewind on an Insert that was never opened,
// or that has already been closed, must error rather than return a silent
// zero-value row.
func TestInsertOperatorRejectsUseBeforeOpenOrAfterClose(t *testing.T) {
	hf, bp := seedTable(t, nil)
	tid := NewTransactionId()
	desc := hf.Schema()
	source := newMaterializedIterator(*desc, nil)
	ins := NewInsert(tid, bp, hf, source)

	_, err := ins.HasNext()
	assert.IsType(t, DbError{}, err)
	_, err = ins.Next()
	assert.IsType(t, DbError{}, err)
	err = ins.Rewind()
	assert.IsType(t, DbError{}, err)

	require.NoError(t, ins.Open())
	require.NoError(t, ins.Close())

	_, err = ins.HasNext()
	assert.IsType(t, DbError{}, err)
	_, err = ins.Next()
	assert.IsType(t, DbError{}, err)

	bp.TransactionComplete(tid, true)
}

// TestDeleteOperatorRejectsUseBeforeOpenOrAfterClose mirrors
// TestInsertOperatorRejectsUseBeforeOpenOrAfterClose for Delete.
func TestDeleteOperatorRejectsUseBeforeOpenOrAfterClose(t *testing.T) {
	hf, bp := seedTable(t, [][2]any{{int32(1), "a"}})
	tid := NewTransactionId()
	scan := NewSeqScan(hf, tid, bp, "t")
	del := NewDelete(tid, bp, hf, scan)

	_, err := del.HasNext()
	assert.IsType(t, DbError{}, err)
	_, err = del.Next()
	assert.IsType(t, DbError{}, err)

	require.NoError(t, del.Open())
	require.NoError(t, del.Close())

	_, err = del.HasNext()
	assert.IsType(t, DbError{}, err)
	_, err = del.Next()
	assert.IsType(t, DbError{}, err)

	bp.TransactionComplete(tid, true)
}
