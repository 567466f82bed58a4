package pagedb

// Database ties the catalog and buffer pool together and drives query
// execution: parse, build an operator tree, run it inside one transaction,
// commit or abort.
type Database struct {
	catalog *Catalog
	bp      *BufferPool
}

// NewDatabase opens (or creates) a database rooted at baseDir, loading
// table definitions from catalogPath when it is non-empty (a catalog file
// that is missing or malformed is an error), with a buffer pool holding at
// most maxPages pages.
func NewDatabase(baseDir, catalogPath string, maxPages int) (*Database, error) {
	catalog := NewCatalog(baseDir)
	if catalogPath != "" {
		if err := catalog.LoadFile(catalogPath); err != nil {
			return nil, err
		}
	}
	return &Database{catalog: catalog, bp: NewBufferPool(maxPages)}, nil
}

// QueryResult is what one statement produces: its output schema and the
// materialized rows. CREATE/DROP return an empty schema and no rows.
type QueryResult struct {
	Schema TupleDesc
	Rows   []*Tuple
}

// ExecuteTransaction parses and runs one statement in its own transaction:
// on success the transaction commits; on any error (including
// TransactionAbortedError) it aborts before propagating the error. Callers
// never see a half-committed transaction and there is no silent retry.
func (db *Database) ExecuteTransaction(queryStr string) (*QueryResult, error) {
	query, err := ParseQuery(queryStr)
	if err != nil {
		return nil, err
	}

	tid := NewTransactionId()
	result, err := db.execute(tid, query)
	if err != nil {
		db.bp.TransactionComplete(tid, false)
		return nil, err
	}
	if err := db.bp.TransactionComplete(tid, true); err != nil {
		return nil, err
	}
	return result, nil
}

// FlushAllPages checkpoints every dirty committed page to disk, for a
// periodic maintenance job independent of any in-flight transaction.
func (db *Database) FlushAllPages() error {
	return db.bp.FlushAllPages()
}

func (db *Database) execute(tid TransactionId, query *Query) (*QueryResult, error) {
	switch {
	case query.Create != nil:
		return db.doCreate(query.Create)
	case query.Drop != nil:
		return db.doDrop(query.Drop)
	case query.Insert != nil:
		return db.doInsert(tid, query.Insert)
	case query.Select != nil:
		return db.doSelect(tid, query.Select)
	default:
		return nil, newDbError(Unsupported, "unhandled query")
	}
}

func (db *Database) doCreate(create *QueryCreate) (*QueryResult, error) {
	specs := make([]FieldSpec, 0, len(create.Fields))
	for _, f := range create.Fields {
		spec := FieldSpec{Name: f.Name}
		if f.Type.Int {
			spec.Type = IntType
		} else {
			spec.Type = StringType
			spec.StrLen = 64
		}
		specs = append(specs, spec)
	}
	if err := db.catalog.CreateTable(create.Table, NewTupleDesc(specs)); err != nil {
		return nil, err
	}
	return &QueryResult{}, nil
}

func (db *Database) doDrop(drop *QueryDrop) (*QueryResult, error) {
	if err := db.catalog.DropTable(drop.Table); err != nil {
		return nil, err
	}
	return &QueryResult{}, nil
}

func (db *Database) doInsert(tid TransactionId, insert *QueryInsert) (*QueryResult, error) {
	hf, err := db.catalog.Table(insert.Table)
	if err != nil {
		return nil, err
	}
	desc := hf.Schema()

	rows := make([]*Tuple, 0, len(insert.Rows))
	for _, row := range insert.Rows {
		values := make([]DBValue, 0, len(row.Values))
		for _, lit := range row.Values {
			values = append(values, lit.toValue())
		}
		rows = append(rows, NewTuple(desc, values))
	}

	source := newMaterializedIterator(*desc, rows)
	op := NewInsert(tid, db.bp, hf, source)
	return drainOp(op)
}

func (db *Database) doSelect(tid TransactionId, sel *QuerySelect) (*QueryResult, error) {
	hf, err := db.catalog.Table(sel.Table)
	if err != nil {
		return nil, err
	}

	var root OpIterator = NewSeqScan(hf, tid, db.bp, sel.Table)

	if sel.Where != nil {
		idx := hf.Schema().FieldIndex(sel.Where.Field)
		if idx == -1 {
			return nil, newDbError(NoSuchTable, "no column named %v", sel.Where.Field)
		}
		pred := Predicate{FieldIndex: idx, Op: sel.Where.Op.Op, Value: sel.Where.Value.toValue()}
		root = NewFilter(pred, root)
	}

	if !sel.Projection.All {
		root, err = NewProject(sel.Projection.Fields, root)
		if err != nil {
			return nil, err
		}
	}

	return drainOp(root)
}

// drainOp opens op, collects every tuple it produces, and closes it on
// every exit path, including an error mid-scan, so a partial failure never
// leaves the iterator open.
func drainOp(op OpIterator) (*QueryResult, error) {
	if err := op.Open(); err != nil {
		return nil, err
	}
	rows, err := drain(op)
	closeErr := op.Close()
	if err != nil {
		return nil, err
	}
	if closeErr != nil {
		return nil, closeErr
	}
	return &QueryResult{Schema: *op.GetTupleDesc(), Rows: rows}, nil
}
