package pagedb

// Project narrows each child tuple down to a fixed set of fields, via
// TupleDesc.Project.
type Project struct {
	child   OpIterator
	desc    TupleDesc
	indexes []int
}

// NewProject keeps only fieldNames from child's output.
func NewProject(fieldNames []string, child OpIterator) (*Project, error) {
	desc, indexes, err := child.GetTupleDesc().Project(fieldNames)
	if err != nil {
		return nil, err
	}
	return &Project{child: child, desc: desc, indexes: indexes}, nil
}

func (p *Project) Open() error  { return p.child.Open() }
func (p *Project) Close() error { return p.child.Close() }
func (p *Project) Rewind() error { return p.child.Rewind() }
func (p *Project) HasNext() (bool, error) { return p.child.HasNext() }

func (p *Project) Next() (*Tuple, error) {
	t, err := p.child.Next()
	if err != nil {
		return nil, err
	}
	return t.Project(&p.desc, p.indexes), nil
}

func (p *Project) GetTupleDesc() *TupleDesc { return &p.desc }
func (p *Project) GetChildren() []OpIterator { return []OpIterator{p.child} }
func (p *Project) SetChildren(children []OpIterator) {
	if len(children) == 1 {
		p.child = children[0]
	}
}
