package pagedb

import "encoding/json"

// TupleDesc is a table's schema descriptor: an ordered list of typed, named
// fields.
type TupleDesc struct {
	fields   []field
	totalLen int
}

// FieldSpec is the constructor-time description of one column, the result
// of parsing a "name type" pair out of a CREATE TABLE statement or a
// catalog line.
type FieldSpec struct {
	Name     string
	Type     FieldType
	StrLen   uint8 // only consulted when Type == StringType
	IsPK     bool
}

// NewTupleDesc builds a schema from field specs, computing the fixed
// on-disk row width as it goes.
func NewTupleDesc(specs []FieldSpec) TupleDesc {
	td := TupleDesc{fields: make([]field, 0, len(specs))}
	for _, spec := range specs {
		f := field{Name: spec.Name, Type: spec.Type}
		if spec.Type == StringType {
			f.Len = spec.StrLen
		} else {
			f.Len = 4
		}
		td.fields = append(td.fields, f)
		td.totalLen += int(f.Len)
	}
	return td
}

// NumFields reports the number of columns.
func (td *TupleDesc) NumFields() int {
	return len(td.fields)
}

// RowSize is the fixed number of bytes one row occupies on disk.
func (td *TupleDesc) RowSize() int {
	return td.totalLen
}

// FieldNames returns the column names in order.
func (td *TupleDesc) FieldNames() []string {
	names := make([]string, 0, len(td.fields))
	for _, f := range td.fields {
		names = append(names, f.Name)
	}
	return names
}

// FieldType reports the type of column i.
func (td *TupleDesc) FieldType(i int) FieldType {
	return td.fields[i].Type
}

// FieldIndex finds a column by name, returning -1 if none matches.
func (td *TupleDesc) FieldIndex(name string) int {
	for i, f := range td.fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Equal reports whether two descriptors describe the same columns in the
// same order.
func (td *TupleDesc) Equal(other *TupleDesc) bool {
	if len(td.fields) != len(other.fields) {
		return false
	}
	for i := range td.fields {
		if td.fields[i] != other.fields[i] {
			return false
		}
	}
	return true
}

// Typecheck verifies that values matches the descriptor field-for-field.
func (td *TupleDesc) Typecheck(values []DBValue) error {
	if len(values) != len(td.fields) {
		return newDbError(TypeMismatch, "expected %d values, got %d", len(td.fields), len(values))
	}
	for i := range td.fields {
		if err := td.fields[i].typecheck(values[i]); err != nil {
			return err
		}
	}
	return nil
}

// Project builds the schema that results from keeping only the named
// columns, along with the index list a Tuple.Project call needs.
func (td *TupleDesc) Project(names []string) (TupleDesc, []int, error) {
	indexes := make([]int, 0, len(names))
	newFields := make([]field, 0, len(names))
	newLen := 0
	for _, name := range names {
		idx := td.FieldIndex(name)
		if idx == -1 {
			return TupleDesc{}, nil, newDbError(NoSuchTable, "no column named %v", name)
		}
		indexes = append(indexes, idx)
		newFields = append(newFields, td.fields[idx])
		newLen += int(td.fields[idx].Len)
	}
	return TupleDesc{fields: newFields, totalLen: newLen}, indexes, nil
}

// wireField is TupleDesc's JSON-visible shadow: field's own fields are
// already exported, but a TupleDesc's unexported `fields` slice would
// otherwise marshal to nothing, which breaks the server/client wire
// protocol in protocol.go.
type wireField struct {
	Name string
	Type FieldType
	Len  uint8
}

func (td TupleDesc) MarshalJSON() ([]byte, error) {
	ws := make([]wireField, len(td.fields))
	for i, f := range td.fields {
		ws[i] = wireField{Name: f.Name, Type: f.Type, Len: f.Len}
	}
	return json.Marshal(ws)
}

func (td *TupleDesc) UnmarshalJSON(data []byte) error {
	var ws []wireField
	if err := json.Unmarshal(data, &ws); err != nil {
		return err
	}
	fields := make([]field, len(ws))
	total := 0
	for i, w := range ws {
		fields[i] = field{Name: w.Name, Type: w.Type, Len: w.Len}
		total += int(w.Len)
	}
	td.fields = fields
	td.totalLen = total
	return nil
}

// readRow decodes one fixed-width row out of data.
func (td *TupleDesc) readRow(data []byte) []DBValue {
	values := make([]DBValue, 0, len(td.fields))
	offset := 0
	for _, f := range td.fields {
		values = append(values, f.read(data[offset:]))
		offset += int(f.Len)
	}
	return values
}

// writeRow encodes values into dst, which must be at least RowSize() bytes.
func (td *TupleDesc) writeRow(dst []byte, values []DBValue) {
	offset := 0
	for i, f := range td.fields {
		f.write(dst[offset:], values[i])
		offset += int(f.Len)
	}
}
