package pagedb

import (
	"encoding/binary"
	"strconv"
	"strings"
)

// FieldType enumerates the field types a column can hold: plain int32s and
// fixed-width strings.
type FieldType uint8

const (
	IntType FieldType = iota
	StringType
)

func (t FieldType) String() string {
	switch t {
	case IntType:
		return "int"
	case StringType:
		return "string"
	default:
		return "<invalid field type>"
	}
}

// DBValue is one field's worth of data: a discriminated union of the two
// supported field types.
type DBValue struct {
	Type FieldType
	I    int32
	S    string
}

func IntField(v int32) DBValue    { return DBValue{Type: IntType, I: v} }
func StringField(v string) DBValue { return DBValue{Type: StringType, S: v} }

func (v DBValue) String() string {
	switch v.Type {
	case IntType:
		return strconv.FormatInt(int64(v.I), 10)
	case StringType:
		return strings.TrimRight(v.S, "\x00")
	default:
		return "<invalid value>"
	}
}

// Equal compares two values structurally, including their type: a DBValue
// is only equal to another of the same FieldType with matching contents.
func (v DBValue) Equal(other DBValue) bool {
	return v.Type == other.Type && v.I == other.I && v.S == other.S
}

// field describes one column: its name, type, and — for strings — its
// fixed on-disk width.
type field struct {
	Name string
	Type FieldType
	Len  uint8 // byte width on disk; 4 for ints, configured for strings
}

func (f *field) typecheck(v DBValue) error {
	if f.Type != v.Type {
		return newDbError(TypeMismatch, "field %v expects %v, got %v", f.Name, f.Type, v.Type)
	}
	if f.Type == StringType && len(v.S) > int(f.Len) {
		return newDbError(TypeMismatch, "value for %v is too long (max %v)", f.Name, f.Len)
	}
	return nil
}

func (f *field) read(data []byte) DBValue {
	switch f.Type {
	case IntType:
		return IntField(int32(binary.LittleEndian.Uint32(data)))
	case StringType:
		return StringField(strings.TrimRight(string(data[:f.Len]), "\x00"))
	default:
		panic("unhandled field type")
	}
}

func (f *field) write(dst []byte, v DBValue) {
	switch f.Type {
	case IntType:
		binary.LittleEndian.PutUint32(dst, uint32(v.I))
	case StringType:
		n := copy(dst, v.S)
		for i := n; i < int(f.Len); i++ {
			dst[i] = 0
		}
	default:
		panic("unhandled field type")
	}
}
