package pagedb

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// queryLexer and the grammar below parse the small SQL-like surface this
// engine accepts: CREATE TABLE, DROP TABLE, INSERT, and a SELECT with an
// optional single-predicate WHERE clause. There is no general arithmetic
// expression tree — Filter and Join each take one Predicate/JoinPredicate,
// and nothing here evaluates arbitrary expressions.
var queryLexer = lexer.MustSimple([]lexer.Rule{
	{Name: "Ident", Pattern: `[a-zA-Z][a-zA-Z_\d]*`},
	{Name: "String", Pattern: `"(?:\\.|[^"])*"`},
	{Name: "Int", Pattern: `-?\d+`},
	{Name: "Operators", Pattern: `!=|<=|>=|[,()=<>*]`},
	{Name: "comment", Pattern: `[#;][^\n]*`},
	{Name: "whitespace", Pattern: `\s+`},
})

type queryFieldType struct {
	Int    bool `@"int"`
	String bool `| @"string"`
}

type queryFieldDescription struct {
	Name string          `@Ident`
	Type *queryFieldType `@@`
}

type QueryCreate struct {
	Table  string                  `"create" "table" @Ident`
	Fields []queryFieldDescription `"(" @@ ("," @@)* ")"`
}

type QueryDrop struct {
	Table string `"drop" "table" @Ident`
}

type queryLiteral struct {
	Int *int32  `@Int`
	Str *string `| @String`
}

func (l *queryLiteral) toValue() DBValue {
	if l.Int != nil {
		return IntField(*l.Int)
	}
	return StringField(*l.Str)
}

type queryTuple struct {
	Values []queryLiteral `"(" @@ ("," @@)* ")"`
}

type QueryInsert struct {
	Table string       `"insert" "into" @Ident`
	Rows  []queryTuple `"values" @@ ("," @@)*`
}

type queryProjection struct {
	All    bool     `@"*"`
	Fields []string `| @Ident ("," @Ident)*`
}

type queryCompareOp struct {
	Op CompareOp `@("=" | "!=" | "<=" | ">=" | "<" | ">")`
}

func (o *queryCompareOp) Capture(s []string) error {
	switch s[0] {
	case "=":
		o.Op = Equals
	case "!=":
		o.Op = NotEquals
	case "<":
		o.Op = LessThan
	case "<=":
		o.Op = LessThanOrEqual
	case ">":
		o.Op = GreaterThan
	case ">=":
		o.Op = GreaterThanOrEqual
	}
	return nil
}

type queryWhere struct {
	Field string         `@Ident`
	Op    queryCompareOp `@@`
	Value queryLiteral   `@@`
}

type QuerySelect struct {
	Projection queryProjection `"select" @@`
	Table      string          `"from" @Ident`
	Where      *queryWhere     `["where" @@]`
}

// Query is the top-level parse result: exactly one of the four statement
// kinds is non-nil.
type Query struct {
	Create *QueryCreate `@@`
	Drop   *QueryDrop   `| @@`
	Insert *QueryInsert `| @@`
	Select *QuerySelect `| @@`
}

var queryParser = participle.MustBuild(&Query{},
	participle.Lexer(queryLexer),
	participle.Unquote("String"),
)

// ParseQuery parses one statement.
func ParseQuery(query string) (*Query, error) {
	q := &Query{}
	if err := queryParser.ParseString("", query, q); err != nil {
		return nil, newDbError(MalformedData, "parsing query: %v", err)
	}
	return q, nil
}
