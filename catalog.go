package pagedb

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// catalogLexer and the grammar below parse one catalog line of the form
// "name (field type[, field type]*)", where type is int or string and a
// field may carry a trailing "pk".
var catalogLexer = lexer.MustSimple([]lexer.Rule{
	{Name: "Ident", Pattern: `[a-zA-Z][a-zA-Z_\d]*`},
	{Name: "Punct", Pattern: `[(),]`},
	{Name: "comment", Pattern: `#[^\n]*`},
	{Name: "whitespace", Pattern: `\s+`},
})

type catalogFieldType struct {
	Int    bool `@"int"`
	String bool `| @"string"`
}

type catalogField struct {
	Name string            `@Ident`
	Type *catalogFieldType `@@`
	PK   bool              `@"pk"?`
}

type catalogLine struct {
	Table  string         `@Ident`
	Fields []catalogField `"(" @@ ("," @@)* ")"`
}

var catalogParser = participle.MustBuild(&catalogLine{}, participle.Lexer(catalogLexer))

// CatalogEntry is one parsed table: its name and the HeapFile backing it
// (which carries the table's schema).
type CatalogEntry struct {
	Name string
	File *HeapFile
}

// Catalog is the name/id -> *HeapFile mapping: it owns the mapping from
// table name to its backing HeapFile and indexes the same entries by the
// HeapFile's own path-derived id.
type Catalog struct {
	mu      sync.RWMutex
	baseDir string
	byName  map[string]*CatalogEntry
	byId    map[int]*CatalogEntry
}

// NewCatalog builds an empty catalog rooted at baseDir, where every table's
// data file lives at "<baseDir>/<name>.dat".
func NewCatalog(baseDir string) *Catalog {
	return &Catalog{
		baseDir: baseDir,
		byName:  make(map[string]*CatalogEntry),
		byId:    make(map[int]*CatalogEntry),
	}
}

// LoadFile parses a catalog file, opening (creating if necessary) a
// HeapFile for each table line. One malformed line (unknown type or
// annotation) is a fatal error for the whole load.
func (c *Catalog) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return newDbError(MalformedData, "opening catalog %s: %v", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if len(line) == 0 {
			continue
		}
		if err := c.loadLine(line); err != nil {
			return newDbError(MalformedData, "catalog line %d: %v", lineNo, err)
		}
	}
	return scanner.Err()
}

func (c *Catalog) loadLine(line string) error {
	var parsed catalogLine
	if err := catalogParser.ParseString("", line, &parsed); err != nil {
		return err
	}

	specs := make([]FieldSpec, 0, len(parsed.Fields))
	for _, f := range parsed.Fields {
		spec := FieldSpec{Name: f.Name, IsPK: f.PK}
		switch {
		case f.Type.Int:
			spec.Type = IntType
		case f.Type.String:
			spec.Type = StringType
			spec.StrLen = 64
		default:
			return fmt.Errorf("field %v has unknown type", f.Name)
		}
		specs = append(specs, spec)
	}

	return c.CreateTable(parsed.Table, NewTupleDesc(specs))
}

// CreateTable registers a new table, opening its backing HeapFile.
func (c *Catalog) CreateTable(name string, desc TupleDesc) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.byName[name]; ok {
		return newDbError(MalformedData, "table %v already exists", name)
	}

	path := filepath.Join(c.baseDir, name+".dat")
	hf, err := NewHeapFile(desc, path)
	if err != nil {
		return err
	}
	entry := &CatalogEntry{Name: name, File: hf}
	c.byName[name] = entry
	c.byId[hf.Id()] = entry
	return nil
}

// DropTable removes name from the catalog and deletes its backing file.
func (c *Catalog) DropTable(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.byName[name]
	if !ok {
		return NoSuchElementError{What: fmt.Sprintf("table %v", name)}
	}
	delete(c.byName, name)
	delete(c.byId, entry.File.Id())
	return os.Remove(entry.File.Path())
}

// Table looks up a table by name.
func (c *Catalog) Table(name string) (*HeapFile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.byName[name]
	if !ok {
		return nil, NoSuchElementError{What: fmt.Sprintf("table %v", name)}
	}
	return entry.File, nil
}

// TableById looks up a table by its path-derived id (the Table field of
// every PageId belonging to it).
func (c *Catalog) TableById(id int) (*HeapFile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.byId[id]
	if !ok {
		return nil, NoSuchElementError{What: fmt.Sprintf("table id %v", id)}
	}
	return entry.File, nil
}

// TableNames lists every registered table, in no particular order.
func (c *Catalog) TableNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.byName))
	for name := range c.byName {
		names = append(names, name)
	}
	return names
}
