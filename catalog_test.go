package pagedb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogCreateAndLookup(t *testing.T) {
	cat := NewCatalog(t.TempDir())
	desc := testSchema()
	require.NoError(t, cat.CreateTable("people", desc))

	hf, err := cat.Table("people")
	require.NoError(t, err)
	assert.True(t, hf.Schema().Equal(&desc))

	_, err = cat.TableById(hf.Id())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"people"}, cat.TableNames())
}

func TestCatalogCreateDuplicateFails(t *testing.T) {
	cat := NewCatalog(t.TempDir())
	desc := testSchema()
	require.NoError(t, cat.CreateTable("people", desc))
	err := cat.CreateTable("people", desc)
	assert.Error(t, err)
}

func TestCatalogDropRemovesTableAndFile(t *testing.T) {
	cat := NewCatalog(t.TempDir())
	desc := testSchema()
	require.NoError(t, cat.CreateTable("people", desc))
	hf, err := cat.Table("people")
	require.NoError(t, err)
	path := hf.Path()

	require.NoError(t, cat.DropTable("people"))
	_, err = cat.Table("people")
	assert.IsType(t, NoSuchElementError{}, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestCatalogDropUnknownTableFails(t *testing.T) {
	cat := NewCatalog(t.TempDir())
	err := cat.DropTable("ghost")
	assert.IsType(t, NoSuchElementError{}, err)
}

func TestCatalogLoadFileParsesLines(t *testing.T) {
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.txt")
	contents := "people (id int pk, name string)\norders (id int pk, total int)\n"
	require.NoError(t, os.WriteFile(catalogPath, []byte(contents), 0644))

	cat := NewCatalog(dir)
	require.NoError(t, cat.LoadFile(catalogPath))

	assert.ElementsMatch(t, []string{"people", "orders"}, cat.TableNames())

	people, err := cat.Table("people")
	require.NoError(t, err)
	assert.Equal(t, 2, people.Schema().NumFields())
	assert.Equal(t, IntType, people.Schema().FieldType(0))
	assert.Equal(t, StringType, people.Schema().FieldType(1))
}

func TestCatalogLoadFileRejectsMalformedLine(t *testing.T) {
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.txt")
	contents := "people (id int pk)\nbroken line that is not valid\n"
	require.NoError(t, os.WriteFile(catalogPath, []byte(contents), 0644))

	cat := NewCatalog(dir)
	err := cat.LoadFile(catalogPath)
	assert.Error(t, err)
}
