package tabular

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSVCellTyping(t *testing.T) {
	src, err := ReadCSV(strings.NewReader("id,name,salary,company_id\n1,Ada,900.5,10\n2,Bob,,NaN\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name", "salary", "company_id"}, src.Columns())
	rows := src.Records()
	require.Len(t, rows, 2)

	assert.Equal(t, float64(1), rows[0]["id"])
	assert.Equal(t, "Ada", rows[0]["name"])
	assert.Equal(t, 900.5, rows[0]["salary"])
	assert.Equal(t, float64(10), rows[0]["company_id"])

	assert.Nil(t, rows[1]["salary"], "empty cells are missing")
	assert.Nil(t, rows[1]["company_id"], "NaN cells are missing")
}

func TestReadCSVShortRow(t *testing.T) {
	cr := "a,b,c\n1,2\n"
	// encoding/csv rejects ragged rows by default; keep FieldsPerRecord
	// behavior visible here so regressions surface.
	_, err := ReadCSV(strings.NewReader(cr))
	assert.Error(t, err)
}

func TestDirOpenAppendsExtension(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wells.csv"), []byte("id\n1\n"), 0o644))

	src, err := Dir{Root: dir}.Open("wells")
	require.NoError(t, err)
	assert.Len(t, src.Records(), 1)

	_, err = Dir{Root: dir}.Open("absent")
	assert.Error(t, err)
}

func TestIsMissing(t *testing.T) {
	assert.True(t, IsMissing(nil))
	assert.True(t, IsMissing(math.NaN()))
	assert.True(t, IsMissing("  "))
	assert.False(t, IsMissing(0.0))
	assert.False(t, IsMissing("x"))
}
