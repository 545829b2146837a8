package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCatalogTable(t *testing.T) {
	tbl := NewCatalogTable().
		Add("moduleA", []string{"pkg1", "pkg2"}).
		Add("moduleB", nil)

	out := tbl.String()
	assert.Equal(t, 2, tbl.Len())
	assert.Contains(t, out, "MODULE")
	assert.Contains(t, out, "SUB-PACKAGES")
	assert.Contains(t, out, "moduleA")
	assert.Contains(t, out, "pkg1, pkg2")
	assert.Contains(t, out, "-")
}
