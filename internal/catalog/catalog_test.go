package catalog

import (
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	oerrors "github.com/modkit/cli/internal/errors"
	"github.com/modkit/cli/internal/testutil"
)

func TestRead(t *testing.T) {
	fs := afero.NewMemMapFs()
	testutil.WriteFiles(t, fs, "/src", map[string]string{
		"moduleA/packages/pkg2/index.ts":  "b",
		"moduleA/packages/pkg1/index.ts":  "a",
		"moduleA/packages/README.md":      "not a package",
		"moduleB/packages/":               "",
		"lib/index.ts":                    "no packages dir",
		"notes.txt":                       "top-level file",
		"weird/packages":                  "packages is a file here",
		"call-center-custom/packages/x/a": "x",
	})

	cat, err := Read(fs, "/src")
	require.NoError(t, err)

	assert.Equal(t, Catalog{
		"moduleA":            {"pkg1", "pkg2"},
		"moduleB":            {},
		"call-center-custom": {"x"},
	}, cat)
	assert.Equal(t, []string{"call-center-custom", "moduleA", "moduleB"}, cat.Modules())
}

func TestRead_Errors(t *testing.T) {
	fs := afero.NewMemMapFs()
	testutil.WriteFiles(t, fs, "/", map[string]string{"file.txt": "x"})

	tests := []struct {
		name string
		root string
	}{
		{name: "missing root", root: "/nope"},
		{name: "root is a file", root: "/file.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(fs, tt.root)
			require.Error(t, err)
			assert.True(t, errors.Is(err, oerrors.ErrRead))

			var detail *oerrors.DetailError
			require.True(t, errors.As(err, &detail))
			assert.Equal(t, tt.root, detail.Location)
		})
	}
}

func TestCatalogHas(t *testing.T) {
	cat := Catalog{"moduleA": {"pkg1", "pkg2"}}

	assert.True(t, cat.Has("moduleA", ""))
	assert.True(t, cat.Has("moduleA", "pkg2"))
	assert.False(t, cat.Has("moduleA", "pkg3"))
	assert.False(t, cat.Has("moduleB", ""))
}
