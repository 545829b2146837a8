package overlay

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modkit/cli/internal/selection"
	"github.com/modkit/cli/internal/testutil"
)

func TestCopyTree(t *testing.T) {
	fs := afero.NewMemMapFs()
	testutil.WriteFiles(t, fs, "/", map[string]string{
		"src/a.txt":     "new a",
		"src/sub/b.txt": "b",
		"src/empty/":    "",
		"dst/a.txt":     "old a",
		"dst/keep.txt":  "keep",
		"dst/sub/c.txt": "c",
	})

	n, err := CopyTree(fs, "/src", "/dst")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, "new a", testutil.ReadFile(t, fs, "/dst/a.txt"))
	assert.Equal(t, "b", testutil.ReadFile(t, fs, "/dst/sub/b.txt"))
	assert.Equal(t, "keep", testutil.ReadFile(t, fs, "/dst/keep.txt"))
	assert.Equal(t, "c", testutil.ReadFile(t, fs, "/dst/sub/c.txt"))
	assert.True(t, testutil.Exists(fs, "/dst/empty"))
}

func TestCopyTree_Errors(t *testing.T) {
	fs := afero.NewMemMapFs()
	testutil.WriteFiles(t, fs, "/", map[string]string{"file.txt": "x"})

	_, err := CopyTree(fs, "/missing", "/dst")
	assert.Error(t, err)

	_, err = CopyTree(fs, "/file.txt", "/dst")
	assert.Error(t, err)
}

func newCopier(fs afero.Fs) *Copier {
	return &Copier{
		Fs:             fs,
		Source:         "/src",
		Tree:           "/dst/extracted",
		OverlayDir:     "src-custom",
		SharedSuffixes: []string{"root-config", "shared"},
		CustomLibrary:  "call-center-custom/libs/cc-components/src",
	}
}

func TestCopierApply(t *testing.T) {
	fs := afero.NewMemMapFs()
	testutil.WriteFiles(t, fs, "/src", map[string]string{
		"moduleA/packages/pkg1/src-custom/app.ts":          "custom pkg1",
		"moduleA/packages/pkg1/src/app.ts":                 "not an overlay",
		"moduleA/packages/pkg3/src-custom/app.ts":          "not selected",
		"moduleA/packages/moduleA-root-config/index.ts":    "root config",
		"moduleA/packages/moduleA-shared/util.ts":          "shared",
		"moduleA/packages/notes-shared.md":                 "file, not a package",
		"call-center-custom/libs/cc-components/src/lib.ts": "library",
	})
	testutil.WriteFiles(t, fs, "/dst/extracted", map[string]string{
		"moduleA/packages/pkg1/src-custom/app.ts":  "archive version",
		"moduleA/packages/pkg1/src-custom/keep.ts": "untouched",
		"moduleA/node_modules/cache":               "cache",
	})

	sel := selection.Selection{"moduleA": {"pkg1", "pkg2"}}
	report, err := newCopier(fs).Apply(sel)
	require.NoError(t, err)

	tree := "/dst/extracted/"
	assert.Equal(t, "custom pkg1", testutil.ReadFile(t, fs, tree+"moduleA/packages/pkg1/src-custom/app.ts"))
	assert.Equal(t, "untouched", testutil.ReadFile(t, fs, tree+"moduleA/packages/pkg1/src-custom/keep.ts"))
	assert.False(t, testutil.Exists(fs, tree+"moduleA/packages/pkg1/src/app.ts"))
	assert.False(t, testutil.Exists(fs, tree+"moduleA/packages/pkg3"))
	assert.Equal(t, "root config", testutil.ReadFile(t, fs, tree+"moduleA/packages/moduleA-root-config/index.ts"))
	assert.Equal(t, "shared", testutil.ReadFile(t, fs, tree+"moduleA/packages/moduleA-shared/util.ts"))
	assert.False(t, testutil.Exists(fs, tree+"moduleA/packages/notes-shared.md"))
	assert.Equal(t, "library", testutil.ReadFile(t, fs, tree+"call-center-custom/libs/cc-components/src/lib.ts"))
	assert.Equal(t, "cache", testutil.ReadFile(t, fs, tree+"moduleA/node_modules/cache"))

	var kinds []Kind
	for _, c := range report.Copied {
		kinds = append(kinds, c.Kind)
	}
	assert.Equal(t, []Kind{KindOverride, KindShared, KindShared, KindLibrary}, kinds)
	assert.Equal(t, "call-center-custom", report.Copied[3].Module)
	assert.Equal(t, 4, report.Files())
	assert.Contains(t, report.Skipped, "moduleA/packages/pkg2/src-custom")
}

func TestCopierApply_MissingPackagesAndLibrary(t *testing.T) {
	fs := afero.NewMemMapFs()
	testutil.WriteFiles(t, fs, "/src", map[string]string{"moduleB/README.md": "no packages"})

	report, err := newCopier(fs).Apply(selection.Selection{"moduleB": {"x"}})
	require.NoError(t, err)

	assert.Empty(t, report.Copied)
	assert.ElementsMatch(t, []string{
		"moduleB/packages/x/src-custom",
		"moduleB/packages",
		"call-center-custom/libs/cc-components/src",
	}, report.Skipped)
}
