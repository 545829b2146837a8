package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	info := Get()

	require.NotEmpty(t, info.GoVersion, "GoVersion should be populated")
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, GitCommit, info.GitCommit)
	assert.Equal(t, BuildDate, info.BuildDate)
}

func TestInfoString(t *testing.T) {
	info := Info{
		Version:   "v1.0.0",
		GitCommit: "abc123",
		BuildDate: "2026-01-29",
		GoVersion: "go1.25",
		Modules:   map[string]string{"cuelang.org/go": "v0.15.3"},
	}

	str := info.String()

	assert.Contains(t, str, "modkit version v1.0.0")
	assert.Contains(t, str, "abc123")
	assert.Contains(t, str, "2026-01-29")
	assert.Contains(t, str, "go1.25")
	assert.Contains(t, str, "cuelang.org/go v0.15.3")
	assert.NotContains(t, str, "minio")
}

func TestModuleVersions(t *testing.T) {
	deps := []*debug.Module{
		{Path: "cuelang.org/go", Version: "v0.15.3"},
		{Path: "github.com/spf13/cobra", Version: "v1.10.2"},
		{
			Path:    "github.com/klauspost/compress",
			Version: "v1.18.0",
			Replace: &debug.Module{Path: "github.com/klauspost/compress", Version: "v1.18.1"},
		},
	}

	got := moduleVersions(deps)

	assert.Equal(t, map[string]string{
		"cuelang.org/go":                "v0.15.3",
		"github.com/klauspost/compress": "v1.18.1",
	}, got)
}
