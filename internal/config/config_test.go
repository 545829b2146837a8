package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NotNil(t, cfg)
	assert.Equal(t, "source.tar", cfg.Archive)
	assert.Equal(t, []string{"call-center-custom", "lib", "container-build"}, cfg.AlwaysInclude)
	assert.Equal(t, "node_modules", cfg.CacheDir)
	assert.Equal(t, "src-custom", cfg.OverlayDir)
	assert.Equal(t, []string{"root-config", "shared"}, cfg.SharedSuffixes)
	assert.Equal(t, "package-customization.json", cfg.Manifest)
	assert.Equal(t, time.Hour, cfg.Timeout)

	require.Len(t, cfg.Phases, 6)
	assert.Equal(t, "yarn install", cfg.Phases[0].Command)
	assert.True(t, cfg.Phases[2].TolerateFailure, "unlink phase tolerates failure")
	assert.Equal(t, "yarn unlink", cfg.Phases[2].Command)
	for i, p := range cfg.Phases {
		if i != 2 {
			assert.False(t, p.TolerateFailure, p.Name)
		}
	}
	assert.True(t, cfg.Phases[4].AppendModules)
	assert.True(t, cfg.Phases[5].AppendModules)
}

func TestWithDefaults(t *testing.T) {
	cfg := (&Config{
		Source:   "/src",
		CacheDir: ".yarn-cache",
		Timeout:  5 * time.Minute,
	}).WithDefaults()

	assert.Equal(t, "/src", cfg.Source)
	assert.Equal(t, ".yarn-cache", cfg.CacheDir, "explicit value kept")
	assert.Equal(t, 5*time.Minute, cfg.Timeout, "explicit value kept")
	assert.Equal(t, "source.tar", cfg.Archive, "default applied")
	assert.Len(t, cfg.Phases, 6)
}

func TestWithDefaults_EmptyListsAreKept(t *testing.T) {
	cfg := (&Config{AlwaysInclude: []string{}, Phases: []PhaseConfig{}}).WithDefaults()
	assert.Empty(t, cfg.AlwaysInclude)
	assert.Empty(t, cfg.Phases)
}

func TestArchiveRef(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		archive string
		want    string
	}{
		{"relative joins source", "/src", "source.tar", filepath.Join("/src", "source.tar")},
		{"absolute kept", "/src", "/archives/a.tar.gz", "/archives/a.tar.gz"},
		{"remote kept", "/src", "s3://bucket/source.tar", "s3://bucket/source.tar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Source: tt.source, Archive: tt.archive}
			assert.Equal(t, tt.want, cfg.ArchiveRef())
		})
	}
}

func TestExtractedRoot(t *testing.T) {
	cfg := &Config{Destination: "/dst"}
	assert.Equal(t, filepath.Join("/dst", "extracted"), cfg.ExtractedRoot())
}

func TestDefaultConfigYAML(t *testing.T) {
	data, err := DefaultConfigYAML()
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, yaml.Unmarshal(data, &raw))
	assert.Equal(t, "1h0m0s", raw["timeout"])
	assert.Equal(t, "node_modules", raw["cacheDir"])
	assert.NotContains(t, raw, "s3", "empty credentials are omitted")
}
