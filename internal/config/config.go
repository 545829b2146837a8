// Package config provides configuration loading and management.
package config

import (
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultTimeout bounds each external build phase.
const DefaultTimeout = time.Hour

// PhaseConfig describes one external command of the build pipeline.
type PhaseConfig struct {
	// Name labels the phase in progress output.
	Name string `mapstructure:"name" yaml:"name" json:"name"`

	// Module is the label attached to progress events of this phase.
	// Defaults to the first segment of Dir.
	Module string `mapstructure:"module" yaml:"module,omitempty" json:"module,omitempty"`

	// Dir is the working directory, relative to the extracted tree.
	Dir string `mapstructure:"dir" yaml:"dir" json:"dir"`

	// Command is a shell-style command line, e.g. "yarn install".
	Command string `mapstructure:"command" yaml:"command" json:"command"`

	// TolerateFailure treats a non-zero exit as success.
	TolerateFailure bool `mapstructure:"tolerateFailure" yaml:"tolerateFailure,omitempty" json:"tolerateFailure,omitempty"`

	// AppendModules appends the selected module names as extra arguments.
	AppendModules bool `mapstructure:"appendModules" yaml:"appendModules,omitempty" json:"appendModules,omitempty"`
}

// S3Config holds credentials for archives referenced as s3://bucket/key.
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Region    string `mapstructure:"region" yaml:"region,omitempty" json:"region,omitempty"`
	AccessKey string `mapstructure:"accessKey" yaml:"accessKey,omitempty" json:"accessKey,omitempty"`
	SecretKey string `mapstructure:"secretKey" yaml:"secretKey,omitempty" json:"secretKey,omitempty"`
	UseSSL    bool   `mapstructure:"useSSL" yaml:"useSSL,omitempty" json:"useSSL,omitempty"`
}

// LogConfig contains logging-related settings.
type LogConfig struct {
	// Timestamps controls whether timestamps are shown in log output.
	// Default: true. Override with --timestamps flag.
	Timestamps *bool `mapstructure:"timestamps" yaml:"timestamps,omitempty" json:"timestamps,omitempty"`
}

// Config represents the modkit configuration.
// Loaded from ~/.modkit/config.yaml; MODKIT_* environment variables override it.
type Config struct {
	// Source is the monolithic source tree root.
	// Env: MODKIT_SOURCE
	Source string `mapstructure:"source" yaml:"source,omitempty" json:"source,omitempty"`

	// Destination is the root under which "extracted" is reconciled.
	// Env: MODKIT_DESTINATION
	Destination string `mapstructure:"destination" yaml:"destination,omitempty" json:"destination,omitempty"`

	// Archive is the archive path, relative to Source unless absolute,
	// or an s3://bucket/key reference.
	Archive string `mapstructure:"archive" yaml:"archive" json:"archive"`

	// AlwaysInclude lists top-level folders extracted regardless of selection.
	AlwaysInclude []string `mapstructure:"alwaysInclude" yaml:"alwaysInclude" json:"alwaysInclude"`

	// CacheDir is the dependency-cache directory name preserved across rebuilds.
	CacheDir string `mapstructure:"cacheDir" yaml:"cacheDir" json:"cacheDir"`

	// OverlayDir is the per-sub-package override directory name.
	OverlayDir string `mapstructure:"overlayDir" yaml:"overlayDir" json:"overlayDir"`

	// SharedSuffixes identify sub-packages copied regardless of selection.
	SharedSuffixes []string `mapstructure:"sharedSuffixes" yaml:"sharedSuffixes" json:"sharedSuffixes"`

	// CustomLibrary is the customization-library directory copied once per build,
	// relative to both the source tree and the extracted tree.
	CustomLibrary string `mapstructure:"customLibrary" yaml:"customLibrary" json:"customLibrary"`

	// Descriptors are build-descriptor files copied verbatim per selected module.
	Descriptors []string `mapstructure:"descriptors" yaml:"descriptors" json:"descriptors"`

	// Manifest is the per-module route manifest file name.
	Manifest string `mapstructure:"manifest" yaml:"manifest" json:"manifest"`

	// Shell, when set, runs each phase as `<shell> -c "<command line>"`.
	// Env: MODKIT_SHELL
	Shell string `mapstructure:"shell" yaml:"shell,omitempty" json:"shell,omitempty"`

	// Timeout bounds each build phase.
	// Env: MODKIT_TIMEOUT
	Timeout time.Duration `mapstructure:"timeout" yaml:"-" json:"timeout"`

	// Phases is the ordered external build pipeline.
	Phases []PhaseConfig `mapstructure:"phases" yaml:"phases" json:"phases"`

	// S3 holds remote archive credentials.
	S3 S3Config `mapstructure:"s3" yaml:"s3,omitempty" json:"s3,omitempty"`

	// Log contains logging-related settings.
	Log LogConfig `mapstructure:"log" yaml:"log,omitempty" json:"log,omitempty"`
}

// customFolder is the folder holding the shared component library.
const customFolder = "call-center-custom"

// DefaultConfig returns a Config with all default values populated.
// Used by `modkit config init` to generate the initial config file.
func DefaultConfig() *Config {
	libDist := customFolder + "/dist/libs/cc-components"
	return &Config{
		Archive:        "source.tar",
		AlwaysInclude:  []string{customFolder, "lib", "container-build"},
		CacheDir:       "node_modules",
		OverlayDir:     "src-custom",
		SharedSuffixes: []string{"root-config", "shared"},
		CustomLibrary:  customFolder + "/libs/cc-components/src",
		Descriptors:    []string{"angular.json", "package.json"},
		Manifest:       "package-customization.json",
		Timeout:        DefaultTimeout,
		Phases: []PhaseConfig{
			{Name: "install", Module: customFolder, Dir: customFolder, Command: "yarn install"},
			{Name: "build-library", Module: customFolder, Dir: customFolder, Command: "yarn cc-components:prod"},
			{Name: "unlink-library", Module: customFolder, Dir: libDist, Command: "yarn unlink", TolerateFailure: true},
			{Name: "link-library", Module: customFolder, Dir: libDist, Command: "yarn link"},
			{Name: "build-ui", Module: "container-build", Dir: "container-build", Command: "./build-customization.sh build-ui", AppendModules: true},
			{Name: "package-jar", Module: "container-build", Dir: "container-build", Command: "./build-customization.sh package-jar", AppendModules: true},
		},
	}
}

// WithDefaults returns a copy of c with every unset field taken from DefaultConfig.
func (c *Config) WithDefaults() *Config {
	d := DefaultConfig()
	out := *c

	if out.Archive == "" {
		out.Archive = d.Archive
	}
	if out.AlwaysInclude == nil {
		out.AlwaysInclude = d.AlwaysInclude
	}
	if out.CacheDir == "" {
		out.CacheDir = d.CacheDir
	}
	if out.OverlayDir == "" {
		out.OverlayDir = d.OverlayDir
	}
	if out.SharedSuffixes == nil {
		out.SharedSuffixes = d.SharedSuffixes
	}
	if out.CustomLibrary == "" {
		out.CustomLibrary = d.CustomLibrary
	}
	if out.Descriptors == nil {
		out.Descriptors = d.Descriptors
	}
	if out.Manifest == "" {
		out.Manifest = d.Manifest
	}
	if out.Timeout <= 0 {
		out.Timeout = d.Timeout
	}
	if out.Phases == nil {
		out.Phases = d.Phases
	}
	return &out
}

// ArchiveRef returns the archive location: remote references and absolute
// paths are returned unchanged, relative paths are joined onto Source.
func (c *Config) ArchiveRef() string {
	if strings.HasPrefix(c.Archive, "s3://") || filepath.IsAbs(c.Archive) {
		return c.Archive
	}
	return filepath.Join(c.Source, c.Archive)
}

// ExtractedRoot returns the reconciled destination tree.
func (c *Config) ExtractedRoot() string {
	return filepath.Join(c.Destination, "extracted")
}

// MarshalYAML renders Timeout as a duration string so written files
// round-trip through the loader and the schema.
func (c Config) MarshalYAML() (interface{}, error) {
	type plain Config
	return struct {
		plain   `yaml:",inline"`
		Timeout string `yaml:"timeout"`
	}{plain(c), c.Timeout.String()}, nil
}

// DefaultConfigYAML returns the default configuration as a YAML document.
func DefaultConfigYAML() ([]byte, error) {
	body, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return nil, err
	}
	header := "# modkit configuration\n# Values may be overridden with MODKIT_* environment variables.\n"
	return append([]byte(header), body...), nil
}
