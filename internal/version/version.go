// Package version provides version information for modkit.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Build-time variables set via ldflags.
var (
	// Version is the CLI version (set via ldflags).
	Version = "v0.0.0-dev"

	// GitCommit is the git commit hash.
	GitCommit = "unknown"

	// BuildDate is the build timestamp.
	BuildDate = "unknown"
)

// trackedModules are the dependencies reported by `modkit version`.
var trackedModules = []string{
	"cuelang.org/go",
	"github.com/klauspost/compress",
	"github.com/minio/minio-go/v7",
}

// Info contains version information.
type Info struct {
	// Version is the CLI version (set via ldflags).
	Version string `json:"version"`

	// GitCommit is the git commit hash.
	GitCommit string `json:"gitCommit"`

	// BuildDate is the build timestamp.
	BuildDate string `json:"buildDate"`

	// GoVersion is the Go version used to build.
	GoVersion string `json:"goVersion"`

	// Modules maps tracked dependency paths to the versions linked in.
	Modules map[string]string `json:"modules,omitempty"`
}

// Get returns the current version information.
func Get() Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info.Modules = moduleVersions(bi.Deps)
	}
	return info
}

func moduleVersions(deps []*debug.Module) map[string]string {
	out := make(map[string]string)
	for _, d := range deps {
		for _, path := range trackedModules {
			if d.Path != path {
				continue
			}
			if d.Replace != nil {
				d = d.Replace
			}
			out[path] = d.Version
		}
	}
	return out
}

// String returns a human-readable version string.
func (i Info) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "modkit version %s\n", i.Version)
	fmt.Fprintf(&b, "  Commit:  %s\n", i.GitCommit)
	fmt.Fprintf(&b, "  Built:   %s\n", i.BuildDate)
	fmt.Fprintf(&b, "  Go:      %s", i.GoVersion)
	for _, path := range trackedModules {
		if v, ok := i.Modules[path]; ok {
			fmt.Fprintf(&b, "\n  %s %s", path, v)
		}
	}
	return b.String()
}
