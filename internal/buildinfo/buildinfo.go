// Package buildinfo exposes version metadata injected at build time.
package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

const develVersion = "(devel)"

// Info identifies a gpuctl build.
type Info struct {
	Version   string `json:"version"   yaml:"version"`
	GitCommit string `json:"gitCommit" yaml:"gitCommit"`
	BuildDate string `json:"buildDate" yaml:"buildDate"`
	GoVersion string `json:"goVersion" yaml:"goVersion"`
}

// Overridden with -ldflags "-X oci-gpu-toolkit/internal/buildinfo.Version=..." in releases.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

//nolint:gochecknoglobals // replaceable for tests
var readBuildInfo = debug.ReadBuildInfo

// Current returns the build metadata. Builds without -ldflags fall back to the module
// version and VCS stamp recorded by the Go toolchain.
func Current() Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}

	embedded, ok := readBuildInfo()
	if !ok {
		return info
	}

	if info.Version == "dev" && embedded.Main.Version != "" && embedded.Main.Version != develVersion {
		info.Version = embedded.Main.Version
	}

	for _, setting := range embedded.Settings {
		switch setting.Key {
		case "vcs.revision":
			if info.GitCommit == "unknown" {
				info.GitCommit = setting.Value
			}
		case "vcs.time":
			if info.BuildDate == "unknown" {
				info.BuildDate = setting.Value
			}
		}
	}

	return info
}

// String renders the one-line form printed by `gpuctl version`.
func (i Info) String() string {
	return fmt.Sprintf("gpuctl %s (commit %s, built %s, %s)", i.Version, i.GitCommit, i.BuildDate, i.GoVersion)
}
