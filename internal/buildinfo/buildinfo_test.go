package buildinfo

import (
	"runtime"
	"runtime/debug"
	"testing"
)

//nolint:paralleltest // mutates package globals
func TestCurrentPrefersInjectedMetadata(t *testing.T) {
	restore := stub(t, "1.2.3-test", "abcdef123456", "2024-05-01T00:00:00Z", &debug.BuildInfo{
		Main:     debug.Module{Version: "v9.9.9"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "fromvcs"}},
	})
	defer restore()

	info := Current()
	if info.Version != "1.2.3-test" {
		t.Fatalf("expected version \"1.2.3-test\", got %q", info.Version)
	}

	if info.GitCommit != "abcdef123456" {
		t.Fatalf("expected git commit \"abcdef123456\", got %q", info.GitCommit)
	}

	if info.GoVersion != runtime.Version() {
		t.Fatalf("expected go version %q, got %q", runtime.Version(), info.GoVersion)
	}
}

//nolint:paralleltest // mutates package globals
func TestCurrentFallsBackToEmbeddedBuildInfo(t *testing.T) {
	restore := stub(t, "dev", "unknown", "unknown", &debug.BuildInfo{
		Main: debug.Module{Version: "v0.4.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123abcd"},
			{Key: "vcs.time", Value: "2025-01-02T03:04:05Z"},
		},
	})
	defer restore()

	info := Current()
	if info.Version != "v0.4.0" || info.GitCommit != "0123abcd" || info.BuildDate != "2025-01-02T03:04:05Z" {
		t.Fatalf("unexpected fallback metadata: %+v", info)
	}
}

//nolint:paralleltest // mutates package globals
func TestCurrentIgnoresDevelModuleVersion(t *testing.T) {
	restore := stub(t, "dev", "unknown", "unknown", &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})
	defer restore()

	if got := Current().Version; got != "dev" {
		t.Fatalf("expected version \"dev\", got %q", got)
	}
}

func TestInfoString(t *testing.T) {
	t.Parallel()

	info := Info{Version: "v1.0.0", GitCommit: "abc", BuildDate: "today", GoVersion: "go1.24.4"}
	if got, want := info.String(), "gpuctl v1.0.0 (commit abc, built today, go1.24.4)"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func stub(t *testing.T, version, commit, date string, embedded *debug.BuildInfo) func() {
	t.Helper()

	originalVersion, originalCommit, originalDate, originalRead := Version, GitCommit, BuildDate, readBuildInfo
	Version, GitCommit, BuildDate = version, commit, date
	readBuildInfo = func() (*debug.BuildInfo, bool) { return embedded, embedded != nil }

	return func() {
		Version, GitCommit, BuildDate, readBuildInfo = originalVersion, originalCommit, originalDate, originalRead
	}
}
