package taxios

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

const modulePath = "github.com/sivanzheng/taxios"

// Set with -ldflags "-X github.com/sivanzheng/taxios.version=..." to override
// what the module build info reports.
var (
	version = ""
	commit  = ""
)

// BuildInfo identifies the taxios build linked into the running binary.
type BuildInfo struct {
	Version   string
	Commit    string
	GoVersion string
}

// ReadBuildInfo resolves the library version from linker flags, falling back
// to the module dependency list and VCS stamp of the main binary.
func ReadBuildInfo() BuildInfo {
	info := BuildInfo{Version: version, Commit: commit, GoVersion: runtime.Version()}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info.withDefaults()
	}

	if info.Version == "" {
		if bi.Main.Path == modulePath {
			info.Version = bi.Main.Version
		}
		for _, dep := range bi.Deps {
			if dep.Path == modulePath {
				info.Version = dep.Version
				if dep.Replace != nil {
					info.Version = dep.Replace.Version
				}
			}
		}
	}
	if info.Commit == "" && bi.Main.Path == modulePath {
		for _, setting := range bi.Settings {
			if setting.Key == "vcs.revision" {
				info.Commit = setting.Value
			}
		}
	}

	return info.withDefaults()
}

func (b BuildInfo) withDefaults() BuildInfo {
	if b.Version == "" {
		b.Version = "(devel)"
	}
	if b.Commit == "" {
		b.Commit = "unknown"
	}
	return b
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("taxios %s (commit %s, %s)", b.Version, b.Commit, b.GoVersion)
}

// Labels returns the build info as Prometheus constant labels.
func (b BuildInfo) Labels() map[string]string {
	return map[string]string{
		"version":    b.Version,
		"commit":     b.Commit,
		"go_version": b.GoVersion,
	}
}
