package version

import (
	"fmt"
	"runtime/debug"
)

// Version is the release of the withgradle binary. Release builds set it with
// go build -ldflags "-X git.home.luguber.info/inful/withgradle/internal/version.Version=v1.0.0".
var Version = "unknown"

// Build metadata, also set through ldflags.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the version line printed by --version. When the binary was
// built without ldflags the VCS revision recorded by the Go toolchain is used.
func String() string {
	commit := GitCommit
	if commit == "unknown" {
		commit = vcsRevision()
	}
	return fmt.Sprintf("withgradle %s (commit %s, built %s)", Version, commit, BuildTime)
}

func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			if len(s.Value) > 12 {
				return s.Value[:12]
			}
			return s.Value
		}
	}
	return "unknown"
}
