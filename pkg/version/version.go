// Package version exposes build metadata of the multisum binary.
package version

import (
	"fmt"
	"runtime/debug"
)

// Build metadata, overridden at link time with -ldflags "-X".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const shortCommitLen = 12

// InitBinaryVersion fills Version and Commit from the embedded module build
// info when they were not set at link time.
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	apply(info)
}

func apply(info *debug.BuildInfo) {
	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if Commit == "none" {
				Commit = s.Value
				if len(Commit) > shortCommitLen {
					Commit = Commit[:shortCommitLen]
				}
			}
		case "vcs.time":
			if Date == "unknown" {
				Date = s.Value
			}
		}
	}
}

// String returns the one-line version banner.
func String() string {
	return fmt.Sprintf("multisum %s (commit: %s, built: %s)", Version, Commit, Date)
}
