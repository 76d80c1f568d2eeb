// Package version reports the sitebuilder release. Release builds set the
// variables with -ldflags "-X git.home.luguber.info/inful/sitebuilder/internal/version.Version=v1.2.3".
package version

import (
	"fmt"
	"runtime/debug"
)

var (
	Version   = "dev"
	GitCommit = ""
	BuildTime = ""
)

// String renders the version line printed by --version. A missing commit is
// taken from the VCS stamp the Go toolchain embeds in the binary.
func String() string {
	commit, built := GitCommit, BuildTime
	if commit == "" || built == "" {
		c, b := vcsStamp()
		if commit == "" {
			commit = c
		}
		if built == "" {
			built = b
		}
	}
	return format(Version, commit, built)
}

func format(v, commit, built string) string {
	if len(commit) > 12 {
		commit = commit[:12]
	}
	switch {
	case commit == "" && built == "":
		return v
	case built == "":
		return fmt.Sprintf("%s (%s)", v, commit)
	case commit == "":
		return fmt.Sprintf("%s (built %s)", v, built)
	}
	return fmt.Sprintf("%s (%s, built %s)", v, commit, built)
}

func vcsStamp() (commit, built string) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			commit = s.Value
		case "vcs.time":
			built = s.Value
		}
	}
	return commit, built
}
