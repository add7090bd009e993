package buildconfig

import "fmt"

// Set at link time with -ldflags "-X github.com/Harshitk-cp/collective/internal/buildconfig.version=...".
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = ""
)

func Version() string {
	return version
}

func Commit() string {
	return commit
}

// VersionInfo is reported by the version command and /health.
func VersionInfo() map[string]string {
	info := map[string]string{
		"version": version,
		"commit":  commit,
	}
	if buildDate != "" {
		info["build_date"] = buildDate
	}
	return info
}

func String() string {
	if buildDate == "" {
		return fmt.Sprintf("collective %s (%s)", version, commit)
	}
	return fmt.Sprintf("collective %s (%s, built %s)", version, commit, buildDate)
}
