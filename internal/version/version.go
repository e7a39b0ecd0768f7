package version

// Version is the treestate release, set at build time:
// go build -ldflags "-X git.home.luguber.info/inful/treestate/internal/version.Version=v0.1.0".
var Version = "dev"

// Build metadata, set the same way as Version.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the version with its build metadata.
func String() string {
	if GitCommit == "unknown" {
		return Version
	}
	return Version + " (" + GitCommit + ", " + BuildTime + ")"
}
