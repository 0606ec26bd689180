package version

// Build-time variables set by ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Format is the version tag written into every page and manifest document.
// Readers of the .mokuro format key their compatibility checks on it.
const Format = "0.2.1"

// Info returns version information
func Info() (string, string, string) {
	return Version, GitCommit, BuildDate
}
