package version

// Version is the semver of the current build, overridable at link time.
var Version = "0.1.0"

func GetCurrentVersion() string {
	return Version
}
