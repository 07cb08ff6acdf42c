package core

// Build metadata, injected with:
//
//	go build -ldflags "-X nanobanana/core.Version=$(git describe --tags --always) \
//	  -X nanobanana/core.GitCommit=$(git rev-parse --short HEAD) \
//	  -X nanobanana/core.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" .
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// GetVersionInfo returns "<version> (built <time>, commit <hash>)".
func GetVersionInfo() string {
	return Version + " (built " + BuildTime + ", commit " + GitCommit + ")"
}
