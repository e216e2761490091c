// Package buildinfo carries version metadata stamped at link time:
//
//	go build -ldflags "-X github.com/ZanzyTHEbar/conceptgraph-go/internal/buildinfo.Version=v0.3.0"
package buildinfo

var (
	Version   = "dev"
	Revision  = "unknown"
	BuildDate = "unknown"
)

// UserAgent identifies outbound HTTP requests.
func UserAgent() string {
	return "conceptgraph-go/" + Version
}
