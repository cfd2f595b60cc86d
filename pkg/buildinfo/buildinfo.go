// Package buildinfo reports the version stamped into the notetaker binary.
package buildinfo

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"
)

// ServiceName is reported by the serve command's /version endpoint.
const ServiceName = "notetaker"

// Stamped by the release build with ldflags, for example:
// -X github.com/otherjamesbrown/notetaker/pkg/buildinfo.Version=v0.3.0
// -X github.com/otherjamesbrown/notetaker/pkg/buildinfo.Commit=4e1c9a2
// -X github.com/otherjamesbrown/notetaker/pkg/buildinfo.BuildTime=2026-05-01T09:00:00Z
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info is what `notetaker version` prints and /version serves.
type Info struct {
	ServiceName string `json:"service_name" yaml:"service_name"`
	Version     string `json:"version" yaml:"version"`
	Commit      string `json:"commit" yaml:"commit"`
	BuildTime   string `json:"build_time" yaml:"build_time"`
	GoVersion   string `json:"go_version" yaml:"go_version"`
	// Uptime is only set by Handler.
	Uptime string `json:"uptime,omitempty" yaml:"uptime,omitempty"`
}

// Get returns build info for the named service.
func Get(serviceName string) Info {
	return Info{
		ServiceName: serviceName,
		Version:     Version,
		Commit:      Commit,
		BuildTime:   BuildTime,
		GoVersion:   runtime.Version(),
	}
}

// String formats the stamped build as "v0.3.0 (4e1c9a2, 2026-05-01T09:00:00Z)".
func String() string {
	return fmt.Sprintf("%s (%s, %s)", Version, Commit, BuildTime)
}

// Handler serves Get(serviceName) as JSON. A non-zero started adds the
// process uptime, truncated to seconds.
func Handler(serviceName string, started time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		info := Get(serviceName)
		if !started.IsZero() {
			info.Uptime = time.Since(started).Truncate(time.Second).String()
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(info)
	}
}
