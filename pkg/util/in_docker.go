package util

import "os"

// Marker files container runtimes drop in the root filesystem
var containerMarkers = []string{"/.dockerenv", "/run/.containerenv"}

// IsRunningInDocker reports whether the process runs inside a Docker or
// Podman container
func IsRunningInDocker() bool {
	for _, m := range containerMarkers {
		if _, err := os.Stat(m); err == nil {
			return true
		}
	}

	return false
}
