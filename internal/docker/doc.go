// Package docker provides Docker Engine API wrappers used by the container
// analyzer backend of analyze-packages.
//
// This package handles:
//   - Docker client initialization with automatic socket detection
//     (Linux, macOS, Windows)
//   - Labels that mark analyzer containers, so leftovers from an interrupted
//     run can be found and removed later
//   - The create/start/stream/wait/remove cycle of one analyzer container
//
// The package uses github.com/docker/docker/client as the underlying
// Docker SDK, with version negotiation enabled for broad compatibility.
package docker
