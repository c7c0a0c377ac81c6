// Package buildinfo provides build information for sessfile.
//
// Values are injected at build time via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/sessfile-go/internal/infra/buildinfo.Version=v1.0.0"
//
// When they are not set, Get falls back to what the Go toolchain embedded
// in the binary (module version, VCS revision and time).
package buildinfo
