// Package main provides the entry point for sessfile.
//
// sessfile maintains a directory of file-backed sessions:
//
//   - Purge expired, corrupt and abandoned temporary files once or periodically
//   - Inspect, list and remove individual sessions
//   - Show and validate the effective configuration
//
// Usage:
//
//	sessfile --dir /var/lib/sessfile ls
//	sessfile --config /etc/sessfile.yaml sweep --metrics-addr :9310
//	sessfile -o json purge
package main
