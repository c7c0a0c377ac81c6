//go:build windows

package filestore

// syncDirectory is a no-op: directory handles cannot be flushed on Windows
// and MoveFileEx already commits the rename to the journal.
func syncDirectory(string) error {
	return nil
}
