// Package export writes snapshot backups and history reports to disk.
package export

import (
	"fmt"
	"os"

	"github.com/sadopc/lockstep/internal/store"
)

// SnapshotToJSON writes the full snapshot as an indented JSON backup. The
// resulting file can be fed back through the store's Import.
func SnapshotToJSON(s *store.Store, path string) error {
	data, err := s.Export()
	if err != nil {
		return fmt.Errorf("export snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write json file: %w", err)
	}
	return nil
}
