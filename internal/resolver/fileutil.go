package resolver

import (
	"os"
	"path/filepath"
)

// writeFileAll writes data to path, creating any missing parent
// directories first.
func writeFileAll(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
