package encoder

import (
	"log"
	"os"
	"path/filepath"
	"sort"
)

// RemoveTree deletes a temp directory and everything under it, children
// before parents, so no deletion races a "directory not empty" failure.
// Individual failures are logged, never escalated: leftover temp files
// must not fail a transcoding job that already produced its output.
func RemoveTree(root string) {
	if root == "" {
		return
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, _ os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		log.Printf("WARN: Failed to walk temp dir %s: %v", root, err)
	}

	sort.Sort(sort.Reverse(sort.StringSlice(paths)))
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("WARN: Failed to delete temp file %s: %v", path, err)
		}
	}
}
