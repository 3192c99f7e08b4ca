package build

import (
	"io/fs"
	"os"
	"path/filepath"
)

// outputFile is one regular file under the output directory.
type outputFile struct {
	path string
	rel  string // slash separated
	size int64
}

// collect enumerates uploadable files below root. Directories are descended,
// symlinks are resolved but symlinked directories are not followed, and any
// other entry type is reported as skipped.
func collect(root string) ([]outputFile, []string, error) {
	var files []outputFile
	var skipped []string

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			skipped = append(skipped, rel)
			return nil
		}
		files = append(files, outputFile{path: p, rel: rel, size: info.Size()})
		return nil
	})
	return files, skipped, err
}
