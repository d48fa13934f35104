package loader

import (
	"bufio"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// FileInfo holds metadata about a discovered corpus file.
type FileInfo struct {
	Path    string
	RelPath string
	Size    int64
}

// IgnoreFile lists extra exclude globs, one per line, relative to the data dir.
const IgnoreFile = ".lawragignore"

// Walk traverses the directory tree rooted at root and sends discovered
// files on the returned channel. It only emits files whose extension is in
// allowedExts and skips hidden entries, symlinks, empty or oversized files
// and anything matching an exclude glob.
func Walk(root string, allowedExts map[string]bool, exclude []string, maxSize int64) (<-chan FileInfo, <-chan error) {
	files := make(chan FileInfo, 64)
	errs := make(chan error, 1)

	go func() {
		defer close(files)
		defer close(errs)

		absRoot, err := filepath.Abs(root)
		if err != nil {
			errs <- err
			return
		}

		patterns := append(loadIgnorePatterns(absRoot), exclude...)

		err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // skip errors, keep walking
			}
			if path == absRoot {
				return nil
			}

			rel, _ := filepath.Rel(absRoot, path)
			rel = filepath.ToSlash(rel)
			hidden := strings.HasPrefix(d.Name(), ".")

			if d.IsDir() {
				if hidden || matchesExclude(rel, patterns) {
					return filepath.SkipDir
				}
				return nil
			}

			if d.Type()&fs.ModeSymlink != 0 || hidden {
				return nil
			}

			ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
			if !allowedExts[ext] || matchesExclude(rel, patterns) {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				return nil
			}
			if maxSize > 0 && info.Size() > maxSize {
				return nil
			}

			files <- FileInfo{Path: path, RelPath: rel, Size: info.Size()}
			return nil
		})
		if err != nil {
			errs <- err
		}
	}()

	return files, errs
}

// loadIgnorePatterns reads the optional ignore file from the data directory.
func loadIgnorePatterns(root string) []string {
	f, err := os.Open(filepath.Join(root, IgnoreFile))
	if err != nil {
		return nil
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns
}

// matchesExclude reports whether a slash-separated relative path matches any
// glob. A bare name pattern such as "drafts" also matches at any depth.
func matchesExclude(relPath string, patterns []string) bool {
	base := relPath
	if i := strings.LastIndexByte(relPath, '/'); i >= 0 {
		base = relPath[i+1:]
	}
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, relPath); ok {
			return true
		}
		if !strings.Contains(p, "/") {
			if ok, _ := doublestar.Match(p, base); ok {
				return true
			}
		}
	}
	return false
}
