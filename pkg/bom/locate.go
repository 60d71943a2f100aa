package bom

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Sentinel errors for directory and file location.
var (
	// ErrNoJobDir indicates no directory matched the id.
	ErrNoJobDir = errors.New("no directory matches id")

	// ErrAmbiguousJobDir indicates more than one directory matched the id.
	// Plain substring matching would silently take the first; ambiguity is
	// surfaced instead so colliding work-order numbering gets fixed upstream.
	ErrAmbiguousJobDir = errors.New("multiple directories match id")

	// ErrNoExport indicates the matched directory holds no file for the
	// configured glob.
	ErrNoExport = errors.New("no export file matches pattern")
)

// FindDir locates the subdirectory of root belonging to id.
//
// The id must appear in the directory name as an exact token: bounded by the
// name's edges or by non-alphanumeric characters. "12345-1" therefore matches
// "12345-1 AcmeBoards" but not "112345-12".
func FindDir(root, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: empty id", ErrNoJobDir)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("list %s: %w", root, err)
	}

	var matches []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if containsToken(e.Name(), id) {
			matches = append(matches, e.Name())
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s under %s", ErrNoJobDir, id, root)
	case 1:
		return filepath.Join(root, matches[0]), nil
	default:
		sort.Strings(matches)
		return "", fmt.Errorf("%w: %s matches %s", ErrAmbiguousJobDir, id, strings.Join(matches, ", "))
	}
}

// containsToken reports whether name contains id bounded by non-alphanumeric
// characters or the string edges.
func containsToken(name, id string) bool {
	for start := 0; ; {
		i := strings.Index(name[start:], id)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(id)

		leftOK := i == 0 || !isAlnum(name[i-1])
		rightOK := end == len(name) || !isAlnum(name[end])
		if leftOK && rightOK {
			return true
		}
		start = i + 1
	}
}

func isAlnum(b byte) bool {
	return b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

// FindFile returns the first file (lexical order) in dir matching the glob
// pattern.
func FindFile(dir, pattern string) (string, error) {
	matches, err := doublestar.FilepathGlob(filepath.Join(dir, pattern))
	if err != nil {
		return "", fmt.Errorf("glob %s in %s: %w", pattern, dir, err)
	}

	var files []string
	for _, m := range matches {
		st, err := os.Stat(m)
		if err != nil || st.IsDir() {
			continue
		}
		files = append(files, m)
	}
	if len(files) == 0 {
		return "", fmt.Errorf("%w: %s in %s", ErrNoExport, pattern, dir)
	}
	sort.Strings(files)
	return files[0], nil
}
