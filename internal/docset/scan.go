package docset

import (
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

var skipDirs = map[string]struct{}{
	"node_modules": {},
	".git":         {},
	".hg":          {},
	".svn":         {},
	"vendor":       {},
	"build":        {},
	"dist":         {},
}

// Matcher decides which files under the project root are tracked. Include
// and exclude rules use gitignore-style glob patterns.
type Matcher struct {
	include *ignore.GitIgnore
	exclude *ignore.GitIgnore
}

// NewMatcher compiles include and exclude patterns. A file is tracked when
// it matches at least one include pattern and no exclude pattern.
func NewMatcher(includes, excludes []string) *Matcher {
	m := &Matcher{include: ignore.CompileIgnoreLines(includes...)}
	if len(excludes) > 0 {
		m.exclude = ignore.CompileIgnoreLines(excludes...)
	}
	return m
}

// Matches reports whether the root-relative path rel is tracked.
func (m *Matcher) Matches(rel string) bool {
	rel = filepath.ToSlash(rel)
	if !m.include.MatchesPath(rel) {
		return false
	}
	return m.exclude == nil || !m.exclude.MatchesPath(rel)
}

// Scan walks root and parses every matching file into a new Set. Document
// URIs are root-relative slash paths. Unreadable entries are skipped.
func Scan(root string, m *Matcher) (*Set, error) {
	set := NewSet()
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || d.Type()&os.ModeSymlink != 0 {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil || !m.Matches(rel) {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		set.Upsert(Parse(filepath.ToSlash(rel), string(content)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return set, nil
}
