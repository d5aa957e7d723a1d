package indexer

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"
)

type candidate struct {
	path    string // absolute
	relPath string // slash-separated
	size    int64
}

type discovery struct {
	files      []candidate
	discovered int
	oversized  int
	truncated  int
}

// discover walks root and returns the files to index, sorted by relative path
// and capped at cfg.MaxFiles.
func discover(root string, cfg *Config) (*discovery, error) {
	var gi *ignore.GitIgnore
	if cfg.RespectGitignore {
		gi = loadGitignore(root)
	}

	seen := make(map[string]struct{})
	d := &discovery{}

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil // unreadable entries are skipped
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if entry.IsDir() {
			if path == root {
				return nil
			}
			if entry.Name() == ".git" || excludedDir(cfg.Exclude, rel) || (gi != nil && gi.MatchesPath(rel+"/")) {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.Type()&os.ModeSymlink != 0 || !entry.Type().IsRegular() {
			return nil
		}

		if !matchAny(cfg.Include, rel) || matchAny(cfg.Exclude, rel) {
			return nil
		}
		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		if _, dup := seen[rel]; dup {
			return nil
		}
		seen[rel] = struct{}{}
		d.discovered++

		info, err := entry.Info()
		if err != nil {
			return nil
		}
		if info.Size() > cfg.MaxFileSize {
			d.oversized++
			return nil
		}

		d.files = append(d.files, candidate{path: path, relPath: rel, size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(d.files, func(i, j int) bool {
		return d.files[i].relPath < d.files[j].relPath
	})
	if len(d.files) > cfg.MaxFiles {
		d.truncated = len(d.files) - cfg.MaxFiles
		d.files = d.files[:cfg.MaxFiles]
	}
	return d, nil
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// excludedDir reports whether an exclude pattern covers everything under dir.
func excludedDir(patterns []string, dir string) bool {
	for _, p := range patterns {
		if !strings.HasSuffix(p, "/**") {
			continue
		}
		if ok, err := doublestar.Match(strings.TrimSuffix(p, "/**"), dir); err == nil && ok {
			return true
		}
	}
	return false
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}
