// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package github

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// minFileChars skips files too small to say anything about.
const minFileChars = 120

// SourceExtensions are the file types summarized.
var SourceExtensions = map[string]bool{".py": true, ".go": true}

var excludedDirs = map[string]bool{
	"test": true, "tests": true, "__pycache__": true, "venv": true, "env": true,
	".venv": true, "node_modules": true, ".git": true, "dist": true, "build": true,
	".pytest_cache": true, "vendor": true, "testdata": true,
}

// SourceFile is one file selected for summarization.
type SourceFile struct {
	Repo    Repo
	Path    string // relative to the repository root
	Content string
}

var errEnough = errors.New("enough files")

// FindSourceFiles returns up to maxFiles source files under repo, sorted
// by path. Excluded directories, Go tests, __init__.py and near-empty
// files are skipped.
func FindSourceFiles(repo Repo, maxFiles int) ([]SourceFile, error) {
	var files []SourceFile
	err := filepath.WalkDir(repo.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != repo.Path && excludedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		name := d.Name()
		if !SourceExtensions[filepath.Ext(name)] || name == "__init__.py" || strings.HasSuffix(name, "_test.go") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		if len(strings.TrimSpace(string(data))) <= minFileChars {
			return nil
		}
		rel, err := filepath.Rel(repo.Path, path)
		if err != nil {
			return err
		}
		files = append(files, SourceFile{Repo: repo, Path: filepath.ToSlash(rel), Content: string(data)})
		if maxFiles > 0 && len(files) >= maxFiles {
			return errEnough
		}
		return nil
	})
	if err != nil && !errors.Is(err, errEnough) {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}
