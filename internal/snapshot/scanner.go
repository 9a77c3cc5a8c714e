// Package snapshot enumerates the files of a repository and renders a
// deterministic file-tree listing. The file list is the authoritative
// known-files set for stale eviction; the listing is injected as uncached
// context every turn.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// DefaultMaxSize is the default maximum listing size in bytes (~2K tokens).
const DefaultMaxSize = 8000

// DefaultMaxDepth is the default maximum directory tree depth.
const DefaultMaxDepth = 3

// Snapshot is one scan of a repository.
type Snapshot struct {
	Module   string
	Language string

	// Files holds every repository path, slash separated and sorted.
	Files []string

	// Tree is the rendered listing, at most MaxSize bytes.
	Tree string
}

// Contains reports whether path is one of the scanned files.
func (s Snapshot) Contains(path string) bool {
	i := sort.SearchStrings(s.Files, path)
	return i < len(s.Files) && s.Files[i] == path
}

// Scanner lists repository files and renders the tree listing.
type Scanner struct {
	WorkDir  string // repo root
	MaxDepth int    // max directory tree depth (default 3)
	MaxSize  int    // max listing size in bytes (default 8000)
}

// Scan produces a Snapshot of the repository. The same repo state always
// produces identical output byte-for-byte.
func (s *Scanner) Scan(ctx context.Context) (Snapshot, error) {
	s.applyDefaults()

	files, err := s.listFiles(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: listing files: %w", err)
	}
	snap := Snapshot{Files: files}
	snap.Module, snap.Language = s.detectProject()

	header := formatHeader(snap.Module, snap.Language)
	budget := s.MaxSize - len(header)
	if budget < 0 {
		budget = 0
	}
	snap.Tree = header + renderTree(buildTree(files), s.MaxDepth, budget)
	return snap, nil
}

// applyDefaults fills zero-valued fields with sensible defaults.
func (s *Scanner) applyDefaults() {
	if s.MaxSize <= 0 {
		s.MaxSize = DefaultMaxSize
	}
	if s.MaxDepth <= 0 {
		s.MaxDepth = DefaultMaxDepth
	}
	if s.WorkDir == "" {
		s.WorkDir = "."
	}
}

func formatHeader(module, language string) string {
	switch {
	case module != "" && language != "":
		return fmt.Sprintf("%s (%s)\n", module, language)
	case module != "":
		return module + "\n"
	case language != "":
		return fmt.Sprintf("(%s)\n", language)
	}
	return ""
}

// detectProject checks for common project manifests and extracts identity.
func (s *Scanner) detectProject() (module, language string) {
	detectors := []struct {
		file   string
		detect func([]byte) (string, string)
	}{
		{"go.mod", detectGo},
		{"package.json", detectNode},
		{"Cargo.toml", detectRust},
		{"pyproject.toml", detectPython},
	}
	for _, d := range detectors {
		data, err := os.ReadFile(filepath.Join(s.WorkDir, d.file))
		if err != nil {
			continue
		}
		return d.detect(data)
	}
	return "", ""
}

func detectGo(data []byte) (string, string) {
	for _, line := range strings.Split(string(data), "\n") {
		if mod, ok := strings.CutPrefix(strings.TrimSpace(line), "module "); ok {
			return strings.TrimSpace(mod), "Go"
		}
	}
	return "", "Go"
}

func detectNode(data []byte) (string, string) {
	var pkg struct {
		Name string `json:"name"`
	}
	_ = json.Unmarshal(data, &pkg)
	return pkg.Name, "JavaScript/TypeScript"
}

func detectRust(data []byte) (string, string) {
	var manifest struct {
		Package struct {
			Name string `toml:"name"`
		} `toml:"package"`
	}
	_ = toml.Unmarshal(data, &manifest)
	return manifest.Package.Name, "Rust"
}

func detectPython(data []byte) (string, string) {
	var manifest struct {
		Project struct {
			Name string `toml:"name"`
		} `toml:"project"`
	}
	_ = toml.Unmarshal(data, &manifest)
	return manifest.Project.Name, "Python"
}

// listFiles returns a sorted list of repo files. It uses git ls-files when
// available and falls back to walking the directory.
func (s *Scanner) listFiles(ctx context.Context) ([]string, error) {
	files, err := s.gitListFiles(ctx)
	if err == nil {
		return files, nil
	}
	return s.walkFiles(ctx)
}

// gitListFiles lists tracked plus untracked-but-not-ignored files, so a new
// file counts as known before its first commit.
func (s *Scanner) gitListFiles(ctx context.Context) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = s.WorkDir
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}
	return s.existing(parseFileList(string(out))), nil
}

// existing drops index entries whose file was deleted from the worktree.
func (s *Scanner) existing(files []string) []string {
	out := files[:0]
	for _, f := range files {
		if _, err := os.Stat(filepath.Join(s.WorkDir, filepath.FromSlash(f))); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// walkFiles walks the directory tree, skipping dot entries.
func (s *Scanner) walkFiles(ctx context.Context) ([]string, error) {
	var files []string
	err := filepath.WalkDir(s.WorkDir, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return nil // skip unreadable entries
		}
		if strings.HasPrefix(d.Name(), ".") && path != s.WorkDir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.WorkDir, path)
		if err != nil {
			return nil
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// parseFileList splits git ls-files output into sorted, unique file paths.
func parseFileList(output string) []string {
	var files []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || seen[line] {
			continue
		}
		seen[line] = true
		files = append(files, line)
	}
	sort.Strings(files)
	return files
}
