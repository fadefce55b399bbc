// Package git reads working tree state of the repository an archive root
// lives in.
package git

import (
	"bytes"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// Info describes the repository that contains a directory.
type Info struct {
	IsGitRepo bool
	Root      string
	Branch    string
}

// GetInfo retrieves repository information for dir. A directory outside any
// repository, or a missing git binary, yields IsGitRepo=false.
func GetInfo(dir string) *Info {
	root, err := runGitCommand(dir, "rev-parse", "--show-toplevel")
	if err != nil || root == "" {
		return &Info{IsGitRepo: false}
	}

	// Fails on an unborn branch; the branch is informational only.
	branch, _ := runGitCommand(dir, "rev-parse", "--abbrev-ref", "HEAD")

	return &Info{
		IsGitRepo: true,
		Root:      root,
		Branch:    branch,
	}
}

// Uncommitted returns the files under dir that are modified or untracked,
// joined onto dir and sorted. Ignored files are left out.
func Uncommitted(dir string) ([]string, error) {
	out, err := runGitCommandRaw(dir, "ls-files", "-z", "--modified", "--others", "--exclude-standard")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var files []string
	for _, name := range bytes.Split(out, []byte{0}) {
		if len(name) == 0 {
			continue
		}
		path := filepath.Join(dir, filepath.FromSlash(string(name)))
		if _, dup := seen[path]; dup {
			continue
		}
		seen[path] = struct{}{}
		files = append(files, path)
	}
	sort.Strings(files)
	return files, nil
}

// runGitCommand executes a git command and returns the trimmed output
func runGitCommand(dir string, args ...string) (string, error) {
	out, err := runGitCommandRaw(dir, args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func runGitCommandRaw(dir string, args ...string) ([]byte, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	// Suppress stderr to avoid noise when not in a git repository
	cmd.Stderr = nil
	return cmd.Output()
}
