// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package github

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// CloneTimeout bounds a single git clone.
var CloneTimeout = 2 * time.Minute

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, name string, args ...string) error
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (osExecutor) Run(ctx context.Context, name string, args ...string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}

// Repo is a cloned repository on disk.
type Repo struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
	URL   string `json:"url"`
	Path  string `json:"path"`

	// Cached is true when the clone already existed.
	Cached bool `json:"-"`
}

// FullName returns "owner/name".
func (r Repo) FullName() string { return r.Owner + "/" + r.Name }

var repoURL = regexp.MustCompile(`github\.com/([^/\s]+)/([^/\s]+?)(?:\.git)?/?$`)

// ParseRepoURL splits a repository URL into owner and name.
func ParseRepoURL(u string) (owner, name string, err error) {
	m := repoURL.FindStringSubmatch(strings.TrimSpace(u))
	if m == nil {
		return "", "", fmt.Errorf("invalid GitHub repository URL: %s", u)
	}
	return m[1], m[2], nil
}

// Cloner keeps shallow clones under Dir/<owner>/<name>.
type Cloner struct {
	Dir  string
	exec executor
}

// NewCloner returns a Cloner rooted at dir.
func NewCloner(dir string) *Cloner {
	return &Cloner{Dir: dir, exec: osExecutor{}}
}

// Clone returns the local copy of u, cloning it with --depth 1 when it is
// not already present. The .git directory is removed after cloning.
func (c *Cloner) Clone(ctx context.Context, u string) (Repo, error) {
	owner, name, err := ParseRepoURL(u)
	if err != nil {
		return Repo{}, err
	}
	repo := Repo{Owner: owner, Name: name, URL: u, Path: filepath.Join(c.Dir, owner, name)}

	if info, err := os.Stat(repo.Path); err == nil && info.IsDir() {
		repo.Cached = true
		return repo, nil
	}

	if _, err := c.exec.LookPath("git"); err != nil {
		return Repo{}, fmt.Errorf("git not found on PATH: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(repo.Path), 0o755); err != nil {
		return Repo{}, fmt.Errorf("creating %s: %w", filepath.Dir(repo.Path), err)
	}

	ctx, cancel := context.WithTimeout(ctx, CloneTimeout)
	defer cancel()
	if err := c.exec.Run(ctx, "git", "clone", "--depth", "1", u, repo.Path); err != nil {
		os.RemoveAll(repo.Path)
		return Repo{}, fmt.Errorf("cloning %s: %w", repo.FullName(), err)
	}
	if err := os.RemoveAll(filepath.Join(repo.Path, ".git")); err != nil {
		return Repo{}, fmt.Errorf("removing .git from %s: %w", repo.FullName(), err)
	}
	return repo, nil
}
