// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package github

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevebottos/dxtr-cli/internal/llm"
	"github.com/stevebottos/dxtr-cli/internal/llm/llmtest"
)

const profileHTML = `<html><body>
<div class="js-pinned-items-reorder-container">
  <a data-hydro-click="{&quot;event_type&quot;:&quot;user_profile.click&quot;,&quot;payload&quot;:{&quot;profile_user_id&quot;:1,&quot;target&quot;:&quot;PINNED_REPO&quot;}}" href="/octocat/hello-world" class="text-bold">hello-world</a>
  <a href="/octocat/spoon-knife" data-hydro-click="{&quot;target&quot;:&quot;PINNED_REPO&quot;}">spoon-knife</a>
  <a data-hydro-click="{&quot;target&quot;:&quot;PINNED_REPO&quot;}" href="/octocat/hello-world">dup</a>
  <a data-hydro-click="{&quot;target&quot;:&quot;PINNED_REPO&quot;}" href="/octocat/dxtr-cli">dxtr-cli</a>
  <a data-hydro-click="{&quot;target&quot;:&quot;REPOSITORY&quot;}" href="/octocat/not-pinned">other</a>
  <a data-hydro-click="{&quot;target&quot;:&quot;PINNED_REPO&quot;}" href="/octocat/deep/path">deep</a>
</div>
</body></html>`

func TestParsePinned(t *testing.T) {
	got, err := ParsePinned(strings.NewReader(profileHTML))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://github.com/octocat/hello-world",
		"https://github.com/octocat/spoon-knife",
		"https://github.com/octocat/dxtr-cli",
	}, got)
}

func TestIsProfileURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://github.com/octocat", true},
		{"https://github.com/octocat/", true},
		{"http://github.com/some-user", true},
		{"https://github.com/octocat/hello-world", false},
		{"https://gitlab.com/octocat", false},
		{"not a url", false},
		{"https://github.com/", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, IsProfileURL(tt.url))
		})
	}
}

func TestExtractProfileURL(t *testing.T) {
	text := "I maintain https://github.com/octocat/hello-world. My profile: https://github.com/octocat."
	assert.Equal(t, "https://github.com/octocat", ExtractProfileURL(text))
	assert.Equal(t, "", ExtractProfileURL("no links here"))
}

func TestParseRepoURL(t *testing.T) {
	tests := []struct {
		url         string
		owner, name string
		wantErr     bool
	}{
		{url: "https://github.com/octocat/hello-world", owner: "octocat", name: "hello-world"},
		{url: "https://github.com/octocat/hello-world.git", owner: "octocat", name: "hello-world"},
		{url: "https://github.com/octocat/hello.world/", owner: "octocat", name: "hello.world"},
		{url: "https://github.com/octocat", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			owner, name, err := ParseRepoURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.owner, owner)
			assert.Equal(t, tt.name, name)
		})
	}
}

// mockExecutor fakes git by writing files into the clone target.
type mockExecutor struct {
	mu       sync.Mutex
	noGit    bool
	failFor  map[string]bool
	files    map[string]string // relative path -> content
	commands []string
}

func (m *mockExecutor) LookPath(file string) (string, error) {
	if m.noGit {
		return "", errors.New("not found: " + file)
	}
	return "/usr/bin/" + file, nil
}

func (m *mockExecutor) Run(_ context.Context, name string, args ...string) error {
	m.mu.Lock()
	m.commands = append(m.commands, name+" "+strings.Join(args, " "))
	m.mu.Unlock()

	url, dest := args[len(args)-2], args[len(args)-1]
	if m.failFor[url] {
		return errors.New("repository not found")
	}
	for rel, content := range m.files {
		path := filepath.Join(dest, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return os.MkdirAll(filepath.Join(dest, ".git"), 0o755)
}

var longSource = strings.Repeat("def handler(event):\n    return event\n", 10)

func TestCloner_Clone(t *testing.T) {
	exec := &mockExecutor{files: map[string]string{"main.py": longSource}}
	c := &Cloner{Dir: t.TempDir(), exec: exec}
	ctx := context.Background()

	repo, err := c.Clone(ctx, "https://github.com/octocat/hello-world")
	require.NoError(t, err)
	assert.False(t, repo.Cached)
	assert.Equal(t, "octocat/hello-world", repo.FullName())
	assert.FileExists(t, filepath.Join(repo.Path, "main.py"))
	assert.NoDirExists(t, filepath.Join(repo.Path, ".git"))
	require.Len(t, exec.commands, 1)
	assert.Equal(t, "git clone --depth 1 https://github.com/octocat/hello-world "+repo.Path, exec.commands[0])

	again, err := c.Clone(ctx, "https://github.com/octocat/hello-world")
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Len(t, exec.commands, 1, "cached clones are not fetched again")
}

func TestCloner_Errors(t *testing.T) {
	t.Run("git missing", func(t *testing.T) {
		c := &Cloner{Dir: t.TempDir(), exec: &mockExecutor{noGit: true}}
		_, err := c.Clone(context.Background(), "https://github.com/octocat/hello-world")
		assert.ErrorContains(t, err, "git not found")
	})

	t.Run("clone fails", func(t *testing.T) {
		dir := t.TempDir()
		c := &Cloner{Dir: dir, exec: &mockExecutor{failFor: map[string]bool{"https://github.com/octocat/gone": true}}}
		_, err := c.Clone(context.Background(), "https://github.com/octocat/gone")
		assert.ErrorContains(t, err, "repository not found")
		assert.NoDirExists(t, filepath.Join(dir, "octocat", "gone"))
	})

	t.Run("bad url", func(t *testing.T) {
		c := &Cloner{Dir: t.TempDir(), exec: &mockExecutor{}}
		_, err := c.Clone(context.Background(), "https://example.com/x")
		assert.Error(t, err)
	})
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestFindSourceFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"app/main.py":           longSource,
		"app/__init__.py":       longSource,
		"app/tiny.py":           "x = 1\n",
		"cmd/server.go":         longSource,
		"cmd/server_test.go":    longSource,
		"tests/test_main.py":    longSource,
		"node_modules/x/lib.py": longSource,
		"README.md":             longSource,
	})
	repo := Repo{Owner: "o", Name: "r", Path: root}

	files, err := FindSourceFiles(repo, 0)
	require.NoError(t, err)
	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path)
		assert.Equal(t, repo, f.Repo)
	}
	assert.Equal(t, []string{"app/main.py", "cmd/server.go"}, paths)

	files, err = FindSourceFiles(repo, 1)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestSummarizer_Summarize(t *testing.T) {
	repoA := Repo{Owner: "o", Name: "a", URL: "https://github.com/o/a"}
	repoB := Repo{Owner: "o", Name: "b", URL: "https://github.com/o/b"}
	files := []SourceFile{
		{Repo: repoA, Path: "one.py", Content: "print(1)"},
		{Repo: repoB, Path: "two.go", Content: "package two"},
		{Repo: repoA, Path: "broken.py", Content: "boom"},
	}
	ep := llmtest.Func(func(req llm.Request) llmtest.Reply {
		msg := req.Messages[len(req.Messages)-1].Content
		switch {
		case strings.Contains(msg, "broken.py"):
			return llmtest.Failure(errors.New("endpoint down"))
		case strings.Contains(msg, "two.go"):
			return llmtest.Text("A Go package.")
		default:
			return llmtest.Text("A Python script.")
		}
	})

	s := NewSummarizer(ep, 2, 0, nil, nil)
	summary := s.Summarize(context.Background(), []Repo{repoA, repoB}, files)

	assert.Equal(t, 2, summary.ReposAnalyzed)
	assert.Equal(t, 3, summary.Files())
	require.Len(t, summary.Summaries, 2)

	a := summary.Summaries[0]
	assert.Equal(t, "o/a", a.Repo)
	assert.Equal(t, 2, a.FilesAnalyzed)
	assert.Equal(t, FileSummary{File: "one.py", Analysis: "A Python script."}, a.FileSummaries[0])
	assert.Equal(t, "broken.py", a.FileSummaries[1].File)
	assert.Contains(t, a.FileSummaries[1].Error, "endpoint down")

	b := summary.Summaries[1]
	assert.Equal(t, []FileSummary{{File: "two.go", Analysis: "A Go package."}}, b.FileSummaries)

	path := filepath.Join(t.TempDir(), "nested", "github_summary.json")
	require.NoError(t, summary.Save(path))
	loaded, err := LoadSummary(path)
	require.NoError(t, err)
	assert.Equal(t, summary, loaded)
}

func TestTool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/octocat" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(profileHTML))
	}))
	defer srv.Close()
	orig := BaseURL
	BaseURL = srv.URL
	defer func() { BaseURL = orig }()

	exec := &mockExecutor{
		files:   map[string]string{"main.py": longSource},
		failFor: map[string]bool{"https://github.com/octocat/spoon-knife": true},
	}
	summaryPath := filepath.Join(t.TempDir(), "github_summary.json")
	tool := &Tool{
		Client:      srv.Client(),
		Cloner:      &Cloner{Dir: t.TempDir(), exec: exec},
		Summarizer:  NewSummarizer(llmtest.Func(func(llm.Request) llmtest.Reply { return llmtest.Text("Handles events.") }), 0, 0, nil, nil),
		SummaryPath: summaryPath,
		MaxFiles:    10,
		Exclude:     []string{"/dxtr-cli"},
	}

	res, err := tool.Invoke(context.Background(), json.RawMessage(`{"github_url": "https://github.com/octocat"}`))
	require.NoError(t, err)
	assert.Equal(t, "GitHub analysis complete. Analyzed 1 files across 1 repos. Saved to "+summaryPath+".", res)

	summary, err := LoadSummary(summaryPath)
	require.NoError(t, err)
	require.Len(t, summary.Summaries, 1)
	assert.Equal(t, "octocat/hello-world", summary.Summaries[0].Repo)

	for _, cmd := range exec.commands {
		assert.NotContains(t, cmd, "dxtr-cli")
	}
}

func TestTool_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/empty":
			w.Write([]byte("<html><body>no pins</body></html>"))
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()
	orig := BaseURL
	BaseURL = srv.URL
	defer func() { BaseURL = orig }()

	tool := &Tool{Client: srv.Client(), Cloner: &Cloner{Dir: t.TempDir(), exec: &mockExecutor{}}}

	tests := []struct {
		name string
		url  string
		want string
	}{
		{"not a profile", "https://github.com/octocat/hello-world", "Error: Not a valid GitHub profile URL: https://github.com/octocat/hello-world"},
		{"fetch fails", "https://github.com/broken", "Error: Could not fetch GitHub profile page"},
		{"no pins", "https://github.com/empty", "No pinned repositories found on profile"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, _ := json.Marshal(map[string]string{"github_url": tt.url})
			res, err := tool.Invoke(context.Background(), raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res)
		})
	}
}
