// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/stevebottos/dxtr-cli/internal/llm"
)

// maxReadBytes bounds what read_file hands back to the model.
const maxReadBytes = 256 * 1024

// ReadFile returns the contents of a local text file.
type ReadFile struct{}

func (ReadFile) Name() string { return "read_file" }

func (ReadFile) Schema() llm.ToolSpec {
	return Spec("read_file", "Read the contents of a local file, such as the user's profile.md.",
		Param{Name: "file_path", Type: "string", Description: "Path to the file. A leading ~ is expanded.", Required: true},
	)
}

func (ReadFile) Invoke(_ context.Context, args json.RawMessage) (any, error) {
	in, err := Decode[struct {
		FilePath string `json:"file_path"`
	}](args, "file_path")
	if err != nil {
		return nil, err
	}

	path := ExpandHome(in.FilePath)
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Sprintf("Error: File not found: %s", in.FilePath), nil
	}
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return fmt.Sprintf("Error: %s is a directory", in.FilePath), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", in.FilePath, err)
	}
	if len(data) > maxReadBytes {
		return string(data[:maxReadBytes]) + "\n\n[truncated]", nil
	}
	return string(data), nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
