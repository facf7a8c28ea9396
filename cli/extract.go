// Input and output adapters for CLI commands.
//
// Information Hiding:
// - File handling details hidden behind the model interfaces
// - The engine never touches the filesystem

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chirag127/spokablepdf/model"
)

// FileExtractor reads pre-extracted document text from a file. PDF text
// extraction happens upstream; this module consumes its output.
type FileExtractor struct{}

// NewFileExtractor creates a file-based extractor.
func NewFileExtractor() *FileExtractor {
	return &FileExtractor{}
}

// Extract reads the source file and returns its text.
func (e *FileExtractor) Extract(ctx context.Context, source string) (model.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return model.Extraction{}, err
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return model.Extraction{}, fmt.Errorf("failed to read input: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return model.Extraction{}, fmt.Errorf("input %s contains no text", source)
	}
	return model.Extraction{Text: text}, nil
}

// FileRenderer writes the assembled narration to a file, or to stdout
// when the path is empty.
type FileRenderer struct {
	Path string
}

// NewFileRenderer creates a renderer writing to path ("" means stdout).
func NewFileRenderer(path string) *FileRenderer {
	return &FileRenderer{Path: path}
}

// Render writes the narration.
func (r *FileRenderer) Render(ctx context.Context, text string, stats model.JobStats) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.Path == "" {
		fmt.Println(text)
		return nil
	}
	dir := filepath.Dir(r.Path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(r.Path, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// Verify the adapters implement the model interfaces
var (
	_ model.Extractor = (*FileExtractor)(nil)
	_ model.Renderer  = (*FileRenderer)(nil)
)
