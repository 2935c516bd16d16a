package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Workspace is the scratch directory of a single run. It holds the downloaded
// images and the extracted results and belongs to that run only.
type Workspace struct {
	root string
}

func NewWorkspace(tempDir, projectKey string, recordID uuid.UUID) *Workspace {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	name := fmt.Sprintf("%s-%s", sanitize(projectKey), recordID)
	return &Workspace{root: filepath.Join(tempDir, name)}
}

func (w *Workspace) Root() string { return w.root }

func (w *Workspace) Images() string { return filepath.Join(w.root, "images") }

func (w *Workspace) Results() string { return filepath.Join(w.root, "results") }

// Prepare creates the directories of the workspace.
func (w *Workspace) Prepare() error {
	for _, dir := range []string{w.Images(), w.Results()} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating workspace directory %s: %w", dir, err)
		}
	}
	return nil
}

// Remove deletes the workspace and everything in it. A workspace that was
// never prepared is not an error.
func (w *Workspace) Remove() error {
	return os.RemoveAll(w.root)
}

func sanitize(projectKey string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\':
			return '_'
		}
		return r
	}, projectKey)
}
