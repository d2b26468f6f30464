package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"eviction-tracker/efiling/internal/policy/domain"
)

// FileRepository reads Rego modules from a file or from every *.rego file in a directory.
type FileRepository struct {
	path string
}

// NewFileRepository returns a repository rooted at path. An empty path yields no policies.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: strings.TrimSpace(path)}
}

// ListEnabled reads the modules fresh on every call so edits apply without a restart.
func (r *FileRepository) ListEnabled(ctx context.Context) ([]*domain.Policy, error) {
	if r.path == "" {
		return nil, nil
	}
	info, err := os.Stat(r.path)
	if err != nil {
		return nil, fmt.Errorf("policy: stat %s: %w", r.path, err)
	}
	files := []string{r.path}
	if info.IsDir() {
		files, err = filepath.Glob(filepath.Join(r.path, "*.rego"))
		if err != nil {
			return nil, err
		}
		sort.Strings(files)
	}
	out := make([]*domain.Policy, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("policy: read %s: %w", f, err)
		}
		out = append(out, &domain.Policy{Name: filepath.Base(f), Rules: string(b), Enabled: true})
	}
	return out, nil
}
