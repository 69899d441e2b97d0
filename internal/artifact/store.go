package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/sudankdk/judge/internal/model"
)

// Store stages submissions under <root>/<tag>/<jobId>.<ext>. Every job writes
// only paths derived from its own id, so no locking is needed.
type Store struct {
	root string
	// newID is swapped in tests.
	newID func() string
}

func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("artifact: root directory is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("artifact: resolve root: %w", err)
	}
	return &Store{root: abs, newID: func() string { return uuid.New().String() }}, nil
}

func (s *Store) Root() string {
	return s.root
}

// Stage writes source verbatim into a fresh job file.
func (s *Store) Stage(language, tag, ext, source string) (*model.SourceArtifact, error) {
	dir := filepath.Join(s.root, tag)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create %s directory: %v", model.ErrStaging, tag, err)
	}

	jobID := s.newID()
	path := filepath.Join(dir, jobID+"."+strings.TrimPrefix(ext, "."))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: create source file: %v", model.ErrStaging, err)
	}
	if _, err := f.WriteString(source); err != nil {
		f.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("%w: write source file: %v", model.ErrStaging, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("%w: close source file: %v", model.ErrStaging, err)
	}

	return &model.SourceArtifact{
		JobID:    jobID,
		Language: language,
		Tag:      tag,
		Dir:      dir,
		Path:     path,
		Bytes:    len(source),
	}, nil
}

// Remove deletes every file and directory belonging to the artifact's job.
func (s *Store) Remove(src *model.SourceArtifact) error {
	if src == nil || src.JobID == "" {
		return nil
	}
	matches, err := filepath.Glob(filepath.Join(src.Dir, src.JobID+"*"))
	if err != nil {
		return fmt.Errorf("artifact: list job files: %w", err)
	}
	var errs []error
	for _, m := range matches {
		if err := os.RemoveAll(m); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
