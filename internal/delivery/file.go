package delivery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileSink writes the artifact into a local directory.
type FileSink struct {
	dir string
}

func NewFileSink(dir string) *FileSink {
	if dir == "" {
		dir = "."
	}
	return &FileSink{dir: dir}
}

func (s *FileSink) Name() string { return "file" }

func (s *FileSink) Deliver(ctx context.Context, artifact Artifact) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Receipt{}, fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(s.dir, filepath.Base(artifact.Filename))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, artifact.Data, 0o644); err != nil {
		return Receipt{}, fmt.Errorf("write artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return Receipt{}, fmt.Errorf("write artifact: %w", err)
	}
	return Receipt{Sink: s.Name(), Location: path}, nil
}
