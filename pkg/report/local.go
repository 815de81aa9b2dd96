package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// LocalArchiver writes reports under a base directory.
type LocalArchiver struct {
	baseDir string
}

// NewLocalArchiver creates the base directory when missing.
func NewLocalArchiver(baseDir string) (*LocalArchiver, error) {
	if baseDir == "" {
		return nil, ErrInvalidConfig
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, errors.Join(ErrFailedToWrite, err)
	}
	return &LocalArchiver{baseDir: abs}, nil
}

// Archive writes r as <baseDir>/<kind>/<yyyy>/<mm>/<dd>/<id>.json. The file is
// written to a temporary name and renamed into place.
func (a *LocalArchiver) Archive(ctx context.Context, r Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := encode(r)
	if err != nil {
		return err
	}

	target := filepath.Join(a.baseDir, filepath.FromSlash(Key("", r)))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.Join(ErrFailedToWrite, err)
	}

	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return errors.Join(ErrFailedToWrite, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return errors.Join(ErrFailedToWrite, err)
	}
	return nil
}
