package report

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"strings"
	"time"
)

// Report is a document to archive. Body is encoded as JSON.
type Report struct {
	ID        string
	Kind      string
	CreatedAt time.Time
	Body      any
}

// Archiver stores reports.
type Archiver interface {
	Archive(ctx context.Context, r Report) error
}

// Key returns the object key for r under prefix.
func Key(prefix string, r Report) string {
	created := r.CreatedAt.UTC()
	return path.Join(
		strings.Trim(prefix, "/"),
		r.Kind,
		created.Format("2006/01/02"),
		r.ID+".json",
	)
}

func (r Report) validate() error {
	if r.ID == "" || r.Kind == "" || strings.ContainsAny(r.ID+r.Kind, `/\`) || strings.Contains(r.ID+r.Kind, "..") {
		return ErrInvalidReport
	}
	return nil
}

func encode(r Report) ([]byte, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	b, err := json.MarshalIndent(r.Body, "", "  ")
	if err != nil {
		return nil, errors.Join(ErrFailedToEncode, err)
	}
	return b, nil
}
