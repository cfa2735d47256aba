// Package draft stores generated messages as drafts. The email-provider
// exchange stays behind the Creator interface; LocalCreator writes drafts
// to the local filesystem.
package draft

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"outreach/internal/pipeline"
)

// Creator turns a generated message into a stored draft and returns its id.
type Creator interface {
	Create(msg pipeline.GeneratedMessage) (string, error)
}

// LocalCreator writes one JSON file per draft into a directory. It stands
// in for a provider-backed creator during local runs and tests.
type LocalCreator struct {
	dir string
}

// NewLocalCreator creates a LocalCreator writing into dir.
func NewLocalCreator(dir string) *LocalCreator {
	return &LocalCreator{dir: dir}
}

type draftFile struct {
	ID        string                    `json:"id"`
	CreatedAt time.Time                 `json:"created_at"`
	Message   pipeline.GeneratedMessage `json:"message"`
}

// Create writes the draft and returns its generated id.
func (l *LocalCreator) Create(msg pipeline.GeneratedMessage) (string, error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating drafts directory: %w", err)
	}

	id := uuid.NewString()
	data, err := json.MarshalIndent(draftFile{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		Message:   msg,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding draft: %w", err)
	}

	path := filepath.Join(l.dir, "draft_"+id+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing draft: %w", err)
	}
	return id, nil
}
