// Package objectstore is the narrow boundary to binary file storage. The
// pipeline only needs to write uploaded bytes under a reference and hand
// that reference to the OCR collaborator; signed-URL issuance and bucket
// management stay outside this module.
package objectstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gradelens/backend/pkg/logger"
)

type Store interface {
	// Put writes data under ref, overwriting any prior object.
	Put(ctx context.Context, ref string, data []byte) error
	// Get reads the object stored under ref.
	Get(ctx context.Context, ref string) ([]byte, error)
	// Exists reports whether an object is stored under ref.
	Exists(ctx context.Context, ref string) (bool, error)
}

// NewFileRef builds the canonical object reference for an upload:
// users/{owner}/{type}/{uuid}.pdf.
func NewFileRef(ownerID, docType string) string {
	return fmt.Sprintf("users/%s/%s/%s.pdf", ownerID, docType, uuid.New().String())
}

// FSStore keeps objects on the local filesystem under a root directory.
type FSStore struct {
	root string
}

func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create object store root: %w", err)
	}
	return &FSStore{root: root}, nil
}

func (s *FSStore) Put(ctx context.Context, ref string, data []byte) error {
	path, err := s.resolve(ref)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write object: %w", err)
	}

	logger.Debug("Object stored", zap.String("ref", ref), zap.Int("bytes", len(data)))
	return nil
}

func (s *FSStore) Get(ctx context.Context, ref string) ([]byte, error) {
	path, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	return data, nil
}

func (s *FSStore) Exists(ctx context.Context, ref string) (bool, error) {
	path, err := s.resolve(ref)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat object: %w", err)
	}
	return true, nil
}

func (s *FSStore) resolve(ref string) (string, error) {
	cleaned := filepath.Clean(ref)
	if strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid object ref: %s", ref)
	}
	return filepath.Join(s.root, cleaned), nil
}
