package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// BlobStore owns the raw upload payloads for the lifetime of a session.
// Remove must release the artifact on every exit path (user removal, session
// reset, failed processing), mirroring the preview-handle cleanup the funnel
// requires.
type BlobStore interface {
	Save(ctx context.Context, sessionID uuid.UUID, fileName string, payload []byte) (string, error)
	Load(ctx context.Context, path string) ([]byte, error)
	Remove(ctx context.Context, path string) error
}

// FSStore keeps payloads under a local directory, one subdirectory per
// session.
type FSStore struct {
	root string
}

// NewFSStore creates the root directory if needed.
func NewFSStore(root string) (*FSStore, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), "transcribe-uploads")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload root: %w", err)
	}
	return &FSStore{root: root}, nil
}

func (s *FSStore) Save(ctx context.Context, sessionID uuid.UUID, fileName string, payload []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir := filepath.Join(s.root, sessionID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create session dir: %w", err)
	}
	path := filepath.Join(dir, sanitizeFileName(fileName))
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", fmt.Errorf("write payload: %w", err)
	}
	return path, nil
}

func (s *FSStore) Load(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return payload, nil
}

// Remove deletes the payload and its session directory when empty. A
// missing file is not an error; release must be idempotent.
func (s *FSStore) Remove(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove payload: %w", err)
	}
	// Best effort; fails while other files remain.
	_ = os.Remove(filepath.Dir(path))
	return nil
}

func sanitizeFileName(name string) string {
	clean := filepath.Base(strings.TrimSpace(name))
	if clean == "" || clean == "." || clean == string(filepath.Separator) {
		return "upload"
	}
	var b strings.Builder
	b.Grow(len(clean))
	for _, r := range clean {
		switch {
		case r == '/' || r == '\\' || unicode.IsControl(r):
			continue
		case unicode.IsSpace(r):
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	result := strings.Trim(b.String(), "-_.")
	if result == "" {
		return "upload"
	}
	return result
}
