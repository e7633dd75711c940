package media

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	. "github.com/roelfdiedericks/goclaw-browser/internal/logging"
	"github.com/roelfdiedericks/goclaw-browser/internal/paths"
)

// MaxMediaBytes is the largest file the store accepts (20MB).
const MaxMediaBytes = 20 * 1024 * 1024

// Store writes captured images to a directory, optionally expiring old
// ones.
type Store struct {
	dir string
	ttl time.Duration // 0 keeps files forever
	mu  sync.Mutex
}

// NewStore creates the directory (with ~ expanded) if needed.
func NewStore(dir string, ttl time.Duration) (*Store, error) {
	expanded, err := paths.ExpandTilde(dir)
	if err != nil {
		return nil, err
	}
	expanded = filepath.Clean(expanded)
	if err := os.MkdirAll(expanded, 0700); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return &Store{dir: expanded, ttl: ttl}, nil
}

// Dir returns the resolved directory.
func (s *Store) Dir() string { return s.dir }

// Save writes data under a unique name. The extension follows the
// detected content type, not the caller's claim.
func (s *Store) Save(data []byte, prefix string) (string, error) {
	if len(data) > MaxMediaBytes {
		return "", fmt.Errorf("file size %d exceeds limit %d", len(data), MaxMediaBytes)
	}
	mime := DetectMIME(data)
	if !IsSupported(mime) {
		return "", fmt.Errorf("unsupported media type %s", mime)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := fmt.Sprintf("%s-%s-%s%s", prefix, time.Now().Format("20060102-150405"), uuid.New().String()[:8], extensionFor(mime))
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	L_debug("media: saved file", "path", path, "size", len(data), "mime", mime)
	return path, nil
}

func extensionFor(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

// Prune removes files older than the TTL and returns how many went.
func (s *Store) Prune() (int, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-s.ttl)
	removed := 0

	s.mu.Lock()
	defer s.mu.Unlock()

	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			L_trace("media: failed to remove expired file", "path", path, "error", err)
			return nil
		}
		removed++
		return nil
	})

	if removed > 0 {
		L_debug("media: pruned expired files", "removed", removed)
	}
	return removed, err
}
