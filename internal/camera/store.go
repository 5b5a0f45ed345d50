package camera

import (
	"fmt"
	"os"
	"path/filepath"
)

// FrameStore persists raw frames under their sequence index. Persistence
// is best-effort: callers log failures and keep processing, a store error
// never affects trajectory computation.
type FrameStore interface {
	PersistFrame(f *Frame) error
}

// DirectoryStore writes frames as binary PGM files named by sequence
// index.
type DirectoryStore struct {
	dir string
}

// NewDirectoryStore creates dir if needed and returns a store writing
// into it.
func NewDirectoryStore(dir string) (*DirectoryStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create frame store directory: %w", err)
	}
	return &DirectoryStore{dir: dir}, nil
}

// PersistFrame writes the frame as frame_<index>.pgm. An existing file
// for the same index is overwritten with identical content, so repeated
// persistence of the same frame is harmless.
func (s *DirectoryStore) PersistFrame(f *Frame) error {
	if err := f.Validate(); err != nil {
		return fmt.Errorf("persist frame: %w", err)
	}
	path := filepath.Join(s.dir, fmt.Sprintf("frame_%06d.pgm", f.Index))
	header := fmt.Sprintf("P5\n%d %d\n255\n", f.Width, f.Height)
	buf := make([]byte, 0, len(header)+len(f.Pix))
	buf = append(buf, header...)
	buf = append(buf, f.Pix...)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("write frame %d: %w", f.Index, err)
	}
	return nil
}

// NopStore discards frames. Used when image persistence is disabled.
type NopStore struct{}

// PersistFrame drops the frame.
func (NopStore) PersistFrame(*Frame) error { return nil }
