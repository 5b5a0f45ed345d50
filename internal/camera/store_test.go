package camera

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDirectoryStorePersistFrame(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "frames")
	store, err := NewDirectoryStore(dir)
	if err != nil {
		t.Fatalf("NewDirectoryStore: %v", err)
	}

	f := NewFrame(3, time.Now(), 4, 2)
	for i := range f.Pix {
		f.Pix[i] = uint8(i * 10)
	}
	if err := store.PersistFrame(f); err != nil {
		t.Fatalf("PersistFrame: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "frame_000003.pgm"))
	if err != nil {
		t.Fatalf("read persisted frame: %v", err)
	}
	wantHeader := fmt.Sprintf("P5\n%d %d\n255\n", 4, 2)
	if !bytes.HasPrefix(data, []byte(wantHeader)) {
		t.Errorf("pgm header = %q, want prefix %q", data[:minInt(len(data), 20)], wantHeader)
	}
	if !bytes.Equal(data[len(wantHeader):], f.Pix) {
		t.Error("pgm payload does not match frame pixels")
	}

	// Re-persisting the same frame overwrites with identical content.
	if err := store.PersistFrame(f); err != nil {
		t.Fatalf("second PersistFrame: %v", err)
	}
}

func TestDirectoryStoreRejectsInvalidFrame(t *testing.T) {
	store, err := NewDirectoryStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirectoryStore: %v", err)
	}
	bad := &Frame{Width: 4, Height: 2, Pix: make([]uint8, 3)}
	if err := store.PersistFrame(bad); err == nil {
		t.Error("expected error for malformed frame, got nil")
	}
}

func TestNopStore(t *testing.T) {
	if err := (NopStore{}).PersistFrame(nil); err != nil {
		t.Errorf("NopStore.PersistFrame: %v", err)
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
