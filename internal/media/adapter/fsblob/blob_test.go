package fsblob_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"mediagate/internal/domain"
	"mediagate/internal/media/adapter/fsblob"
)

func writeBlob(t *testing.T, root, key string, data []byte) {
	t.Helper()
	name := filepath.Join(root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(name, data, 0o644); err != nil {
		t.Fatalf("write blob: %v", err)
	}
}

func TestSize(t *testing.T) {
	root := t.TempDir()
	writeBlob(t, root, "videos/clip.mp4", make([]byte, 1000))
	store := fsblob.New(root)

	size, err := store.Size(context.Background(), domain.Resource{Path: "videos/clip.mp4"})
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != 1000 {
		t.Errorf("size = %d, want 1000", size)
	}

	if _, err := store.Size(context.Background(), domain.Resource{Path: "videos/missing.mp4"}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing blob: err = %v, want ErrNotFound", err)
	}
}

func TestOpenRange(t *testing.T) {
	root := t.TempDir()
	payload := make([]byte, 1000)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	writeBlob(t, root, "videos/clip.mp4", payload)
	store := fsblob.New(root)
	res := domain.Resource{Path: "videos/clip.mp4"}

	tests := []struct {
		name       string
		start, end int64
	}{
		{"middle slice", 200, 299},
		{"full file", 0, 999},
		{"single byte", 999, 999},
		{"head", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc, err := store.Open(context.Background(), res, tt.start, tt.end)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer rc.Close()

			got, err := io.ReadAll(rc)
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			want := payload[tt.start : tt.end+1]
			if !bytes.Equal(got, want) {
				t.Errorf("read %d bytes, want %d, content mismatch", len(got), len(want))
			}
		})
	}
}

func TestOpenMissing(t *testing.T) {
	store := fsblob.New(t.TempDir())
	_, err := store.Open(context.Background(), domain.Resource{Path: "nope.bin"}, 0, 10)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPathTraversalIsNotFound(t *testing.T) {
	root := t.TempDir()
	store := fsblob.New(root)

	for _, key := range []string{"../etc/passwd", "/etc/passwd", "a/../../b", ""} {
		if _, err := store.Size(context.Background(), domain.Resource{Path: key}); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("key %q: err = %v, want ErrNotFound", key, err)
		}
	}
}
