package localfs

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"montage/internal/ports"
)

func TestPutGetDelete(t *testing.T) {
	root := t.TempDir()
	fs := New(root)
	ctx := context.Background()

	out, err := fs.PutObject(ctx, ports.PutObjectInput{
		ObjectKey:   "renders/job_1/slideshow.mp4",
		ContentType: "video/mp4",
		Reader:      strings.NewReader("fake mp4"),
		Size:        -1,
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if out.ObjectKey != "renders/job_1/slideshow.mp4" || out.Size != 8 {
		t.Errorf("unexpected put output %+v", out)
	}

	rc, ct, size, err := fs.GetObject(ctx, out.ObjectKey)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	rc.Close()
	if string(body) != "fake mp4" || size != 8 {
		t.Errorf("unexpected object %q size=%d", body, size)
	}
	if ct != "video/mp4" {
		t.Errorf("expected extension-based content type, got %q", ct)
	}

	entries, _ := os.ReadDir(filepath.Join(root, "renders", "job_1"))
	if len(entries) != 1 {
		t.Errorf("expected only the object in its directory, got %d entries", len(entries))
	}

	if err := fs.DeleteObject(ctx, out.ObjectKey); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, _, err := fs.GetObject(ctx, out.ObjectKey); !os.IsNotExist(err) {
		t.Errorf("expected not exist after delete, got %v", err)
	}
}

func TestSniffsContentType(t *testing.T) {
	fs := New(t.TempDir())
	ctx := context.Background()
	png := []byte("\x89PNG\r\n\x1a\n" + strings.Repeat("\x00", 16))
	if _, err := fs.PutObject(ctx, ports.PutObjectInput{ObjectKey: "assets/ast_1/original", Reader: bytes.NewReader(png)}); err != nil {
		t.Fatal(err)
	}
	rc, ct, _, err := fs.GetObject(ctx, "assets/ast_1/original")
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	if ct != "image/png" {
		t.Errorf("expected sniffed image/png, got %q", ct)
	}
	body, _ := io.ReadAll(rc)
	if !bytes.Equal(body, png) {
		t.Error("sniffing must not consume the object")
	}
}

func TestKeysStayBelowRoot(t *testing.T) {
	root := t.TempDir()
	fs := New(filepath.Join(root, "store"))
	ctx := context.Background()

	out, err := fs.PutObject(ctx, ports.PutObjectInput{ObjectKey: "../../escape.txt", Reader: strings.NewReader("x")})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, "store", "escape.txt")); err != nil {
		t.Errorf("expected object kept under root: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "escape.txt")); err == nil {
		t.Errorf("object %q escaped the root", out.ObjectKey)
	}

	if _, err := fs.PutObject(ctx, ports.PutObjectInput{ObjectKey: "", Reader: strings.NewReader("x")}); err == nil {
		t.Error("expected empty key to be rejected")
	}
}

func TestSignedURLIsEmpty(t *testing.T) {
	out, err := New(t.TempDir()).GetSignedURL(context.Background(), "k", 0)
	if err != nil || out.URL != "" {
		t.Errorf("expected no url, got %+v %v", out, err)
	}
}
