package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsImageFile(t *testing.T) {
	if !IsImageFile("rx.JPG") {
		t.Error("uppercase JPG should be an image")
	}
	if !IsImageFile("rx.webp") {
		t.Error("webp should be an image by default")
	}
	if IsImageFile("notes.txt") {
		t.Error("txt should not be an image")
	}
	if IsImageFile("rx.png", "jpg", "jpeg") {
		t.Error("png should be rejected by a jpeg-only filter")
	}
	if !IsImageFile("rx.jpeg", ".jpeg") {
		t.Error("extensions with a leading dot should match")
	}
}

func TestListImageFiles(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a.jpg", "b.png", "c.txt", filepath.Join("nested", "d.jpeg")} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := ListImageFiles(dir, "jpg", "jpeg")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(dir, "a.jpg"), filepath.Join(sub, "d.jpeg")}
	if len(files) != len(want) || files[0] != want[0] || files[1] != want[1] {
		t.Fatalf("got %v, want %v", files, want)
	}

	if !DirExists(sub) || DirExists(filepath.Join(dir, "a.jpg")) {
		t.Error("DirExists gave the wrong answer")
	}
	if !FileExists(filepath.Join(dir, "a.jpg")) || FileExists(sub) {
		t.Error("FileExists gave the wrong answer")
	}
}

func TestSanitizeFilename(t *testing.T) {
	if got := SanitizeFilename(" a/b:c?.jpg. "); got != "a_b_c_.jpg" {
		t.Errorf("got %q", got)
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := map[int64]string{
		512:             "512 B",
		2048:            "2.0 KB",
		5 * 1024 * 1024: "5.0 MB",
	}
	for size, want := range tests {
		if got := FormatFileSize(size); got != want {
			t.Errorf("FormatFileSize(%d) = %q, want %q", size, got, want)
		}
	}
}
