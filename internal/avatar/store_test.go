package avatar

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testCardHash = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

func TestFSStore_WriteAndOpen(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore returned error: %v", err)
	}

	if err := store.WriteFrom(testCardHash, strings.NewReader("png-bytes")); err != nil {
		t.Fatalf("WriteFrom returned error: %v", err)
	}

	rc, err := store.Open(testCardHash)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if rc == nil {
		t.Fatal("expected non-nil reader for existing asset")
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll returned error: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Errorf("asset content = %q, want %q", data, "png-bytes")
	}
}

func TestFSStore_Open_MissingAssetReturnsNil(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore returned error: %v", err)
	}

	rc, err := store.Open(testCardHash)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if rc != nil {
		rc.Close()
		t.Error("expected nil reader for missing asset")
	}
}

func TestFSStore_WriteFrom_OverwritesExisting(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore returned error: %v", err)
	}

	if err := store.WriteFrom(testCardHash, strings.NewReader("first")); err != nil {
		t.Fatalf("first WriteFrom returned error: %v", err)
	}
	if err := store.WriteFrom(testCardHash, strings.NewReader("second")); err != nil {
		t.Fatalf("second WriteFrom returned error: %v", err)
	}

	rc, err := store.Open(testCardHash)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer rc.Close()

	data, _ := io.ReadAll(rc)
	if string(data) != "second" {
		t.Errorf("asset content = %q, want %q", data, "second")
	}
}

// failingReader は指定バイト数を返した後にエラーを返すリーダー。
type failingReader struct {
	data string
	pos  int
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, errors.New("connection reset")
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

func TestFSStore_WriteFrom_FailedTransferLeavesNoAsset(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFSStore(dir)
	if err != nil {
		t.Fatalf("NewFSStore returned error: %v", err)
	}

	err = store.WriteFrom(testCardHash, &failingReader{data: "partial"})
	if err == nil {
		t.Fatal("expected error for failed transfer")
	}

	rc, err := store.Open(testCardHash)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if rc != nil {
		rc.Close()
		t.Error("partial asset must not be readable after failed transfer")
	}

	// 一時ファイルも残さない
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir returned error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty dir after failed transfer, got %d entries", len(entries))
	}
}

func TestFSStore_WriteFrom_FailedTransferKeepsPreviousAsset(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore returned error: %v", err)
	}

	if err := store.WriteFrom(testCardHash, strings.NewReader("original")); err != nil {
		t.Fatalf("WriteFrom returned error: %v", err)
	}

	if err := store.WriteFrom(testCardHash, &failingReader{data: "broken"}); err == nil {
		t.Fatal("expected error for failed transfer")
	}

	rc, err := store.Open(testCardHash)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if rc == nil {
		t.Fatal("previous asset must survive a failed overwrite")
	}
	defer rc.Close()

	data, _ := io.ReadAll(rc)
	if string(data) != "original" {
		t.Errorf("asset content = %q, want %q", data, "original")
	}
}

func TestFSStore_Remove(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore returned error: %v", err)
	}

	if err := store.WriteFrom(testCardHash, strings.NewReader("x")); err != nil {
		t.Fatalf("WriteFrom returned error: %v", err)
	}
	if err := store.Remove(testCardHash); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}

	rc, err := store.Open(testCardHash)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if rc != nil {
		rc.Close()
		t.Error("expected nil reader after Remove")
	}

	// 存在しないアセットの削除はエラーにしない
	if err := store.Remove(testCardHash); err != nil {
		t.Errorf("Remove of missing asset returned error: %v", err)
	}
}

func TestNewFSStore_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "image")

	if _, err := NewFSStore(dir); err != nil {
		t.Fatalf("NewFSStore returned error: %v", err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("Stat returned error: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected directory to be created")
	}
}
