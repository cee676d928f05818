package filestorage

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/vibtellect/immo-scraper/internal/core/port"
)

func newAdapterForTest(t *testing.T) *FileBlobStorageAdapter {
	t.Helper()
	adapter, err := NewFileBlobStorageAdapter(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileBlobStorageAdapter: %v", err)
	}
	return adapter
}

func TestPutGetRoundTrip(t *testing.T) {
	adapter := newAdapterForTest(t)
	ctx := context.Background()

	if err := adapter.Put(ctx, "snapshots/fk.json", []byte(`{"listings":[]}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	data, err := adapter.Get(ctx, "snapshots/fk.json")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != `{"listings":[]}` {
		t.Errorf("Get returned %q", data)
	}
}

func TestPutOverwrites(t *testing.T) {
	adapter := newAdapterForTest(t)
	ctx := context.Background()

	if err := adapter.Put(ctx, "key", []byte("old")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := adapter.Put(ctx, "key", []byte("new")); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	data, err := adapter.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != "new" {
		t.Errorf("Get returned %q, want the overwritten value", data)
	}
}

func TestGetMissingKey(t *testing.T) {
	adapter := newAdapterForTest(t)
	_, err := adapter.Get(context.Background(), "snapshots/absent.json")
	if !errors.Is(err, port.ErrObjectNotFound) {
		t.Errorf("Get on a missing key: %v, want ErrObjectNotFound", err)
	}
}

func TestListByPrefix(t *testing.T) {
	adapter := newAdapterForTest(t)
	ctx := context.Background()

	for _, key := range []string{"snapshots/a.json", "snapshots/b.json", "other/c.json"} {
		if err := adapter.Put(ctx, key, []byte("x")); err != nil {
			t.Fatalf("Put %s: %v", key, err)
		}
	}

	objects, err := adapter.List(ctx, "snapshots/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(objects) != 2 {
		t.Fatalf("List returned %d objects, want 2: %v", len(objects), objects)
	}
	for _, obj := range objects {
		if obj.LastModified.IsZero() {
			t.Errorf("object %s has zero LastModified", obj.Key)
		}
	}
}

func TestPutLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	adapter, err := NewFileBlobStorageAdapter(dir)
	if err != nil {
		t.Fatalf("NewFileBlobStorageAdapter: %v", err)
	}
	if err := adapter.Put(context.Background(), "k.json", []byte("data")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "k.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory holds %v, want only k.json", names)
	}
}

func TestKeyEscapingStorageDirIsRejected(t *testing.T) {
	adapter := newAdapterForTest(t)
	ctx := context.Background()

	for _, key := range []string{"../outside", "/etc/passwd", "a/../../b"} {
		if err := adapter.Put(ctx, key, []byte("x")); err == nil {
			t.Errorf("Put(%q) succeeded, want rejection", key)
		}
	}
}
