package hashstore

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/TechnoStrife/smolsync/pkg/core"
	"github.com/TechnoStrife/smolsync/pkg/frame"
	"github.com/TechnoStrife/smolsync/pkg/rootedpath"
)

func TestCalculateHashesAndApply(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("hello world"), 0o644); err != nil {
		t.Fatal(err)
	}

	root := rootedpath.NewRoot(dir)
	file := &core.FileImage{Name: "a.txt", Path: root.Child("a.txt"), Size: 11}

	store := New()
	var progress []string
	if err := store.CalculateHashes([]*core.FileImage{file}, func(msg string) {
		progress = append(progress, msg)
	}); err != nil {
		t.Fatal(err)
	}
	if len(file.Hash) != core.HashSize {
		t.Fatalf("expected a %d-byte hash, got %d bytes", core.HashSize, len(file.Hash))
	}
	if len(progress) == 0 {
		t.Fatal("expected progress callback to fire")
	}

	image := core.NewFolderImage("", nil, []*core.FileImage{{Name: "a.txt", Path: root.Child("a.txt"), Size: 11}})
	unhashed := store.ApplyToImage(image)
	if len(unhashed) != 0 {
		t.Fatalf("expected cached file to be fully hashed, got %d unhashed", len(unhashed))
	}
	if !bytes.Equal(image.Files[0].Hash, file.Hash) {
		t.Fatal("ApplyToImage did not propagate the cached hash")
	}
}

func TestFromImageDropsStaleKeys(t *testing.T) {
	dir := t.TempDir()
	root := rootedpath.NewRoot(dir)

	kept := &core.FileImage{Name: "kept.txt", Path: root.Child("kept.txt"), Size: 3, Hash: make([]byte, core.HashSize)}
	image := core.NewFolderImage("", nil, []*core.FileImage{kept})

	store := New()
	store.files[Key{Path: "renamed-away.txt", Modified: 1, Size: 5}] = [core.HashSize]byte{9}
	store.AddFile(kept)

	rebuilt := FromImage(image)
	if len(rebuilt.files) != 1 {
		t.Fatalf("expected only the current image's file to survive a rebuild, got %d entries", len(rebuilt.files))
	}
	if _, ok := rebuilt.files[keyFor(kept)]; !ok {
		t.Fatal("rebuilt store is missing the file still present in the image")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := New()
	store.files[Key{Path: "x/y.txt", Modified: 42, Size: 7}] = [core.HashSize]byte{1, 2, 3}

	var buf bytes.Buffer
	store.Save(frame.NewWriter(&buf))

	loaded, err := Load(frame.NewReader(&buf))
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.files) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(loaded.files))
	}
}
