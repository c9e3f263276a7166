package core

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/TechnoStrife/smolsync/pkg/frame"
	"github.com/TechnoStrife/smolsync/pkg/ignore"
	"github.com/TechnoStrife/smolsync/pkg/rootedpath"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal("unable to write test fixture:", err)
	}
}

func TestScanSkipsIgnoredAndEmptyDirs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "keep.txt"), "hello")
	writeFile(t, filepath.Join(dir, "skip.log"), "discarded")
	if err := os.Mkdir(filepath.Join(dir, "empty"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "sub", "nested.txt"), "world")

	matcher, err := ignore.Compile([]string{"*.log"})
	if err != nil {
		t.Fatal(err)
	}

	root := rootedpath.NewRoot(dir)
	image, err := Scan(root, matcher)
	if err != nil {
		t.Fatal(err)
	}

	if len(image.Files) != 1 || image.Files[0].Name != "keep.txt" {
		t.Fatalf("expected only keep.txt, got %+v", image.Files)
	}
	if len(image.Folders) != 1 || image.Folders[0].Name != "sub" {
		t.Fatalf("expected only sub/ folder (empty/ should be skipped), got %+v", image.Folders)
	}
}

func TestImageSaveLoadRoundTrip(t *testing.T) {
	root := rootedpath.NewRoot("/tmp/irrelevant")
	child := root.Child("a.txt")
	file := &FileImage{Name: "a.txt", Path: child, Mod: 100, Size: 5, Created: 99.5, Hash: make([]byte, HashSize)}
	image := NewFolderImage("", nil, []*FileImage{file})

	var buf bytes.Buffer
	image.Save(frame.NewWriter(&buf))

	loaded, err := LoadImage(frame.NewReader(&buf), root)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Files) != 1 || loaded.Files[0].Name != "a.txt" {
		t.Fatalf("round-trip lost file entry: %+v", loaded.Files)
	}
	if loaded.Files[0].Mod != 100 || loaded.Files[0].Size != 5 {
		t.Fatalf("round-trip metadata mismatch: %+v", loaded.Files[0])
	}
}

func TestGetLookup(t *testing.T) {
	root := rootedpath.NewRoot("/tmp/irrelevant")
	file := &FileImage{Name: "b.txt", Path: root.Child("sub").Child("b.txt")}
	sub := NewFolderImage("sub", nil, []*FileImage{file})
	top := NewFolderImage("", []*FolderImage{sub}, nil)

	if got := top.Get("sub/b.txt"); got != file {
		t.Fatalf("expected to find file via Get, got %#v", got)
	}
	if got := top.Get("sub"); got != sub {
		t.Fatalf("expected to find folder via Get, got %#v", got)
	}
	if got := top.Get("missing"); got != nil {
		t.Fatalf("expected nil for missing path, got %#v", got)
	}
}
