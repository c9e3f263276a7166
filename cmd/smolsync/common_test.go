package main

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/TechnoStrife/smolsync/pkg/diffengine"
)

func TestDiffSourceSingleFile(t *testing.T) {
	dir := t.TempDir()
	diffPath := filepath.Join(dir, "photos.diff")
	if err := os.WriteFile(diffPath, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	dataRoot, names, cleanup, err := diffSource(diffPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()

	if dataRoot != dir {
		t.Errorf("dataRoot = %q, want %q", dataRoot, dir)
	}
	if len(names) != 1 || names[0] != "photos" {
		t.Errorf("names = %v, want [photos]", names)
	}
}

func TestDiffSourceDirectoryListsAllDiffs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.diff", "b.diff"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "a.image"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	dataRoot, names, cleanup, err := diffSource(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()

	if dataRoot != dir {
		t.Errorf("dataRoot = %q, want %q", dataRoot, dir)
	}
	if len(names) != 2 {
		t.Errorf("names = %v, want 2 entries", names)
	}
}

func TestDiffSourceDirectoryMissingRequestedTarget(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.diff"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, _, _, err := diffSource(dir, []string{"b"}); err == nil {
		t.Fatal("expected an error for a requested target with no diff file")
	}
}

func TestDiffSourceZipExtractsAndListsDiffs(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "archive.zip")
	zipFile, err := os.Create(zipPath)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(zipFile)
	header := &zip.FileHeader{Name: "photos.diff", Modified: time.Unix(1000, 0)}
	header.SetMode(0o644)
	w, err := zw.CreateHeader(header)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := zipFile.Close(); err != nil {
		t.Fatal(err)
	}

	dataRoot, names, cleanup, err := diffSource(zipPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()

	if len(names) != 1 || names[0] != "photos" {
		t.Errorf("names = %v, want [photos]", names)
	}
	if _, err := os.Stat(filepath.Join(dataRoot, "photos.diff")); err != nil {
		t.Errorf("extracted file missing: %v", err)
	}

	cleanup()
	if _, err := os.Stat(dataRoot); !os.IsNotExist(err) {
		t.Errorf("expected cleanup to remove %s, got err %v", dataRoot, err)
	}
}

func TestResolveZipPathDirectoryGetsDefaultName(t *testing.T) {
	dir := t.TempDir()
	path, err := resolveZipPath(dir)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("resolved path %q not inside %q", path, dir)
	}
}

func TestResolveZipPathRejectsNonZipFile(t *testing.T) {
	dir := t.TempDir()
	notZip := filepath.Join(dir, "out.tar")
	if err := os.WriteFile(notZip, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := resolveZipPath(notZip); err == nil {
		t.Fatal("expected an error for a non-.zip existing file")
	}
}

func TestResolveZipPathAcceptsNewZipPath(t *testing.T) {
	dir := t.TempDir()
	wantPath := filepath.Join(dir, "out.zip")
	path, err := resolveZipPath(wantPath)
	if err != nil {
		t.Fatal(err)
	}
	if path != wantPath {
		t.Errorf("path = %q, want %q", path, wantPath)
	}
}

func TestParseHideStatusesEmptyIsNil(t *testing.T) {
	if hide := parseHideStatuses(""); hide != nil {
		t.Errorf("expected nil, got %v", hide)
	}
}

func TestParseHideStatusesBuildsSet(t *testing.T) {
	hide := parseHideStatuses("AD")
	if !hide[diffengine.StatusAdded] || !hide[diffengine.StatusDeleted] {
		t.Errorf("expected A and D hidden, got %v", hide)
	}
	if hide[diffengine.StatusModified] {
		t.Errorf("did not expect M to be hidden")
	}
}

func TestUnixTimeRoundTrips(t *testing.T) {
	got := unixTime(1700000000)
	if got.Unix() != 1700000000 {
		t.Errorf("unixTime round trip failed: got %v", got)
	}
}
