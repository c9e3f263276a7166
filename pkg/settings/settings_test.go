package settings

import (
	"path/filepath"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	doc := Document{
		"photos": Target{Root: "/home/user/photos", Ignore: []string{"*.tmp"}},
		"docs":   Target{Root: "/home/user/docs"},
	}
	if err := doc.Save(dir); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(loaded))
	}
	if loaded["photos"].Root != "/home/user/photos" || len(loaded["photos"].Ignore) != 1 {
		t.Fatalf("unexpected photos target: %+v", loaded["photos"])
	}
}

func TestPathJoinsFixedName(t *testing.T) {
	got := Path("/some/dir")
	want := filepath.Join("/some/dir", "smolsync.json")
	if got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestSelectAllSortsNames(t *testing.T) {
	doc := Document{"b": Target{Root: "/b"}, "a": Target{Root: "/a"}}
	_, names, err := doc.Select(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("expected sorted [a b], got %v", names)
	}
}

func TestSelectUnknownTarget(t *testing.T) {
	doc := Document{"a": Target{Root: "/a"}}
	if _, _, err := doc.Select([]string{"missing"}); err == nil {
		t.Fatal("expected error for unknown target")
	}
}

func TestEnsureNameValid(t *testing.T) {
	cases := map[string]bool{
		"":              false,
		"photos":        true,
		"1photos":       false,
		"photos-backup": true,
		"defaults":      false,
		"a b":           false,
	}
	for name, wantOK := range cases {
		err := EnsureNameValid(name)
		if (err == nil) != wantOK {
			t.Errorf("EnsureNameValid(%q): err=%v, want ok=%v", name, err, wantOK)
		}
	}
}

func TestEnsureNameValidRejectsUUID(t *testing.T) {
	if err := EnsureNameValid("ab1c2d3e-4f56-7890-abcd-ef1234567890"); err == nil {
		t.Fatal("expected a UUID-shaped name to be rejected")
	}
}
