package rootedpath

import "testing"

func TestFromRootAndChild(t *testing.T) {
	root := NewRoot("/home/user/project")
	sub := root.Child("src").Child("main.go")

	if got := sub.FromRoot(); got != "src/main.go" {
		t.Fatalf("FromRoot mismatch: got %q", got)
	}
	if got := sub.GetRoot().Absolute(); got != root.Absolute() {
		t.Fatalf("GetRoot mismatch: got %q, want %q", got, root.Absolute())
	}
	if got := root.FromRoot(); got != "" {
		t.Fatalf("root FromRoot should be empty, got %q", got)
	}
}

func TestJoinFromRoot(t *testing.T) {
	root := NewRoot("/data/target")
	resolved := root.JoinFromRoot("a/b/c.txt")
	if got := resolved.FromRoot(); got != "a/b/c.txt" {
		t.Fatalf("JoinFromRoot round-trip mismatch: got %q", got)
	}
}
