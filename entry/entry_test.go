package entry

import "testing"

func TestKindString(t *testing.T) {
	if KindDirectory.String() != "directory" {
		t.Fatalf("got %q", KindDirectory.String())
	}
	if KindOther.String() != "other" {
		t.Fatalf("got %q", KindOther.String())
	}
}

func TestMatchGlob(t *testing.T) {
	ok, err := Match("**/*.txt", "dir/sub/a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected match")
	}
	ok, err = Match("*.txt", "dir/a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("single-star should not cross a path separator")
	}
}

func TestFilterByPattern(t *testing.T) {
	infos := []Info{
		{Name: "a.txt"},
		{Name: "b.bin"},
		{Name: "dir/c.txt"},
	}
	got, err := Filter(infos, "**/*.txt")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d matches, want 2: %v", len(got), got)
	}
}

func TestDeviceEncodesMajorMinor(t *testing.T) {
	dev := Device(8, 1)
	if dev == 0 {
		t.Fatal("expected nonzero dev_t for major=8 minor=1")
	}
}
