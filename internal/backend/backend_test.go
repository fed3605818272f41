package backend

import (
	"reflect"
	"testing"
)

func TestCleanRel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{".", ""},
		{"/", ""},
		{"a/b", "a/b"},
		{"/a//b/", "a/b"},
		{`a\b\c.txt`, "a/b/c.txt"},
		{"../../etc", "etc"},
		{"a/./b/../c", "a/c"},
	}
	for _, tt := range tests {
		if got := CleanRel(tt.in); got != tt.want {
			t.Errorf("CleanRel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestJoinRel(t *testing.T) {
	if got := JoinRel("", "a.txt"); got != "a.txt" {
		t.Errorf("JoinRel root = %q", got)
	}
	if got := JoinRel("d/e", "f"); got != "d/e/f" {
		t.Errorf("JoinRel nested = %q", got)
	}
}

func TestParentsAndDepth(t *testing.T) {
	if got := Parents("a/b/c.txt"); !reflect.DeepEqual(got, []string{"a", "a/b"}) {
		t.Errorf("Parents = %v", got)
	}
	if got := Parents("top"); got != nil {
		t.Errorf("Parents(top) = %v, want nil", got)
	}
	for in, want := range map[string]int{"": 0, "a": 1, "a/b/c": 3} {
		if got := Depth(in); got != want {
			t.Errorf("Depth(%q) = %d, want %d", in, got, want)
		}
	}
}
