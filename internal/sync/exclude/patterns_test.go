package exclude

import (
	"reflect"
	"testing"
)

func TestParseList(t *testing.T) {
	got := ParseList(" .git/ ,*.tmp,,cache ")
	want := []string{".git/", "*.tmp", "cache"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseList() = %v, want %v", got, want)
	}
}

func TestMatcher_IsExcluded(t *testing.T) {
	m := New([]string{".git/", "*.tmp", "cache", "./build/", "logs/**/*.gz"})

	tests := []struct {
		path  string
		isDir bool
		want  bool
	}{
		{".git", true, true},
		{".git/objects/ab", false, true},
		{"src/.git", true, false},
		{"a.tmp", false, true},
		{"deep/dir/b.tmp", false, true},
		{"cache", true, true},
		{"cache/x", false, true},
		{"sub/cache", false, true},
		{"sub/cache", true, false},
		{"build/out.bin", false, true},
		{"logs/2024/01/app.gz", false, true},
		{"logs/app.gz", false, true},
		{"other/app.gz", false, false},
		{"main.go", false, false},
	}
	for _, tt := range tests {
		if got := m.IsExcluded(tt.path, tt.isDir); got != tt.want {
			t.Errorf("IsExcluded(%q, %v) = %v, want %v", tt.path, tt.isDir, got, tt.want)
		}
	}
}

func TestMatcher_Empty(t *testing.T) {
	var nilMatcher *Matcher
	if !nilMatcher.Empty() || nilMatcher.IsExcluded("x", false) {
		t.Error("nil matcher must exclude nothing")
	}
	if !New([]string{" ", ""}).Empty() {
		t.Error("blank patterns must be ignored")
	}
	if got := New([]string{"a/", "*.b", "c"}).Patterns(); !reflect.DeepEqual(got, []string{"a/", "*.b", "c"}) {
		t.Errorf("Patterns() = %v", got)
	}
}
