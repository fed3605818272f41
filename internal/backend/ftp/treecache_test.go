package ftp

import (
	"reflect"
	"testing"
	"time"

	goftp "github.com/jlaffaye/ftp"
)

func treeLister(tree map[string][]*goftp.Entry) func(string) ([]*goftp.Entry, error) {
	return func(dir string) ([]*goftp.Entry, error) {
		entries, ok := tree[dir]
		if !ok {
			return nil, errUnavailable
		}
		return entries, nil
	}
}

func sampleTree(mtime time.Time) map[string][]*goftp.Entry {
	return map[string][]*goftp.Entry{
		"/srv": {
			{Name: ".", Type: goftp.EntryTypeFolder},
			{Name: "a", Type: goftp.EntryTypeFolder, Time: mtime},
			{Name: "b", Type: goftp.EntryTypeFolder, Time: mtime},
			{Name: "top.txt", Type: goftp.EntryTypeFile, Size: 3, Time: mtime},
		},
		"/srv/a": {{Name: "one.txt", Type: goftp.EntryTypeFile, Size: 1, Time: mtime}},
		"/srv/b": {},
	}
}

func TestTreeCache_EntryTTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTreeCache("/srv/", time.Minute, func() time.Time { return now })
	if tc.Fresh() {
		t.Fatal("empty cache reported fresh")
	}
	if err := tc.Load(treeLister(sampleTree(now))); err != nil {
		t.Fatal(err)
	}
	if !tc.Fresh() {
		t.Fatal("loaded cache not fresh")
	}

	now = now.Add(time.Minute)
	if _, found, ok := tc.Lookup("/srv/a/one.txt"); !ok || !found {
		t.Errorf("Lookup at TTL = found %v ok %v, want served", found, ok)
	}
	now = now.Add(time.Second)
	if tc.Fresh() {
		t.Error("cache fresh after TTL")
	}
	if _, _, ok := tc.Lookup("/srv/a/one.txt"); ok {
		t.Error("expired listing still served")
	}
}

func TestTreeCache_InvalidateIsPerKey(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTreeCache("/srv", time.Minute, func() time.Time { return now })
	if err := tc.Load(treeLister(sampleTree(now))); err != nil {
		t.Fatal(err)
	}

	tc.Invalidate("/srv/a/one.txt")

	if tc.Fresh() {
		t.Error("cache fresh after an invalidation")
	}
	if _, _, ok := tc.Lookup("/srv/a/one.txt"); ok {
		t.Error("invalidated listing still served")
	}
	st, found, ok := tc.Lookup("/srv/top.txt")
	if !ok || !found || st.Size != 3 {
		t.Errorf("sibling listing Lookup = %+v found %v ok %v", st, found, ok)
	}
	if _, found, ok := tc.Lookup("/srv/b/missing"); !ok || found {
		t.Errorf("untouched empty dir Lookup = found %v ok %v", found, ok)
	}

	tc.Invalidate("/srv/b")
	if _, _, ok := tc.Lookup("/srv/top.txt"); ok {
		t.Error("removing a subdirectory must drop its parent listing")
	}

	tc.Clear()
	if _, _, ok := tc.Lookup("/srv/a"); ok {
		t.Error("Clear left listings behind")
	}
}

func TestTreeCache_WalkAndMissingRoot(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTreeCache("/srv", time.Minute, func() time.Time { return now })
	if err := tc.Load(treeLister(sampleTree(now))); err != nil {
		t.Fatal(err)
	}
	var dirs []string
	err := tc.Walk("/srv", func(dir string, _, _ []string) error {
		dirs = append(dirs, dir)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"/srv", "/srv/a", "/srv/b"}; !reflect.DeepEqual(dirs, want) {
		t.Errorf("Walk dirs = %v, want %v", dirs, want)
	}

	missing := NewTreeCache("/gone", time.Minute, func() time.Time { return now })
	if err := missing.Load(treeLister(sampleTree(now))); err != nil {
		t.Fatalf("Load(missing root) error = %v", err)
	}
	if !missing.Fresh() {
		t.Error("missing root must load as a fresh empty tree")
	}
	if _, found, ok := missing.Lookup("/gone/x"); !ok || found {
		t.Errorf("Lookup below missing root = found %v ok %v", found, ok)
	}
}
