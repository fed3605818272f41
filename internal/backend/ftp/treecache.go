package ftp

import (
	"path"
	"sort"
	"strings"
	"time"

	goftp "github.com/jlaffaye/ftp"
)

type treeFile struct {
	size  uint64
	mtime time.Time
}

type treeDir struct {
	subdirs map[string]time.Time
	files   map[string]treeFile
}

type treeEntry struct {
	dir       *treeDir
	timestamp time.Time
}

// TreeCache holds one full MLSD walk of the tree below root. Each directory
// listing is an entry with its own timestamp and expires after ttl; a
// mutation drops only the listings it touched.
type TreeCache struct {
	root    string
	ttl     time.Duration
	now     func() time.Time
	entries map[string]treeEntry
	// partial is set once a listing was invalidated after the last Load.
	partial bool
	loads   int
}

func NewTreeCache(root string, ttl time.Duration, now func() time.Time) *TreeCache {
	if now == nil {
		now = time.Now
	}
	return &TreeCache{
		root:    treeKey(root),
		ttl:     ttl,
		now:     now,
		entries: make(map[string]treeEntry),
	}
}

// Fresh reports whether the whole tree may be served without listing.
func (t *TreeCache) Fresh() bool {
	if t.partial {
		return false
	}
	_, ok := t.checkEntry(t.root)
	return ok
}

// Loads counts full walks performed so far.
func (t *TreeCache) Loads() int { return t.loads }

func (t *TreeCache) checkEntry(abs string) (*treeDir, bool) {
	entry, ok := t.entries[treeKey(abs)]
	if !ok {
		return nil, false
	}
	if t.now().Sub(entry.timestamp) > t.ttl {
		return nil, false
	}
	return entry.dir, true
}

func (t *TreeCache) updateEntry(abs string, dir *treeDir, at time.Time) {
	t.entries[treeKey(abs)] = treeEntry{dir: dir, timestamp: at}
}

// Invalidate drops the listing of abs's parent and every listing at or
// below abs.
func (t *TreeCache) Invalidate(abs string) {
	abs = treeKey(abs)
	prefix := strings.TrimSuffix(abs, "/") + "/"
	delete(t.entries, path.Dir(abs))
	for key := range t.entries {
		if key == abs || strings.HasPrefix(key, prefix) {
			delete(t.entries, key)
		}
	}
	t.partial = true
}

// Clear removes every cached listing.
func (t *TreeCache) Clear() {
	t.entries = make(map[string]treeEntry)
	t.partial = false
}

// Load walks the tree below root with list, replacing any cached tree.
// A missing root loads as an empty tree.
func (t *TreeCache) Load(list func(dir string) ([]*goftp.Entry, error)) error {
	loaded := make(map[string]*treeDir)
	queue := []string{t.root}
	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]
		entries, err := list(dir)
		if err != nil {
			if dir == t.root && isNotFound(err) {
				break
			}
			return err
		}
		node := &treeDir{subdirs: map[string]time.Time{}, files: map[string]treeFile{}}
		for _, e := range withoutDots(entries) {
			switch e.Type {
			case goftp.EntryTypeFolder:
				node.subdirs[e.Name] = e.Time.UTC()
				queue = append(queue, path.Join(dir, e.Name))
			case goftp.EntryTypeFile:
				node.files[e.Name] = treeFile{size: e.Size, mtime: e.Time.UTC()}
			}
		}
		loaded[dir] = node
	}

	t.Clear()
	at := t.now()
	for dir, node := range loaded {
		t.updateEntry(dir, node, at)
	}
	if _, ok := loaded[t.root]; !ok {
		// Remember the missing root as an empty marker so Fresh holds.
		t.updateEntry(t.root, nil, at)
	}
	t.loads++
	return nil
}

// Contains reports whether abs lies at or below the cached root.
func (t *TreeCache) Contains(abs string) bool {
	abs = treeKey(abs)
	return abs == t.root || t.root == "/" || strings.HasPrefix(abs, t.root+"/")
}

// Walk visits abs and its descendants from the cached tree, parents first,
// names sorted.
func (t *TreeCache) Walk(abs string, visit func(dir string, subdirs, files []string) error) error {
	abs = treeKey(abs)
	node, ok := t.checkEntry(abs)
	if !ok || node == nil {
		return nil
	}
	subdirs := sortedKeys(node.subdirs)
	files := sortedKeys(node.files)
	if err := visit(abs, subdirs, files); err != nil {
		return err
	}
	for _, d := range subdirs {
		if err := t.Walk(path.Join(abs, d), visit); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the cached stat of abs. ok is false when the answer must
// come from the server: abs lies outside the cached tree, or the listing
// that would hold it expired or was invalidated.
func (t *TreeCache) Lookup(abs string) (st Stat, found, ok bool) {
	abs = treeKey(abs)
	if !t.Contains(abs) {
		return Stat{}, false, false
	}
	if abs == t.root {
		node, fresh := t.checkEntry(abs)
		if !fresh || t.partial {
			return Stat{}, false, false
		}
		return Stat{Name: path.Base(abs), Type: goftp.EntryTypeFolder}, node != nil, true
	}
	parent, name := path.Split(abs)
	node, fresh := t.checkEntry(parent)
	if !fresh {
		// A complete tree without this parent means the parent is absent.
		return Stat{}, false, t.Fresh()
	}
	if node == nil {
		return Stat{}, false, true
	}
	if mt, isDir := node.subdirs[name]; isDir {
		return Stat{Name: name, Type: goftp.EntryTypeFolder, ModTime: mt}, true, true
	}
	if f, isFile := node.files[name]; isFile {
		return Stat{Name: name, Type: goftp.EntryTypeFile, Size: f.size, ModTime: f.mtime}, true, true
	}
	return Stat{}, false, true
}

func treeKey(abs string) string {
	return path.Clean("/" + abs)
}

func sortedKeys[V any](m map[string]V) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
