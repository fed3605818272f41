package ftp

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"path"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	goftp "github.com/jlaffaye/ftp"

	"github.com/dl-alexandre/dirsync/internal/utils"
)

// Stat is a cached stat result for one remote path.
type Stat struct {
	Name    string
	Target  string
	Type    goftp.EntryType
	Size    uint64
	ModTime time.Time
}

func (s Stat) IsDir() bool { return s.Type == goftp.EntryTypeFolder }

// StatStore is an LRU of absolute remote path -> Stat whose capacity can grow.
type StatStore struct {
	cache *lru.Cache[string, Stat]
	size  int
}

func NewStatStore(size int) *StatStore {
	if size <= 0 {
		size = utils.DefaultStatCacheSize
	}
	cache, err := lru.New[string, Stat](size)
	if err != nil {
		panic(fmt.Sprintf("stat store: %v", err))
	}
	return &StatStore{cache: cache, size: size}
}

func (s *StatStore) Get(abs string) (Stat, bool) { return s.cache.Get(abs) }

func (s *StatStore) Add(abs string, st Stat) { s.cache.Add(abs, st) }

func (s *StatStore) Remove(abs string) { s.cache.Remove(abs) }

func (s *StatStore) Len() int { return s.cache.Len() }

// Size is the current capacity.
func (s *StatStore) Size() int { return s.size }

// Resize changes the capacity, evicting the oldest entries if it shrinks.
func (s *StatStore) Resize(size int) {
	s.cache.Resize(size)
	s.size = size
}

// RemovePrefix drops abs and every path below it.
func (s *StatStore) RemovePrefix(abs string) {
	prefix := strings.TrimSuffix(abs, "/") + "/"
	for _, k := range s.cache.Keys() {
		if k == abs || strings.HasPrefix(k, prefix) {
			s.cache.Remove(k)
		}
	}
}

// Lister provides the two directory listings the cache combines.
type Lister interface {
	List(path string) ([]*goftp.Entry, error)
	ListFacts(path string) ([]*goftp.Entry, error)
}

// MetadataCache serves stat results from LIST output whose modification
// times are replaced by the MLSD "modify" fact of the same name.
type MetadataCache struct {
	lister Lister
	store  *StatStore
}

func NewMetadataCache(lister Lister, store *StatStore) *MetadataCache {
	if store == nil {
		store = NewStatStore(utils.DefaultStatCacheSize)
	}
	return &MetadataCache{lister: lister, store: store}
}

// Store exposes the backing store.
func (c *MetadataCache) Store() *StatStore { return c.store }

// Detach hands the backing store over to a successor cache and leaves this
// cache with an empty one.
func (c *MetadataCache) Detach() *StatStore {
	store := c.store
	c.store = NewStatStore(store.Size())
	return store
}

// ListDir lists dir and caches a Stat for each entry.
func (c *MetadataCache) ListDir(dir string) ([]Stat, error) {
	entries, err := c.lister.List(dir)
	if err != nil {
		return nil, err
	}
	entries = withoutDots(entries)

	if len(entries) >= c.store.Size() {
		c.store.Resize(int(math.Ceil(utils.StatCacheGrowth * float64(len(entries)))))
	}

	precise, err := c.preciseTimes(dir)
	if err != nil {
		return nil, err
	}

	stats := make([]Stat, 0, len(entries))
	for _, e := range entries {
		st := Stat{
			Name:    e.Name,
			Target:  e.Target,
			Type:    e.Type,
			Size:    e.Size,
			ModTime: e.Time.UTC(),
		}
		if t, ok := precise[e.Name]; ok {
			st.ModTime = t
		}
		c.store.Add(path.Join(dir, e.Name), st)
		stats = append(stats, st)
	}
	return stats, nil
}

// preciseTimes maps entry name to its MLSD modification time. Servers
// without MLSD yield an empty map; a dead session is reported.
func (c *MetadataCache) preciseTimes(dir string) (map[string]time.Time, error) {
	facts, err := c.lister.ListFacts(dir)
	if err != nil {
		if IsSessionLost(err) {
			return nil, err
		}
		return nil, nil
	}
	out := make(map[string]time.Time, len(facts))
	for _, f := range withoutDots(facts) {
		if !f.Time.IsZero() {
			out[f.Name] = f.Time.UTC()
		}
	}
	return out, nil
}

// Lstat returns the cached stat of abs, listing its parent on a miss.
func (c *MetadataCache) Lstat(abs string) (Stat, error) {
	abs = path.Clean(abs)
	if abs == "/" {
		return Stat{Name: "/", Type: goftp.EntryTypeFolder}, nil
	}
	if st, ok := c.store.Get(abs); ok {
		return st, nil
	}
	parent, name := path.Split(abs)
	stats, err := c.ListDir(path.Clean(parent))
	if err != nil {
		if isNotFound(err) {
			return Stat{}, &fs.PathError{Op: "lstat", Path: abs, Err: fs.ErrNotExist}
		}
		return Stat{}, err
	}
	for _, st := range stats {
		if st.Name == name {
			return st, nil
		}
	}
	return Stat{}, &fs.PathError{Op: "lstat", Path: abs, Err: fs.ErrNotExist}
}

// Exists reports whether abs is present, treating only "not found" as absence.
func (c *MetadataCache) Exists(abs string) (Stat, bool, error) {
	st, err := c.Lstat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return Stat{}, false, nil
	}
	if err != nil {
		return Stat{}, false, err
	}
	return st, true, nil
}

func (c *MetadataCache) Invalidate(abs string) { c.store.Remove(path.Clean(abs)) }

func (c *MetadataCache) InvalidateTree(abs string) { c.store.RemovePrefix(path.Clean(abs)) }

func withoutDots(entries []*goftp.Entry) []*goftp.Entry {
	out := make([]*goftp.Entry, 0, len(entries))
	for _, e := range entries {
		if e == nil || e.Name == "." || e.Name == ".." {
			continue
		}
		out = append(out, e)
	}
	return out
}
