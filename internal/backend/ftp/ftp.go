// Package ftp implements backend.Backend over an FTP session.
//
// Every remote call is preceded by a keepalive that re-enters the current
// directory. When that probe shows the server dropped the session, the
// backend dials again with the same credentials, returns to the basepath and
// carries the accumulated stat cache over to the new session. The call that
// triggered the probe then runs once on the new session; it is not retried.
package ftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"time"

	"github.com/dl-alexandre/dirsync/internal/backend"
	"github.com/dl-alexandre/dirsync/internal/logging"
	"github.com/dl-alexandre/dirsync/internal/utils"
	goftp "github.com/jlaffaye/ftp"
)

// Precision is the modification-time resolution MFMT preserves.
const Precision = time.Second

// PasswordLookup resolves a password for user@host when the URL has none.
type PasswordLookup func(user, host string) (string, error)

// Options configures New. The zero value dials real servers with the
// default timeout and no tree cache.
type Options struct {
	Dialer    Dialer
	Timeout   time.Duration
	CacheSize int
	// UseTreeCache serves Walk and Stat from one full MLSD walk for TreeTTL.
	UseTreeCache bool
	TreeTTL      time.Duration
	Clock        func() time.Time
	Passwords    PasswordLookup
	Logger       logging.Logger
}

// FS is an FTP directory tree rooted at a basepath.
type FS struct {
	cfg        Config
	dial       Dialer
	conn       Conn
	cache      *MetadataCache
	tree       *TreeCache
	logger     logging.Logger
	reconnects int
}

// New parses an ftp:// URL, opens a session and enters the basepath.
func New(ctx context.Context, rawURL string, opts Options) (*FS, error) {
	cfg, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNoOpLogger()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = utils.DefaultFTPTimeout
	}
	if opts.Dialer == nil {
		opts.Dialer = NetDialer(opts.Timeout)
	}
	if opts.TreeTTL <= 0 {
		opts.TreeTTL = utils.TreeCacheTTL
	}
	if cfg.Password == "" && !cfg.Anonymous() && opts.Passwords != nil {
		pass, err := opts.Passwords(cfg.User, cfg.Host)
		if err != nil {
			return nil, fmt.Errorf("password for %s@%s: %w", cfg.User, cfg.Host, err)
		}
		cfg.Password = pass
	}

	conn, err := opts.Dialer(ctx, cfg)
	if err != nil {
		return nil, err
	}
	f := &FS{
		cfg:    cfg,
		dial:   opts.Dialer,
		conn:   conn,
		cache:  NewMetadataCache(conn, NewStatStore(opts.CacheSize)),
		logger: opts.Logger,
	}
	if opts.UseTreeCache {
		f.tree = NewTreeCache(cfg.Basepath, opts.TreeTTL, opts.Clock)
	}
	f.enterBasepath()
	f.logger.Debug("FTP session opened", logging.F("url", cfg.String()))
	return f, nil
}

// enterBasepath tolerates a missing basepath; it is created on demand.
func (f *FS) enterBasepath() {
	if err := f.conn.ChangeDir(f.cfg.Basepath); err != nil {
		f.logger.Debug("Basepath not entered", logging.F("path", f.cfg.Basepath), logging.F("error", err))
	}
}

func (f *FS) Kind() backend.Kind { return backend.KindFTP }

func (f *FS) Basepath() string { return f.cfg.Basepath }

func (f *FS) Precision() time.Duration { return Precision }

// Reconnects counts sessions reopened by the keepalive.
func (f *FS) Reconnects() int { return f.reconnects }

// Cache exposes the metadata cache of the current session.
func (f *FS) Cache() *MetadataCache { return f.cache }

func (f *FS) abs(rel string) string {
	return path.Join(f.cfg.Basepath, backend.CleanRel(rel))
}

// keepalive probes the session and reopens it if the server dropped it.
func (f *FS) keepalive(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir, err := f.conn.CurrentDir()
	if err == nil {
		err = f.conn.ChangeDir(dir)
	}
	if err == nil {
		return nil
	}
	if !IsSessionLost(err) {
		return err
	}
	f.logger.Warn("FTP session lost, reconnecting",
		logging.F("host", f.cfg.Host),
		logging.F("error", err),
	)
	return f.reconnect(ctx)
}

func (f *FS) reconnect(ctx context.Context) error {
	_ = f.conn.Quit()
	conn, err := f.dial(ctx, f.cfg)
	if err != nil {
		return fmt.Errorf("reconnect to %s: %w", f.cfg.Addr(), err)
	}
	f.conn = conn
	f.enterBasepath()
	f.cache = NewMetadataCache(conn, f.cache.Detach())
	f.reconnects++
	f.logger.Info("FTP session reopened", logging.F("host", f.cfg.Host), logging.F("reconnects", f.reconnects))
	return nil
}

func (f *FS) mutated(abs string, subtree bool) {
	if subtree {
		f.cache.InvalidateTree(abs)
	} else {
		f.cache.Invalidate(abs)
	}
	if f.tree != nil {
		f.tree.Invalidate(abs)
	}
}

func (f *FS) lstat(abs string) (Stat, bool, error) {
	if f.tree != nil {
		if st, found, ok := f.tree.Lookup(abs); ok {
			return st, found, nil
		}
	}
	return f.cache.Exists(abs)
}

func (f *FS) Makedirs(ctx context.Context, rel string) error {
	if err := f.keepalive(ctx); err != nil {
		return err
	}
	target := backend.CleanRel(f.abs(rel))
	if target == "" {
		return nil
	}
	for _, p := range append(backend.Parents(target), target) {
		if err := f.ensureDir("/" + p); err != nil {
			return err
		}
	}
	return nil
}

func (f *FS) ensureDir(abs string) error {
	st, found, err := f.lstat(abs)
	if err != nil {
		return err
	}
	if found {
		if !st.IsDir() {
			return fmt.Errorf("makedirs %s: %w", abs, backend.ErrNotDir)
		}
		return nil
	}
	mkErr := f.conn.MakeDir(abs)
	f.mutated(abs, false)
	if mkErr == nil {
		return nil
	}
	// Another client may have created it in the meantime.
	if st, found, err := f.lstat(abs); err == nil && found && st.IsDir() {
		return nil
	}
	return fmt.Errorf("makedirs %s: %w", abs, mkErr)
}

func (f *FS) Rmtree(ctx context.Context, rel string) error {
	if err := f.keepalive(ctx); err != nil {
		return err
	}
	abs := f.abs(rel)
	st, found, err := f.lstat(abs)
	if err != nil || !found {
		return err
	}
	if !st.IsDir() {
		return fmt.Errorf("rmtree %s: %w", abs, backend.ErrNotDir)
	}
	err = f.conn.RemoveDirRecur(abs)
	f.mutated(abs, true)
	if err != nil {
		return fmt.Errorf("rmtree %s: %w", abs, err)
	}
	return nil
}

func (f *FS) Open(ctx context.Context, rel string) (io.ReadCloser, error) {
	if err := f.keepalive(ctx); err != nil {
		return nil, err
	}
	abs := f.abs(rel)
	rc, err := f.conn.Retr(abs)
	if err != nil {
		if isNotFound(err) {
			return nil, &fs.PathError{Op: "open", Path: abs, Err: fs.ErrNotExist}
		}
		return nil, fmt.Errorf("retr %s: %w", abs, err)
	}
	return rc, nil
}

func (f *FS) Write(ctx context.Context, rel string, src io.Reader) error {
	if err := f.keepalive(ctx); err != nil {
		return err
	}
	abs := f.abs(rel)
	err := f.conn.Stor(abs, src)
	f.mutated(abs, false)
	if err != nil {
		return fmt.Errorf("stor %s: %w", abs, err)
	}
	return nil
}

func (f *FS) Delete(ctx context.Context, rel string) error {
	if err := f.keepalive(ctx); err != nil {
		return err
	}
	abs := f.abs(rel)
	err := f.conn.Delete(abs)
	f.mutated(abs, false)
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		st, found, statErr := f.lstat(abs)
		if statErr == nil && !found {
			return nil
		}
		if statErr == nil && st.IsDir() {
			return fmt.Errorf("delete %s: %w", abs, backend.ErrNotDir)
		}
	}
	return fmt.Errorf("delete %s: %w", abs, err)
}

func (f *FS) Stat(ctx context.Context, rel string) (backend.StatResult, error) {
	if err := f.keepalive(ctx); err != nil {
		return backend.StatResult{}, err
	}
	abs := f.abs(rel)
	st, found, err := f.lstat(abs)
	if err != nil {
		return backend.StatResult{}, err
	}
	if !found {
		return backend.StatResult{}, &fs.PathError{Op: "stat", Path: abs, Err: fs.ErrNotExist}
	}
	res := backend.StatResult{
		Name:    st.Name,
		ModTime: st.ModTime.UTC(),
		IsDir:   st.IsDir(),
	}
	if !res.IsDir {
		res.Size = st.Size
	}
	return res, nil
}

// Utime sets the modification time with MFMT; FTP has no access time.
func (f *FS) Utime(ctx context.Context, rel string, _, mtime time.Time) error {
	if err := f.keepalive(ctx); err != nil {
		return err
	}
	abs := f.abs(rel)
	err := f.conn.SetTime(abs, mtime.UTC())
	f.mutated(abs, false)
	if err != nil {
		return fmt.Errorf("mfmt %s: %w", abs, err)
	}
	return nil
}

func (f *FS) Walk(ctx context.Context, rel string, fn backend.WalkFunc) error {
	if err := f.keepalive(ctx); err != nil {
		return err
	}
	rel = backend.CleanRel(rel)
	if f.tree != nil {
		return f.walkTree(ctx, rel, fn)
	}
	if _, found, err := f.lstat(f.abs(rel)); err != nil || !found {
		return err
	}
	return f.walk(ctx, rel, fn)
}

func (f *FS) walk(ctx context.Context, rel string, fn backend.WalkFunc) error {
	if err := f.keepalive(ctx); err != nil {
		return err
	}
	stats, err := f.cache.ListDir(f.abs(rel))
	if err != nil {
		return fmt.Errorf("list %s: %w", f.abs(rel), err)
	}
	var dirs, files []string
	for _, st := range stats {
		switch st.Type {
		case goftp.EntryTypeFolder:
			dirs = append(dirs, st.Name)
		case goftp.EntryTypeFile:
			files = append(files, st.Name)
		}
	}
	if err := fn(rel, dirs, files); err != nil {
		return err
	}
	for _, d := range dirs {
		if err := f.walk(ctx, backend.JoinRel(rel, d), fn); err != nil {
			return err
		}
	}
	return nil
}

func (f *FS) walkTree(ctx context.Context, rel string, fn backend.WalkFunc) error {
	if !f.tree.Fresh() {
		f.logger.Debug("Loading FTP directory tree", logging.F("root", f.cfg.Basepath))
		if err := f.tree.Load(f.listFacts(ctx)); err != nil {
			return fmt.Errorf("load tree %s: %w", f.cfg.Basepath, err)
		}
	}
	return f.tree.Walk(f.abs(rel), func(dir string, subdirs, files []string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(f.relOf(dir), subdirs, files)
	})
}

func (f *FS) listFacts(ctx context.Context) func(dir string) ([]*goftp.Entry, error) {
	return func(dir string) ([]*goftp.Entry, error) {
		if err := f.keepalive(ctx); err != nil {
			return nil, err
		}
		return f.conn.ListFacts(dir)
	}
}

func (f *FS) relOf(abs string) string {
	if abs == f.cfg.Basepath {
		return ""
	}
	if f.cfg.Basepath == "/" {
		return backend.CleanRel(abs)
	}
	return backend.CleanRel(abs[len(f.cfg.Basepath):])
}

func (f *FS) Close() error {
	if f.conn == nil {
		return nil
	}
	err := f.conn.Quit()
	f.conn = nil
	if err != nil && !errors.Is(err, io.EOF) && !IsSessionLost(err) {
		return err
	}
	return nil
}

var _ backend.Backend = (*FS)(nil)
