package ftp

import (
	"bytes"
	"context"
	"io"
	"net/textproto"
	"path"
	"sort"
	"strings"
	"time"

	goftp "github.com/jlaffaye/ftp"
)

type fakeNode struct {
	dir   bool
	data  []byte
	mtime time.Time
}

// fakeServer is an in-memory FTP server shared by every session dialed
// against it. LIST reports times truncated to the minute, MLSD exactly.
type fakeServer struct {
	nodes   map[string]*fakeNode
	dials   []Config
	calls   []string
	dropped bool
	noMLSD  bool
	now     time.Time
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		nodes: map[string]*fakeNode{"/": {dir: true}},
		now:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (s *fakeServer) addDir(p string) {
	s.nodes[path.Clean(p)] = &fakeNode{dir: true, mtime: s.now}
}

func (s *fakeServer) addFile(p, content string, mtime time.Time) {
	s.nodes[path.Clean(p)] = &fakeNode{data: []byte(content), mtime: mtime}
}

func (s *fakeServer) dialer() Dialer {
	return func(_ context.Context, cfg Config) (Conn, error) {
		s.dials = append(s.dials, cfg)
		s.dropped = false
		return &fakeConn{srv: s, cwd: "/"}, nil
	}
}

type fakeConn struct {
	srv    *fakeServer
	cwd    string
	closed bool
}

var errUnavailable = &textproto.Error{Code: goftp.StatusFileUnavailable, Msg: "No such file or directory"}

func (c *fakeConn) check(op string) error {
	c.srv.calls = append(c.srv.calls, op)
	if c.closed || c.srv.dropped {
		return &textproto.Error{Code: goftp.StatusNotAvailable, Msg: "Timeout."}
	}
	return nil
}

func (c *fakeConn) CurrentDir() (string, error) {
	if err := c.check("PWD"); err != nil {
		return "", err
	}
	return c.cwd, nil
}

func (c *fakeConn) ChangeDir(p string) error {
	if err := c.check("CWD"); err != nil {
		return err
	}
	n, ok := c.srv.nodes[path.Clean(p)]
	if !ok || !n.dir {
		return errUnavailable
	}
	c.cwd = path.Clean(p)
	return nil
}

func (c *fakeConn) list(p string, precise bool) ([]*goftp.Entry, error) {
	dir := path.Clean(p)
	if n, ok := c.srv.nodes[dir]; !ok || !n.dir {
		return nil, errUnavailable
	}
	entries := []*goftp.Entry{{Name: ".", Type: goftp.EntryTypeFolder}, {Name: "..", Type: goftp.EntryTypeFolder}}
	for name, n := range c.srv.nodes {
		if name == dir || path.Dir(name) != dir {
			continue
		}
		e := &goftp.Entry{Name: path.Base(name), Time: n.mtime}
		if !precise {
			e.Time = n.mtime.Truncate(time.Minute)
		}
		if n.dir {
			e.Type = goftp.EntryTypeFolder
		} else {
			e.Type = goftp.EntryTypeFile
			e.Size = uint64(len(n.data))
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (c *fakeConn) List(p string) ([]*goftp.Entry, error) {
	if err := c.check("LIST " + p); err != nil {
		return nil, err
	}
	return c.list(p, false)
}

func (c *fakeConn) ListFacts(p string) ([]*goftp.Entry, error) {
	if err := c.check("MLSD " + p); err != nil {
		return nil, err
	}
	if c.srv.noMLSD {
		return nil, &textproto.Error{Code: 502, Msg: "MLSD not understood"}
	}
	return c.list(p, true)
}

func (c *fakeConn) Retr(p string) (io.ReadCloser, error) {
	if err := c.check("RETR " + p); err != nil {
		return nil, err
	}
	n, ok := c.srv.nodes[path.Clean(p)]
	if !ok || n.dir {
		return nil, errUnavailable
	}
	return io.NopCloser(bytes.NewReader(n.data)), nil
}

func (c *fakeConn) Stor(p string, r io.Reader) error {
	if err := c.check("STOR " + p); err != nil {
		return err
	}
	if parent, ok := c.srv.nodes[path.Dir(path.Clean(p))]; !ok || !parent.dir {
		return errUnavailable
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	c.srv.nodes[path.Clean(p)] = &fakeNode{data: data, mtime: c.srv.now}
	return nil
}

func (c *fakeConn) Delete(p string) error {
	if err := c.check("DELE " + p); err != nil {
		return err
	}
	n, ok := c.srv.nodes[path.Clean(p)]
	if !ok || n.dir {
		return errUnavailable
	}
	delete(c.srv.nodes, path.Clean(p))
	return nil
}

func (c *fakeConn) RemoveDirRecur(p string) error {
	if err := c.check("RMD " + p); err != nil {
		return err
	}
	root := path.Clean(p)
	if n, ok := c.srv.nodes[root]; !ok || !n.dir {
		return errUnavailable
	}
	for name := range c.srv.nodes {
		if name == root || strings.HasPrefix(name, root+"/") {
			delete(c.srv.nodes, name)
		}
	}
	return nil
}

func (c *fakeConn) MakeDir(p string) error {
	if err := c.check("MKD " + p); err != nil {
		return err
	}
	clean := path.Clean(p)
	if _, exists := c.srv.nodes[clean]; exists {
		return errUnavailable
	}
	if parent, ok := c.srv.nodes[path.Dir(clean)]; !ok || !parent.dir {
		return errUnavailable
	}
	c.srv.addDir(clean)
	return nil
}

func (c *fakeConn) SetTime(p string, t time.Time) error {
	if err := c.check("MFMT " + p); err != nil {
		return err
	}
	n, ok := c.srv.nodes[path.Clean(p)]
	if !ok {
		return errUnavailable
	}
	n.mtime = t.Truncate(time.Second)
	return nil
}

func (c *fakeConn) Quit() error {
	c.closed = true
	return nil
}
