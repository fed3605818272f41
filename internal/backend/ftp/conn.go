package ftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"time"

	goftp "github.com/jlaffaye/ftp"
)

// Conn is the subset of an FTP control session the backend drives. List
// uses the legacy LIST command; ListFacts uses MLSD.
type Conn interface {
	CurrentDir() (string, error)
	ChangeDir(path string) error
	List(path string) ([]*goftp.Entry, error)
	ListFacts(path string) ([]*goftp.Entry, error)
	Retr(path string) (io.ReadCloser, error)
	Stor(path string, r io.Reader) error
	Delete(path string) error
	RemoveDirRecur(path string) error
	MakeDir(path string) error
	SetTime(path string, t time.Time) error
	Quit() error
}

// Dialer opens and authenticates a session.
type Dialer func(ctx context.Context, cfg Config) (Conn, error)

// NetDialer dials two control connections with the same credentials: one
// restricted to LIST, one allowed to use MLSD.
func NetDialer(timeout time.Duration) Dialer {
	return func(ctx context.Context, cfg Config) (Conn, error) {
		legacy, err := dialLogin(ctx, cfg, timeout, true)
		if err != nil {
			return nil, err
		}
		facts, err := dialLogin(ctx, cfg, timeout, false)
		if err != nil {
			_ = legacy.Quit()
			return nil, err
		}
		return &dualConn{ServerConn: legacy, facts: facts}, nil
	}
}

func dialLogin(ctx context.Context, cfg Config, timeout time.Duration, disableMLSD bool) (*goftp.ServerConn, error) {
	c, err := goftp.Dial(cfg.Addr(),
		goftp.DialWithContext(ctx),
		goftp.DialWithTimeout(timeout),
		goftp.DialWithDisabledMLSD(disableMLSD),
	)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.Addr(), err)
	}
	if err := c.Login(cfg.User, cfg.Password); err != nil {
		_ = c.Quit()
		return nil, fmt.Errorf("login %s@%s: %w", cfg.User, cfg.Addr(), err)
	}
	return c, nil
}

type dualConn struct {
	*goftp.ServerConn
	facts *goftp.ServerConn
}

func (c *dualConn) ChangeDir(path string) error {
	if err := c.ServerConn.ChangeDir(path); err != nil {
		return err
	}
	return c.facts.ChangeDir(path)
}

func (c *dualConn) ListFacts(path string) ([]*goftp.Entry, error) {
	return c.facts.List(path)
}

func (c *dualConn) Retr(path string) (io.ReadCloser, error) {
	return c.ServerConn.Retr(path)
}

func (c *dualConn) Quit() error {
	return errors.Join(c.ServerConn.Quit(), c.facts.Quit())
}

// IsSessionLost reports whether err means the control connection is gone:
// a 421 reply or a closed/reset socket.
func IsSessionLost(err error) bool {
	if err == nil {
		return false
	}
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		return tpErr.Code == goftp.StatusNotAvailable
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed)
}

// isNotFound reports a permanent "file unavailable" reply.
func isNotFound(err error) bool {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		return tpErr.Code == goftp.StatusFileUnavailable || tpErr.Code == goftp.StatusFileActionIgnored
	}
	return false
}
