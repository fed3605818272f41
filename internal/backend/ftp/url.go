package ftp

import (
	"fmt"
	"net"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/dl-alexandre/dirsync/internal/backend"
	"github.com/dl-alexandre/dirsync/internal/utils"
)

// URLPattern matches ftp://[user[:password]@]host[:port][/path].
var URLPattern = regexp.MustCompile(`(?i)^ftp://(?:([^/]+)@)?([^:/@]+)(?::([0-9]{1,5}))?(/.*)?$`)

// Config holds everything needed to open (and reopen) a session.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Basepath string
}

// ParseURL extracts connection settings from an ftp:// URL. A missing user
// means anonymous with an empty password, a missing port means 21 and a
// missing path means "/".
func ParseURL(raw string) (Config, error) {
	m := URLPattern.FindStringSubmatch(raw)
	if m == nil {
		return Config{}, fmt.Errorf("%w: %q is not an ftp:// URL", backend.ErrUnsupportedPath, raw)
	}
	cfg := Config{
		Host:     m[2],
		Port:     utils.DefaultFTPPort,
		User:     utils.DefaultFTPUser,
		Basepath: utils.DefaultFTPBasepath,
	}
	if m[1] != "" {
		user, pass, _ := strings.Cut(m[1], ":")
		var err error
		if cfg.User, err = url.PathUnescape(user); err != nil {
			return Config{}, fmt.Errorf("invalid user in %q: %w", RedactURL(raw), err)
		}
		if cfg.Password, err = url.PathUnescape(pass); err != nil {
			return Config{}, fmt.Errorf("invalid password in %q: %w", RedactURL(raw), err)
		}
	}
	if m[3] != "" {
		port, err := strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return Config{}, fmt.Errorf("invalid port %q in %q", m[3], RedactURL(raw))
		}
		cfg.Port = port
	}
	if m[4] != "" {
		cfg.Basepath = path.Clean(m[4])
	}
	return cfg, nil
}

// Addr is the host:port dial address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Anonymous reports whether the session logs in as the anonymous user.
func (c Config) Anonymous() bool {
	return c.User == utils.DefaultFTPUser
}

// String renders the URL without the password.
func (c Config) String() string {
	return fmt.Sprintf("ftp://%s@%s%s", c.User, c.Addr(), c.Basepath)
}

// RedactURL masks the password of an ftp:// URL; other strings pass through.
func RedactURL(raw string) string {
	m := URLPattern.FindStringSubmatch(raw)
	if m == nil || m[1] == "" {
		return raw
	}
	user, _, hasPass := strings.Cut(m[1], ":")
	if !hasPass {
		return raw
	}
	return strings.Replace(raw, m[1]+"@", user+":[REDACTED]@", 1)
}
