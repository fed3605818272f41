// Package exclude decides which relative paths a snapshot leaves out.
package exclude

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Matcher holds user exclusion patterns. Three pattern forms are supported:
//
//	build/     the directory "build" and everything below it
//	*.tmp      a glob matched against the full path and the base name;
//	           "**" spans directories (logs/**/*.gz)
//	cache      a literal path (and its subtree) or a file base name
type Matcher struct {
	dirs     []string
	globs    []string
	literals []string
}

// ParseList splits a comma-separated flag value into patterns.
func ParseList(value string) []string {
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func New(patterns []string) *Matcher {
	m := &Matcher{}
	for _, p := range patterns {
		p = strings.TrimPrefix(strings.TrimSpace(p), "./")
		switch {
		case p == "":
		case strings.HasSuffix(p, "/"):
			m.dirs = append(m.dirs, strings.TrimSuffix(p, "/"))
		case strings.ContainsAny(p, "*?["):
			m.globs = append(m.globs, p)
		default:
			m.literals = append(m.literals, p)
		}
	}
	return m
}

// Empty reports whether the matcher excludes nothing.
func (m *Matcher) Empty() bool {
	return m == nil || len(m.dirs)+len(m.globs)+len(m.literals) == 0
}

// Patterns returns the normalized patterns in their original forms.
func (m *Matcher) Patterns() []string {
	if m == nil {
		return nil
	}
	out := make([]string, 0, len(m.dirs)+len(m.globs)+len(m.literals))
	for _, d := range m.dirs {
		out = append(out, d+"/")
	}
	out = append(out, m.globs...)
	return append(out, m.literals...)
}

func underOrAt(relPath, prefix string) bool {
	return relPath == prefix || strings.HasPrefix(relPath, prefix+"/")
}

func (m *Matcher) IsExcluded(relPath string, isDir bool) bool {
	if m.Empty() {
		return false
	}
	relPath = strings.TrimPrefix(relPath, "./")
	base := path.Base(relPath)
	for _, d := range m.dirs {
		if underOrAt(relPath, d) {
			return true
		}
	}
	for _, g := range m.globs {
		if ok, _ := doublestar.Match(g, relPath); ok {
			return true
		}
		if ok, _ := doublestar.Match(g, base); ok {
			return true
		}
	}
	for _, l := range m.literals {
		if underOrAt(relPath, l) {
			return true
		}
		if !isDir && base == l {
			return true
		}
	}
	return false
}
