// Package resolver selects and initializes the filesystem backend for a
// user-supplied directory string.
package resolver

import (
	"context"
	"fmt"
	"regexp"

	"github.com/dl-alexandre/dirsync/internal/backend"
	"github.com/dl-alexandre/dirsync/internal/backend/ftp"
	"github.com/dl-alexandre/dirsync/internal/backend/local"
	"github.com/dl-alexandre/dirsync/internal/logging"
	"github.com/dl-alexandre/dirsync/internal/utils"
)

// InitFunc initializes a backend for a path its route matched.
type InitFunc func(ctx context.Context, path string) (backend.Backend, error)

// Route is one backend variant and the path rules that select it.
type Route struct {
	Kind     backend.Kind
	Patterns []*regexp.Regexp
	Init     InitFunc
}

// Matches reports whether any of the route's rules matches path.
func (r Route) Matches(path string) bool {
	for _, p := range r.Patterns {
		if p.MatchString(path) {
			return true
		}
	}
	return false
}

// Router tries its routes in order and initializes the first match.
type Router struct {
	routes []Route
	logger logging.Logger
}

// Options configures the default routes.
type Options struct {
	FTP    ftp.Options
	Logger logging.Logger
}

// NewRouter returns the default ordering: drive-letter paths, then
// slash-rooted paths, then ftp:// URLs.
func NewRouter(opts Options) *Router {
	if opts.Logger == nil {
		opts.Logger = logging.NewNoOpLogger()
	}
	if opts.FTP.Logger == nil {
		opts.FTP.Logger = opts.Logger
	}
	ftpOpts := opts.FTP
	return NewRouterWithRoutes(opts.Logger,
		Route{
			Kind:     backend.KindWindows,
			Patterns: []*regexp.Regexp{local.WindowsPattern},
			Init: func(_ context.Context, p string) (backend.Backend, error) {
				return local.NewWindows(p)
			},
		},
		Route{
			Kind:     backend.KindUnix,
			Patterns: []*regexp.Regexp{local.UnixPattern},
			Init: func(_ context.Context, p string) (backend.Backend, error) {
				return local.NewUnix(p)
			},
		},
		Route{
			Kind:     backend.KindFTP,
			Patterns: []*regexp.Regexp{ftp.URLPattern},
			Init: func(ctx context.Context, p string) (backend.Backend, error) {
				return ftp.New(ctx, p, ftpOpts)
			},
		},
	)
}

// NewRouterWithRoutes builds a router over an explicit route list.
func NewRouterWithRoutes(logger logging.Logger, routes ...Route) *Router {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Router{routes: routes, logger: logger}
}

// Match returns the first route whose rules match path.
func (r *Router) Match(path string) (Route, bool) {
	for _, route := range r.routes {
		if route.Matches(path) {
			return route, true
		}
	}
	return Route{}, false
}

// Resolve initializes the backend for path. A path no route matches is a
// configuration error carrying utils.ErrCodeNoBackend.
func (r *Router) Resolve(ctx context.Context, path string) (backend.Backend, error) {
	route, ok := r.Match(path)
	if !ok {
		return nil, utils.WrapAppError(utils.NewCLIError(utils.ErrCodeNoBackend,
			fmt.Sprintf("No backend for path %q", path)).
			WithContext("path", path).
			WithSuggestedAction("use an absolute local path (C:\\dir or /dir) or an ftp:// URL").
			Build(), backend.ErrUnsupportedPath)
	}
	r.logger.Debug("Backend selected", logging.F("kind", string(route.Kind)))
	b, err := route.Init(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("init %s backend: %w", route.Kind, err)
	}
	return b, nil
}
