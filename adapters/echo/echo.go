// Package hxfieldecho mounts an hxfield host on the Echo framework.
//
//	e := echo.New()
//	reg := hxfield.NewRegistry()
//	fieldtypes.Register(reg, nil)
//	host := hxfieldecho.Mount(e, reg, hxfieldecho.WithKey(key))
//
// Or on a group, so the field endpoints share its middleware:
//
//	g := e.Group("/admin", authMiddleware)
//	host := hxfieldecho.MountGroup(g, "/admin", reg)
package hxfieldecho

import (
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/pthm/hxfield"
)

const defaultPath = "/_f"

// Option configures Mount and MountGroup.
type Option func(*options)

type options struct {
	key      []byte
	path     string
	hostOpts []hxfield.HostOption
}

// WithKey sets the key sealing field references.
// The key should be at least 32 bytes of cryptographically random data.
// If not provided, a random key is generated (suitable for development only).
func WithKey(key []byte) Option {
	return func(o *options) {
		o.key = key
	}
}

// WithPath sets the path of the field endpoints. Defaults to "/_f".
func WithPath(path string) Option {
	return func(o *options) {
		o.path = path
	}
}

// WithHostOptions passes options through to hxfield.NewHost.
func WithHostOptions(opts ...hxfield.HostOption) Option {
	return func(o *options) {
		o.hostOpts = append(o.hostOpts, opts...)
	}
}

// Mount creates a host for reg and routes its endpoints on e.
func Mount(e *echo.Echo, reg *hxfield.Registry, opts ...Option) *hxfield.Host {
	host, path := newHost(reg, "", opts)
	e.Any(path+"/*", echo.WrapHandler(host.Handler()))
	return host
}

// MountGroup creates a host for reg and routes its endpoints on g. base is
// the prefix g was created with; the host needs it to build request URLs.
func MountGroup(g *echo.Group, base string, reg *hxfield.Registry, opts ...Option) *hxfield.Host {
	host, path := newHost(reg, base, opts)
	g.Any(path+"/*", echo.WrapHandler(host.Handler()))
	return host
}

// newHost returns the host and its endpoint path relative to base.
func newHost(reg *hxfield.Registry, base string, opts []Option) (*hxfield.Host, string) {
	o := &options{path: defaultPath}
	for _, opt := range opts {
		opt(o)
	}

	key := o.key
	if key == nil {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic(fmt.Sprintf("hxfieldecho: failed to generate random key: %v", err))
		}
	}

	path := "/" + strings.Trim(o.path, "/")
	base = strings.TrimSuffix(base, "/")
	hostOpts := append(append([]hxfield.HostOption(nil), o.hostOpts...), hxfield.WithPrefix(base+path))
	return hxfield.NewHost(reg, key, hostOpts...), path
}

// Render writes a templ component to the Echo response.
//
//	func page(c echo.Context) error {
//	    return hxfieldecho.Render(c, form.Render())
//	}
func Render(c echo.Context, component templ.Component) error {
	c.Response().Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(c.Request().Context(), c.Response())
}
