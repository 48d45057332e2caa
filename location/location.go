// Package location provides the immutable URL value type used throughout
// softnav. A Location wraps an absolute URL and answers the questions the
// navigation policy asks: is this an HTML resource, does it live under a
// given root, is it the same document as another Location.
//
// Locations are values. Construct one with Parse or Resolve and pass it
// around by copy; nothing mutates a Location after construction.
package location

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Location is an immutable absolute URL.
type Location struct {
	url *url.URL
}

// Parse builds a Location from an absolute URL string.
func Parse(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("location: parse %q: %w", raw, err)
	}
	if !u.IsAbs() {
		return Location{}, fmt.Errorf("location: %q is not absolute", raw)
	}
	return Location{url: u}, nil
}

// MustParse is Parse for static URLs known to be valid. Panics on error.
func MustParse(raw string) Location {
	loc, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return loc
}

// Resolve interprets raw relative to base, so "/about" or "about" become
// absolute candidates. An absolute raw is returned as-is.
func Resolve(base Location, raw string) (Location, error) {
	if base.IsZero() {
		return Parse(raw)
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("location: parse %q: %w", raw, err)
	}
	return Location{url: base.url.ResolveReference(ref)}, nil
}

// IsZero reports whether the Location was never constructed.
func (l Location) IsZero() bool { return l.url == nil }

// String returns the full absolute URL including any fragment.
func (l Location) String() string {
	if l.url == nil {
		return ""
	}
	return l.url.String()
}

// RequestURL is the absolute URL without the fragment. This is the form
// sent over the wire and the form used as a cache/history key.
func (l Location) RequestURL() string {
	if l.url == nil {
		return ""
	}
	u := *l.url
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// Anchor returns the fragment identifier, without the leading "#".
func (l Location) Anchor() string {
	if l.url == nil {
		return ""
	}
	return l.url.Fragment
}

// Path returns the URL path component.
func (l Location) Path() string {
	if l.url == nil {
		return ""
	}
	return l.url.Path
}

// Equal reports whether two locations address the same document: their
// request URLs (fragment excluded) match exactly.
func (l Location) Equal(other Location) bool {
	return l.RequestURL() == other.RequestURL()
}

// Extension returns the path extension including the dot, or "".
func (l Location) Extension() string {
	return path.Ext(l.Path())
}

// IsHTML reports whether the location plausibly addresses an HTML document:
// no extension, a trailing slash, or an explicit .html/.htm extension.
// Anything else (".pdf", ".zip", ".json", ...) escapes soft navigation.
func (l Location) IsHTML() bool {
	p := l.Path()
	if p == "" || strings.HasSuffix(p, "/") {
		return true
	}
	switch l.Extension() {
	case "", ".html", ".htm":
		return true
	}
	return false
}

// IsPrefixedBy reports whether the location lives under root: same scheme
// and host, and a path at or below root's path.
func (l Location) IsPrefixedBy(root Location) bool {
	if l.url == nil || root.url == nil {
		return false
	}
	if l.url.Scheme != root.url.Scheme || l.url.Host != root.url.Host {
		return false
	}
	prefix := root.url.Path
	if prefix == "" || prefix == "/" {
		return true
	}
	prefix = strings.TrimSuffix(prefix, "/")
	return l.url.Path == prefix || strings.HasPrefix(l.url.Path, prefix+"/")
}
