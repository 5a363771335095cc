// Package wiki understands the shape of a MediaWiki site: which URLs
// are content pages, how to normalize them, and how to pull structured
// data out of rendered article HTML.
package wiki

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Site identifies the wiki being ingested. ContentPath is the path
// prefix under which article pages live, derived from the seed URL.
type Site struct {
	Host        string
	ContentPath string
	Seed        string
}

// NewSite derives the site identity from the seed article URL.
func NewSite(seedURL string) (Site, error) {
	u, err := url.Parse(seedURL)
	if err != nil {
		return Site{}, fmt.Errorf("parse seed url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Site{}, fmt.Errorf("seed url %q must be absolute", seedURL)
	}
	prefix := path.Dir(u.Path)
	if prefix == "." || prefix == "/" {
		prefix = ""
	}
	normalized, err := NormalizeURL(seedURL)
	if err != nil {
		return Site{}, err
	}
	return Site{
		Host:        strings.ToLower(u.Host),
		ContentPath: prefix + "/",
		Seed:        normalized,
	}, nil
}

// NormalizeURL standardizes a URL so the same page never appears twice
// in the frontier. It lowercases the scheme and host, strips default
// ports and fragments, and sorts query parameters.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" && strings.HasSuffix(u.Host, ":80") {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" && strings.HasSuffix(u.Host, ":443") {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""

	q := u.Query()
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// excludedNamespaces are page kinds that are navigation or maintenance
// surface rather than article content.
var excludedNamespaces = []string{"Special:", "File:", "Category:", "Template:"}

// IsContentURL reports whether rawURL points at an article page on
// this site. Administrative namespaces, action URLs, anchors, and
// anything with a namespace colon in its final path segment are
// rejected.
func (s Site) IsContentURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if !strings.EqualFold(u.Host, s.Host) {
		return false
	}
	if !strings.Contains(u.Path, s.ContentPath) {
		return false
	}
	if u.Fragment != "" || strings.Contains(rawURL, "#") {
		return false
	}
	if strings.Contains(rawURL, "action=") {
		return false
	}
	for _, ns := range excludedNamespaces {
		if strings.Contains(rawURL, ns) {
			return false
		}
	}
	segments := strings.Split(u.Path, "/")
	last := segments[len(segments)-1]
	return !strings.Contains(last, ":")
}

// Resolve turns a possibly-relative href found on page base into an
// absolute normalized URL.
func Resolve(base, href string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	h, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parse href: %w", err)
	}
	return NormalizeURL(b.ResolveReference(h).String())
}

// PageName extracts the article name from a content URL, e.g.
// ".../cwcki/Sonichu_(comic)" yields "Sonichu_(comic)".
func PageName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	segments := strings.Split(strings.TrimSuffix(u.Path, "/"), "/")
	name := segments[len(segments)-1]
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	return name
}
