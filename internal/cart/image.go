package cart

import (
	"net/url"
	"path"
	"strings"
)

// canonicalImage turns a relative image path into an absolute one so the
// cart renders the same from any page. URLs with a scheme or a host,
// protocol-relative ones included, are kept.
func canonicalImage(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if u, err := url.Parse(p); err == nil && (u.Scheme != "" || u.Host != "") {
		return p
	}
	return path.Clean("/" + p)
}
