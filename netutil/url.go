package netutil

import (
	"net/url"
	"strings"
)

// StripCredentials removes user:password@ from a URL for logging.
// Unparseable input is returned unchanged.
func StripCredentials(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.User == nil {
		return rawURL
	}
	u.User = nil
	return u.String()
}

// HasCredentials reports whether the URL embeds user info.
func HasCredentials(rawURL string) bool {
	u, err := url.Parse(rawURL)
	return err == nil && u.User != nil
}

// Scheme returns the lower-case scheme of a locator. Bare paths, including
// Windows drive paths such as C:\dist, are "file".
func Scheme(locator string) string {
	u, err := url.Parse(locator)
	if err != nil || len(u.Scheme) < 2 {
		return "file"
	}
	return strings.ToLower(u.Scheme)
}

// LocalPath returns the filesystem path of a file:// URL or bare path.
func LocalPath(locator string) string {
	if !strings.HasPrefix(strings.ToLower(locator), "file://") {
		return locator
	}
	u, err := url.Parse(locator)
	if err != nil {
		return locator[len("file://"):]
	}
	return u.Path
}
