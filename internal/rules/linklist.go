package rules

import (
	"net/url"
	"strings"
)

// inList reports whether rawURL matches any entry in list. A match
// requires the URL's host to end, case-insensitively, with the entry's
// host — a plain suffix match with no "." boundary requirement, so a
// whitelisted host "example.com" also matches "notexample.com" — and if
// the entry carries any Paths, the URL's path must have one of them as a
// prefix.
func inList(rawURL string, list []ListItem) bool {
	if len(list) == 0 {
		return false
	}
	host, path := splitHostPath(rawURL)
	if host == "" {
		return false
	}
	for _, item := range list {
		if !hostMatches(host, item.Host) {
			continue
		}
		if len(item.Paths) == 0 {
			return true
		}
		for _, p := range item.Paths {
			if strings.HasPrefix(path, p) {
				return true
			}
		}
	}
	return false
}

// splitHostPath extracts the lowercased host and the path from rawURL. A
// URL lacking a scheme (bare "example.com/x", as link entities often are)
// is parsed by prefixing a scheme so url.Parse treats it as a host.
func splitHostPath(rawURL string) (host, path string) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		parsed, err = url.Parse("https://" + rawURL)
		if err != nil {
			return "", ""
		}
	}
	host = strings.ToLower(parsed.Hostname())
	path = parsed.Path
	if path == "" {
		path = "/"
	}
	return host, path
}

// hostMatches reports whether host ends with target, case-insensitively.
// No "." boundary is required between the two, matching the upstream
// project's literal endsWith check.
func hostMatches(host, target string) bool {
	target = strings.ToLower(strings.TrimPrefix(target, "."))
	return strings.HasSuffix(host, target)
}
