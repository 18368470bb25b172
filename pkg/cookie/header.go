package cookie

import (
	"net/url"
	"strings"
)

// ParseHeader parses a raw Cookie header value ("a=1; b=2") into a map.
// Entries without an equals sign or with an empty name are skipped.
// Percent-encoded names and values are decoded; entries that fail to
// decode are kept verbatim rather than dropped.
func ParseHeader(raw string) map[string]string {
	cookies := make(map[string]string)
	if raw == "" {
		return cookies
	}

	for part := range strings.SplitSeq(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		name, value, ok := strings.Cut(part, "=")
		if !ok || name == "" {
			continue
		}

		cookies[unescape(name)] = unescape(value)
	}

	return cookies
}

// FromHeader reads one named cookie out of a raw Cookie header value.
// The second return is false when the header or the cookie is absent.
func FromHeader(raw, name string) (string, bool) {
	value, ok := ParseHeader(raw)[name]
	return value, ok
}

func unescape(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	unescaped, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return unescaped
}
