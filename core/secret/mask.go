package secret

import (
	"net/http"
	"strings"
)

// Mask hides most of a secret while keeping enough to tell values apart.
// Up to 5 characters are fully hidden, up to 20 keep the first and last
// character, longer values keep the first 3 and the last.
func Mask(s string) string {
	n := len(s)
	switch {
	case n == 0:
		return ""
	case n <= 5:
		return strings.Repeat("*", n)
	case n <= 20:
		return s[:1] + strings.Repeat("*", n-2) + s[n-1:]
	default:
		return s[:3] + strings.Repeat("*", n-4) + s[n-1:]
	}
}

var sensitive = map[string]bool{
	"Authorization":       true,
	"Proxy-Authorization": true,
	"Cookie":              true,
	"Set-Cookie":          true,
	"Passcode":            true,
	"X-Auth-Token":        true,
}

// Sensitive reports whether a header of that name carries credentials.
func Sensitive(name string) bool {
	return sensitive[http.CanonicalHeaderKey(name)]
}

// RedactHeader flattens h for logging, masking credential-bearing values.
func RedactHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		v := strings.Join(values, ", ")
		if Sensitive(name) {
			v = Mask(v)
		}
		out[name] = v
	}
	return out
}
