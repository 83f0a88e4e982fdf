package links

import (
	"strings"
	"time"
)

const (
	MinCodeLength = 6
	MaxCodeLength = 8
	MaxURLLength  = 2048
)

// Link maps a short code to its destination URL.
type Link struct {
	Code        string
	URL         string
	Clicks      int64
	CreatedAt   time.Time
	LastClicked *time.Time // nil until the first redirect
}

// ShortURL joins baseURL and the code. It is derived on every read and never stored.
func (l Link) ShortURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/" + l.Code
}

// Counter is the part of a Link that changes on redirects.
type Counter struct {
	Code        string
	Clicks      int64
	LastClicked *time.Time
}

// reservedCodes are path segments owned by other routes.
var reservedCodes = map[string]struct{}{
	"api":     {},
	"code":    {},
	"healthz": {},
	"static":  {},
}

// IsReserved reports whether code collides with a route prefix.
func IsReserved(code string) bool {
	_, ok := reservedCodes[strings.ToLower(code)]
	return ok
}

// ValidCode reports whether code matches [A-Za-z0-9]{6,8}.
func ValidCode(code string) bool {
	if len(code) < MinCodeLength || len(code) > MaxCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}
