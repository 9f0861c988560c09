// Package gatewayuri makes resource URIs from different downstream servers
// distinct by recording the server index in the URI authority.
//
// A URI such as "file:///notes.txt" served by server 2 is exposed to clients
// as "file://-2/notes.txt", and "mem://cache/key" becomes "mem://cache-2/key".
// Decode reverses the mapping.
package gatewayuri

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const schemeSeparator = "://"

// ErrMalformedURI is returned by Decode when the input does not carry a
// server index.
var ErrMalformedURI = errors.New("malformed gateway resource URI")

// Resource is the logical identity behind a gateway URI.
type Resource struct {
	ServerIndex int
	URI         string
}

// Encode appends "-<serverIndex>" to the authority of originalURI. Inputs
// without "://" are returned unchanged.
func Encode(originalURI string, serverIndex int) string {
	_, end, ok := authorityBounds(originalURI)
	if !ok {
		return originalURI
	}
	return originalURI[:end] + "-" + strconv.Itoa(serverIndex) + originalURI[end:]
}

// EncodeTemplate encodes an RFC 6570 URI template. Placeholders that start
// the path, query or fragment are left intact. Reserved ("{+var}") and
// fragment ("{#var}") expansions may produce slashes, so they also end the
// authority: "file://{+path}" becomes "file://-1{+path}", which decodes back
// correctly when the expanded path begins with "/".
func EncodeTemplate(uriTemplate string, serverIndex int) string {
	return Encode(uriTemplate, serverIndex)
}

// Decode extracts the server index and the original URI from gatewayURI.
func Decode(gatewayURI string) (Resource, error) {
	start, end, ok := authorityBounds(gatewayURI)
	if !ok {
		return Resource{}, fmt.Errorf("%w: %q", ErrMalformedURI, gatewayURI)
	}

	authority := gatewayURI[start:end]
	dash := strings.LastIndexByte(authority, '-')
	if dash < 0 || !isDigits(authority[dash+1:]) {
		return Resource{}, fmt.Errorf("%w: %q", ErrMalformedURI, gatewayURI)
	}

	index, err := strconv.Atoi(authority[dash+1:])
	if err != nil {
		return Resource{}, fmt.Errorf("%w: %q: %v", ErrMalformedURI, gatewayURI, err)
	}

	return Resource{
		ServerIndex: index,
		URI:         gatewayURI[:start] + authority[:dash] + gatewayURI[end:],
	}, nil
}

// authorityBounds returns the byte range of the authority component.
func authorityBounds(uri string) (start, end int, ok bool) {
	sep := strings.Index(uri, schemeSeparator)
	if sep < 0 {
		return 0, 0, false
	}
	start = sep + len(schemeSeparator)
	rest := uri[start:]
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case '/', '?', '#':
			return start, start + i, true
		case '{':
			if i+1 < len(rest) && strings.IndexByte("/?#&+", rest[i+1]) >= 0 {
				return start, start + i, true
			}
		}
	}
	return start, len(uri), true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
