// Package httpd is a deliberately small HTTP/1.1 server: one connection at a
// time, request line only, one response per connection.
package httpd

import (
	"bytes"
	"errors"
	"strings"
)

var (
	ErrBadRequest       = errors.New("Bad Request")
	ErrNotFound         = errors.New("Not Found")
	ErrMethodNotAllowed = errors.New("Method Not Allowed")
)

// Request is what the server knows about a request. Headers and body are
// never parsed.
type Request struct {
	Method  string
	Path    string
	Query   string
	Version string
}

// ParseRequestLine extracts METHOD PATH [VERSION] from the first line of buf.
// A buffer without a line break is parsed as a truncated request line.
func ParseRequestLine(buf []byte) (Request, error) {
	line := buf
	if i := bytes.IndexByte(buf, '\n'); i >= 0 {
		line = buf[:i]
	}

	parts := strings.Fields(string(line))
	if len(parts) < 2 {
		return Request{}, ErrBadRequest
	}

	req := Request{
		Method: parts[0],
		Path:   parts[1],
	}
	if len(parts) > 2 {
		req.Version = parts[2]
	}
	if i := strings.IndexByte(req.Path, '?'); i >= 0 {
		req.Path, req.Query = req.Path[:i], req.Path[i+1:]
	}
	return req, nil
}
