package httpd

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testRouter() *Router {
	r := NewRouter()
	r.Handle("/ping", func(Request) (Response, error) { return Text(200, "pong"), nil })
	r.Handle("/panic", func(Request) (Response, error) { panic("boom") })
	r.Handle("/fail", func(Request) (Response, error) { return Response{}, errors.New("disk on fire") })
	r.Handle("/bad", func(Request) (Response, error) { return Response{}, fmt.Errorf("parse: %w", ErrBadRequest) })
	r.Handle("/gone", func(Request) (Response, error) { return Response{}, ErrNotFound })
	r.HandlePrefix("/echo/", func(req Request) (Response, error) {
		return Text(200, strings.TrimPrefix(req.Path, "/echo/")), nil
	})
	return r
}

func TestRouter_Serve(t *testing.T) {
	tests := []struct {
		name   string
		req    Request
		status int
		body   string
		route  string
	}{
		{"ping", Request{Method: "GET", Path: "/ping"}, 200, "pong", "/ping"},
		{"unknown", Request{Method: "GET", Path: "/unknown"}, 404, "Not Found", "not_found"},
		{"post known", Request{Method: "POST", Path: "/ping"}, 405, "Method Not Allowed", "method_not_allowed"},
		{"post unknown", Request{Method: "POST", Path: "/unknown"}, 405, "Method Not Allowed", "method_not_allowed"},
		{"lowercase method", Request{Method: "get", Path: "/ping"}, 405, "Method Not Allowed", "method_not_allowed"},
		{"panic", Request{Method: "GET", Path: "/panic"}, 500, "Internal Server Error: boom", "/panic"},
		{"error", Request{Method: "GET", Path: "/fail"}, 500, "Internal Server Error: disk on fire", "/fail"},
		{"bad request", Request{Method: "GET", Path: "/bad"}, 400, "Bad Request", "/bad"},
		{"not found from handler", Request{Method: "GET", Path: "/gone"}, 404, "Not Found", "/gone"},
		{"prefix", Request{Method: "GET", Path: "/echo/t"}, 200, "t", "/echo/*"},
		{"prefix empty rest", Request{Method: "GET", Path: "/echo/"}, 200, "", "/echo/*"},
	}

	r := testRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, route := r.Serve(tt.req)
			assert.Equal(t, tt.status, resp.Status)
			assert.Equal(t, tt.body, string(resp.Body))
			assert.Equal(t, tt.route, route)
		})
	}
}

func TestRouter_ExactBeatsPrefix(t *testing.T) {
	r := NewRouter()
	r.HandlePrefix("/a", func(Request) (Response, error) { return Text(200, "prefix"), nil })
	r.Handle("/ab", func(Request) (Response, error) { return Text(200, "exact"), nil })

	resp, _ := r.Serve(Request{Method: "GET", Path: "/ab"})
	assert.Equal(t, "exact", string(resp.Body))
	resp, _ = r.Serve(Request{Method: "GET", Path: "/ac"})
	assert.Equal(t, "prefix", string(resp.Body))
}
