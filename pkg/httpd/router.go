package httpd

import (
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Handler produces the response for a routed request. Returning one of the
// sentinel errors maps to its status code; any other error is a 500.
type Handler func(req Request) (Response, error)

type prefixRoute struct {
	prefix  string
	handler Handler
}

// Router dispatches GET requests on exact paths, then on path prefixes in
// registration order.
type Router struct {
	exact    map[string]Handler
	prefixes []prefixRoute
}

func NewRouter() *Router {
	return &Router{exact: make(map[string]Handler)}
}

// Handle registers h for an exact path.
func (r *Router) Handle(path string, h Handler) {
	r.exact[path] = h
}

// HandlePrefix registers h for every path starting with prefix. The handler
// finds the remainder with strings.TrimPrefix.
func (r *Router) HandlePrefix(prefix string, h Handler) {
	r.prefixes = append(r.prefixes, prefixRoute{prefix: prefix, handler: h})
}

// Serve routes req and returns the response together with the route label
// used for metrics. It never panics.
func (r *Router) Serve(req Request) (resp Response, route string) {
	if req.Method != "GET" {
		return Error(405, ""), "method_not_allowed"
	}

	h, route := r.lookup(req.Path)
	if h == nil {
		return Error(404, ""), "not_found"
	}

	defer func() {
		if p := recover(); p != nil {
			log.WithField("path", req.Path).Errorf("handler panic: %v", p)
			resp = Error(500, fmt.Sprint(p))
		}
	}()

	resp, err := h(req)
	if err != nil {
		return errorResponse(err), route
	}
	return resp, route
}

func (r *Router) lookup(path string) (Handler, string) {
	if h, ok := r.exact[path]; ok {
		return h, path
	}
	for _, p := range r.prefixes {
		if strings.HasPrefix(path, p.prefix) {
			return p.handler, p.prefix + "*"
		}
	}
	return nil, ""
}

func errorResponse(err error) Response {
	switch {
	case errors.Is(err, ErrBadRequest):
		return Error(400, "")
	case errors.Is(err, ErrNotFound):
		return Error(404, "")
	case errors.Is(err, ErrMethodNotAllowed):
		return Error(405, "")
	}
	log.WithError(err).Error("handler failed")
	return Error(500, err.Error())
}
