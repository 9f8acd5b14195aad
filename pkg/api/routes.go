package api

import (
	"github.com/itohio/wally/pkg/httpd"
)

// Exposition renders the text served on /metrics, typically *metrics.Metrics.
type Exposition interface {
	Text() ([]byte, error)
}

// Paths served by every host of the service.
var Paths = []string{"/", "/sensors", "/status", "/ping", "/vernier/status", "/vernier/active", "/metrics"}

// Routes binds the service to r. m may be nil, /metrics then serves an empty
// exposition.
func Routes(r *httpd.Router, s *Service, m Exposition) {
	sensors := func(httpd.Request) (httpd.Response, error) {
		return httpd.JSON(s.Sensors())
	}
	r.Handle("/", sensors)
	r.Handle("/sensors", sensors)

	r.Handle("/status", func(httpd.Request) (httpd.Response, error) {
		return httpd.JSON(s.Status())
	})
	r.Handle("/ping", func(httpd.Request) (httpd.Response, error) {
		return httpd.Text(200, "pong"), nil
	})
	r.Handle("/vernier/status", func(httpd.Request) (httpd.Response, error) {
		return httpd.JSON(s.VernierStatus())
	})
	r.Handle("/vernier/active", func(httpd.Request) (httpd.Response, error) {
		return httpd.JSON(s.Active())
	})
	r.HandlePrefix(CommandPrefix, func(req httpd.Request) (httpd.Response, error) {
		return httpd.JSON(s.Command(req.Path))
	})
	r.Handle("/metrics", func(httpd.Request) (httpd.Response, error) {
		var text []byte
		if m != nil {
			var err error
			if text, err = m.Text(); err != nil {
				return httpd.Response{}, err
			}
		}
		return httpd.Response{
			Status:      200,
			ContentType: httpd.ContentMetrics,
			Body:        text,
		}, nil
	})
}
