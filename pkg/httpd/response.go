package httpd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

const (
	ContentJSON    = "application/json"
	ContentText    = "text/plain"
	ContentMetrics = "text/plain; version=0.0.4; charset=utf-8"
)

var reasons = map[int]string{
	200: "OK",
	400: "Bad Request",
	404: "Not Found",
	405: "Method Not Allowed",
	500: "Internal Server Error",
}

// Reason returns the reason phrase of a status code.
func Reason(status int) string {
	if r, ok := reasons[status]; ok {
		return r
	}
	return "Unknown"
}

// Response is a complete response. Content-Length is always computed from
// Body when the response is written.
type Response struct {
	Status      int
	ContentType string
	CORS        bool // adds Access-Control-Allow-Origin: *
	Body        []byte
}

// JSON encodes v as a 200 response with CORS enabled.
func JSON(v any) (Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return Response{}, fmt.Errorf("encode response: %w", err)
	}
	return Response{
		Status:      200,
		ContentType: ContentJSON,
		CORS:        true,
		Body:        body,
	}, nil
}

// Text is a plain text response.
func Text(status int, body string) Response {
	return Response{
		Status:      status,
		ContentType: ContentText,
		Body:        []byte(body),
	}
}

// Error is a plain text error response whose body is the reason phrase,
// optionally followed by detail.
func Error(status int, detail string) Response {
	body := Reason(status)
	if detail != "" {
		body += ": " + detail
	}
	return Text(status, body)
}

// WriteTo writes the status line, headers and body in a single write.
func (r Response) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	buf.Grow(128 + len(r.Body))

	buf.WriteString("HTTP/1.1 ")
	buf.WriteString(strconv.Itoa(r.Status))
	buf.WriteByte(' ')
	buf.WriteString(Reason(r.Status))
	buf.WriteString("\r\n")

	if r.ContentType != "" {
		buf.WriteString("Content-Type: ")
		buf.WriteString(r.ContentType)
		buf.WriteString("\r\n")
	}
	if r.CORS {
		buf.WriteString("Access-Control-Allow-Origin: *\r\n")
	}
	buf.WriteString("Content-Length: ")
	buf.WriteString(strconv.Itoa(len(r.Body)))
	buf.WriteString("\r\n")
	buf.WriteString("Connection: close\r\n\r\n")
	buf.Write(r.Body)

	n, err := w.Write(buf.Bytes())
	return int64(n), err
}
