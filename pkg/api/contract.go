package api

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"mime"
	"reflect"
	"strings"
)

//go:embed contract.json
var contractJSON []byte

// Step is one request of the wire contract and what its response must look
// like. Keys must be present in the JSON body, Fields must match their values.
type Step struct {
	Method      string         `json:"method"`
	Path        string         `json:"path"`
	Status      int            `json:"status"`
	ContentType string         `json:"content_type"`
	Body        string         `json:"body,omitempty"`
	Keys        []string       `json:"keys,omitempty"`
	Fields      map[string]any `json:"fields,omitempty"`
}

// Contract returns the ordered request sequence every server implementation
// must satisfy starting from a freshly booted state.
func Contract() ([]Step, error) {
	var steps []Step
	if err := json.Unmarshal(contractJSON, &steps); err != nil {
		return nil, fmt.Errorf("parse contract: %w", err)
	}
	return steps, nil
}

// Check compares a response against the step.
func (s Step) Check(status int, contentType string, body []byte) error {
	if status != s.Status {
		return fmt.Errorf("%s %s: status %d, want %d", s.Method, s.Path, status, s.Status)
	}

	if s.ContentType != "" {
		media, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			return fmt.Errorf("%s %s: content type %q: %w", s.Method, s.Path, contentType, err)
		}
		if media != s.ContentType {
			return fmt.Errorf("%s %s: content type %q, want %q", s.Method, s.Path, media, s.ContentType)
		}
	}

	if s.Body != "" && strings.TrimSpace(string(body)) != s.Body {
		return fmt.Errorf("%s %s: body %q, want %q", s.Method, s.Path, body, s.Body)
	}

	if len(s.Keys) == 0 && len(s.Fields) == 0 {
		return nil
	}

	var got map[string]any
	if err := json.Unmarshal(body, &got); err != nil {
		return fmt.Errorf("%s %s: decode body: %w", s.Method, s.Path, err)
	}
	for _, k := range s.Keys {
		if _, ok := got[k]; !ok {
			return fmt.Errorf("%s %s: missing key %q", s.Method, s.Path, k)
		}
	}
	for k, want := range s.Fields {
		if !matches(want, got[k]) {
			return fmt.Errorf("%s %s: field %q is %v, want %v", s.Method, s.Path, k, got[k], want)
		}
	}
	return nil
}

// matches reports whether got contains want: objects match on the keys of
// want, everything else must be equal.
func matches(want, got any) bool {
	wm, ok := want.(map[string]any)
	if !ok {
		return reflect.DeepEqual(want, got)
	}
	gm, ok := got.(map[string]any)
	if !ok {
		return false
	}
	for k, v := range wm {
		if !matches(v, gm[k]) {
			return false
		}
	}
	return true
}
