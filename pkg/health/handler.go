package health

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"
)

// LivenessHandler answers 200 while the process can serve HTTP at all.
// It never runs checks.
func LivenessHandler() http.HandlerFunc {
	ok := &Response{Status: StatusHealthy}
	return func(w http.ResponseWriter, r *http.Request) {
		respond(w, r, http.StatusOK, ok)
	}
}

// ReadinessHandler runs checks on every request and answers 503 when any
// of them fails.
func ReadinessHandler(checks Checks, opts ...Option) http.HandlerFunc {
	cfg := newConfig(opts...)
	return func(w http.ResponseWriter, r *http.Request) {
		report := runChecks(r.Context(), checks, cfg)
		code := http.StatusOK
		if report.Status != StatusHealthy {
			code = http.StatusServiceUnavailable
		}
		respond(w, r, code, report)
	}
}

// respond writes the report as JSON when asked (?format=json or an Accept
// header listing application/json) and as a one-word status otherwise.
func respond(w http.ResponseWriter, r *http.Request, code int, report *Response) {
	if !acceptsJSON(r) {
		body := "OK"
		if code != http.StatusOK {
			body = http.StatusText(code)
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(body))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(report)
}

func acceptsJSON(r *http.Request) bool {
	if r.URL.Query().Get("format") == "json" {
		return true
	}
	for part := range strings.SplitSeq(r.Header.Get("Accept"), ",") {
		if mt, _, err := mime.ParseMediaType(strings.TrimSpace(part)); err == nil && mt == "application/json" {
			return true
		}
	}
	return false
}
