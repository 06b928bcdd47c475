package httpserver

import "net/http"

// maxRequestBodyBytes bounds the whole request body independent of the
// per-field 20MiB value/message ceilings enforced by the handlers; it is
// one MiB of slack over those ceilings to accommodate request framing.
const maxRequestBodyBytes = 21 * 1024 * 1024

// withBodyLimit caps every request body at maxRequestBodyBytes: a handler
// that reads past the cap gets an error from the body reader.
func withBodyLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
		next.ServeHTTP(w, r)
	})
}
