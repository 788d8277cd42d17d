package api

import (
	"bytes"
	"net/http"

	"github.com/valyala/bytebufferpool"
)

var bodyPool bytebufferpool.Pool

// readBody reads and closes the request body through a pooled buffer. The
// returned slice is owned by the caller.
func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()

	buf := bodyPool.Get()
	defer bodyPool.Put(buf)

	if _, err := buf.ReadFrom(r.Body); err != nil {
		return nil, err
	}
	return bytes.Clone(buf.B), nil
}
