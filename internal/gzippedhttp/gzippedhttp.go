// Package gzippedhttp compresses HTML and JSON responses for clients that accept gzip.
package gzippedhttp

import (
	"compress/gzip"
	"net/http"
	"strings"
	"sync"
)

var gzipWriterPool = sync.Pool{
	New: func() interface{} {
		w, _ := gzip.NewWriterLevel(nil, gzip.BestSpeed)
		return w
	},
}

// compressedResponseWriter decides on the first write whether to compress,
// based on the Content-Type the handler has set by then.
type compressedResponseWriter struct {
	http.ResponseWriter
	zw          *gzip.Writer
	decided     bool
	wroteHeader bool
}

func compressible(contentType string) bool {
	return contentType == "" ||
		strings.HasPrefix(contentType, "text/html") ||
		strings.HasPrefix(contentType, "application/json")
}

func (c *compressedResponseWriter) decide() {
	if c.decided {
		return
	}
	c.decided = true

	header := c.ResponseWriter.Header()
	if header.Get("Content-Encoding") != "" || !compressible(header.Get("Content-Type")) {
		return
	}

	c.zw = gzipWriterPool.Get().(*gzip.Writer)
	c.zw.Reset(c.ResponseWriter)
	header.Set("Content-Encoding", "gzip")
	header.Del("Content-Length")
}

func (c *compressedResponseWriter) WriteHeader(statusCode int) {
	if c.wroteHeader {
		return
	}
	c.wroteHeader = true
	if statusCode != http.StatusNoContent && statusCode != http.StatusNotModified && statusCode >= 200 {
		c.decide()
	} else {
		c.decided = true
	}
	c.ResponseWriter.WriteHeader(statusCode)
}

func (c *compressedResponseWriter) Write(p []byte) (int, error) {
	if !c.wroteHeader {
		if c.ResponseWriter.Header().Get("Content-Type") == "" {
			c.ResponseWriter.Header().Set("Content-Type", http.DetectContentType(p))
		}
		c.WriteHeader(http.StatusOK)
	}
	if c.zw == nil {
		return c.ResponseWriter.Write(p)
	}
	return c.zw.Write(p)
}

func (c *compressedResponseWriter) close() error {
	if c.zw == nil {
		return nil
	}
	err := c.zw.Close()
	gzipWriterPool.Put(c.zw)
	c.zw = nil
	return err
}

// GzipResponse is the middleware that compresses the response when the request's
// Accept-Encoding header allows gzip.
func GzipResponse(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		response.Header().Add("Vary", "Accept-Encoding")

		if !strings.Contains(request.Header.Get("Accept-Encoding"), "gzip") {
			h.ServeHTTP(response, request)
			return
		}

		compressed := &compressedResponseWriter{ResponseWriter: response}
		defer compressed.close()

		h.ServeHTTP(compressed, request)
	}

	return http.HandlerFunc(middleware)
}
