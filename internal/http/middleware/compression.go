package middleware

import (
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// compressibleTypes are the response types worth compressing. Media blobs
// are already compressed and are served with range support, so they are
// left alone.
var compressibleTypes = []string{
	"application/json",
	"application/problem+json",
	"application/openapi+json",
	"application/yaml",
	"text/plain",
	"text/html",
}

// Compress returns a response compression middleware that offers brotli
// alongside chi's gzip and deflate encoders.
func Compress(level int) func(http.Handler) http.Handler {
	c := chimiddleware.NewCompressor(level, compressibleTypes...)
	c.SetEncoder("br", func(w io.Writer, level int) io.Writer {
		return brotli.NewWriterLevel(w, brotliLevel(level))
	})
	return skipMedia(c.Handler)
}

// brotliLevel maps a gzip-style level onto brotli's 0..11 scale.
func brotliLevel(level int) int {
	switch {
	case level < brotli.BestSpeed:
		return brotli.DefaultCompression
	case level > brotli.BestCompression:
		return brotli.BestCompression
	default:
		return level
	}
}

// skipMedia bypasses compression for blob downloads.
func skipMedia(compress func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		compressed := compress(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/media/") {
				next.ServeHTTP(w, r)
				return
			}
			compressed.ServeHTTP(w, r)
		})
	}
}
