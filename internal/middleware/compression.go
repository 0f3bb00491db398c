package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"
)

// CompressionConfig controls gzip compression of responses.
type CompressionConfig struct {
	// MinSize is the smallest body that gets compressed.
	MinSize int
	// CompressibleTypes lists the content types worth compressing.
	// Thumbnails are already compressed image data and stay out.
	CompressibleTypes []string
}

// DefaultCompressionConfig compresses textual payloads over 1KB.
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize: 1024,
		CompressibleTypes: []string{
			"text/html",
			"text/plain",
			"application/json",
			"image/svg+xml",
		},
	}
}

var gzipWriterPool = sync.Pool{
	New: func() any {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.DefaultCompression)
		return w
	},
}

// gzipResponseWriter buffers the response start so the compression decision
// can look at both the size and the content type.
type gzipResponseWriter struct {
	http.ResponseWriter
	gzipWriter     *gzip.Writer
	config         CompressionConfig
	buffer         []byte
	statusCode     int
	headerWritten  bool
	shouldCompress bool
}

func newGzipResponseWriter(w http.ResponseWriter, config CompressionConfig) *gzipResponseWriter {
	return &gzipResponseWriter{
		ResponseWriter: w,
		config:         config,
		statusCode:     http.StatusOK,
		buffer:         make([]byte, 0, config.MinSize+1),
	}
}

func (g *gzipResponseWriter) WriteHeader(statusCode int) {
	if !g.headerWritten {
		g.statusCode = statusCode
	}
}

func (g *gzipResponseWriter) Write(data []byte) (int, error) {
	if g.headerWritten {
		if g.shouldCompress && g.gzipWriter != nil {
			return g.gzipWriter.Write(data)
		}
		return g.ResponseWriter.Write(data)
	}

	g.buffer = append(g.buffer, data...)
	if len(g.buffer) > g.config.MinSize {
		g.finalize()
	}
	return len(data), nil
}

func (g *gzipResponseWriter) compressibleContentType() bool {
	contentType := g.Header().Get("Content-Type")
	if contentType == "" {
		return false
	}
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	for _, c := range g.config.CompressibleTypes {
		if mediaType == c {
			return true
		}
	}
	return false
}

// finalize commits the compression decision and flushes the buffer.
func (g *gzipResponseWriter) finalize() {
	if g.headerWritten {
		return
	}
	g.headerWritten = true
	g.shouldCompress = len(g.buffer) >= g.config.MinSize && g.compressibleContentType()

	if g.shouldCompress {
		g.Header().Del("Content-Length")
		g.Header().Set("Content-Encoding", "gzip")
		g.Header().Add("Vary", "Accept-Encoding")

		g.gzipWriter = gzipWriterPool.Get().(*gzip.Writer)
		g.gzipWriter.Reset(g.ResponseWriter)
		g.ResponseWriter.WriteHeader(g.statusCode)
		g.gzipWriter.Write(g.buffer)
	} else {
		g.ResponseWriter.WriteHeader(g.statusCode)
		g.ResponseWriter.Write(g.buffer)
	}
	g.buffer = nil
}

func (g *gzipResponseWriter) Close() error {
	if !g.headerWritten {
		g.finalize()
	}
	if g.gzipWriter != nil {
		err := g.gzipWriter.Close()
		gzipWriterPool.Put(g.gzipWriter)
		g.gzipWriter = nil
		return err
	}
	return nil
}

func (g *gzipResponseWriter) Flush() {
	if !g.headerWritten {
		g.finalize()
	}
	if g.gzipWriter != nil {
		g.gzipWriter.Flush()
	}
	if flusher, ok := g.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Compression returns middleware that gzips compressible responses.
func Compression(config CompressionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
				next.ServeHTTP(w, r)
				return
			}

			gzw := newGzipResponseWriter(w, config)
			defer gzw.Close()
			next.ServeHTTP(gzw, r)
		})
	}
}
