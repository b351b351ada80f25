package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// CacheControl sets a public Cache-Control header, used for the static exam catalog.
func CacheControl(maxAgeSeconds int) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", fmt.Sprintf("public, max-age=%d", maxAgeSeconds))
		c.Next()
	}
}

// PrivateCache lets the caller's browser keep a response that is immutable
// for that user, such as the results of a completed session. Only 2xx
// responses get the max-age; errors like NOT_COMPLETED are sent no-store so a
// client never holds on to a result that is about to change.
func PrivateCache(maxAgeSeconds int) gin.HandlerFunc {
	value := fmt.Sprintf("private, max-age=%d", maxAgeSeconds)
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Writer = &successCacheWriter{ResponseWriter: c.Writer, value: value}
		c.Next()
	}
}

// successCacheWriter swaps in the cache header once the status is known,
// before any header reaches the wire.
type successCacheWriter struct {
	gin.ResponseWriter
	value string
}

func (w *successCacheWriter) apply(code int) {
	if w.ResponseWriter.Written() {
		return
	}
	if code >= 200 && code < 300 {
		w.Header().Set("Cache-Control", w.value)
	} else {
		w.Header().Set("Cache-Control", "no-store")
	}
}

func (w *successCacheWriter) WriteHeader(code int) {
	w.apply(code)
	w.ResponseWriter.WriteHeader(code)
}

func (w *successCacheWriter) WriteHeaderNow() {
	w.apply(w.Status())
	w.ResponseWriter.WriteHeaderNow()
}

func (w *successCacheWriter) Write(data []byte) (int, error) {
	w.apply(w.Status())
	return w.ResponseWriter.Write(data)
}

func (w *successCacheWriter) WriteString(s string) (int, error) {
	w.apply(w.Status())
	return w.ResponseWriter.WriteString(s)
}

// NoStore marks live session state as uncacheable.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
