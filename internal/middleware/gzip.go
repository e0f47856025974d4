package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"
)

var gzipWriters = sync.Pool{
	New: func() any { return gzip.NewWriter(io.Discard) },
}

// gzipResponseWriter откладывает отправку заголовков до первой записи тела,
// чтобы ответы без тела уходили без Content-Encoding.
type gzipResponseWriter struct {
	http.ResponseWriter
	zw          *gzip.Writer
	status      int
	passthrough bool
	started     bool
}

func (w *gzipResponseWriter) WriteHeader(status int) {
	if w.status != 0 {
		return
	}
	w.status = status
	if !bodyAllowed(status) {
		w.passthrough = true
		w.ResponseWriter.WriteHeader(status)
	}
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	if w.passthrough {
		return w.ResponseWriter.Write(b)
	}
	if !w.started {
		if w.status == 0 {
			w.status = http.StatusOK
		}
		w.Header().Del("Content-Length")
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		w.ResponseWriter.WriteHeader(w.status)
		w.started = true
	}
	return w.zw.Write(b)
}

// finish дописывает gzip-поток или отправляет отложенный статус ответа без тела.
func (w *gzipResponseWriter) finish() {
	switch {
	case w.started:
		_ = w.zw.Close()
	case !w.passthrough && w.status != 0:
		w.ResponseWriter.WriteHeader(w.status)
	}
}

func bodyAllowed(status int) bool {
	return status >= http.StatusOK && status != http.StatusNoContent && status != http.StatusNotModified
}

type gzipRequestBody struct {
	zr   *gzip.Reader
	orig io.ReadCloser
}

func (b *gzipRequestBody) Read(p []byte) (int, error) { return b.zr.Read(p) }

func (b *gzipRequestBody) Close() error {
	if err := b.zr.Close(); err != nil {
		return err
	}
	return b.orig.Close()
}

// GzipMiddleware распаковывает тело запроса с Content-Encoding: gzip и сжимает
// ответ, если клиент поддерживает gzip.
func GzipMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.Header.Get("Content-Encoding"), "gzip") {
			zr, err := gzip.NewReader(r.Body)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Invalid gzip body")
				return
			}
			r.Body = &gzipRequestBody{zr: zr, orig: r.Body}
			r.Header.Del("Content-Encoding")
		}

		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}

		zw := gzipWriters.Get().(*gzip.Writer)
		zw.Reset(w)
		gw := &gzipResponseWriter{ResponseWriter: w, zw: zw}
		defer func() {
			gw.finish()
			gzipWriters.Put(zw)
		}()

		next.ServeHTTP(gw, r)
	})
}
