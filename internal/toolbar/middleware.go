package toolbar

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"strings"
)

// Middleware runs the enabled panels around next and injects the toolbar
// into successful HTML responses. Requests below the mount path pass through
// untouched.
func (t *Toolbar) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == t.mount || strings.HasPrefix(r.URL.Path, t.mount+"/") {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		panels := t.instantiate(r)
		defer t.finish(ctx, panels)

		for _, inst := range panels {
			if p, ok := inst.panel.(RequestProcessor); ok {
				p.ProcessRequest(r)
			}
		}

		buf := &bufferedWriter{header: w.Header()}
		next.ServeHTTP(buf, r)

		status := buf.statusCode()
		for _, inst := range panels {
			if p, ok := inst.panel.(ResponseProcessor); ok {
				p.ProcessResponse(r, status, buf.header)
			}
		}

		body := buf.body.Bytes()
		if r.Method != http.MethodHead && injectable(status, buf.header) {
			if i := lastBodyClose(body); i >= 0 {
				var bar bytes.Buffer
				if err := t.render(ctx, panels).Render(&bar); err != nil {
					t.logger.Error("render toolbar", "error", err)
				} else {
					out := make([]byte, 0, len(body)+bar.Len())
					out = append(out, body[:i]...)
					out = append(out, bar.Bytes()...)
					out = append(out, body[i:]...)
					body = out
					buf.header.Set("Content-Length", strconv.Itoa(len(body)))
				}
			}
		}

		w.WriteHeader(status)
		_, _ = w.Write(body)
	})
}

func (t *Toolbar) finish(ctx context.Context, panels []instance) {
	for _, inst := range panels {
		if p, ok := inst.panel.(Finisher); ok {
			p.Finish(ctx)
		}
	}
}

func injectable(status int, header http.Header) bool {
	if status != http.StatusOK || header.Get("Content-Encoding") != "" {
		return false
	}
	return strings.HasPrefix(strings.ToLower(header.Get("Content-Type")), "text/html")
}

func lastBodyClose(body []byte) int {
	return bytes.LastIndex(bytes.ToLower(body), []byte("</body>"))
}

// bufferedWriter holds the whole response so the toolbar can be spliced in.
type bufferedWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (b *bufferedWriter) Header() http.Header { return b.header }

func (b *bufferedWriter) WriteHeader(status int) {
	if b.status == 0 {
		b.status = status
	}
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	if b.header.Get("Content-Type") == "" {
		b.header.Set("Content-Type", http.DetectContentType(p))
	}
	return b.body.Write(p)
}

func (b *bufferedWriter) statusCode() int {
	if b.status == 0 {
		return http.StatusOK
	}
	return b.status
}
