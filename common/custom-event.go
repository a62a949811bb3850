package common

import (
	"fmt"
	"io"
	"net/http"
)

var (
	eventContentType = []string{"text/event-stream"}
	eventNoCache     = []string{"no-cache"}
)

// CustomEvent renders a server-sent event frame verbatim. gin's built-in SSE
// render html-escapes the payload, which corrupts JSON chunks.
type CustomEvent struct {
	Event string
	Id    string
	Retry uint
	Data  any
}

func (r CustomEvent) Render(w http.ResponseWriter) error {
	r.WriteContentType(w)
	return encode(w, r)
}

func (r CustomEvent) WriteContentType(w http.ResponseWriter) {
	header := w.Header()
	if vals := header["Content-Type"]; len(vals) == 0 {
		header["Content-Type"] = eventContentType
	}
	if vals := header["Cache-Control"]; len(vals) == 0 {
		header["Cache-Control"] = eventNoCache
	}
}

func encode(w io.Writer, event CustomEvent) error {
	if event.Event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event.Event); err != nil {
			return err
		}
	}
	if event.Id != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", event.Id); err != nil {
			return err
		}
	}
	if event.Retry > 0 {
		if _, err := fmt.Fprintf(w, "retry: %d\n", event.Retry); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprint(w, event.Data); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n\n")
	return err
}
