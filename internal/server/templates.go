package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"strings"
	"time"

	"kochchi/internal/api"
)

//go:embed web/templates web/static
var rawContent embed.FS

// webContent holds the virtual filesystem for web assets.
var webContent fs.FS

func init() {
	var err error
	webContent, err = fs.Sub(rawContent, "web")
	if err != nil {
		panic(fmt.Sprintf("failed to create virtual filesystem for web content: %v", err))
	}
}

const displayLayout = "02/01/06 15:04"

// registerTemplateFuncs defines functions available to templates.
func (s *Server) registerTemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"localTime":        s.localTime,
		"isoTime":          isoTime,
		"eventDate":        formatEventDate,
		"excerpt":          excerpt,
		"telURL":           telURL,
		"whatsappURL":      whatsappURL,
		"notificationPath": notificationPath,
		"loadingState":     loadingState,
	}
}

// localTime shows a server timestamp in the configured zone. Unparsed
// values are shown as sent.
func (s *Server) localTime(ts api.Timestamp) string {
	if ts.Time.IsZero() {
		return ts.Raw
	}
	return ts.Time.In(s.location).Format(displayLayout)
}

func isoTime(ts api.Timestamp) string {
	if ts.Time.IsZero() {
		return ""
	}
	return ts.Time.Format(time.RFC3339)
}

func notificationPath(id api.FlexibleString) string {
	return "/notifications/" + url.PathEscape(string(id))
}

func loadingState(text, source string) loadingData {
	return loadingData{Text: text, Source: source}
}

func whatsappURL(phone api.FlexibleString) string {
	if d := dialDigits(string(phone)); d != "" {
		return "https://wa.me/" + strings.TrimPrefix(d, "+")
	}
	return ""
}

// formatEventDate renders an ISO date as a short local date. Anything else
// is shown as sent.
func formatEventDate(date string) string {
	date = strings.TrimSpace(date)
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, date); err == nil {
			return t.Format("02 Jan 2006")
		}
	}
	return date
}

// telURL is typed as a URL because html/template rejects the tel: scheme.
func telURL(phone api.FlexibleString) template.URL {
	d := dialDigits(string(phone))
	if d == "" {
		return ""
	}
	return template.URL("tel:" + d)
}

// dialDigits keeps digits and a leading plus.
func dialDigits(s string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(s) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	if b.Len() == 1 && strings.HasPrefix(b.String(), "+") {
		return ""
	}
	return b.String()
}

// isHTMX reports whether the request came from an hx-* attribute and only
// wants the fragment.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// renderPage executes a full page inside the layout. Output is buffered so a
// template error can still become a 500.
func (s *Server) renderPage(w http.ResponseWriter, status int, name string, data pageData) {
	tmpl, ok := s.templateCache[name]
	if !ok {
		s.logger.Error("template not found", "template", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	s.write(w, status, name, func(buf *bytes.Buffer) error {
		return tmpl.ExecuteTemplate(buf, "layout", data)
	})
}

// renderFragment executes one partial without the layout.
func (s *Server) renderFragment(w http.ResponseWriter, status int, name string, data any) {
	tmpl := s.templateCache[fragmentsKey]
	s.write(w, status, name, func(buf *bytes.Buffer) error {
		return tmpl.ExecuteTemplate(buf, name, data)
	})
}

func (s *Server) write(w http.ResponseWriter, status int, name string, exec func(*bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := exec(&buf); err != nil {
		s.logger.Error("rendering template", "template", name, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Debug("writing response", "template", name, "error", err)
	}
}
