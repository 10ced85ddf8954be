package server

import (
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// stripHTML returns the visible text of an HTML fragment with whitespace
// collapsed. Script and style bodies are dropped.
func stripHTML(input string) string {
	if input == "" {
		return ""
	}
	z := html.NewTokenizer(strings.NewReader(input))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.StartTagToken:
			tn, _ := z.TagName()
			switch atom.Lookup(tn) {
			case atom.Script, atom.Style:
				skip++
			case atom.Br, atom.P, atom.Div, atom.Li:
				b.WriteByte(' ')
			}
		case html.EndTagToken:
			tn, _ := z.TagName()
			switch atom.Lookup(tn) {
			case atom.Script, atom.Style:
				if skip > 0 {
					skip--
				}
			case atom.P, atom.Div, atom.Li:
				b.WriteByte(' ')
			}
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

// truncateText shortens input to at most maxLength runes, avoiding word
// breaks where it can, and marks the cut with "...".
func truncateText(input string, maxLength int) string {
	if input == "" || maxLength <= 0 {
		return ""
	}
	if utf8.RuneCountInString(input) <= maxLength {
		return input
	}

	// Account for the "..." suffix
	actualLength := maxLength - 3
	if actualLength <= 0 {
		return "..."
	}

	runes := []rune(input)
	text := string(runes[:actualLength])
	if lastSpace := strings.LastIndex(text, " "); lastSpace > len(text)/2 {
		text = text[:lastSpace]
	}
	return strings.TrimRight(text, " ,.;:") + "..."
}

// excerpt is the template helper for descriptions coming from the API.
func excerpt(input string, maxLength int) string {
	return truncateText(stripHTML(input), maxLength)
}

// sameOriginReferer returns the path of the Referer when it points back at
// this host, so "Go Back" never leaves the site.
func sameOriginReferer(r *http.Request) (string, bool) {
	ref := r.Referer()
	if ref == "" {
		return "", false
	}
	u, err := url.Parse(ref)
	if err != nil || u.Host == "" || !strings.EqualFold(u.Host, r.Host) {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	p := u.EscapedPath()
	if p == "" || !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") {
		p = "/"
	}
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return p, true
}

// siteURL is the absolute root used in feed links.
func (s *Server) siteURL(r *http.Request) string {
	if s.config.SiteURL != "" {
		return strings.TrimRight(s.config.SiteURL, "/")
	}
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
