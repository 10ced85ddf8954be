// Package rss writes RSS 2.0 documents.
package rss

import (
	"encoding/xml"
	"io"
	"time"
)

// RSS is the root element of an RSS feed.
type RSS struct {
	XMLName xml.Name `xml:"rss"`
	Version string   `xml:"version,attr"`
	AtomNS  string   `xml:"xmlns:atom,attr,omitempty"`
	Channel Channel  `xml:"channel"`
}

// Channel represents the channel element in an RSS feed.
type Channel struct {
	XMLName       xml.Name  `xml:"channel"`
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language,omitempty"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"` // RFC1123Z
	SelfLink      *AtomLink `xml:"atom:link,omitempty"`
	Items         []Item    `xml:"item"`
}

// AtomLink is the rel="self" link feed validators expect.
type AtomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

// Item represents an item element in an RSS feed.
type Item struct {
	XMLName     xml.Name `xml:"item"`
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	Description string   `xml:"description,omitempty"`
	PubDate     string   `xml:"pubDate,omitempty"` // RFC1123Z
	GUID        *GUID    `xml:"guid,omitempty"`
}

type GUID struct {
	Value       string `xml:",chardata"`
	IsPermaLink bool   `xml:"isPermaLink,attr"`
}

// NewFeed returns a 2.0 document whose self link is selfURL.
func NewFeed(title, link, description, selfURL string, built time.Time) *RSS {
	feed := &RSS{
		Version: "2.0",
		AtomNS:  "http://www.w3.org/2005/Atom",
		Channel: Channel{
			Title:         title,
			Link:          link,
			Description:   description,
			Language:      "en-us",
			LastBuildDate: built.Format(time.RFC1123Z),
		},
	}
	if selfURL != "" {
		feed.Channel.SelfLink = &AtomLink{Href: selfURL, Rel: "self", Type: "application/rss+xml"}
	}
	return feed
}

// Add appends an item. A zero published time leaves pubDate out.
func (f *RSS) Add(title, link, description string, published time.Time) {
	item := Item{
		Title:       title,
		Link:        link,
		Description: description,
		GUID:        &GUID{Value: link, IsPermaLink: true},
	}
	if !published.IsZero() {
		item.PubDate = published.Format(time.RFC1123Z)
	}
	f.Channel.Items = append(f.Channel.Items, item)
}

// Encode writes the XML declaration and the indented document.
func (f *RSS) Encode(w io.Writer) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(f); err != nil {
		return err
	}
	return enc.Close()
}
