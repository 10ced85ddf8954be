package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ListResponse accepts either a JSON array or a single JSON object and
// always exposes a slice. null decodes to an empty list.
type ListResponse[T any] struct {
	Items []T
}

func (l *ListResponse[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		l.Items = []T{}
		return nil
	case data[0] == '[':
		var items []T
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		if items == nil {
			items = []T{}
		}
		l.Items = items
		return nil
	case data[0] == '{':
		var one T
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		l.Items = []T{one}
		return nil
	}
	return fmt.Errorf("expected array or object, got %.20q", data)
}

// FlexibleString decodes a JSON string, number or null into a string.
// The backend is not consistent about ids and phone numbers.
type FlexibleString string

func (s *FlexibleString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = FlexibleString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}
	*s = FlexibleString(n.String())
	return nil
}

func (s FlexibleString) String() string { return string(s) }

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Timestamp is a server time. Values the layouts above do not cover keep
// their raw text so pages can still show something.
type Timestamp struct {
	Time time.Time
	Raw  string
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		var n int64
		if nerr := json.Unmarshal(data, &n); nerr != nil {
			return fmt.Errorf("expected time string: %w", err)
		}
		*t = Timestamp{Time: unixAny(n), Raw: strconv.FormatInt(n, 10)}
		return nil
	}
	*t = ParseTimestamp(raw)
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.Time.IsZero() {
		return json.Marshal(t.Raw)
	}
	return json.Marshal(t.Time.Format(time.RFC3339))
}

// IsZero reports whether neither a parsed time nor raw text is present.
func (t Timestamp) IsZero() bool {
	return t.Time.IsZero() && t.Raw == ""
}

// ParseTimestamp parses s with the layouts the backend is known to emit.
// Timestamps without a zone are taken as UTC.
func ParseTimestamp(s string) Timestamp {
	s = strings.TrimSpace(s)
	ts := Timestamp{Raw: s}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			ts.Time = parsed
			break
		}
	}
	return ts
}

// unixAny accepts seconds or milliseconds since the epoch.
func unixAny(n int64) time.Time {
	if n > 1e12 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}

type Organizer struct {
	Name     string         `json:"name"`
	Phone    FlexibleString `json:"phone,omitempty"`
	WhatsApp FlexibleString `json:"whatsapp,omitempty"`
	Email    string         `json:"email,omitempty"`
}

type Location struct {
	City          string `json:"city"`
	District      string `json:"district"`
	Province      string `json:"province,omitempty"`
	GoogleMapLink string `json:"googleMapLink,omitempty"`
}

// Place joins the non-empty parts of the location for display.
func (l Location) Place() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{l.City, l.District, l.Province} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// DansalEvent is a free food distribution event.
type DansalEvent struct {
	ID          FlexibleString `json:"id,omitempty"`
	MongoID     FlexibleString `json:"_id,omitempty"`
	Title       string         `json:"title"`
	FoodType    string         `json:"foodType"`
	Date        string         `json:"date"`
	Time        string         `json:"time"`
	EndDateTime string         `json:"endDateTime,omitempty"`
	Location    Location       `json:"location"`
	Description string         `json:"description"`
	Organizer   Organizer      `json:"organizer"`
	Images      []string       `json:"images"`
	CreatedAt   Timestamp      `json:"createdAt"`
}

func (e DansalEvent) Key() string {
	if e.ID != "" {
		return string(e.ID)
	}
	return string(e.MongoID)
}

// CoverImage is the first image, or "" when the event has none.
func (e DansalEvent) CoverImage() string {
	if len(e.Images) == 0 {
		return ""
	}
	return strings.TrimSpace(e.Images[0])
}

// DisplayTitle never returns an empty string.
func (e DansalEvent) DisplayTitle() string {
	if t := strings.TrimSpace(e.Title); t != "" {
		return t
	}
	return "Untitled dansal"
}

type Notification struct {
	ID          FlexibleString `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	CreatedAt   Timestamp      `json:"createdAt"`
}

func (n Notification) Key() string { return string(n.ID) }

func (n Notification) DisplayTitle() string {
	if t := strings.TrimSpace(n.Title); t != "" {
		return t
	}
	return "Notification"
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse covers both the documented access_token field and the
// older token field.
type LoginResponse struct {
	AccessToken string         `json:"access_token"`
	Token       string         `json:"token"`
	TokenType   string         `json:"token_type"`
	Role        string         `json:"role"`
	Username    string         `json:"username"`
	ID          FlexibleString `json:"id"`
}

// BearerToken prefers access_token and falls back to token.
func (r LoginResponse) BearerToken() string {
	if r.AccessToken != "" {
		return r.AccessToken
	}
	return r.Token
}
