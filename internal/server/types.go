package server

import (
	"kochchi/internal/api"
	"kochchi/internal/remote"
	"kochchi/internal/session"
)

// pageData is what the layout sees. Page specific values go in Data.
type pageData struct {
	Title     string
	Active    string
	CSRFToken string
	Admin     *session.Credential
	Data      any
}

// listSection feeds a list partial. Source is the fragment URL the loading
// state asks HTMX to fetch.
type listSection[T any] struct {
	View   remote.View[T]
	Source string
}

type (
	dansalSection       = listSection[api.DansalEvent]
	notificationSection = listSection[api.Notification]
)

type loginData struct {
	Username string
	Error    string
}

type adminData struct {
	Email string
	Role  string
	ID    string
}

func (d adminData) IsSuperAdmin() bool {
	return d.Role == session.RoleSuperAdmin
}

type cancelledData struct {
	BackURL      string
	SupportEmail string
}

type loadingData struct {
	Text   string
	Source string
}
