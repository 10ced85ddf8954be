package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"kochchi/internal/api"
	"kochchi/internal/session"
)

const (
	msgRequired       = "Username and password are required"
	msgInvalidLogin   = "Invalid username or password"
	msgNoToken        = "No authentication token received"
	msgLoginFailed    = "Login failed"
	maxLoginFormBytes = 16 << 10
)

func (s *Server) renderLogin(w http.ResponseWriter, r *http.Request, status int, data loginData) {
	token, err := s.csrf.Token(w, r)
	if err != nil {
		s.logger.Error("issuing CSRF token", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	s.renderPage(w, status, "login.html", pageData{
		Title:     "Admin Login",
		Active:    "admin",
		CSRFToken: token,
		Data:      data,
	})
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.renderLogin(w, r, http.StatusOK, loginData{})
}

// handleLoginSubmit exchanges the form credentials for an API token and
// stores it in the session. Nothing is stored on any failure.
func (s *Server) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxLoginFormBytes)
	if !s.csrf.Validate(w, r) {
		return
	}

	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		s.renderLogin(w, r, http.StatusBadRequest, loginData{Username: username, Error: msgRequired})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.FetchTimeout)
	defer cancel()

	resp, err := s.backend.Login(ctx, username, password)
	if err != nil {
		status, msg := loginFailure(err)
		s.logger.Warn("admin login failed", "username", username, "error", err)
		s.renderLogin(w, r, status, loginData{Username: username, Error: msg})
		return
	}

	email := resp.Username
	if email == "" {
		email = username
	}
	cred := session.Credential{
		Token: resp.BearerToken(),
		Role:  session.NormalizeRole(resp.Role),
		Email: email,
		ID:    resp.ID.String(),
	}
	if err := s.sessions.FromRequest(r).SaveCredential(r.Context(), w, cred); err != nil {
		s.logger.Error("saving admin session", "error", err)
		s.renderLogin(w, r, http.StatusInternalServerError, loginData{Username: username, Error: msgLoginFailed})
		return
	}

	s.logger.Info("admin logged in", "email", cred.Email, "role", cred.Role)
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func loginFailure(err error) (int, string) {
	switch {
	case errors.Is(err, api.ErrInvalidCredentials):
		return http.StatusUnauthorized, msgInvalidLogin
	case errors.Is(err, api.ErrNoToken):
		return http.StatusBadGateway, msgNoToken
	default:
		return http.StatusBadGateway, msgLoginFailed
	}
}

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	cred, ok := credentialFrom(r.Context())
	if !ok {
		http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
		return
	}
	token, err := s.csrf.Token(w, r)
	if err != nil {
		s.logger.Error("issuing CSRF token", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	s.renderPage(w, http.StatusOK, "admin.html", pageData{
		Title:     "Admin",
		Active:    "admin",
		CSRFToken: token,
		Admin:     cred,
		Data:      adminData{Email: cred.Email, Role: cred.Role, ID: cred.ID},
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if !s.csrf.Validate(w, r) {
		return
	}
	if err := s.sessions.FromRequest(r).Clear(r.Context(), w); err != nil {
		s.logger.Error("clearing admin session", "error", err)
	}
	http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
}
