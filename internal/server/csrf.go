package server

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"
	"sync"
	"time"
)

var (
	ErrTokenMissing = errors.New("CSRF token missing")
	ErrTokenInvalid = errors.New("CSRF token invalid")
)

// CSRFConfig holds configuration for CSRF protection
type CSRFConfig struct {
	Cookie    string
	Header    string
	Secure    bool
	Expiry    time.Duration
	FieldName string
}

// DefaultCSRFConfig returns the default CSRF configuration
func DefaultCSRFConfig() CSRFConfig {
	return CSRFConfig{
		Cookie:    "csrf_token",
		Header:    "X-CSRF-Token",
		Secure:    true, // Will be overridden by server config
		Expiry:    24 * time.Hour,
		FieldName: "csrf_token",
	}
}

// CSRF issues double-submit tokens that must also be known to this process.
type CSRF struct {
	config CSRFConfig
	tokens sync.Map
}

func NewCSRF(config CSRFConfig) *CSRF {
	return &CSRF{config: config}
}

func (c *CSRF) generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// Token returns the request's live token or issues a new one with its cookie.
func (c *CSRF) Token(w http.ResponseWriter, r *http.Request) (string, error) {
	cookie, err := r.Cookie(c.config.Cookie)
	if err == nil && cookie.Value != "" {
		if expiry, ok := c.tokens.Load(cookie.Value); ok && expiry.(time.Time).After(time.Now()) {
			return cookie.Value, nil
		}
	}

	token, err := c.generateToken()
	if err != nil {
		return "", err
	}
	c.tokens.Store(token, time.Now().Add(c.config.Expiry))

	http.SetCookie(w, &http.Cookie{
		Name:     c.config.Cookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.config.Secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(c.config.Expiry.Seconds()),
	})
	return token, nil
}

// validateRequest checks for a valid CSRF token in the request
func (c *CSRF) validateRequest(r *http.Request) error {
	token := r.Header.Get(c.config.Header)
	if token == "" {
		if err := r.ParseForm(); err == nil {
			token = r.PostFormValue(c.config.FieldName)
		}
	}
	if token == "" {
		return ErrTokenMissing
	}

	cookie, err := r.Cookie(c.config.Cookie)
	if err != nil {
		return ErrTokenMissing
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(cookie.Value)) != 1 {
		return ErrTokenInvalid
	}

	expiry, ok := c.tokens.Load(token)
	if !ok {
		return ErrTokenInvalid
	}
	if expiry.(time.Time).Before(time.Now()) {
		c.tokens.Delete(token)
		return ErrTokenInvalid
	}
	return nil
}

// Validate writes a 403 and returns false when the request fails the check.
func (c *CSRF) Validate(w http.ResponseWriter, r *http.Request) bool {
	if err := c.validateRequest(r); err != nil {
		http.Error(w, "CSRF validation failed", http.StatusForbidden)
		return false
	}
	return true
}

// cleanup removes expired tokens
func (c *CSRF) cleanup() {
	now := time.Now()
	c.tokens.Range(func(key, value any) bool {
		if expiry := value.(time.Time); expiry.Before(now) {
			c.tokens.Delete(key)
		}
		return true
	})
}

// RunCleanup drops expired tokens every interval until ctx is done.
func (c *CSRF) RunCleanup(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}
