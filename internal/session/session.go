// Package session keeps the admin credential on the server. The browser only
// holds an opaque session id cookie; values live in a Store.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Key names written for a signed-in admin.
const (
	KeyAdminToken  = "admin_token"
	KeyAccessToken = "access_token"
	KeyRole        = "admin_user_role"
	KeyUserID      = "admin_user_id"
	KeyEmail       = "admin_user_email"
)

// CredentialKeys lists every key SaveCredential writes.
var CredentialKeys = []string{KeyAdminToken, KeyAccessToken, KeyRole, KeyUserID, KeyEmail}

const (
	RoleSuperAdmin = "super_admin"
	RoleSubAdmin   = "sub_admin"

	DefaultCookieName = "session"
	DefaultTTL        = 24 * time.Hour
)

var (
	ErrNotFound     = errors.New("session: key not found")
	ErrNoCredential = errors.New("session: no credential")
)

// Store persists string values per session id. Implementations must be safe
// for concurrent use and treat expired sessions as absent.
type Store interface {
	Get(ctx context.Context, sid, key string) (string, error)
	Put(ctx context.Context, sid string, values map[string]string, expiresAt time.Time) error
	Delete(ctx context.Context, sid string) error
}

// Credential is what a successful login leaves behind.
type Credential struct {
	Token string
	Role  string
	Email string
	ID    string
}

// NormalizeRole maps anything other than super_admin to sub_admin.
func NormalizeRole(role string) string {
	if strings.TrimSpace(role) == RoleSuperAdmin {
		return RoleSuperAdmin
	}
	return RoleSubAdmin
}

// TokenExpiry reads the exp claim of a JWT without verifying it. ok is false
// for tokens that are not JWTs or carry no expiry.
func TokenExpiry(token string) (exp time.Time, ok bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	nd, err := claims.GetExpirationTime()
	if err != nil || nd == nil {
		return time.Time{}, false
	}
	return nd.Time, true
}

type Manager struct {
	store      Store
	sealer     *Sealer
	ttl        time.Duration
	cookieName string
	secure     bool
	now        func() time.Time
}

type ManagerOption func(*Manager)

func WithTTL(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.ttl = d
		}
	}
}

func WithCookieName(name string) ManagerOption {
	return func(m *Manager) {
		if name != "" {
			m.cookieName = name
		}
	}
}

// WithSecureCookie marks the cookie Secure; enable it behind HTTPS.
func WithSecureCookie(secure bool) ManagerOption {
	return func(m *Manager) { m.secure = secure }
}

func withClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

func NewManager(store Store, sealer *Sealer, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:      store,
		sealer:     sealer,
		ttl:        DefaultTTL,
		cookieName: DefaultCookieName,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FromRequest returns the session named by the request cookie. A missing or
// malformed cookie yields a fresh session that has not been stored yet.
func (m *Manager) FromRequest(r *http.Request) *Session {
	if c, err := r.Cookie(m.cookieName); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return &Session{id: id.String(), m: m}
		}
	}
	return &Session{id: uuid.NewString(), m: m, fresh: true}
}

func (m *Manager) setCookie(w http.ResponseWriter, id string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    id,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) expireCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Session is the per-request handle handlers pass around.
type Session struct {
	id    string
	m     *Manager
	fresh bool
}

func (s *Session) ID() string { return s.id }

// Get returns the opened value stored under key.
func (s *Session) Get(ctx context.Context, key string) (string, error) {
	if s.fresh {
		return "", ErrNotFound
	}
	sealed, err := s.m.store.Get(ctx, s.id, key)
	if err != nil {
		return "", err
	}
	return s.m.sealer.Open(sealed)
}

// Credential loads the stored credential, or ErrNoCredential when the
// session holds no token.
func (s *Session) Credential(ctx context.Context) (*Credential, error) {
	token, err := s.Get(ctx, KeyAdminToken)
	if errors.Is(err, ErrNotFound) || (err == nil && token == "") {
		return nil, ErrNoCredential
	}
	if err != nil {
		return nil, err
	}
	cred := &Credential{Token: token}
	for key, dst := range map[string]*string{KeyRole: &cred.Role, KeyEmail: &cred.Email, KeyUserID: &cred.ID} {
		v, err := s.Get(ctx, key)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		*dst = v
	}
	return cred, nil
}

// SaveCredential stores cred under a new session id and sets the cookie.
// The id is rotated on every login. The session expires after the manager
// TTL or at the token's own exp, whichever comes first.
func (s *Session) SaveCredential(ctx context.Context, w http.ResponseWriter, cred Credential) error {
	now := s.m.now()
	expiresAt := now.Add(s.m.ttl)
	if exp, ok := TokenExpiry(cred.Token); ok && exp.After(now) && exp.Before(expiresAt) {
		expiresAt = exp
	}

	plain := map[string]string{
		KeyAdminToken:  cred.Token,
		KeyAccessToken: cred.Token,
		KeyRole:        NormalizeRole(cred.Role),
		KeyUserID:      cred.ID,
		KeyEmail:       cred.Email,
	}
	sealed := make(map[string]string, len(plain))
	for k, v := range plain {
		box, err := s.m.sealer.Seal(v)
		if err != nil {
			return fmt.Errorf("sealing %s: %w", k, err)
		}
		sealed[k] = box
	}

	oldID, wasFresh := s.id, s.fresh
	newID := uuid.NewString()
	if err := s.m.store.Put(ctx, newID, sealed, expiresAt); err != nil {
		return fmt.Errorf("storing session: %w", err)
	}
	if !wasFresh {
		if err := s.m.store.Delete(ctx, oldID); err != nil {
			return fmt.Errorf("dropping previous session: %w", err)
		}
	}
	s.id, s.fresh = newID, false
	s.m.setCookie(w, newID, expiresAt)
	return nil
}

// Clear removes everything stored for the session and expires the cookie.
func (s *Session) Clear(ctx context.Context, w http.ResponseWriter) error {
	s.m.expireCookie(w)
	if s.fresh {
		return nil
	}
	if err := s.m.store.Delete(ctx, s.id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	s.fresh = true
	return nil
}
