package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL + "/api")
	require.NoError(t, err)
	return c
}

func TestNewClientRejectsBadBase(t *testing.T) {
	for _, base := range []string{"ftp://example.com", "/relative", "http://"} {
		_, err := NewClient(base)
		assert.ErrorIs(t, err, ErrInvalidBaseURL, base)
	}
	c, err := NewClient("")
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
}

func TestListDansalEventsArray(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/dansal/all", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Write([]byte(`[
			{"_id":"b","title":"Ice Cream Dansal","foodType":"Dessert","images":[]},
			{"id":7,"title":"Rice Dansal","foodType":"Rice","date":"2025-05-12","time":"12:00",
			 "location":{"city":"Kandy","district":"Kandy","province":"Central"},
			 "organizer":{"name":"Temple","phone":771234567},
			 "images":["https://img/1.jpg","https://img/2.jpg"]}
		]`))
	})

	events, err := c.ListDansalEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Ice Cream Dansal", events[0].Title)
	assert.Equal(t, "b", events[0].Key())
	assert.Equal(t, "", events[0].CoverImage())
	assert.Equal(t, "7", events[1].Key())
	assert.Equal(t, "https://img/1.jpg", events[1].CoverImage())
	assert.Equal(t, "771234567", events[1].Organizer.Phone.String())
	assert.Equal(t, "Kandy, Kandy, Central", events[1].Location.Place())
}

func TestListDansalEventsSingleObject(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"title":"Only One","foodType":"Tea"}`))
	})

	events, err := c.ListDansalEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Only One", events[0].Title)
}

func TestListNotificationsNullAndEmpty(t *testing.T) {
	for _, body := range []string{"null", "[]", ""} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/notifications/", r.URL.Path)
			w.Write([]byte(body))
		})
		items, err := c.ListNotifications(context.Background())
		require.NoError(t, err, "body %q", body)
		assert.NotNil(t, items)
		assert.Empty(t, items)
	}
}

func TestListNotificationsParsesTimestamps(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id":"n1","title":"A","description":"d","createdAt":"2025-05-01T08:30:00Z"},
			{"id":"n2","title":"B","description":"d","createdAt":"2025-05-01T08:30:00.123456"},
			{"id":"n3","title":"C","description":"d","createdAt":"yesterday"}
		]`))
	})

	items, err := c.ListNotifications(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, time.Date(2025, 5, 1, 8, 30, 0, 0, time.UTC), items[0].CreatedAt.Time)
	assert.Equal(t, 8, items[1].CreatedAt.Time.Hour())
	assert.True(t, items[2].CreatedAt.Time.IsZero())
	assert.Equal(t, "yesterday", items[2].CreatedAt.Raw)
}

func TestNotificationByIDEscapesPath(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/notifications/a%2Fb", r.URL.EscapedPath())
		w.Write([]byte(`{"id":"a/b","title":"Single"}`))
	})

	items, err := c.NotificationByID(context.Background(), "a/b")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Single", items[0].Title)

	_, err = c.NotificationByID(context.Background(), " ")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode())
}

func TestListErrorsAreClassified(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"detail":"database unavailable"}`))
		})
		_, err := c.ListDansalEvents(context.Background())
		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, 500, se.Code)
		assert.Equal(t, "database unavailable", se.Detail)
		assert.Contains(t, se.Error(), "/api/dansal/all")
	})

	t.Run("decode", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html>oops</html>`))
		})
		_, err := c.ListDansalEvents(context.Background())
		assert.ErrorIs(t, err, ErrDecode)
	})

	t.Run("network", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		base := srv.URL
		srv.Close()
		c, err := NewClient(base)
		require.NoError(t, err)
		_, err = c.ListNotifications(context.Background())
		assert.ErrorIs(t, err, ErrNetwork)
	})

	t.Run("cancelled", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		})
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := c.ListNotifications(ctx)
		assert.ErrorIs(t, err, ErrNetwork)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestLogin(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/auth/login", r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Equal(t, "application/json", r.Header.Get("Accept"))
			var req LoginRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, LoginRequest{Username: "admin", Password: "secret"}, req)
			w.Write([]byte(`{"access_token":"tok","token_type":"bearer","role":"super_admin","username":"admin@kb.lk"}`))
		})
		resp, err := c.Login(context.Background(), "admin", "secret")
		require.NoError(t, err)
		assert.Equal(t, "tok", resp.BearerToken())
		assert.Equal(t, "super_admin", resp.Role)
	})

	t.Run("legacy token field", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"token":"old","id":12}`))
		})
		resp, err := c.Login(context.Background(), "a", "b")
		require.NoError(t, err)
		assert.Equal(t, "old", resp.BearerToken())
		assert.Equal(t, "12", resp.ID.String())
	})

	t.Run("rejected", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"Incorrect username or password"}`))
		})
		_, err := c.Login(context.Background(), "a", "b")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusUnauthorized, se.Code)
	})

	t.Run("no token", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"role":"super_admin"}`))
		})
		_, err := c.Login(context.Background(), "a", "b")
		assert.True(t, errors.Is(err, ErrNoToken))
	})
}

func TestStatusErrorValidationDetail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail":[{"msg":"field required"},{"msg":"too short"}]}`))
	})
	_, err := c.Login(context.Background(), "", "")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "field required; too short", se.Detail)
}
