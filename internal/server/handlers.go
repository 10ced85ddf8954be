package server

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"time"

	"kochchi/internal/api"
	"kochchi/internal/remote"
	"kochchi/internal/rss"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

const supportEmail = "support@kochchibazaar.lk"

var (
	dansalMessages = remote.Messages{
		Status:   "Failed to fetch dansal events",
		Fallback: "Error fetching dansal events",
	}
	notificationsMessages = remote.Messages{
		Status:   "Failed to fetch notifications",
		Fallback: "Error fetching notifications",
	}
	notificationMessages = remote.Messages{
		Status:   "Failed to fetch notification",
		Fallback: "Error fetching notification",
	}
)

func (s *Server) fetchOptions(name string, msgs remote.Messages) []remote.Option {
	return []remote.Option{
		remote.WithName(name),
		remote.WithTimeout(s.config.FetchTimeout),
		remote.WithMessages(msgs),
		remote.WithLogger(s.logger),
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, http.StatusOK, "index.html", pageData{Title: "Kochchi Bazaar"})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.config.HealthCheck != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.config.HealthCheck(ctx); err != nil {
			s.logger.Error("health check failed", "error", err)
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, map[string]string{"status": "unavailable"})
			return
		}
	}
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// Dansal

func (s *Server) handleDansal(w http.ResponseWriter, r *http.Request) {
	section := dansalSection{View: remote.Loading[api.DansalEvent](), Source: "/dansal/events"}
	s.renderPage(w, http.StatusOK, "dansal.html", pageData{Title: "Dansal Events", Active: "dansal", Data: section})
}

// handleDansalEvents is one page activation: it owns a controller for the
// lifetime of the request.
func (s *Server) handleDansalEvents(w http.ResponseWriter, r *http.Request) {
	view := remote.Load(r.Context(), s.backend.ListDansalEvents, s.fetchOptions("dansal", dansalMessages)...)
	section := dansalSection{View: view, Source: "/dansal/events"}
	if isHTMX(r) {
		s.renderFragment(w, http.StatusOK, "dansal_list", section)
		return
	}
	s.renderPage(w, http.StatusOK, "dansal.html", pageData{Title: "Dansal Events", Active: "dansal", Data: section})
}

// Notifications

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	section := notificationSection{View: remote.Loading[api.Notification](), Source: "/notifications/feed"}
	s.renderPage(w, http.StatusOK, "notifications.html", pageData{Title: "Notifications", Active: "notifications", Data: section})
}

func (s *Server) handleNotificationsFeed(w http.ResponseWriter, r *http.Request) {
	view := remote.Load(r.Context(), s.backend.ListNotifications, s.fetchOptions("notifications", notificationsMessages)...)
	section := notificationSection{View: view, Source: "/notifications/feed"}
	if isHTMX(r) {
		s.renderFragment(w, http.StatusOK, "notification_list", section)
		return
	}
	s.renderPage(w, http.StatusOK, "notifications.html", pageData{Title: "Notifications", Active: "notifications", Data: section})
}

func notificationViewURL(id string) string {
	return "/notifications/" + url.PathEscape(id) + "/view"
}

func (s *Server) handleNotification(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	section := notificationSection{View: remote.Loading[api.Notification](), Source: notificationViewURL(id)}
	s.renderPage(w, http.StatusOK, "notification.html", pageData{Title: "Notification", Active: "notifications", Data: section})
}

func (s *Server) handleNotificationView(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	fetch := func(ctx context.Context) ([]api.Notification, error) {
		return s.backend.NotificationByID(ctx, id)
	}
	view := remote.Load(r.Context(), fetch, s.fetchOptions("notification", notificationMessages)...)
	section := notificationSection{View: view, Source: notificationViewURL(id)}
	if isHTMX(r) {
		s.renderFragment(w, http.StatusOK, "notification_detail", section)
		return
	}
	s.renderPage(w, http.StatusOK, "notification.html", pageData{Title: "Notification", Active: "notifications", Data: section})
}

func (s *Server) handleNotificationsRSS(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.config.FetchTimeout)
	defer cancel()

	items, err := s.backend.ListNotifications(ctx)
	if err != nil {
		s.logger.Warn("fetching notifications for RSS", "error", err)
		http.Error(w, "Notifications are unavailable", http.StatusBadGateway)
		return
	}

	site := s.siteURL(r)
	feed := rss.NewFeed("Kochchi Bazaar notifications", site+"/notifications",
		"Latest notices from Kochchi Bazaar", site+"/notifications/rss", time.Now())
	for _, n := range items {
		link := site + "/notifications"
		if n.ID != "" {
			link += "/" + url.PathEscape(string(n.ID))
		}
		feed.Add(n.DisplayTitle(), link, excerpt(n.Description, 500), n.CreatedAt.Time)
	}

	var buf bytes.Buffer
	if err := feed.Encode(&buf); err != nil {
		s.logger.Error("encoding RSS feed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Debug("writing RSS response", "error", err)
	}
}

// Payment results

func (s *Server) handlePaymentSuccess(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, http.StatusOK, "payment_success.html", pageData{Title: "Payment Successful"})
}

func (s *Server) handlePaymentCancelled(w http.ResponseWriter, r *http.Request) {
	back, ok := sameOriginReferer(r)
	if !ok {
		back = "/"
	}
	s.renderPage(w, http.StatusOK, "payment_cancelled.html", pageData{
		Title: "Payment Cancelled",
		Data:  cancelledData{BackURL: back, SupportEmail: supportEmail},
	})
}
