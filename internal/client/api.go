// Package client is the consuming side of the notifier: a REST client, a
// reconnecting realtime channel, and a Session that keeps a local cache of
// the user's notifications consistent.
package client

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"learnhub.io/notifier/internal/domain"
	apperrors "learnhub.io/notifier/internal/pkg/errors"
)

// ListResponse is the body of GET /notifications.
type ListResponse struct {
	Notifications []domain.Notification `json:"notifications"`
	UnreadCount   int                   `json:"unread_count"`
}

// TicketResponse is the body of POST /notifications/socket-ticket.
type TicketResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DispatchRequest is the body of POST /internal/events.
type DispatchRequest struct {
	Type           domain.NotificationType `json:"type"`
	RecipientIDs   []string                `json:"recipient_ids,omitempty"`
	ClassID        string                  `json:"class_id,omitempty"`
	Title          string                  `json:"title,omitempty"`
	Message        string                  `json:"message,omitempty"`
	Data           map[string]any          `json:"data,omitempty"`
	IdempotencyKey string                  `json:"idempotency_key,omitempty"`
}

// DispatchResponse is the body returned by POST /internal/events.
type DispatchResponse struct {
	Created int      `json:"created"`
	Failed  []string `json:"failed"`
	Skipped []string `json:"skipped"`
}

// API is the store boundary used by a Session.
type API interface {
	List(ctx context.Context, limit int) (ListResponse, error)
	MarkRead(ctx context.Context, id string) (domain.Notification, error)
	MarkAllRead(ctx context.Context) (int, error)
	SocketTicket(ctx context.Context) (TicketResponse, error)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIClient talks to the notifier REST API.
type APIClient struct {
	http *resty.Client
}

// NewAPIClient creates a client authenticating with bearer token.
func NewAPIClient(baseURL, token string, timeout time.Duration) *APIClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	baseURL = strings.TrimRight(baseURL, "/")
	c := resty.New().
		SetBaseURL(baseURL+"/api/v1").
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetError(&apiError{})
	if token != "" {
		c.SetAuthToken(token)
	}
	return &APIClient{http: c}
}

// List fetches the newest notifications and the server-side unread count.
func (c *APIClient) List(ctx context.Context, limit int) (ListResponse, error) {
	var out ListResponse
	req := c.http.R().SetContext(ctx).SetResult(&out)
	if limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(limit))
	}
	resp, err := req.Get("/notifications")
	if err := check(resp, err); err != nil {
		return ListResponse{}, err
	}
	return out, nil
}

// MarkRead marks one notification read. A notification owned by someone
// else reports errors.ErrNotFound.
func (c *APIClient) MarkRead(ctx context.Context, id string) (domain.Notification, error) {
	var out domain.Notification
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&out).
		Put("/notifications/{id}/read")
	if err := check(resp, err); err != nil {
		return domain.Notification{}, err
	}
	return out, nil
}

// MarkAllRead marks every notification read and returns how many changed.
func (c *APIClient) MarkAllRead(ctx context.Context) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Put("/notifications/read-all")
	if err := check(resp, err); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// SocketTicket obtains a short-lived realtime credential.
func (c *APIClient) SocketTicket(ctx context.Context) (TicketResponse, error) {
	var out TicketResponse
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Post("/notifications/socket-ticket")
	if err := check(resp, err); err != nil {
		return TicketResponse{}, err
	}
	return out, nil
}

// Preferences fetches the caller's channel preferences.
func (c *APIClient) Preferences(ctx context.Context) (domain.Preferences, error) {
	var out domain.Preferences
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/notifications/preferences")
	if err := check(resp, err); err != nil {
		return domain.Preferences{}, err
	}
	return out, nil
}

// UpdatePreferences replaces the caller's channel preferences.
func (c *APIClient) UpdatePreferences(ctx context.Context, p domain.Preferences) (domain.Preferences, error) {
	var out domain.Preferences
	resp, err := c.http.R().SetContext(ctx).SetBody(p).SetResult(&out).Put("/notifications/preferences")
	if err := check(resp, err); err != nil {
		return domain.Preferences{}, err
	}
	return out, nil
}

// Dispatch posts a platform event. The token needs notifications:dispatch.
func (c *APIClient) Dispatch(ctx context.Context, req DispatchRequest) (DispatchResponse, error) {
	var out DispatchResponse
	resp, err := c.http.R().SetContext(ctx).SetBody(req).SetResult(&out).Post("/internal/events")
	if err := check(resp, err); err != nil {
		return DispatchResponse{}, err
	}
	return out, nil
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return apperrors.Connection(err)
	}
	if !resp.IsError() {
		return nil
	}

	body, _ := resp.Error().(*apiError)
	code, msg := "HTTP_"+strconv.Itoa(resp.StatusCode()), resp.Status()
	if body != nil && body.Code != "" {
		code, msg = body.Code, body.Message
	}
	if resp.StatusCode() == http.StatusNotFound && code == apperrors.CodeNotificationNotFound {
		return apperrors.NotificationNotFound()
	}
	return apperrors.New(code, msg, resp.StatusCode())
}

var _ API = (*APIClient)(nil)
