package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime"

	"learnhub.io/notifier/internal/domain"
	apperrors "learnhub.io/notifier/internal/pkg/errors"
	"learnhub.io/notifier/internal/repository"
)

// ListNotificationsParams are the query parameters of GET /notifications.
type ListNotificationsParams struct {
	Limit      *int  `form:"limit"`
	Offset     *int  `form:"offset"`
	UnreadOnly *bool `form:"unread_only"`
}

// NotificationList is the body of GET /notifications.
type NotificationList struct {
	Notifications []domain.Notification `json:"notifications"`
	UnreadCount   int                   `json:"unread_count"`
}

// Count is returned by the unread-count and read-all endpoints.
type Count struct {
	Count int `json:"count"`
}

// Ticket is the body of POST /notifications/socket-ticket.
type Ticket struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DispatchResult is the body of POST /internal/events.
type DispatchResult struct {
	Created int      `json:"created"`
	Failed  []string `json:"failed"`
	Skipped []string `json:"skipped"`
}

func bindListParams(c *gin.Context) (ListNotificationsParams, error) {
	var params ListNotificationsParams
	query := c.Request.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "limit", query, &params.Limit); err != nil {
		return params, invalidParam("limit", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "offset", query, &params.Offset); err != nil {
		return params, invalidParam("offset", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "unread_only", query, &params.UnreadOnly); err != nil {
		return params, invalidParam("unread_only", err)
	}
	return params, nil
}

func bindNotificationID(c *gin.Context) (string, error) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "id", c.Param("id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil || id == "" {
		return "", invalidParam("id", err)
	}
	return id, nil
}

// listOptions clamps params to the configured limits.
func (s *Server) listOptions(params ListNotificationsParams) repository.ListOptions {
	opts := repository.ListOptions{Limit: s.list.DefaultListLimit}
	if params.Limit != nil && *params.Limit > 0 {
		opts.Limit = min(*params.Limit, s.list.MaxListLimit)
	}
	if params.Offset != nil && *params.Offset > 0 {
		opts.Offset = *params.Offset
	}
	if params.UnreadOnly != nil {
		opts.UnreadOnly = *params.UnreadOnly
	}
	return opts
}

func invalidParam(name string, err error) error {
	appErr := apperrors.BadRequest(apperrors.CodeInvalidRequestField, "invalid "+name).
		WithParams(map[string]interface{}{"field": name})
	appErr.Err = err
	return appErr
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
