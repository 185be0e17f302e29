package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "without wrapped error",
			err:  NotificationNotFound(),
			want: "NOTIFICATION_NOT_FOUND: notification not found",
		},
		{
			name: "with wrapped error",
			err:  Persistence(fmt.Errorf("connection refused")),
			want: "NOTIFICATION_PERSISTENCE_FAILED: notification store unavailable: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap(inner, "CODE", "msg", 500)

	if !errors.Is(appErr, inner) {
		t.Error("errors.Is should match inner error")
	}
}

func TestTaxonomy_MatchesSentinel(t *testing.T) {
	cause := fmt.Errorf("boom")
	tests := []struct {
		name    string
		err     error
		match   error
		nomatch []error
	}{
		{"persistence", Persistence(cause), ErrPersistence, []error{ErrNotFound, ErrDelivery, ErrConnection}},
		{"not found", NotificationNotFound(), ErrNotFound, []error{ErrPersistence, ErrDelivery}},
		{"delivery", Delivery("email", cause), ErrDelivery, []error{ErrPersistence, ErrNotFound}},
		{"connection", Connection(cause), ErrConnection, []error{ErrDelivery, ErrNotFound}},
		{"wrapped twice", fmt.Errorf("dispatch: %w", Persistence(cause)), ErrPersistence, []error{ErrNotFound}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.match) {
				t.Errorf("errors.Is(%v, %v) = false, want true", tt.err, tt.match)
			}
			for _, other := range tt.nomatch {
				if errors.Is(tt.err, other) {
					t.Errorf("errors.Is(%v, %v) = true, want false", tt.err, other)
				}
			}
		})
	}
}

func TestDelivery_CarriesChannel(t *testing.T) {
	err := Delivery("push", fmt.Errorf("gateway timeout"))
	if got := err.Params["channel"]; got != "push" {
		t.Errorf("Params[channel] = %v, want push", got)
	}
}

func TestIsAppError(t *testing.T) {
	appErr := NotFound("NOT_FOUND", "resource not found")
	wrapped := fmt.Errorf("wrapped: %w", appErr)

	got, ok := IsAppError(wrapped)
	if !ok {
		t.Fatal("IsAppError should return true for wrapped AppError")
	}
	if got.Code != "NOT_FOUND" {
		t.Errorf("Code = %q, want NOT_FOUND", got.Code)
	}
	if _, ok := IsAppError(fmt.Errorf("plain")); ok {
		t.Error("IsAppError should return false for plain errors")
	}
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantStatus int
		wantKind   error
	}{
		{"NotFound", NotFound("NF", "not found"), http.StatusNotFound, ErrNotFound},
		{"BadRequest", BadRequest("BR", "bad request"), http.StatusBadRequest, ErrBadRequest},
		{"Unauthorized", Unauthorized("UA", "unauthorized"), http.StatusUnauthorized, ErrUnauthorized},
		{"Forbidden", Forbidden("FB", "forbidden"), http.StatusForbidden, ErrForbidden},
		{"Internal", Internal("IE", "internal"), http.StatusInternalServerError, ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.HTTPStatus != tt.wantStatus {
				t.Errorf("HTTPStatus = %d, want %d", tt.err.HTTPStatus, tt.wantStatus)
			}
			if !errors.Is(tt.err, tt.wantKind) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.wantKind)
			}
		})
	}
}
