package errors

import "net/http"

// Error code constants.
// Errors carry code + params; clients own the user-facing wording.

// Notification error codes.
const (
	CodePersistenceFailed    = "NOTIFICATION_PERSISTENCE_FAILED"
	CodeNotificationNotFound = "NOTIFICATION_NOT_FOUND"
	CodeDeliveryFailed       = "NOTIFICATION_DELIVERY_FAILED"
	CodeUnknownType          = "NOTIFICATION_TYPE_UNKNOWN"
	CodeAudienceFailed       = "AUDIENCE_RESOLUTION_FAILED"
	CodeTemplateFailed       = "TEMPLATE_RENDER_FAILED"
)

// Realtime error codes.
const (
	CodeConnectionFailed = "REALTIME_CONNECTION_FAILED"
	CodeTicketInvalid    = "REALTIME_TICKET_INVALID"
)

// Auth error codes.
const (
	CodeAuthFailed   = "AUTH_FAILED"
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeTokenInvalid = "TOKEN_INVALID"
	CodeForbidden    = "FORBIDDEN"
)

// Validation error codes.
const (
	CodeInvalidRequestField = "INVALID_REQUEST_FIELD"
	CodeValidationFailed    = "VALIDATION_FAILED"
)

// Persistence wraps a store write/read failure. Matches ErrPersistence.
func Persistence(err error) *AppError {
	return Wrap(err, CodePersistenceFailed, "notification store unavailable", http.StatusInternalServerError).
		classify(ErrPersistence)
}

// NotificationNotFound is returned when a notification does not exist or
// belongs to another recipient. The two cases are indistinguishable.
func NotificationNotFound() *AppError {
	return NotFound(CodeNotificationNotFound, "notification not found")
}

// Delivery wraps a failure on a secondary channel (realtime, email, push).
// Matches ErrDelivery. Never rendered to API callers.
func Delivery(channel string, err error) *AppError {
	return Wrap(err, CodeDeliveryFailed, "delivery failed", http.StatusBadGateway).
		WithParams(map[string]interface{}{"channel": channel}).
		classify(ErrDelivery)
}

// Connection wraps a client-side realtime connect failure. Matches ErrConnection.
func Connection(err error) *AppError {
	return Wrap(err, CodeConnectionFailed, "realtime connection failed", http.StatusServiceUnavailable).
		classify(ErrConnection)
}
