package delivery

import (
	"context"

	"go.uber.org/zap"

	"learnhub.io/notifier/internal/pkg/logger"
)

// PushSender delivers a mobile push message. The gateway is an external
// collaborator; only the handoff contract lives here.
type PushSender interface {
	SendPush(ctx context.Context, recipientID, title, body string, data map[string]any) error
}

// LogPushSender logs instead of calling a push gateway.
type LogPushSender struct{}

// SendPush logs the message.
func (LogPushSender) SendPush(_ context.Context, recipientID, title, _ string, _ map[string]any) error {
	logger.Info("push delivery skipped (no gateway configured)",
		logger.Recipient(recipientID),
		zap.String("title", title),
	)
	return nil
}

var _ PushSender = LogPushSender{}
