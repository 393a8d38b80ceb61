package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier — транспорт для локальной разработки: письмо только пишется в лог.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("mail")}
}

func (l *LogNotifier) Notify(_ context.Context, n Notification) error {
	l.logger.Info("notification",
		zap.String("kind", string(n.Kind)),
		zap.String("recipient_id", n.RecipientID.String()),
		zap.String("username", n.Username),
		zap.String("event_id", n.EventID.String()),
		zap.Any("payload", n.Payload))
	return nil
}
