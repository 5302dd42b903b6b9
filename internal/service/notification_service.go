package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/vetlink/consultation-service/internal/config"
	"github.com/vetlink/consultation-service/internal/events"
)

// NotificationService handles emitting notifications for domain events.
// Everything here is advisory: a failed notification never touches the
// consultation record.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventConsultationCompleted, n.handleConsultationCompleted)
	n.dispatcher.Subscribe(events.EventFollowUpThreadCreated, n.handleThreadCreated)
	n.dispatcher.Subscribe(events.EventFollowUpMessageSent, n.handleMessageSent)
}

func (n *NotificationService) handleConsultationCompleted(ctx context.Context, event events.Event) error {
	n.logger.Info("ConsultationCompleted", zap.String("consultation_id", event.ConsultationID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleThreadCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("FollowUpThreadCreated", zap.String("consultation_id", event.ConsultationID), zap.Any("payload", event.Payload))
	// welcome message to the customer goes out here once the thread opens
	n.sendEmailNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleMessageSent(ctx context.Context, event events.Event) error {
	n.logger.Info("FollowUpMessageSent", zap.String("consultation_id", event.ConsultationID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("consultation_id", event.ConsultationID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("consultation_id", event.ConsultationID),
		zap.String("event_type", string(event.Type)))
}
