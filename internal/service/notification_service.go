package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/agency-service/internal/config"
	"github.com/spec-kit/agency-service/internal/events"
)

// NotificationService hands lifecycle events to out-of-band delivery.
// Delivery itself belongs to external collaborators; this service logs what
// would be sent.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
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
	n.dispatcher.Subscribe(events.EventResetLinkIssued, n.handleResetLinkIssued)
	n.dispatcher.Subscribe(events.EventAgencyCreated, n.handleLifecycle)
	n.dispatcher.Subscribe(events.EventAgencyUpdated, n.handleLifecycle)
	n.dispatcher.Subscribe(events.EventAgencyDeleted, n.handleLifecycle)
	n.dispatcher.Subscribe(events.EventStaffProvisioned, n.handleLifecycle)
}

func (n *NotificationService) handleResetLinkIssued(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ResetLinkIssuedPayload)
	if !ok {
		n.logger.Warn("unexpected reset link payload", zap.String("event_id", event.ID))
		return nil
	}
	n.logResetLinkDelivery(ctx, payload)
	return nil
}

func (n *NotificationService) handleLifecycle(ctx context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("company_id", event.CompanyID),
		zap.String("agency_id", event.AgencyID),
		zap.String("actor_id", event.ActorID))
	n.logWebhookDelivery(ctx, event)
	return nil
}

func (n *NotificationService) logResetLinkDelivery(_ context.Context, payload events.ResetLinkIssuedPayload) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Info("reset link ready for delivery",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("to", payload.Email),
		zap.String("account_id", payload.AccountID))
}

func (n *NotificationService) logWebhookDelivery(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("lifecycle webhook ready for delivery",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)))
}
