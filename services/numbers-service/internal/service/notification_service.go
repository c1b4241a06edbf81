package service

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vanityline/vanityline/pkg/logger"
	pkgmodels "github.com/vanityline/vanityline/pkg/models"
	"github.com/vanityline/vanityline/services/numbers-service/internal/models"
)

type NotificationService struct {
	notifications NotificationRepository
	logger        logger.Logger
	now           func() time.Time
}

var _ Notifier = (*NotificationService)(nil)

func NewNotificationService(notifications NotificationRepository, log logger.Logger) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		logger:        log,
		now:           time.Now,
	}
}

type NotificationInput struct {
	Recipient     primitive.ObjectID
	RecipientType models.RecipientType
	Title         string
	Message       string
	Type          models.NotificationType
	RelatedID     *primitive.ObjectID
	Channels      []models.Channel
}

func (s *NotificationService) create(ctx context.Context, in NotificationInput) error {
	channels := in.Channels
	if len(channels) == 0 {
		channels = []models.Channel{models.ChannelInApp}
	}

	n := &models.Notification{
		Recipient:     in.Recipient,
		RecipientType: in.RecipientType,
		Title:         in.Title,
		Message:       in.Message,
		Category:      models.CategorySubscription,
		Type:          in.Type,
		RelatedID:     in.RelatedID,
		Channels:      channels,
		CreatedAt:     s.now(),
	}
	if err := s.notifications.Create(ctx, n); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (s *NotificationService) CreateUserNotification(ctx context.Context, user *pkgmodels.User, title, message string, kind models.NotificationType, related *primitive.ObjectID) error {
	return s.create(ctx, NotificationInput{
		Recipient:     user.ID,
		RecipientType: models.RecipientUser,
		Title:         title,
		Message:       message,
		Type:          kind,
		RelatedID:     related,
		Channels:      []models.Channel{models.ChannelInApp, models.ChannelEmail},
	})
}

func (s *NotificationService) CreateAdminNotification(ctx context.Context, admin *pkgmodels.User, title, message string, kind models.NotificationType, related *primitive.ObjectID) error {
	return s.create(ctx, NotificationInput{
		Recipient:     admin.ID,
		RecipientType: models.RecipientAdmin,
		Title:         title,
		Message:       message,
		Type:          kind,
		RelatedID:     related,
		Channels:      []models.Channel{models.ChannelInApp, models.ChannelTelegram},
	})
}

func numberLabel(sub *models.Subscription) string {
	if sub.Number != nil {
		return sub.Number.Number
	}
	return sub.PhoneNumber.Hex()
}

func (s *NotificationService) NotifySubscriptionCreated(ctx context.Context, user *pkgmodels.User, sub *models.Subscription) error {
	msg := fmt.Sprintf("Your %s subscription for %s is active until %s.",
		sub.Plan, numberLabel(sub), sub.EndDate.Format("Jan 2, 2006"))
	return s.CreateUserNotification(ctx, user, "Subscription activated", msg, models.NotificationSuccess, &sub.ID)
}

func (s *NotificationService) NotifySubscriptionRenewed(ctx context.Context, user *pkgmodels.User, sub *models.Subscription) error {
	msg := fmt.Sprintf("Your subscription for %s was renewed until %s.",
		numberLabel(sub), sub.EndDate.Format("Jan 2, 2006"))
	return s.CreateUserNotification(ctx, user, "Subscription renewed", msg, models.NotificationSuccess, &sub.ID)
}

func (s *NotificationService) NotifySubscriptionCancelled(ctx context.Context, user *pkgmodels.User, sub *models.Subscription) error {
	msg := fmt.Sprintf("Your subscription for %s has been cancelled.", numberLabel(sub))
	return s.CreateUserNotification(ctx, user, "Subscription cancelled", msg, models.NotificationWarning, &sub.ID)
}

func (s *NotificationService) NotifySubscriptionExpiring(ctx context.Context, user *pkgmodels.User, sub *models.Subscription, days int) error {
	unit := "days"
	if days == 1 {
		unit = "day"
	}
	msg := fmt.Sprintf("Your subscription for %s expires in %d %s. Renew to keep the number.", numberLabel(sub), days, unit)
	return s.CreateUserNotification(ctx, user, "Subscription expiring soon", msg, models.NotificationWarning, &sub.ID)
}

func (s *NotificationService) NotifySubscriptionExpired(ctx context.Context, user *pkgmodels.User, sub *models.Subscription) error {
	msg := fmt.Sprintf("Your subscription for %s has expired.", numberLabel(sub))
	return s.CreateUserNotification(ctx, user, "Subscription expired", msg, models.NotificationError, &sub.ID)
}

func (s *NotificationService) NotifyAutoRenewToggled(ctx context.Context, user *pkgmodels.User, sub *models.Subscription, enabled bool) error {
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	return s.create(ctx, NotificationInput{
		Recipient:     user.ID,
		RecipientType: models.RecipientUser,
		Title:         "Auto-renew " + state,
		Message:       fmt.Sprintf("Auto-renew is now %s for %s.", state, numberLabel(sub)),
		Type:          models.NotificationInfo,
		RelatedID:     &sub.ID,
	})
}

func (s *NotificationService) List(ctx context.Context, recipient primitive.ObjectID, filter models.NotificationFilter) ([]*models.Notification, models.Page, error) {
	items, total, err := s.notifications.ListForRecipient(ctx, recipient, filter)
	if err != nil {
		return nil, models.Page{}, err
	}
	return items, models.NewPage(filter.Page, filter.Limit, total), nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, recipient primitive.ObjectID) (int64, error) {
	return s.notifications.CountUnread(ctx, recipient)
}

func (s *NotificationService) MarkRead(ctx context.Context, id, recipient primitive.ObjectID) error {
	return s.notifications.MarkRead(ctx, id, recipient)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, recipient primitive.ObjectID) (int64, error) {
	return s.notifications.MarkAllRead(ctx, recipient)
}

func (s *NotificationService) Delete(ctx context.Context, id, recipient primitive.ObjectID) error {
	return s.notifications.Delete(ctx, id, recipient)
}
