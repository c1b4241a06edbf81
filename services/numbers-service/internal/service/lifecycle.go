package service

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vanityline/vanityline/pkg/logger"
	"github.com/vanityline/vanityline/pkg/messaging"
	pkgmodels "github.com/vanityline/vanityline/pkg/models"
	"github.com/vanityline/vanityline/services/numbers-service/internal/models"
)

const (
	EventCreated          = "created"
	EventRenewed          = "renewed"
	EventCancelled        = "cancelled"
	EventExpiring         = "expiring"
	EventExpired          = "expired"
	EventAutoRenewToggled = "auto_renew_toggled"
)

// SubscriptionEvent is the payload published to the subscription.events exchange.
type SubscriptionEvent struct {
	Event          string                    `json:"event"`
	SubscriptionID string                    `json:"subscription_id"`
	UserID         string                    `json:"user_id"`
	UserEmail      string                    `json:"user_email"`
	Number         string                    `json:"number"`
	Plan           models.PlanName           `json:"plan"`
	Status         models.SubscriptionStatus `json:"status"`
	EndDate        time.Time                 `json:"end_date"`
	Days           int                       `json:"days,omitempty"`
	AutoRenew      bool                      `json:"auto_renew"`
}

func RoutingKey(event string) string {
	return "subscription." + event
}

// LifecycleService reacts to subscription events. Notifications, emails and event publishing are
// best effort: their failures are logged and counted, never returned.
type LifecycleService struct {
	users         AccountRepository
	admins        AccountRepository
	subscriptions SubscriptionRepository
	numbers       PhoneNumberRepository
	notifier      Notifier
	mailer        Mailer
	publisher     messaging.Publisher
	metrics       *Metrics
	logger        logger.Logger
	now           func() time.Time
}

func NewLifecycleService(
	users, admins AccountRepository,
	subscriptions SubscriptionRepository,
	numbers PhoneNumberRepository,
	notifier Notifier,
	mailer Mailer,
	publisher messaging.Publisher,
	metrics *Metrics,
	log logger.Logger,
) *LifecycleService {
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}
	return &LifecycleService{
		users:         users,
		admins:        admins,
		subscriptions: subscriptions,
		numbers:       numbers,
		notifier:      notifier,
		mailer:        mailer,
		publisher:     publisher,
		metrics:       metrics,
		logger:        log,
		now:           time.Now,
	}
}

type lifecycleContext struct {
	user  *pkgmodels.User
	admin *pkgmodels.User
	sub   *models.Subscription
}

// load returns nil without error when the subscription, its owner or every admin is gone.
// A missing phone number leaves sub.Number nil.
func (s *LifecycleService) load(ctx context.Context, event string, subscriptionID primitive.ObjectID) (*lifecycleContext, error) {
	log := s.logger.WithContext(ctx).WithFields(logger.Fields{"event": event, "subscription_id": subscriptionID.Hex()})

	sub, err := s.subscriptions.FindByID(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	if sub == nil {
		log.Warn("Subscription not found, skipping lifecycle event")
		return nil, nil
	}

	user, err := s.users.FindByID(ctx, sub.User)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		log.Warn("Subscription owner not found, skipping lifecycle event", logger.F("user_id", sub.User.Hex()))
		return nil, nil
	}

	admin, err := s.admins.FindPrimary(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load admin: %w", err)
	}
	if admin == nil {
		log.Warn("No active admin, skipping lifecycle event")
		return nil, nil
	}

	number, err := s.numbers.FindByID(ctx, sub.PhoneNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to load phone number: %w", err)
	}
	if number == nil {
		// The number may have been released and deleted; the subscription still runs its course.
		log.Warn("Subscribed phone number not found", logger.F("phone_number_id", sub.PhoneNumber.Hex()))
	}
	sub.Number = number

	s.metrics.LifecycleEvents.WithLabelValues(event).Inc()
	return &lifecycleContext{user: user, admin: admin, sub: sub}, nil
}

// bestEffort runs a side effect and swallows its error after logging and counting it.
func (s *LifecycleService) bestEffort(ctx context.Context, event, effect string, fn func() error) {
	if err := fn(); err != nil {
		s.metrics.SideEffectFailures.WithLabelValues(event, effect).Inc()
		s.logger.WithContext(ctx).Error("Lifecycle side effect failed",
			logger.F("event", event),
			logger.F("effect", effect),
			logger.Err(err),
		)
	}
}

func (s *LifecycleService) publish(ctx context.Context, event string, lc *lifecycleContext, days int) {
	payload := SubscriptionEvent{
		Event:          event,
		SubscriptionID: lc.sub.ID.Hex(),
		UserID:         lc.user.ID.Hex(),
		UserEmail:      lc.user.Email,
		Plan:           lc.sub.Plan,
		Status:         lc.sub.Status,
		EndDate:        lc.sub.EndDate,
		Days:           days,
		AutoRenew:      lc.sub.AutoRenew,
	}
	if lc.sub.Number != nil {
		payload.Number = lc.sub.Number.Number
	}

	s.bestEffort(ctx, event, "publish", func() error {
		return s.publisher.PublishEvent(ctx, messaging.SubscriptionEventsExchange, RoutingKey(event), payload)
	})
}

func (s *LifecycleService) Created(ctx context.Context, subscriptionID primitive.ObjectID) error {
	lc, err := s.load(ctx, EventCreated, subscriptionID)
	if err != nil || lc == nil {
		return err
	}

	s.bestEffort(ctx, EventCreated, "notify", func() error {
		return s.notifier.NotifySubscriptionCreated(ctx, lc.user, lc.sub)
	})
	s.bestEffort(ctx, EventCreated, "admin_notify", func() error {
		msg := fmt.Sprintf("%s subscribed to %s on the %s plan", lc.user.Email, numberLabel(lc.sub), lc.sub.Plan)
		return s.notifier.CreateAdminNotification(ctx, lc.admin, "New subscription", msg, models.NotificationSuccess, &lc.sub.ID)
	})
	s.bestEffort(ctx, EventCreated, "email", func() error {
		return s.mailer.SendSubscriptionCreatedEmail(ctx, lc.user, lc.sub, lc.admin)
	})
	s.publish(ctx, EventCreated, lc, 0)
	return nil
}

func (s *LifecycleService) Renewed(ctx context.Context, subscriptionID primitive.ObjectID) error {
	lc, err := s.load(ctx, EventRenewed, subscriptionID)
	if err != nil || lc == nil {
		return err
	}

	s.bestEffort(ctx, EventRenewed, "notify", func() error {
		return s.notifier.NotifySubscriptionRenewed(ctx, lc.user, lc.sub)
	})
	s.bestEffort(ctx, EventRenewed, "email", func() error {
		return s.mailer.SendSubscriptionRenewedEmail(ctx, lc.user, lc.sub, lc.admin)
	})
	s.publish(ctx, EventRenewed, lc, 0)
	return nil
}

func (s *LifecycleService) Cancelled(ctx context.Context, subscriptionID primitive.ObjectID) error {
	lc, err := s.load(ctx, EventCancelled, subscriptionID)
	if err != nil || lc == nil {
		return err
	}

	s.bestEffort(ctx, EventCancelled, "notify", func() error {
		return s.notifier.NotifySubscriptionCancelled(ctx, lc.user, lc.sub)
	})
	s.bestEffort(ctx, EventCancelled, "admin_notify", func() error {
		msg := fmt.Sprintf("%s cancelled the subscription for %s", lc.user.Email, numberLabel(lc.sub))
		return s.notifier.CreateAdminNotification(ctx, lc.admin, "Subscription cancelled", msg, models.NotificationWarning, &lc.sub.ID)
	})
	s.bestEffort(ctx, EventCancelled, "email", func() error {
		return s.mailer.SendSubscriptionCancelledEmail(ctx, lc.user, lc.sub, lc.admin)
	})
	s.publish(ctx, EventCancelled, lc, 0)
	return nil
}

// Expiring sends the renewal reminder once. The flag is reset by Renew.
func (s *LifecycleService) Expiring(ctx context.Context, subscriptionID primitive.ObjectID, days int) error {
	lc, err := s.load(ctx, EventExpiring, subscriptionID)
	if err != nil || lc == nil {
		return err
	}
	if lc.sub.RenewalReminderSent {
		return nil
	}

	s.bestEffort(ctx, EventExpiring, "notify", func() error {
		return s.notifier.NotifySubscriptionExpiring(ctx, lc.user, lc.sub, days)
	})
	s.bestEffort(ctx, EventExpiring, "email", func() error {
		return s.mailer.SendSubscriptionExpiringEmail(ctx, lc.user, lc.sub, lc.admin, days)
	})

	lc.sub.RenewalReminderSent = true
	lc.sub.UpdatedAt = s.now()
	if err := s.subscriptions.Save(ctx, lc.sub); err != nil {
		return fmt.Errorf("failed to mark reminder sent: %w", err)
	}

	s.publish(ctx, EventExpiring, lc, days)
	return nil
}

func (s *LifecycleService) Expired(ctx context.Context, subscriptionID primitive.ObjectID) error {
	lc, err := s.load(ctx, EventExpired, subscriptionID)
	if err != nil || lc == nil {
		return err
	}
	if !lc.sub.Expire(s.now()) {
		return nil
	}
	if err := s.subscriptions.Save(ctx, lc.sub); err != nil {
		return fmt.Errorf("failed to expire subscription: %w", err)
	}

	s.bestEffort(ctx, EventExpired, "notify", func() error {
		return s.notifier.NotifySubscriptionExpired(ctx, lc.user, lc.sub)
	})
	s.bestEffort(ctx, EventExpired, "email", func() error {
		return s.mailer.SendSubscriptionExpiredEmail(ctx, lc.user, lc.sub, lc.admin)
	})
	s.publish(ctx, EventExpired, lc, 0)
	return nil
}

// AutoRenewToggled only writes an in-app notification.
func (s *LifecycleService) AutoRenewToggled(ctx context.Context, subscriptionID primitive.ObjectID, enabled bool) error {
	lc, err := s.load(ctx, EventAutoRenewToggled, subscriptionID)
	if err != nil || lc == nil {
		return err
	}

	s.bestEffort(ctx, EventAutoRenewToggled, "notify", func() error {
		return s.notifier.NotifyAutoRenewToggled(ctx, lc.user, lc.sub, enabled)
	})
	s.publish(ctx, EventAutoRenewToggled, lc, 0)
	return nil
}
