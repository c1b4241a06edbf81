package service

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vanityline/vanityline/pkg/logger"
	"github.com/vanityline/vanityline/services/numbers-service/internal/models"
)

// LifecycleEvents is the subset of LifecycleService that request paths fire.
type LifecycleEvents interface {
	Created(ctx context.Context, subscriptionID primitive.ObjectID) error
	Renewed(ctx context.Context, subscriptionID primitive.ObjectID) error
	Cancelled(ctx context.Context, subscriptionID primitive.ObjectID) error
	AutoRenewToggled(ctx context.Context, subscriptionID primitive.ObjectID, enabled bool) error
}

type SubscriptionService struct {
	subscriptions SubscriptionRepository
	numbers       PhoneNumberRepository
	phones        *PhoneService
	lifecycle     LifecycleEvents
	tx            Transactor
	plans         models.PlanCatalog
	metrics       *Metrics
	logger        logger.Logger
	now           func() time.Time
}

func NewSubscriptionService(
	subscriptions SubscriptionRepository,
	numbers PhoneNumberRepository,
	phones *PhoneService,
	lifecycle LifecycleEvents,
	tx Transactor,
	plans models.PlanCatalog,
	metrics *Metrics,
	log logger.Logger,
) *SubscriptionService {
	if tx == nil {
		tx = noTransactions{}
	}
	return &SubscriptionService{
		subscriptions: subscriptions,
		numbers:       numbers,
		phones:        phones,
		lifecycle:     lifecycle,
		tx:            tx,
		plans:         plans,
		metrics:       metrics,
		logger:        log,
		now:           time.Now,
	}
}

func (s *SubscriptionService) Plans() []models.Plan {
	return s.plans.List()
}

// SubscribeParams describes a new subscription; both the direct endpoint and the payment flow
// go through Subscribe.
type SubscribeParams struct {
	UserID           primitive.ObjectID
	NumberID         primitive.ObjectID
	Plan             models.PlanName
	AutoRenew        bool
	PaymentMethod    string
	PaymentReference string
	Price            *float64
	// BeforeCreate runs after the number is activated, ahead of the subscription insert.
	BeforeCreate func(ctx context.Context) error
}

// Subscribe activates the number and creates the subscription. Both writes share a transaction
// when the database supports it. Otherwise the number is flipped first, guarded by the version it
// was read at, and put back if any later write fails.
func (s *SubscriptionService) Subscribe(ctx context.Context, p SubscribeParams) (*models.Subscription, *models.PhoneNumber, error) {
	plan, err := s.plans.Get(p.Plan)
	if err != nil {
		return nil, nil, err
	}

	var (
		sub    *models.Subscription
		number *models.PhoneNumber
	)
	err = s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.phones.Get(ctx, p.NumberID)
		if err != nil {
			return err
		}
		if !current.AvailableFor(p.UserID) {
			return models.ErrNumberNotAvailable
		}

		existing, err := s.subscriptions.FindActive(ctx, p.UserID, p.NumberID)
		if err != nil {
			return fmt.Errorf("failed to check active subscription: %w", err)
		}
		if existing != nil {
			return models.ErrAlreadySubscribed
		}

		sub, err = models.NewSubscription(models.NewSubscriptionParams{
			User:             p.UserID,
			PhoneNumber:      p.NumberID,
			Plan:             plan,
			AutoRenew:        p.AutoRenew,
			PaymentMethod:    p.PaymentMethod,
			PaymentReference: p.PaymentReference,
			Price:            p.Price,
		}, s.now())
		if err != nil {
			return err
		}

		previous := *current
		if err := s.phones.transition(ctx, current, models.NumberActive, &p.UserID); err != nil {
			return err
		}
		number = current

		if err := s.finishSubscribe(ctx, p, sub); err != nil {
			if !s.tx.TransactionsEnabled() {
				if restoreErr := s.phones.restore(ctx, current, previous); restoreErr != nil {
					s.logger.WithContext(ctx).Error("Failed to restore phone number after subscribe failed",
						logger.F("phone_number_id", current.ID.Hex()),
						logger.Err(restoreErr),
					)
				}
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	sub.Number = number
	s.metrics.SubscriptionsCreated.WithLabelValues(string(sub.Plan)).Inc()
	s.fire(ctx, EventCreated, sub.ID, func() error { return s.lifecycle.Created(ctx, sub.ID) })
	return sub, number, nil
}

func (s *SubscriptionService) finishSubscribe(ctx context.Context, p SubscribeParams, sub *models.Subscription) error {
	if p.BeforeCreate != nil {
		if err := p.BeforeCreate(ctx); err != nil {
			return err
		}
	}
	return s.subscriptions.Create(ctx, sub)
}

func (s *SubscriptionService) Create(ctx context.Context, userID primitive.ObjectID, req models.CreateSubscriptionRequest) (*models.Subscription, error) {
	numberID, err := primitive.ObjectIDFromHex(req.PhoneNumberID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid phone number id", models.ErrValidation)
	}

	sub, _, err := s.Subscribe(ctx, SubscribeParams{
		UserID:           userID,
		NumberID:         numberID,
		Plan:             req.Plan,
		AutoRenew:        req.AutoRenew,
		PaymentMethod:    req.PaymentMethod,
		PaymentReference: req.PaymentReference,
	})
	return sub, err
}

// fire runs a lifecycle event after the request's own writes have succeeded. A failure here
// never fails the request.
func (s *SubscriptionService) fire(ctx context.Context, event string, id primitive.ObjectID, fn func() error) {
	if err := fn(); err != nil {
		s.logger.WithContext(ctx).Error("Failed to dispatch lifecycle event",
			logger.F("event", event),
			logger.F("subscription_id", id.Hex()),
			logger.Err(err),
		)
	}
}

func (s *SubscriptionService) load(ctx context.Context, id primitive.ObjectID, requester Requester) (*models.Subscription, error) {
	sub, err := s.subscriptions.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	if sub == nil {
		return nil, models.ErrSubscriptionNotFound
	}
	if !requester.CanAccess(sub.User) {
		return nil, models.ErrForbidden
	}
	return sub, nil
}

func (s *SubscriptionService) populate(ctx context.Context, subs ...*models.Subscription) error {
	for _, sub := range subs {
		number, err := s.numbers.FindByID(ctx, sub.PhoneNumber)
		if err != nil {
			return fmt.Errorf("failed to load phone number: %w", err)
		}
		sub.Number = number
	}
	return nil
}

func (s *SubscriptionService) GetByID(ctx context.Context, id primitive.ObjectID, requester Requester) (*models.Subscription, error) {
	sub, err := s.load(ctx, id, requester)
	if err != nil {
		return nil, err
	}
	if err := s.populate(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *SubscriptionService) GetMine(ctx context.Context, userID primitive.ObjectID) ([]*models.Subscription, error) {
	subs, err := s.subscriptions.FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	if err := s.populate(ctx, subs...); err != nil {
		return nil, err
	}
	return subs, nil
}

func (s *SubscriptionService) GetAll(ctx context.Context, filter models.SubscriptionFilter) ([]*models.Subscription, models.Page, error) {
	subs, total, err := s.subscriptions.List(ctx, filter)
	if err != nil {
		return nil, models.Page{}, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	if err := s.populate(ctx, subs...); err != nil {
		return nil, models.Page{}, err
	}
	return subs, models.NewPage(filter.Page, filter.Limit, total), nil
}

func (s *SubscriptionService) Renew(ctx context.Context, id primitive.ObjectID, requester Requester) (*models.Subscription, error) {
	sub, err := s.load(ctx, id, requester)
	if err != nil {
		return nil, err
	}
	plan, err := s.plans.Get(sub.Plan)
	if err != nil {
		return nil, err
	}

	if err := sub.Renew(plan, s.now()); err != nil {
		return nil, err
	}
	if err := s.subscriptions.Save(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to renew subscription: %w", err)
	}

	s.fire(ctx, EventRenewed, sub.ID, func() error { return s.lifecycle.Renewed(ctx, sub.ID) })
	return sub, nil
}

// Cancel is idempotent. The event only fires on the first call.
func (s *SubscriptionService) Cancel(ctx context.Context, id primitive.ObjectID, requester Requester) (*models.Subscription, error) {
	sub, err := s.load(ctx, id, requester)
	if err != nil {
		return nil, err
	}
	alreadyCancelled := sub.Status == models.SubscriptionCancelled

	sub.Cancel(s.now())
	if err := s.subscriptions.Save(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to cancel subscription: %w", err)
	}

	if !alreadyCancelled {
		s.fire(ctx, EventCancelled, sub.ID, func() error { return s.lifecycle.Cancelled(ctx, sub.ID) })
	}
	return sub, nil
}

func (s *SubscriptionService) ToggleAutoRenew(ctx context.Context, id primitive.ObjectID, requester Requester, enabled bool) (*models.Subscription, error) {
	sub, err := s.load(ctx, id, requester)
	if err != nil {
		return nil, err
	}

	sub.AutoRenew = enabled
	sub.UpdatedAt = s.now()
	if err := s.subscriptions.Save(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to update auto-renew: %w", err)
	}

	s.fire(ctx, EventAutoRenewToggled, sub.ID, func() error { return s.lifecycle.AutoRenewToggled(ctx, sub.ID, enabled) })
	return sub, nil
}

func (s *SubscriptionService) AdminUpdate(ctx context.Context, id primitive.ObjectID, req models.AdminUpdateSubscriptionRequest) (*models.Subscription, error) {
	sub, err := s.load(ctx, id, Requester{Admin: true})
	if err != nil {
		return nil, err
	}
	now := s.now()

	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", models.ErrValidation, *req.Status)
		}
		if *req.Status == models.SubscriptionCancelled {
			sub.Cancel(now)
		} else {
			sub.Status = *req.Status
		}
	}
	if req.EndDate != nil {
		if !req.EndDate.After(sub.StartDate) {
			return nil, fmt.Errorf("%w: end date must be after start date", models.ErrValidation)
		}
		sub.EndDate = *req.EndDate
	}
	if req.AutoRenew != nil {
		sub.AutoRenew = *req.AutoRenew
	}
	if req.MinutesUsed != nil {
		if *req.MinutesUsed < 0 {
			return nil, fmt.Errorf("%w: minutes used must not be negative", models.ErrValidation)
		}
		sub.MinutesUsed = *req.MinutesUsed
	}
	sub.UpdatedAt = now

	if err := s.subscriptions.Save(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to update subscription: %w", err)
	}
	return sub, nil
}

func (s *SubscriptionService) Delete(ctx context.Context, id primitive.ObjectID) error {
	return s.subscriptions.Delete(ctx, id)
}
