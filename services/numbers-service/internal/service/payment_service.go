package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vanityline/vanityline/pkg/database"
	"github.com/vanityline/vanityline/pkg/logger"
	pkgmodels "github.com/vanityline/vanityline/pkg/models"
	"github.com/vanityline/vanityline/services/numbers-service/internal/models"
)

type PaymentService struct {
	gateway       PaymentGateway
	transactions  PaymentTransactionRepository
	links         PaymentLinkRepository
	phones        *PhoneService
	subscriptions *SubscriptionService
	cache         PaymentCache
	plans         models.PlanCatalog
	clientURL     string
	currency      string
	metrics       *Metrics
	logger        logger.Logger
	now           func() time.Time
}

type PaymentServiceConfig struct {
	ClientURL       string
	DefaultCurrency string
}

func NewPaymentService(
	gateway PaymentGateway,
	transactions PaymentTransactionRepository,
	links PaymentLinkRepository,
	phones *PhoneService,
	subscriptions *SubscriptionService,
	paymentCache PaymentCache,
	plans models.PlanCatalog,
	cfg PaymentServiceConfig,
	metrics *Metrics,
	log logger.Logger,
) *PaymentService {
	if paymentCache == nil {
		paymentCache = NopPaymentCache{}
	}
	return &PaymentService{
		gateway:       gateway,
		transactions:  transactions,
		links:         links,
		phones:        phones,
		subscriptions: subscriptions,
		cache:         paymentCache,
		plans:         plans,
		clientURL:     strings.TrimRight(cfg.ClientURL, "/"),
		currency:      cfg.DefaultCurrency,
		metrics:       metrics,
		logger:        log,
		now:           time.Now,
	}
}

// CreatePaymentLink starts a hosted checkout for a number and plan. Amount and currency come
// from the plan catalog; only admins may override them.
func (s *PaymentService) CreatePaymentLink(ctx context.Context, requester Requester, req models.CreatePaymentLinkRequest) (*models.PaymentLink, error) {
	numberID, err := primitive.ObjectIDFromHex(req.PhoneNumberID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid phone number id", models.ErrValidation)
	}
	plan, err := s.plans.Get(req.Plan)
	if err != nil {
		return nil, err
	}

	number, err := s.phones.Get(ctx, numberID)
	if err != nil {
		return nil, err
	}
	if !number.AvailableFor(requester.ID) {
		return nil, models.ErrNumberNotAvailable
	}

	amount := plan.Price
	currency := firstNonEmpty(plan.Currency, s.currency)
	if requester.Admin {
		if req.Amount != nil {
			amount = *req.Amount
		}
		currency = firstNonEmpty(req.Currency, currency)
	}

	reference := uuid.NewString()
	resp, err := s.gateway.Initialize(ctx, InitializeRequest{
		Email:       requester.Email,
		Amount:      amount,
		Currency:    currency,
		Reference:   reference,
		CallbackURL: s.callbackURL(reference, numberID),
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	link := &models.PaymentLink{
		Reference:        reference,
		User:             requester.ID,
		PhoneNumber:      numberID,
		Plan:             plan.Name,
		Amount:           amount,
		Currency:         currency,
		Email:            requester.Email,
		AuthorizationURL: resp.AuthorizationURL,
		AccessCode:       resp.AccessCode,
		Status:           models.PaymentLinkPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.links.Create(ctx, link); err != nil {
		return nil, fmt.Errorf("failed to store payment link: %w", err)
	}

	s.logger.WithContext(ctx).Info("Payment link created",
		logger.F("reference", reference),
		logger.F("number", number.Number),
		logger.F("plan", plan.Name),
	)
	return link, nil
}

func (s *PaymentService) callbackURL(reference string, numberID primitive.ObjectID) string {
	return fmt.Sprintf("%s/payment/callback?reference=%s&numberId=%s", s.clientURL, reference, numberID.Hex())
}

// VerifyPayment resolves a reference from the cache, then the local store, then the gateway.
// Non-admins may only verify payments made with their own email.
func (s *PaymentService) VerifyPayment(ctx context.Context, reference string, requester Requester) (*models.PaymentTransaction, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, fmt.Errorf("%w: reference is required", models.ErrValidation)
	}
	log := s.logger.WithContext(ctx).WithField("reference", reference)

	cached, err := s.cache.Get(ctx, reference)
	if err != nil {
		log.Warn("Payment cache lookup failed", logger.Err(err))
	}
	if cached != nil {
		s.metrics.PaymentCache.WithLabelValues("hit").Inc()
		return s.authorize(cached, requester)
	}
	s.metrics.PaymentCache.WithLabelValues("miss").Inc()

	stored, err := s.transactions.FindByReference(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment transaction: %w", err)
	}
	if stored != nil {
		s.store(ctx, stored)
		return s.authorize(stored, requester)
	}

	verified, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(&models.PaymentTransaction{Customer: verified.Customer}, requester); err != nil {
		return nil, err
	}

	now := s.now()
	tx := &models.PaymentTransaction{
		Reference:       verified.Reference,
		Status:          verified.Status,
		Amount:          verified.Amount,
		Currency:        verified.Currency,
		TransactionDate: verified.PaidAt,
		Customer:        verified.Customer,
		Channel:         verified.Channel,
		Verified:        true,
		VerifiedAt:      &now,
		GatewayResponse: verified.Raw,
		CreatedAt:       now,
	}
	if !requester.ID.IsZero() {
		id := requester.ID
		tx.User = &id
	}
	if link, err := s.links.FindByReference(ctx, reference); err == nil && link != nil {
		tx.Plan = link.Plan
	}

	// Pending and failed charges can still change at the gateway, so only a success is final.
	if !tx.Successful() {
		log.Info("Payment not settled", logger.F("status", tx.Status))
		return tx, nil
	}

	if err := s.transactions.Create(ctx, tx); err != nil {
		if !errors.Is(err, database.ErrDuplicate) {
			return nil, fmt.Errorf("failed to store payment transaction: %w", err)
		}
		// A concurrent verify stored it first.
		existing, findErr := s.transactions.FindByReference(ctx, reference)
		if findErr != nil {
			return nil, fmt.Errorf("failed to load payment transaction: %w", findErr)
		}
		if existing == nil {
			return nil, models.ErrPaymentNotFound
		}
		tx = existing
	}

	s.store(ctx, tx)
	log.Info("Payment verified", logger.F("status", tx.Status), logger.F("amount", tx.Amount))
	return tx, nil
}

func (s *PaymentService) authorize(tx *models.PaymentTransaction, requester Requester) (*models.PaymentTransaction, error) {
	if requester.Admin {
		return tx, nil
	}
	if pkgmodels.NormalizeEmail(tx.Customer.Email) != pkgmodels.NormalizeEmail(requester.Email) {
		return nil, models.ErrForbidden
	}
	return tx, nil
}

func (s *PaymentService) store(ctx context.Context, tx *models.PaymentTransaction) {
	if err := s.cache.Set(ctx, tx); err != nil {
		s.logger.WithContext(ctx).Warn("Failed to cache payment transaction",
			logger.F("reference", tx.Reference),
			logger.Err(err),
		)
	}
}

// HandleSuccess turns a paid link into an active subscription on the number it was created for.
func (s *PaymentService) HandleSuccess(ctx context.Context, reference string, numberID primitive.ObjectID, requester Requester) (*models.PaymentSuccessResult, error) {
	link, err := s.links.FindByReference(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment link: %w", err)
	}
	if link == nil {
		return nil, models.ErrPaymentNotFound
	}
	if !requester.CanAccess(link.User) {
		return nil, models.ErrForbidden
	}
	if link.PhoneNumber != numberID {
		return nil, fmt.Errorf("%w: payment was made for a different number", models.ErrValidation)
	}

	tx, err := s.VerifyPayment(ctx, reference, requester)
	if err != nil {
		return nil, err
	}
	if !tx.Successful() {
		return nil, fmt.Errorf("%w: status is %s", models.ErrPaymentNotSuccess, tx.Status)
	}
	if !strings.EqualFold(tx.Currency, link.Currency) || tx.Amount < link.Amount {
		return nil, fmt.Errorf("%w: charged %.2f %s, expected %.2f %s",
			models.ErrPaymentNotSuccess, tx.Amount, tx.Currency, link.Amount, link.Currency)
	}

	price := link.Amount
	sub, number, err := s.subscriptions.Subscribe(ctx, SubscribeParams{
		UserID:           link.User,
		NumberID:         numberID,
		Plan:             link.Plan,
		PaymentMethod:    firstNonEmpty(tx.Channel, "budpay"),
		PaymentReference: reference,
		Price:            &price,
		BeforeCreate: func(ctx context.Context) error {
			return s.links.MarkCompleted(ctx, reference, s.now())
		},
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).Info("Payment completed",
		logger.F("reference", reference),
		logger.F("subscription_id", sub.ID.Hex()),
		logger.F("number", number.Number),
	)
	return &models.PaymentSuccessResult{Subscription: sub, PhoneNumber: number, Transaction: tx}, nil
}

func (s *PaymentService) ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]*models.PaymentTransaction, models.Page, error) {
	txs, total, err := s.transactions.List(ctx, filter)
	if err != nil {
		return nil, models.Page{}, fmt.Errorf("failed to list payment transactions: %w", err)
	}
	return txs, models.NewPage(filter.Page, filter.Limit, total), nil
}

func (s *PaymentService) ReviewTransaction(ctx context.Context, reference string, reviewer Requester, notes string) (*models.PaymentTransaction, error) {
	tx, err := s.transactions.Review(ctx, reference, reviewer.ID, strings.TrimSpace(notes), s.now())
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
