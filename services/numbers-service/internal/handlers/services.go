package handlers

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vanityline/vanityline/pkg/logger"
	pkgmodels "github.com/vanityline/vanityline/pkg/models"
	"github.com/vanityline/vanityline/services/numbers-service/internal/models"
	"github.com/vanityline/vanityline/services/numbers-service/internal/service"
)

// The handlers depend on these narrow views of the service layer so tests can mock them.

type PhoneNumbers interface {
	List(ctx context.Context, filter models.PhoneNumberFilter) ([]*models.PhoneNumber, models.Page, error)
	Get(ctx context.Context, id primitive.ObjectID) (*models.PhoneNumber, error)
	Mine(ctx context.Context, userID primitive.ObjectID) ([]*models.PhoneNumber, error)
	Reserve(ctx context.Context, id, userID primitive.ObjectID) (*models.PhoneNumber, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.PhoneNumberStatus, userID *primitive.ObjectID) (*models.PhoneNumber, error)
	Create(ctx context.Context, req models.CreatePhoneNumberRequest) (*models.PhoneNumber, error)
	BulkCreate(ctx context.Context, reqs []models.CreatePhoneNumberRequest) (*models.BulkCreateResult, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type Subscriptions interface {
	Plans() []models.Plan
	Create(ctx context.Context, userID primitive.ObjectID, req models.CreateSubscriptionRequest) (*models.Subscription, error)
	GetByID(ctx context.Context, id primitive.ObjectID, requester service.Requester) (*models.Subscription, error)
	GetMine(ctx context.Context, userID primitive.ObjectID) ([]*models.Subscription, error)
	GetAll(ctx context.Context, filter models.SubscriptionFilter) ([]*models.Subscription, models.Page, error)
	Renew(ctx context.Context, id primitive.ObjectID, requester service.Requester) (*models.Subscription, error)
	Cancel(ctx context.Context, id primitive.ObjectID, requester service.Requester) (*models.Subscription, error)
	ToggleAutoRenew(ctx context.Context, id primitive.ObjectID, requester service.Requester, enabled bool) (*models.Subscription, error)
	AdminUpdate(ctx context.Context, id primitive.ObjectID, req models.AdminUpdateSubscriptionRequest) (*models.Subscription, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type Payments interface {
	CreatePaymentLink(ctx context.Context, requester service.Requester, req models.CreatePaymentLinkRequest) (*models.PaymentLink, error)
	VerifyPayment(ctx context.Context, reference string, requester service.Requester) (*models.PaymentTransaction, error)
	HandleSuccess(ctx context.Context, reference string, numberID primitive.ObjectID, requester service.Requester) (*models.PaymentSuccessResult, error)
	ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]*models.PaymentTransaction, models.Page, error)
	ReviewTransaction(ctx context.Context, reference string, reviewer service.Requester, notes string) (*models.PaymentTransaction, error)
}

type Notifications interface {
	List(ctx context.Context, recipient primitive.ObjectID, filter models.NotificationFilter) ([]*models.Notification, models.Page, error)
	UnreadCount(ctx context.Context, recipient primitive.ObjectID) (int64, error)
	MarkRead(ctx context.Context, id, recipient primitive.ObjectID) error
	MarkAllRead(ctx context.Context, recipient primitive.ObjectID) (int64, error)
	Delete(ctx context.Context, id, recipient primitive.ObjectID) error
}

type Accounts interface {
	Register(ctx context.Context, req pkgmodels.RegisterRequest) (*pkgmodels.TokenResponse, error)
	Login(ctx context.Context, req pkgmodels.LoginRequest) (*pkgmodels.TokenResponse, error)
	AdminLogin(ctx context.Context, req pkgmodels.LoginRequest) (*pkgmodels.TokenResponse, error)
	Me(ctx context.Context, requester service.Requester) (*pkgmodels.User, error)
	ListUsers(ctx context.Context, page, limit int) ([]*pkgmodels.User, int64, error)
}

type Stats interface {
	AdminStats(ctx context.Context, days int) (*models.AdminStats, error)
}

var (
	_ PhoneNumbers  = (*service.PhoneService)(nil)
	_ Subscriptions = (*service.SubscriptionService)(nil)
	_ Payments      = (*service.PaymentService)(nil)
	_ Notifications = (*service.NotificationService)(nil)
	_ Accounts      = (*service.AuthService)(nil)
	_ Stats         = (*service.StatsService)(nil)
)

type Options struct {
	// Production hides 5xx error details from clients.
	Production   bool
	CookieSecure bool
	Logger       logger.Logger
}
