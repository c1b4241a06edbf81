package service

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	pkgmodels "github.com/vanityline/vanityline/pkg/models"
	"github.com/vanityline/vanityline/services/numbers-service/internal/models"
)

// Repository contracts. The Mongo implementations live in internal/repository; unit tests use
// in-memory fakes.

type PhoneNumberRepository interface {
	Create(ctx context.Context, p *models.PhoneNumber) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.PhoneNumber, error)
	FindByNumber(ctx context.Context, number string) (*models.PhoneNumber, error)
	List(ctx context.Context, filter models.PhoneNumberFilter) ([]*models.PhoneNumber, int64, error)
	FindByUser(ctx context.Context, userID primitive.ObjectID) ([]*models.PhoneNumber, error)
	FindExpiredReservations(ctx context.Context, now time.Time) ([]*models.PhoneNumber, error)
	Save(ctx context.Context, p *models.PhoneNumber) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	CountByStatus(ctx context.Context) (map[models.PhoneNumberStatus]int64, error)
}

type SubscriptionRepository interface {
	Create(ctx context.Context, s *models.Subscription) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Subscription, error)
	FindActive(ctx context.Context, userID, numberID primitive.ObjectID) (*models.Subscription, error)
	FindByUser(ctx context.Context, userID primitive.ObjectID) ([]*models.Subscription, error)
	List(ctx context.Context, filter models.SubscriptionFilter) ([]*models.Subscription, int64, error)
	FindExpired(ctx context.Context, now time.Time) ([]*models.Subscription, error)
	FindExpiringBetween(ctx context.Context, start, end time.Time) ([]*models.Subscription, error)
	Save(ctx context.Context, s *models.Subscription) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	CountByStatus(ctx context.Context) (map[models.SubscriptionStatus]int64, error)
}

// AccountRepository serves both users and admins.
type AccountRepository interface {
	Create(ctx context.Context, u *pkgmodels.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*pkgmodels.User, error)
	FindByEmail(ctx context.Context, email string) (*pkgmodels.User, error)
	FindPrimary(ctx context.Context) (*pkgmodels.User, error)
	List(ctx context.Context, page, limit int) ([]*pkgmodels.User, int64, error)
	AddPhoneNumber(ctx context.Context, userID, numberID primitive.ObjectID) error
	PullPhoneNumber(ctx context.Context, userID, numberID primitive.ObjectID) error
	UpdateLastLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error
}

type PaymentTransactionRepository interface {
	Create(ctx context.Context, tx *models.PaymentTransaction) error
	FindByReference(ctx context.Context, reference string) (*models.PaymentTransaction, error)
	List(ctx context.Context, filter models.TransactionFilter) ([]*models.PaymentTransaction, int64, error)
	SuccessfulSince(ctx context.Context, since time.Time) ([]*models.PaymentTransaction, error)
	Review(ctx context.Context, reference string, reviewer primitive.ObjectID, notes string, at time.Time) (*models.PaymentTransaction, error)
}

type PaymentLinkRepository interface {
	Create(ctx context.Context, link *models.PaymentLink) error
	FindByReference(ctx context.Context, reference string) (*models.PaymentLink, error)
	MarkCompleted(ctx context.Context, reference string, at time.Time) error
}

type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListForRecipient(ctx context.Context, recipient primitive.ObjectID, filter models.NotificationFilter) ([]*models.Notification, int64, error)
	CountUnread(ctx context.Context, recipient primitive.ObjectID) (int64, error)
	MarkRead(ctx context.Context, id, recipient primitive.ObjectID) error
	MarkAllRead(ctx context.Context, recipient primitive.ObjectID) (int64, error)
	Delete(ctx context.Context, id, recipient primitive.ObjectID) error
}

// Transactor runs fn atomically when the database supports it. *database.MongoDB implements it.
// TransactionsEnabled reports whether a failed fn rolls back its writes.
type Transactor interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	TransactionsEnabled() bool
}

type noTransactions struct{}

func (noTransactions) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (noTransactions) TransactionsEnabled() bool {
	return false
}

// Notifier writes in-app notifications for lifecycle events.
type Notifier interface {
	NotifySubscriptionCreated(ctx context.Context, user *pkgmodels.User, sub *models.Subscription) error
	NotifySubscriptionRenewed(ctx context.Context, user *pkgmodels.User, sub *models.Subscription) error
	NotifySubscriptionCancelled(ctx context.Context, user *pkgmodels.User, sub *models.Subscription) error
	NotifySubscriptionExpiring(ctx context.Context, user *pkgmodels.User, sub *models.Subscription, days int) error
	NotifySubscriptionExpired(ctx context.Context, user *pkgmodels.User, sub *models.Subscription) error
	NotifyAutoRenewToggled(ctx context.Context, user *pkgmodels.User, sub *models.Subscription, enabled bool) error
	CreateAdminNotification(ctx context.Context, admin *pkgmodels.User, title, message string, kind models.NotificationType, related *primitive.ObjectID) error
}

// Mailer sends the lifecycle emails. admin may be used as the reply-to contact.
type Mailer interface {
	SendSubscriptionCreatedEmail(ctx context.Context, user *pkgmodels.User, sub *models.Subscription, admin *pkgmodels.User) error
	SendSubscriptionRenewedEmail(ctx context.Context, user *pkgmodels.User, sub *models.Subscription, admin *pkgmodels.User) error
	SendSubscriptionCancelledEmail(ctx context.Context, user *pkgmodels.User, sub *models.Subscription, admin *pkgmodels.User) error
	SendSubscriptionExpiringEmail(ctx context.Context, user *pkgmodels.User, sub *models.Subscription, admin *pkgmodels.User, days int) error
	SendSubscriptionExpiredEmail(ctx context.Context, user *pkgmodels.User, sub *models.Subscription, admin *pkgmodels.User) error
}

// Requester is the authenticated caller of a service operation.
type Requester struct {
	ID    primitive.ObjectID
	Email string
	Admin bool
}

// CanAccess reports whether the requester may act on a resource owned by owner.
func (r Requester) CanAccess(owner primitive.ObjectID) bool {
	return r.Admin || r.ID == owner
}
