package service

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vanityline/vanityline/pkg/logger"
	pkgmodels "github.com/vanityline/vanityline/pkg/models"
	"github.com/vanityline/vanityline/services/numbers-service/internal/models"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// fixture wires every service over in-memory repositories and mocked side effects.
type fixture struct {
	numbers       *memPhoneRepo
	subs          *memSubscriptionRepo
	users         *memAccountRepo
	admins        *memAccountRepo
	transactions  *memTransactionRepo
	links         *memLinkRepo
	notifications *memNotificationRepo

	notifier  *MockNotifier
	mailer    *MockMailer
	publisher *MockPublisher
	gateway   *MockGateway

	metrics       *Metrics
	phones        *PhoneService
	lifecycle     *LifecycleService
	subscriptions *SubscriptionService
	payments      *PaymentService

	admin *pkgmodels.User
	now   time.Time
}

func newFixture() *fixture {
	f := &fixture{
		numbers:       newMemPhoneRepo(),
		subs:          newMemSubscriptionRepo(),
		users:         newMemAccountRepo(),
		admins:        newMemAccountRepo(),
		transactions:  newMemTransactionRepo(),
		links:         newMemLinkRepo(),
		notifications: &memNotificationRepo{},
		notifier:      new(MockNotifier),
		mailer:        new(MockMailer),
		publisher:     new(MockPublisher),
		gateway:       new(MockGateway),
		metrics:       NewMetrics(prometheus.NewRegistry()),
		now:           testNow,
	}
	log := logger.NewNop()
	clock := func() time.Time { return f.now }
	plans := models.DefaultPlanCatalog()

	f.phones = NewPhoneService(f.numbers, f.users, f.metrics, log)
	f.phones.now = clock

	f.lifecycle = NewLifecycleService(f.users, f.admins, f.subs, f.numbers, f.notifier, f.mailer, f.publisher, f.metrics, log)
	f.lifecycle.now = clock

	f.subscriptions = NewSubscriptionService(f.subs, f.numbers, f.phones, f.lifecycle, nil, plans, f.metrics, log)
	f.subscriptions.now = clock

	f.payments = NewPaymentService(f.gateway, f.transactions, f.links, f.phones, f.subscriptions, nil, plans,
		PaymentServiceConfig{ClientURL: "https://app.example.com/", DefaultCurrency: "NGN"}, f.metrics, log)
	f.payments.now = clock

	f.admin = &pkgmodels.User{
		Email:     "admin@example.com",
		FirstName: "Ada",
		Role:      pkgmodels.RoleAdmin,
		IsActive:  true,
		CreatedAt: testNow.Add(-time.Hour),
	}
	if err := f.admins.Create(context.Background(), f.admin); err != nil {
		panic(err)
	}
	return f
}

// allowSideEffects lets every notifier, mailer and publisher call succeed. Expectations
// registered before it take precedence.
func (f *fixture) allowSideEffects() {
	for _, method := range []string{
		"NotifySubscriptionCreated", "NotifySubscriptionRenewed", "NotifySubscriptionCancelled", "NotifySubscriptionExpired",
	} {
		f.notifier.On(method, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	}
	f.notifier.On("NotifySubscriptionExpiring", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	f.notifier.On("NotifyAutoRenewToggled", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	f.notifier.On("CreateAdminNotification", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	for _, method := range []string{
		"SendSubscriptionCreatedEmail", "SendSubscriptionRenewedEmail", "SendSubscriptionCancelledEmail", "SendSubscriptionExpiredEmail",
	} {
		f.mailer.On(method, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	}
	f.mailer.On("SendSubscriptionExpiringEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	f.publisher.On("PublishEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
}

func (f *fixture) addUser(email string) *pkgmodels.User {
	u := &pkgmodels.User{
		Email:        email,
		FirstName:    "Test",
		LastName:     "User",
		Role:         pkgmodels.RoleUser,
		PhoneNumbers: []primitive.ObjectID{},
		IsActive:     true,
		CreatedAt:    testNow,
	}
	if err := f.users.Create(context.Background(), u); err != nil {
		panic(err)
	}
	return u
}

func (f *fixture) addNumber(number string) *models.PhoneNumber {
	p, err := models.NewPhoneNumber(number, models.TypeTollFree, 15000, "", testNow)
	if err != nil {
		panic(err)
	}
	if err := f.numbers.Create(context.Background(), p); err != nil {
		panic(err)
	}
	return p
}

// addSubscription stores an active subscription for user on number ending at end.
func (f *fixture) addSubscription(user *pkgmodels.User, number *models.PhoneNumber, end time.Time) *models.Subscription {
	sub := &models.Subscription{
		User:        user.ID,
		PhoneNumber: number.ID,
		Plan:        models.PlanStandard,
		Status:      models.SubscriptionActive,
		StartDate:   end.AddDate(0, 0, -45),
		EndDate:     end,
		Price:       10000,
		CreatedAt:   testNow,
		UpdatedAt:   testNow,
	}
	if err := f.subs.Create(context.Background(), sub); err != nil {
		panic(err)
	}
	return sub
}

func requesterFor(u *pkgmodels.User) Requester {
	return Requester{ID: u.ID, Email: u.Email, Admin: u.IsAdmin()}
}
