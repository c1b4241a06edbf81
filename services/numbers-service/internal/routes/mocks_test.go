package routes

import (
	"context"

	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	pkgmodels "github.com/vanityline/vanityline/pkg/models"
	"github.com/vanityline/vanityline/services/numbers-service/internal/models"
	"github.com/vanityline/vanityline/services/numbers-service/internal/service"
)

type MockPhones struct{ mock.Mock }

func (m *MockPhones) List(ctx context.Context, filter models.PhoneNumberFilter) ([]*models.PhoneNumber, models.Page, error) {
	args := m.Called(ctx, filter)
	numbers, _ := args.Get(0).([]*models.PhoneNumber)
	return numbers, args.Get(1).(models.Page), args.Error(2)
}

func (m *MockPhones) Get(ctx context.Context, id primitive.ObjectID) (*models.PhoneNumber, error) {
	args := m.Called(ctx, id)
	number, _ := args.Get(0).(*models.PhoneNumber)
	return number, args.Error(1)
}

func (m *MockPhones) Mine(ctx context.Context, userID primitive.ObjectID) ([]*models.PhoneNumber, error) {
	args := m.Called(ctx, userID)
	numbers, _ := args.Get(0).([]*models.PhoneNumber)
	return numbers, args.Error(1)
}

func (m *MockPhones) Reserve(ctx context.Context, id, userID primitive.ObjectID) (*models.PhoneNumber, error) {
	args := m.Called(ctx, id, userID)
	number, _ := args.Get(0).(*models.PhoneNumber)
	return number, args.Error(1)
}

func (m *MockPhones) UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.PhoneNumberStatus, userID *primitive.ObjectID) (*models.PhoneNumber, error) {
	args := m.Called(ctx, id, status, userID)
	number, _ := args.Get(0).(*models.PhoneNumber)
	return number, args.Error(1)
}

func (m *MockPhones) Create(ctx context.Context, req models.CreatePhoneNumberRequest) (*models.PhoneNumber, error) {
	args := m.Called(ctx, req)
	number, _ := args.Get(0).(*models.PhoneNumber)
	return number, args.Error(1)
}

func (m *MockPhones) BulkCreate(ctx context.Context, reqs []models.CreatePhoneNumberRequest) (*models.BulkCreateResult, error) {
	args := m.Called(ctx, reqs)
	result, _ := args.Get(0).(*models.BulkCreateResult)
	return result, args.Error(1)
}

func (m *MockPhones) Delete(ctx context.Context, id primitive.ObjectID) error {
	return m.Called(ctx, id).Error(0)
}

type MockSubscriptions struct{ mock.Mock }

func (m *MockSubscriptions) Plans() []models.Plan {
	return m.Called().Get(0).([]models.Plan)
}

func (m *MockSubscriptions) Create(ctx context.Context, userID primitive.ObjectID, req models.CreateSubscriptionRequest) (*models.Subscription, error) {
	args := m.Called(ctx, userID, req)
	sub, _ := args.Get(0).(*models.Subscription)
	return sub, args.Error(1)
}

func (m *MockSubscriptions) GetByID(ctx context.Context, id primitive.ObjectID, requester service.Requester) (*models.Subscription, error) {
	args := m.Called(ctx, id, requester)
	sub, _ := args.Get(0).(*models.Subscription)
	return sub, args.Error(1)
}

func (m *MockSubscriptions) GetMine(ctx context.Context, userID primitive.ObjectID) ([]*models.Subscription, error) {
	args := m.Called(ctx, userID)
	subs, _ := args.Get(0).([]*models.Subscription)
	return subs, args.Error(1)
}

func (m *MockSubscriptions) GetAll(ctx context.Context, filter models.SubscriptionFilter) ([]*models.Subscription, models.Page, error) {
	args := m.Called(ctx, filter)
	subs, _ := args.Get(0).([]*models.Subscription)
	return subs, args.Get(1).(models.Page), args.Error(2)
}

func (m *MockSubscriptions) Renew(ctx context.Context, id primitive.ObjectID, requester service.Requester) (*models.Subscription, error) {
	args := m.Called(ctx, id, requester)
	sub, _ := args.Get(0).(*models.Subscription)
	return sub, args.Error(1)
}

func (m *MockSubscriptions) Cancel(ctx context.Context, id primitive.ObjectID, requester service.Requester) (*models.Subscription, error) {
	args := m.Called(ctx, id, requester)
	sub, _ := args.Get(0).(*models.Subscription)
	return sub, args.Error(1)
}

func (m *MockSubscriptions) ToggleAutoRenew(ctx context.Context, id primitive.ObjectID, requester service.Requester, enabled bool) (*models.Subscription, error) {
	args := m.Called(ctx, id, requester, enabled)
	sub, _ := args.Get(0).(*models.Subscription)
	return sub, args.Error(1)
}

func (m *MockSubscriptions) AdminUpdate(ctx context.Context, id primitive.ObjectID, req models.AdminUpdateSubscriptionRequest) (*models.Subscription, error) {
	args := m.Called(ctx, id, req)
	sub, _ := args.Get(0).(*models.Subscription)
	return sub, args.Error(1)
}

func (m *MockSubscriptions) Delete(ctx context.Context, id primitive.ObjectID) error {
	return m.Called(ctx, id).Error(0)
}

type MockPayments struct{ mock.Mock }

func (m *MockPayments) CreatePaymentLink(ctx context.Context, requester service.Requester, req models.CreatePaymentLinkRequest) (*models.PaymentLink, error) {
	args := m.Called(ctx, requester, req)
	link, _ := args.Get(0).(*models.PaymentLink)
	return link, args.Error(1)
}

func (m *MockPayments) VerifyPayment(ctx context.Context, reference string, requester service.Requester) (*models.PaymentTransaction, error) {
	args := m.Called(ctx, reference, requester)
	tx, _ := args.Get(0).(*models.PaymentTransaction)
	return tx, args.Error(1)
}

func (m *MockPayments) HandleSuccess(ctx context.Context, reference string, numberID primitive.ObjectID, requester service.Requester) (*models.PaymentSuccessResult, error) {
	args := m.Called(ctx, reference, numberID, requester)
	result, _ := args.Get(0).(*models.PaymentSuccessResult)
	return result, args.Error(1)
}

func (m *MockPayments) ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]*models.PaymentTransaction, models.Page, error) {
	args := m.Called(ctx, filter)
	txs, _ := args.Get(0).([]*models.PaymentTransaction)
	return txs, args.Get(1).(models.Page), args.Error(2)
}

func (m *MockPayments) ReviewTransaction(ctx context.Context, reference string, reviewer service.Requester, notes string) (*models.PaymentTransaction, error) {
	args := m.Called(ctx, reference, reviewer, notes)
	tx, _ := args.Get(0).(*models.PaymentTransaction)
	return tx, args.Error(1)
}

type MockNotifications struct{ mock.Mock }

func (m *MockNotifications) List(ctx context.Context, recipient primitive.ObjectID, filter models.NotificationFilter) ([]*models.Notification, models.Page, error) {
	args := m.Called(ctx, recipient, filter)
	items, _ := args.Get(0).([]*models.Notification)
	return items, args.Get(1).(models.Page), args.Error(2)
}

func (m *MockNotifications) UnreadCount(ctx context.Context, recipient primitive.ObjectID) (int64, error) {
	args := m.Called(ctx, recipient)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotifications) MarkRead(ctx context.Context, id, recipient primitive.ObjectID) error {
	return m.Called(ctx, id, recipient).Error(0)
}

func (m *MockNotifications) MarkAllRead(ctx context.Context, recipient primitive.ObjectID) (int64, error) {
	args := m.Called(ctx, recipient)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotifications) Delete(ctx context.Context, id, recipient primitive.ObjectID) error {
	return m.Called(ctx, id, recipient).Error(0)
}

type MockAccounts struct{ mock.Mock }

func (m *MockAccounts) Register(ctx context.Context, req pkgmodels.RegisterRequest) (*pkgmodels.TokenResponse, error) {
	args := m.Called(ctx, req)
	token, _ := args.Get(0).(*pkgmodels.TokenResponse)
	return token, args.Error(1)
}

func (m *MockAccounts) Login(ctx context.Context, req pkgmodels.LoginRequest) (*pkgmodels.TokenResponse, error) {
	args := m.Called(ctx, req)
	token, _ := args.Get(0).(*pkgmodels.TokenResponse)
	return token, args.Error(1)
}

func (m *MockAccounts) AdminLogin(ctx context.Context, req pkgmodels.LoginRequest) (*pkgmodels.TokenResponse, error) {
	args := m.Called(ctx, req)
	token, _ := args.Get(0).(*pkgmodels.TokenResponse)
	return token, args.Error(1)
}

func (m *MockAccounts) Me(ctx context.Context, requester service.Requester) (*pkgmodels.User, error) {
	args := m.Called(ctx, requester)
	user, _ := args.Get(0).(*pkgmodels.User)
	return user, args.Error(1)
}

func (m *MockAccounts) ListUsers(ctx context.Context, page, limit int) ([]*pkgmodels.User, int64, error) {
	args := m.Called(ctx, page, limit)
	users, _ := args.Get(0).([]*pkgmodels.User)
	return users, args.Get(1).(int64), args.Error(2)
}

type MockStats struct{ mock.Mock }

func (m *MockStats) AdminStats(ctx context.Context, days int) (*models.AdminStats, error) {
	args := m.Called(ctx, days)
	stats, _ := args.Get(0).(*models.AdminStats)
	return stats, args.Error(1)
}
