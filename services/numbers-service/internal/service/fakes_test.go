package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vanityline/vanityline/pkg/database"
	pkgmodels "github.com/vanityline/vanityline/pkg/models"
	"github.com/vanityline/vanityline/services/numbers-service/internal/models"
)

// In-memory repositories. They copy on the way in and out so tests see the same aliasing
// behaviour as the Mongo implementations.

type memPhoneRepo struct {
	mu      sync.Mutex
	items   map[primitive.ObjectID]models.PhoneNumber
	saves   int
	saveErr error
}

func newMemPhoneRepo() *memPhoneRepo {
	return &memPhoneRepo{items: make(map[primitive.ObjectID]models.PhoneNumber)}
}

func (r *memPhoneRepo) Create(_ context.Context, p *models.PhoneNumber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.Number == p.Number {
			return models.ErrDuplicateNumber
		}
	}
	p.ID = primitive.NewObjectID()
	p.Version = 0
	r.items[p.ID] = *p
	return nil
}

func (r *memPhoneRepo) get(id primitive.ObjectID) *models.PhoneNumber {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return nil
	}
	return &p
}

func (r *memPhoneRepo) FindByID(_ context.Context, id primitive.ObjectID) (*models.PhoneNumber, error) {
	return r.get(id), nil
}

func (r *memPhoneRepo) FindByNumber(_ context.Context, number string) (*models.PhoneNumber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.items {
		if p.Number == number {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (r *memPhoneRepo) all(match func(models.PhoneNumber) bool) []*models.PhoneNumber {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.PhoneNumber, 0)
	for _, p := range r.items {
		if match(p) {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

func (r *memPhoneRepo) List(_ context.Context, f models.PhoneNumberFilter) ([]*models.PhoneNumber, int64, error) {
	out := r.all(func(p models.PhoneNumber) bool {
		return (f.Status == "" || p.Status == f.Status) && (f.Type == "" || p.Type == f.Type)
	})
	return out, int64(len(out)), nil
}

func (r *memPhoneRepo) FindByUser(_ context.Context, userID primitive.ObjectID) ([]*models.PhoneNumber, error) {
	return r.all(func(p models.PhoneNumber) bool { return p.IsOwnedBy(userID) }), nil
}

func (r *memPhoneRepo) FindExpiredReservations(_ context.Context, now time.Time) ([]*models.PhoneNumber, error) {
	return r.all(func(p models.PhoneNumber) bool { return p.ReservationExpired(now) }), nil
}

func (r *memPhoneRepo) Save(_ context.Context, p *models.PhoneNumber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	stored, ok := r.items[p.ID]
	if !ok || stored.Version != p.Version {
		return models.ErrConcurrentUpdate
	}
	p.Version++
	r.items[p.ID] = *p
	r.saves++
	return nil
}

func (r *memPhoneRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok || p.Status != models.NumberAvailable {
		return models.ErrNumberInUse
	}
	delete(r.items, id)
	return nil
}

func (r *memPhoneRepo) CountByStatus(_ context.Context) (map[models.PhoneNumberStatus]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[models.PhoneNumberStatus]int64)
	for _, p := range r.items {
		out[p.Status]++
	}
	return out, nil
}

type memSubscriptionRepo struct {
	mu      sync.Mutex
	items   map[primitive.ObjectID]models.Subscription
	findErr error
}

func newMemSubscriptionRepo() *memSubscriptionRepo {
	return &memSubscriptionRepo{items: make(map[primitive.ObjectID]models.Subscription)}
}

func (r *memSubscriptionRepo) conflicts(s models.Subscription) bool {
	if s.Status != models.SubscriptionActive {
		return false
	}
	for id, other := range r.items {
		if id != s.ID && other.Status == models.SubscriptionActive && other.User == s.User && other.PhoneNumber == s.PhoneNumber {
			return true
		}
	}
	return false
}

func (r *memSubscriptionRepo) Create(_ context.Context, s *models.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflicts(*s) {
		return models.ErrAlreadySubscribed
	}
	s.ID = primitive.NewObjectID()
	stored := *s
	stored.Number = nil
	r.items[s.ID] = stored
	return nil
}

func (r *memSubscriptionRepo) get(id primitive.ObjectID) *models.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.items[id]
	if !ok {
		return nil
	}
	return &s
}

func (r *memSubscriptionRepo) FindByID(_ context.Context, id primitive.ObjectID) (*models.Subscription, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	return r.get(id), nil
}

func (r *memSubscriptionRepo) all(match func(models.Subscription) bool) []*models.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Subscription, 0)
	for _, s := range r.items {
		if match(s) {
			s := s
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndDate.Before(out[j].EndDate) })
	return out
}

func (r *memSubscriptionRepo) FindActive(_ context.Context, userID, numberID primitive.ObjectID) (*models.Subscription, error) {
	found := r.all(func(s models.Subscription) bool {
		return s.Status == models.SubscriptionActive && s.User == userID && s.PhoneNumber == numberID
	})
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

func (r *memSubscriptionRepo) FindByUser(_ context.Context, userID primitive.ObjectID) ([]*models.Subscription, error) {
	return r.all(func(s models.Subscription) bool { return s.User == userID }), nil
}

func (r *memSubscriptionRepo) List(_ context.Context, f models.SubscriptionFilter) ([]*models.Subscription, int64, error) {
	out := r.all(func(s models.Subscription) bool {
		return (f.Status == "" || s.Status == f.Status) &&
			(f.Plan == "" || s.Plan == f.Plan) &&
			(f.User == nil || s.User == *f.User)
	})
	return out, int64(len(out)), nil
}

func (r *memSubscriptionRepo) FindExpired(_ context.Context, now time.Time) ([]*models.Subscription, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	return r.all(func(s models.Subscription) bool {
		return s.EndDate.Before(now) && s.Status != models.SubscriptionExpired
	}), nil
}

func (r *memSubscriptionRepo) FindExpiringBetween(_ context.Context, start, end time.Time) ([]*models.Subscription, error) {
	return r.all(func(s models.Subscription) bool {
		return s.Status == models.SubscriptionActive && !s.RenewalReminderSent &&
			!s.EndDate.Before(start) && s.EndDate.Before(end)
	}), nil
}

func (r *memSubscriptionRepo) Save(_ context.Context, s *models.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[s.ID]; !ok {
		return models.ErrSubscriptionNotFound
	}
	if r.conflicts(*s) {
		return models.ErrAlreadySubscribed
	}
	stored := *s
	stored.Number = nil
	r.items[s.ID] = stored
	return nil
}

func (r *memSubscriptionRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return models.ErrSubscriptionNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *memSubscriptionRepo) CountByStatus(_ context.Context) (map[models.SubscriptionStatus]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[models.SubscriptionStatus]int64)
	for _, s := range r.items {
		out[s.Status]++
	}
	return out, nil
}

type memAccountRepo struct {
	mu    sync.Mutex
	items map[primitive.ObjectID]pkgmodels.User
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{items: make(map[primitive.ObjectID]pkgmodels.User)}
}

func (r *memAccountRepo) Create(_ context.Context, u *pkgmodels.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.Email == u.Email {
			return pkgmodels.ErrEmailTaken
		}
	}
	u.ID = primitive.NewObjectID()
	stored := *u
	stored.PhoneNumbers = append([]primitive.ObjectID{}, u.PhoneNumbers...)
	r.items[u.ID] = stored
	return nil
}

// save overwrites a stored account; tests use it to flip flags directly.
func (r *memAccountRepo) save(u *pkgmodels.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[u.ID]; !ok {
		return pkgmodels.ErrUserNotFound
	}
	r.items[u.ID] = *r.copyOf(*u)
	return nil
}

func (r *memAccountRepo) copyOf(u pkgmodels.User) *pkgmodels.User {
	u.PhoneNumbers = append([]primitive.ObjectID{}, u.PhoneNumbers...)
	return &u
}

func (r *memAccountRepo) FindByID(_ context.Context, id primitive.ObjectID) (*pkgmodels.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	return r.copyOf(u), nil
}

func (r *memAccountRepo) FindByEmail(_ context.Context, email string) (*pkgmodels.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.items {
		if u.Email == pkgmodels.NormalizeEmail(email) {
			return r.copyOf(u), nil
		}
	}
	return nil, nil
}

func (r *memAccountRepo) FindPrimary(_ context.Context) (*pkgmodels.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var primary *pkgmodels.User
	for _, u := range r.items {
		if u.IsActive && (primary == nil || u.CreatedAt.Before(primary.CreatedAt)) {
			primary = r.copyOf(u)
		}
	}
	return primary, nil
}

func (r *memAccountRepo) List(_ context.Context, _, _ int) ([]*pkgmodels.User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*pkgmodels.User, 0, len(r.items))
	for _, u := range r.items {
		out = append(out, r.copyOf(u))
	}
	return out, int64(len(out)), nil
}

func (r *memAccountRepo) AddPhoneNumber(_ context.Context, userID, numberID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.items[userID]
	if !ok {
		return pkgmodels.ErrUserNotFound
	}
	if !u.OwnsNumber(numberID) {
		u.PhoneNumbers = append(append([]primitive.ObjectID{}, u.PhoneNumbers...), numberID)
	}
	r.items[userID] = u
	return nil
}

func (r *memAccountRepo) PullPhoneNumber(_ context.Context, userID, numberID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.items[userID]
	if !ok {
		return pkgmodels.ErrUserNotFound
	}
	kept := make([]primitive.ObjectID, 0, len(u.PhoneNumbers))
	for _, n := range u.PhoneNumbers {
		if n != numberID {
			kept = append(kept, n)
		}
	}
	u.PhoneNumbers = kept
	r.items[userID] = u
	return nil
}

func (r *memAccountRepo) UpdateLastLogin(_ context.Context, id primitive.ObjectID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.items[id]
	if !ok {
		return nil
	}
	u.LastLoginAt = &at
	r.items[id] = u
	return nil
}

type memTransactionRepo struct {
	mu    sync.Mutex
	items map[string]models.PaymentTransaction
}

func newMemTransactionRepo() *memTransactionRepo {
	return &memTransactionRepo{items: make(map[string]models.PaymentTransaction)}
}

func (r *memTransactionRepo) Create(_ context.Context, tx *models.PaymentTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[tx.Reference]; ok {
		return database.ErrDuplicate
	}
	tx.ID = primitive.NewObjectID()
	r.items[tx.Reference] = *tx
	return nil
}

func (r *memTransactionRepo) FindByReference(_ context.Context, reference string) (*models.PaymentTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.items[reference]
	if !ok {
		return nil, nil
	}
	return &tx, nil
}

func (r *memTransactionRepo) List(_ context.Context, f models.TransactionFilter) ([]*models.PaymentTransaction, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.PaymentTransaction, 0)
	for _, tx := range r.items {
		if f.Status == "" || tx.Status == f.Status {
			tx := tx
			out = append(out, &tx)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memTransactionRepo) SuccessfulSince(_ context.Context, since time.Time) ([]*models.PaymentTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.PaymentTransaction, 0)
	for _, tx := range r.items {
		if tx.Successful() && !tx.TransactionDate.Before(since) {
			tx := tx
			out = append(out, &tx)
		}
	}
	return out, nil
}

func (r *memTransactionRepo) Review(_ context.Context, reference string, reviewer primitive.ObjectID, notes string, at time.Time) (*models.PaymentTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.items[reference]
	if !ok {
		return nil, models.ErrPaymentNotFound
	}
	tx.ReviewedBy = &reviewer
	tx.ReviewedAt = &at
	tx.Notes = notes
	r.items[reference] = tx
	return &tx, nil
}

type memLinkRepo struct {
	mu    sync.Mutex
	items map[string]models.PaymentLink
}

func newMemLinkRepo() *memLinkRepo {
	return &memLinkRepo{items: make(map[string]models.PaymentLink)}
}

func (r *memLinkRepo) Create(_ context.Context, link *models.PaymentLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	link.ID = primitive.NewObjectID()
	r.items[link.Reference] = *link
	return nil
}

func (r *memLinkRepo) FindByReference(_ context.Context, reference string) (*models.PaymentLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	link, ok := r.items[reference]
	if !ok {
		return nil, nil
	}
	return &link, nil
}

func (r *memLinkRepo) MarkCompleted(_ context.Context, reference string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	link, ok := r.items[reference]
	if !ok || link.Status == models.PaymentLinkCompleted {
		return nil
	}
	link.Status = models.PaymentLinkCompleted
	link.CompletedAt = &at
	r.items[reference] = link
	return nil
}

type memNotificationRepo struct {
	mu    sync.Mutex
	items []models.Notification
}

func (r *memNotificationRepo) Create(_ context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n.ID = primitive.NewObjectID()
	r.items = append(r.items, *n)
	return nil
}

func (r *memNotificationRepo) ListForRecipient(_ context.Context, recipient primitive.ObjectID, f models.NotificationFilter) ([]*models.Notification, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Notification, 0)
	for _, n := range r.items {
		if n.Recipient == recipient && (!f.UnreadOnly || !n.Read) {
			n := n
			out = append(out, &n)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memNotificationRepo) CountUnread(_ context.Context, recipient primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, n := range r.items {
		if n.Recipient == recipient && !n.Read {
			count++
		}
	}
	return count, nil
}

func (r *memNotificationRepo) MarkRead(_ context.Context, id, recipient primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.items {
		if r.items[i].ID == id && r.items[i].Recipient == recipient {
			r.items[i].Read = true
			return nil
		}
	}
	return models.ErrNotificationNotFound
}

func (r *memNotificationRepo) MarkAllRead(_ context.Context, recipient primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for i := range r.items {
		if r.items[i].Recipient == recipient && !r.items[i].Read {
			r.items[i].Read = true
			count++
		}
	}
	return count, nil
}

func (r *memNotificationRepo) Delete(_ context.Context, id, recipient primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.items {
		if r.items[i].ID == id && r.items[i].Recipient == recipient {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return nil
		}
	}
	return models.ErrNotificationNotFound
}

// Mocks for the side-effect collaborators.

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifySubscriptionCreated(ctx context.Context, user *pkgmodels.User, sub *models.Subscription) error {
	return m.Called(ctx, user, sub).Error(0)
}

func (m *MockNotifier) NotifySubscriptionRenewed(ctx context.Context, user *pkgmodels.User, sub *models.Subscription) error {
	return m.Called(ctx, user, sub).Error(0)
}

func (m *MockNotifier) NotifySubscriptionCancelled(ctx context.Context, user *pkgmodels.User, sub *models.Subscription) error {
	return m.Called(ctx, user, sub).Error(0)
}

func (m *MockNotifier) NotifySubscriptionExpiring(ctx context.Context, user *pkgmodels.User, sub *models.Subscription, days int) error {
	return m.Called(ctx, user, sub, days).Error(0)
}

func (m *MockNotifier) NotifySubscriptionExpired(ctx context.Context, user *pkgmodels.User, sub *models.Subscription) error {
	return m.Called(ctx, user, sub).Error(0)
}

func (m *MockNotifier) NotifyAutoRenewToggled(ctx context.Context, user *pkgmodels.User, sub *models.Subscription, enabled bool) error {
	return m.Called(ctx, user, sub, enabled).Error(0)
}

func (m *MockNotifier) CreateAdminNotification(ctx context.Context, admin *pkgmodels.User, title, message string, kind models.NotificationType, related *primitive.ObjectID) error {
	return m.Called(ctx, admin, title, message, kind, related).Error(0)
}

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendSubscriptionCreatedEmail(ctx context.Context, user *pkgmodels.User, sub *models.Subscription, admin *pkgmodels.User) error {
	return m.Called(ctx, user, sub, admin).Error(0)
}

func (m *MockMailer) SendSubscriptionRenewedEmail(ctx context.Context, user *pkgmodels.User, sub *models.Subscription, admin *pkgmodels.User) error {
	return m.Called(ctx, user, sub, admin).Error(0)
}

func (m *MockMailer) SendSubscriptionCancelledEmail(ctx context.Context, user *pkgmodels.User, sub *models.Subscription, admin *pkgmodels.User) error {
	return m.Called(ctx, user, sub, admin).Error(0)
}

func (m *MockMailer) SendSubscriptionExpiringEmail(ctx context.Context, user *pkgmodels.User, sub *models.Subscription, admin *pkgmodels.User, days int) error {
	return m.Called(ctx, user, sub, admin, days).Error(0)
}

func (m *MockMailer) SendSubscriptionExpiredEmail(ctx context.Context, user *pkgmodels.User, sub *models.Subscription, admin *pkgmodels.User) error {
	return m.Called(ctx, user, sub, admin).Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishEvent(ctx context.Context, exchange, eventType string, data interface{}) error {
	return m.Called(ctx, exchange, eventType, data).Error(0)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*InitializeResponse), args.Error(1)
}

func (m *MockGateway) Verify(ctx context.Context, reference string) (*GatewayTransaction, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*GatewayTransaction), args.Error(1)
}

type MockLifecycle struct {
	mock.Mock
}

func (m *MockLifecycle) Created(ctx context.Context, id primitive.ObjectID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockLifecycle) Renewed(ctx context.Context, id primitive.ObjectID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockLifecycle) Cancelled(ctx context.Context, id primitive.ObjectID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockLifecycle) AutoRenewToggled(ctx context.Context, id primitive.ObjectID, enabled bool) error {
	return m.Called(ctx, id, enabled).Error(0)
}

func (m *MockLifecycle) Expiring(ctx context.Context, id primitive.ObjectID, days int) error {
	return m.Called(ctx, id, days).Error(0)
}

func (m *MockLifecycle) Expired(ctx context.Context, id primitive.ObjectID) error {
	return m.Called(ctx, id).Error(0)
}
