package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	pkgmodels "github.com/vanityline/vanityline/pkg/models"
	"github.com/vanityline/vanityline/services/numbers-service/internal/models"
)

type recordingSender struct {
	sent []SendEmailParams
	err  error
}

func (s *recordingSender) SendEmail(_ context.Context, params SendEmailParams) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, params)
	return nil
}

func emailFixture() (*pkgmodels.User, *models.Subscription, *pkgmodels.User) {
	user := &pkgmodels.User{ID: primitive.NewObjectID(), Email: "ann@example.com", FirstName: "Ann", LastName: "Lee"}
	admin := &pkgmodels.User{ID: primitive.NewObjectID(), Email: "admin@example.com", Role: pkgmodels.RoleAdmin}
	sub := &models.Subscription{
		ID:      primitive.NewObjectID(),
		Plan:    models.PlanStandard,
		EndDate: time.Date(2026, 4, 24, 12, 0, 0, 0, time.UTC),
		Number:  &models.PhoneNumber{Number: "+18005550100"},
	}
	return user, sub, admin
}

func TestEmailService_Templates(t *testing.T) {
	tests := []struct {
		name    string
		send    func(*EmailService, *pkgmodels.User, *models.Subscription, *pkgmodels.User) error
		tag     string
		subject string
		body    string
	}{
		{
			name: "created",
			send: func(s *EmailService, u *pkgmodels.User, sub *models.Subscription, a *pkgmodels.User) error {
				return s.SendSubscriptionCreatedEmail(context.Background(), u, sub, a)
			},
			tag: "subscription_created", subject: "Your number is active", body: "+18005550100",
		},
		{
			name: "renewed",
			send: func(s *EmailService, u *pkgmodels.User, sub *models.Subscription, a *pkgmodels.User) error {
				return s.SendSubscriptionRenewedEmail(context.Background(), u, sub, a)
			},
			tag: "subscription_renewed", subject: "Subscription renewed", body: "April 24, 2026",
		},
		{
			name: "cancelled",
			send: func(s *EmailService, u *pkgmodels.User, sub *models.Subscription, a *pkgmodels.User) error {
				return s.SendSubscriptionCancelledEmail(context.Background(), u, sub, a)
			},
			tag: "subscription_cancelled", subject: "Subscription cancelled", body: "+18005550100",
		},
		{
			name: "expiring",
			send: func(s *EmailService, u *pkgmodels.User, sub *models.Subscription, a *pkgmodels.User) error {
				return s.SendSubscriptionExpiringEmail(context.Background(), u, sub, a, 3)
			},
			tag: "subscription_expiring", subject: "Your subscription expires in 3 days", body: "expires in 3 days",
		},
		{
			name: "expired",
			send: func(s *EmailService, u *pkgmodels.User, sub *models.Subscription, a *pkgmodels.User) error {
				return s.SendSubscriptionExpiredEmail(context.Background(), u, sub, a)
			},
			tag: "subscription_expired", subject: "Subscription expired", body: "+18005550100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &recordingSender{}
			svc := NewEmailService(sender, NewRenderer(), EmailConfig{SupportEmail: "support@example.com", ClientURL: "https://app.example.com"})
			user, sub, admin := emailFixture()

			require.NoError(t, tt.send(svc, user, sub, admin))
			require.Len(t, sender.sent, 1)

			msg := sender.sent[0]
			assert.Equal(t, "ann@example.com", msg.To)
			assert.Equal(t, "admin@example.com", msg.ReplyTo)
			assert.Equal(t, tt.tag, msg.Tag)
			assert.Equal(t, tt.subject, msg.Subject)
			assert.Contains(t, msg.BodyHTML, "Hi Ann Lee,")
			assert.Contains(t, msg.BodyHTML, tt.body)
			assert.Contains(t, msg.BodyHTML, "https://app.example.com/dashboard")
		})
	}
}

func TestEmailService_Fallbacks(t *testing.T) {
	sender := &recordingSender{}
	svc := NewEmailService(sender, NewRenderer(), EmailConfig{SupportEmail: "support@example.com"})
	user, sub, _ := emailFixture()
	user.FirstName, user.LastName = "", ""

	require.NoError(t, svc.SendSubscriptionExpiringEmail(context.Background(), user, sub, nil, 1))

	msg := sender.sent[0]
	assert.Equal(t, "support@example.com", msg.ReplyTo)
	assert.Contains(t, msg.BodyHTML, "Hi ann@example.com,")
	assert.Contains(t, msg.BodyHTML, "expires in 1 day,")
}

func TestEmailService_EscapesUserInput(t *testing.T) {
	sender := &recordingSender{}
	svc := NewEmailService(sender, NewRenderer(), EmailConfig{})
	user, sub, admin := emailFixture()
	user.FirstName, user.LastName = "<script>", ""

	require.NoError(t, svc.SendSubscriptionCreatedEmail(context.Background(), user, sub, admin))
	assert.NotContains(t, sender.sent[0].BodyHTML, "<script>")
	assert.Contains(t, sender.sent[0].BodyHTML, "&lt;script&gt;")
}

func TestEmailService_SenderError(t *testing.T) {
	sender := &recordingSender{err: ErrEmailFailed}
	svc := NewEmailService(sender, NewRenderer(), EmailConfig{})
	user, sub, admin := emailFixture()

	err := svc.SendSubscriptionRenewedEmail(context.Background(), user, sub, admin)
	assert.True(t, errors.Is(err, ErrEmailFailed))
}

func TestRenderer_CachesParsedTemplates(t *testing.T) {
	r := NewRenderer()
	data := emailData{Name: "Ann", Number: "+18005550100"}

	_, err := Render(context.Background(), r.Component("subscription_created", data))
	require.NoError(t, err)
	_, err = Render(context.Background(), r.Component("subscription_created", data))
	require.NoError(t, err)
	assert.Equal(t, 1, r.cached())

	_, err = Render(context.Background(), r.Component("does_not_exist", data))
	assert.Error(t, err)
	assert.Equal(t, 1, r.cached())
}
