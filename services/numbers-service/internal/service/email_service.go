package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"

	"github.com/vanityline/vanityline/pkg/logger"
	pkgmodels "github.com/vanityline/vanityline/pkg/models"
	"github.com/vanityline/vanityline/services/numbers-service/internal/models"
)

var ErrEmailFailed = errors.New("failed to send email")

type EmailSender interface {
	SendEmail(ctx context.Context, params SendEmailParams) error
}

type SendEmailParams struct {
	To       string
	ReplyTo  string
	Subject  string
	Tag      string
	BodyHTML string
}

type PostmarkSender struct {
	client *postmark.Client
	from   string
}

func NewPostmarkSender(serverToken, accountToken, from string) *PostmarkSender {
	return &PostmarkSender{
		client: postmark.NewClient(serverToken, accountToken),
		from:   from,
	}
}

func (s *PostmarkSender) SendEmail(ctx context.Context, params SendEmailParams) error {
	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:       s.from,
		ReplyTo:    params.ReplyTo,
		To:         params.To,
		Subject:    params.Subject,
		Tag:        params.Tag,
		HTMLBody:   params.BodyHTML,
		TrackOpens: true,
		TrackLinks: "HtmlOnly",
	})
	if err != nil {
		return errors.Join(ErrEmailFailed, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(ErrEmailFailed, fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message))
	}
	return nil
}

// LogSender writes emails to the logger instead of sending them. Used in development and when
// Postmark is not configured.
type LogSender struct {
	logger logger.Logger
}

func NewLogSender(log logger.Logger) *LogSender {
	return &LogSender{logger: log}
}

func (s *LogSender) SendEmail(ctx context.Context, params SendEmailParams) error {
	s.logger.WithContext(ctx).Info("Email not sent, no provider configured",
		logger.F("to", params.To),
		logger.F("subject", params.Subject),
		logger.F("tag", params.Tag),
		logger.F("bytes", len(params.BodyHTML)),
	)
	return nil
}

type EmailConfig struct {
	SupportEmail string
	ClientURL    string
}

// EmailService renders and sends the subscription lifecycle emails.
type EmailService struct {
	sender   EmailSender
	renderer *Renderer
	cfg      EmailConfig
}

var _ Mailer = (*EmailService)(nil)

func NewEmailService(sender EmailSender, renderer *Renderer, cfg EmailConfig) *EmailService {
	return &EmailService{sender: sender, renderer: renderer, cfg: cfg}
}

type emailData struct {
	Subject      string
	Name         string
	Number       string
	Plan         models.PlanName
	EndDate      string
	Days         int
	DashboardURL string
	SupportEmail string
}

func (s *EmailService) send(ctx context.Context, template, subject string, user *pkgmodels.User, sub *models.Subscription, admin *pkgmodels.User, days int) error {
	data := emailData{
		Subject:      subject,
		Name:         user.FullName(),
		Number:       numberLabel(sub),
		Plan:         sub.Plan,
		EndDate:      sub.EndDate.Format("January 2, 2006"),
		Days:         days,
		DashboardURL: s.cfg.ClientURL + "/dashboard",
		SupportEmail: s.cfg.SupportEmail,
	}
	if data.Name == "" {
		data.Name = user.Email
	}

	body, err := Render(ctx, s.renderer.Component(template, data))
	if err != nil {
		return fmt.Errorf("failed to render %s email: %w", template, err)
	}

	replyTo := s.cfg.SupportEmail
	if admin != nil && admin.Email != "" {
		replyTo = admin.Email
	}

	return s.sender.SendEmail(ctx, SendEmailParams{
		To:       user.Email,
		ReplyTo:  replyTo,
		Subject:  subject,
		Tag:      template,
		BodyHTML: body,
	})
}

func (s *EmailService) SendSubscriptionCreatedEmail(ctx context.Context, user *pkgmodels.User, sub *models.Subscription, admin *pkgmodels.User) error {
	return s.send(ctx, "subscription_created", "Your number is active", user, sub, admin, 0)
}

func (s *EmailService) SendSubscriptionRenewedEmail(ctx context.Context, user *pkgmodels.User, sub *models.Subscription, admin *pkgmodels.User) error {
	return s.send(ctx, "subscription_renewed", "Subscription renewed", user, sub, admin, 0)
}

func (s *EmailService) SendSubscriptionCancelledEmail(ctx context.Context, user *pkgmodels.User, sub *models.Subscription, admin *pkgmodels.User) error {
	return s.send(ctx, "subscription_cancelled", "Subscription cancelled", user, sub, admin, 0)
}

func (s *EmailService) SendSubscriptionExpiringEmail(ctx context.Context, user *pkgmodels.User, sub *models.Subscription, admin *pkgmodels.User, days int) error {
	return s.send(ctx, "subscription_expiring", fmt.Sprintf("Your subscription expires in %d days", days), user, sub, admin, days)
}

func (s *EmailService) SendSubscriptionExpiredEmail(ctx context.Context, user *pkgmodels.User, sub *models.Subscription, admin *pkgmodels.User) error {
	return s.send(ctx, "subscription_expired", "Subscription expired", user, sub, admin, 0)
}
