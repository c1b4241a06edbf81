package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

type Repositories struct {
	Numbers       *PhoneNumberRepository
	Subscriptions *SubscriptionRepository
	Users         *AccountRepository
	Admins        *AccountRepository
	Transactions  *PaymentTransactionRepository
	PaymentLinks  *PaymentLinkRepository
	Notifications *NotificationRepository
}

func New(db *mongo.Database) *Repositories {
	return &Repositories{
		Numbers:       NewPhoneNumberRepository(db),
		Subscriptions: NewSubscriptionRepository(db),
		Users:         NewUserRepository(db),
		Admins:        NewAdminRepository(db),
		Transactions:  NewPaymentTransactionRepository(db),
		PaymentLinks:  NewPaymentLinkRepository(db),
		Notifications: NewNotificationRepository(db),
	}
}

func (r *Repositories) EnsureIndexes(ctx context.Context) error {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"phone_numbers", r.Numbers.CreateIndexes},
		{"subscriptions", r.Subscriptions.CreateIndexes},
		{"users", r.Users.CreateIndexes},
		{"admins", r.Admins.CreateIndexes},
		{"payment_transactions", r.Transactions.CreateIndexes},
		{"payment_links", r.PaymentLinks.CreateIndexes},
		{"notifications", r.Notifications.CreateIndexes},
	}

	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}
	return nil
}
