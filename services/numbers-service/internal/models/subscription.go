package models

import (
	"fmt"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionSuspended SubscriptionStatus = "suspended"
)

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionActive, SubscriptionExpired, SubscriptionCancelled, SubscriptionSuspended:
		return true
	}
	return false
}

type Subscription struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	User                primitive.ObjectID `bson:"user" json:"user"`
	PhoneNumber         primitive.ObjectID `bson:"phone_number" json:"phone_number"`
	Plan                PlanName           `bson:"plan" json:"plan"`
	Status              SubscriptionStatus `bson:"status" json:"status"`
	StartDate           time.Time          `bson:"start_date" json:"start_date"`
	EndDate             time.Time          `bson:"end_date" json:"end_date"`
	AutoRenew           bool               `bson:"auto_renew" json:"auto_renew"`
	Price               float64            `bson:"price" json:"price"`
	PaymentMethod       string             `bson:"payment_method" json:"payment_method"`
	PaymentReference    string             `bson:"payment_reference" json:"payment_reference"`
	MinutesUsed         int                `bson:"minutes_used" json:"minutes_used"`
	RenewalReminderSent bool               `bson:"renewal_reminder_sent" json:"renewal_reminder_sent"`
	CancelledAt         *time.Time         `bson:"cancelled_at,omitempty" json:"cancelled_at,omitempty"`
	CreatedAt           time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt           time.Time          `bson:"updated_at" json:"updated_at"`

	// Number is populated on reads that join the phone number; it is never persisted.
	Number *PhoneNumber `bson:"-" json:"phone_number_details,omitempty"`
}

type NewSubscriptionParams struct {
	User             primitive.ObjectID
	PhoneNumber      primitive.ObjectID
	Plan             Plan
	AutoRenew        bool
	PaymentMethod    string
	PaymentReference string
	Price            *float64
}

func NewSubscription(p NewSubscriptionParams, now time.Time) (*Subscription, error) {
	if p.Plan.DurationDays <= 0 {
		return nil, fmt.Errorf("%w: plan %q has no duration", ErrInvalidPlan, p.Plan.Name)
	}

	price := p.Plan.Price
	if p.Price != nil {
		price = *p.Price
	}

	return &Subscription{
		User:             p.User,
		PhoneNumber:      p.PhoneNumber,
		Plan:             p.Plan.Name,
		Status:           SubscriptionActive,
		StartDate:        now,
		EndDate:          p.Plan.EndDate(now),
		AutoRenew:        p.AutoRenew,
		Price:            price,
		PaymentMethod:    p.PaymentMethod,
		PaymentReference: p.PaymentReference,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func (s *Subscription) IsOwnedBy(userID primitive.ObjectID) bool {
	return s.User == userID
}

// Renew extends from the later of the current end date and now, so a lapsed subscription
// gets a full period.
func (s *Subscription) Renew(plan Plan, now time.Time) error {
	if plan.DurationDays <= 0 {
		return fmt.Errorf("%w: plan %q has no duration", ErrInvalidPlan, plan.Name)
	}

	base := s.EndDate
	if now.After(base) {
		base = now
	}

	s.EndDate = plan.EndDate(base)
	s.Status = SubscriptionActive
	s.RenewalReminderSent = false
	s.CancelledAt = nil
	s.UpdatedAt = now
	return nil
}

// Cancel is idempotent: the second call leaves the same state, including cancelled_at.
func (s *Subscription) Cancel(now time.Time) {
	s.Status = SubscriptionCancelled
	s.AutoRenew = false
	if s.CancelledAt == nil {
		s.CancelledAt = &now
	}
	s.UpdatedAt = now
}

// Expire returns false when the subscription was already expired.
func (s *Subscription) Expire(now time.Time) bool {
	if s.Status == SubscriptionExpired {
		return false
	}
	s.Status = SubscriptionExpired
	s.UpdatedAt = now
	return true
}

// DaysRemaining rounds up, so anything left on the last day counts as one day.
func (s *Subscription) DaysRemaining(now time.Time) int {
	left := s.EndDate.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Hours() / 24))
}

type SubscriptionFilter struct {
	User   *primitive.ObjectID
	Status SubscriptionStatus
	Plan   PlanName
	Page   int
	Limit  int
}

type CreateSubscriptionRequest struct {
	PhoneNumberID    string   `json:"phoneNumberId" binding:"required"`
	Plan             PlanName `json:"plan" binding:"required"`
	PaymentMethod    string   `json:"paymentMethod"`
	PaymentReference string   `json:"paymentReference"`
	AutoRenew        bool     `json:"autoRenew"`
}

type AdminUpdateSubscriptionRequest struct {
	Status      *SubscriptionStatus `json:"status"`
	EndDate     *time.Time          `json:"endDate"`
	AutoRenew   *bool               `json:"autoRenew"`
	MinutesUsed *int                `json:"minutesUsed"`
}

type ToggleAutoRenewRequest struct {
	AutoRenew *bool `json:"autoRenew" binding:"required"`
}
