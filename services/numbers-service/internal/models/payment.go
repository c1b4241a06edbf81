package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const PaymentStatusSuccess = "success"

type Customer struct {
	Email     string `bson:"email" json:"email"`
	FirstName string `bson:"first_name,omitempty" json:"first_name,omitempty"`
	LastName  string `bson:"last_name,omitempty" json:"last_name,omitempty"`
	Phone     string `bson:"phone,omitempty" json:"phone,omitempty"`
}

// PaymentTransaction is written once after the gateway confirms a reference. Only the review
// fields change afterwards.
type PaymentTransaction struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Reference       string              `bson:"reference" json:"reference"`
	Status          string              `bson:"status" json:"status"`
	Amount          float64             `bson:"amount" json:"amount"`
	Currency        string              `bson:"currency" json:"currency"`
	TransactionDate time.Time           `bson:"transaction_date" json:"transaction_date"`
	Customer        Customer            `bson:"customer" json:"customer"`
	Channel         string              `bson:"channel,omitempty" json:"channel,omitempty"`
	Plan            PlanName            `bson:"plan,omitempty" json:"plan,omitempty"`
	User            *primitive.ObjectID `bson:"user,omitempty" json:"user,omitempty"`
	Verified        bool                `bson:"verified" json:"verified"`
	VerifiedAt      *time.Time          `bson:"verified_at,omitempty" json:"verified_at,omitempty"`
	GatewayResponse string              `bson:"gateway_response,omitempty" json:"-"`
	ReviewedBy      *primitive.ObjectID `bson:"reviewed_by,omitempty" json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time          `bson:"reviewed_at,omitempty" json:"reviewed_at,omitempty"`
	Notes           string              `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt       time.Time           `bson:"created_at" json:"created_at"`
}

func (t *PaymentTransaction) Successful() bool {
	return strings.EqualFold(t.Status, PaymentStatusSuccess)
}

type PaymentLinkStatus string

const (
	PaymentLinkPending   PaymentLinkStatus = "pending"
	PaymentLinkCompleted PaymentLinkStatus = "completed"
)

type PaymentLink struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Reference        string             `bson:"reference" json:"reference"`
	User             primitive.ObjectID `bson:"user" json:"user"`
	PhoneNumber      primitive.ObjectID `bson:"phone_number" json:"phone_number"`
	Plan             PlanName           `bson:"plan" json:"plan"`
	Amount           float64            `bson:"amount" json:"amount"`
	Currency         string             `bson:"currency" json:"currency"`
	Email            string             `bson:"email" json:"email"`
	AuthorizationURL string             `bson:"authorization_url" json:"authorization_url"`
	AccessCode       string             `bson:"access_code" json:"-"`
	Status           PaymentLinkStatus  `bson:"status" json:"status"`
	CompletedAt      *time.Time         `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	CreatedAt        time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time          `bson:"updated_at" json:"updated_at"`
}

type CreatePaymentLinkRequest struct {
	PhoneNumberID string   `json:"phoneNumberId" binding:"required"`
	Plan          PlanName `json:"plan" binding:"required"`
	Amount        *float64 `json:"amount" binding:"omitempty,gt=0"`
	Currency      string   `json:"currency"`
}

type PaymentSuccessRequest struct {
	NumberID string `json:"numberId" binding:"required"`
}

type PaymentSuccessResult struct {
	Subscription *Subscription       `json:"subscription"`
	PhoneNumber  *PhoneNumber        `json:"phoneNumber"`
	Transaction  *PaymentTransaction `json:"transaction"`
}

type TransactionFilter struct {
	Status string
	Page   int
	Limit  int
}

type ReviewTransactionRequest struct {
	Notes string `json:"notes" binding:"required,max=2000"`
}
