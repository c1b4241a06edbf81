package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PhoneNumberStatus string

const (
	NumberAvailable PhoneNumberStatus = "available"
	NumberReserved  PhoneNumberStatus = "reserved"
	NumberActive    PhoneNumberStatus = "active"
	NumberSuspended PhoneNumberStatus = "suspended"
)

// Assigned reports whether the status requires an owning user.
func (s PhoneNumberStatus) Assigned() bool {
	return s == NumberReserved || s == NumberActive || s == NumberSuspended
}

func (s PhoneNumberStatus) Valid() bool {
	return s == NumberAvailable || s.Assigned()
}

type PhoneNumberType string

const (
	TypeTollFree PhoneNumberType = "toll-free"
	TypeVanity   PhoneNumberType = "vanity"
)

func (t PhoneNumberType) Valid() bool {
	return t == TypeTollFree || t == TypeVanity
}

const DefaultReservationDuration = 30 * time.Minute

type PhoneNumber struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Number        string              `bson:"number" json:"number"`
	Status        PhoneNumberStatus   `bson:"status" json:"status"`
	User          *primitive.ObjectID `bson:"user" json:"user"`
	ReservedUntil *time.Time          `bson:"reserved_until" json:"reserved_until"`
	Type          PhoneNumberType     `bson:"type" json:"type"`
	Price         float64             `bson:"price" json:"price"`
	Description   string              `bson:"description,omitempty" json:"description,omitempty"`
	Version       int64               `bson:"version" json:"-"`
	CreatedAt     time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time           `bson:"updated_at" json:"updated_at"`
}

func NewPhoneNumber(number string, numberType PhoneNumberType, price float64, description string, now time.Time) (*PhoneNumber, error) {
	if number == "" {
		return nil, fmt.Errorf("%w: number is required", ErrValidation)
	}
	if !numberType.Valid() {
		return nil, fmt.Errorf("%w: type must be toll-free or vanity", ErrValidation)
	}
	if price < 0 {
		return nil, fmt.Errorf("%w: price must not be negative", ErrValidation)
	}
	return &PhoneNumber{
		Number:      number,
		Status:      NumberAvailable,
		Type:        numberType,
		Price:       price,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (p *PhoneNumber) IsOwnedBy(userID primitive.ObjectID) bool {
	return p.User != nil && *p.User == userID
}

// Reserve claims an available number for userID. On failure the number is left untouched.
func (p *PhoneNumber) Reserve(userID primitive.ObjectID, d time.Duration, now time.Time) error {
	if p.Status != NumberAvailable {
		return ErrNumberNotAvailable
	}
	if d <= 0 {
		d = DefaultReservationDuration
	}

	until := now.Add(d)
	p.User = &userID
	p.Status = NumberReserved
	p.ReservedUntil = &until
	p.UpdatedAt = now
	return nil
}

func (p *PhoneNumber) Activate(userID primitive.ObjectID, now time.Time) error {
	if p.Status != NumberReserved || !p.IsOwnedBy(userID) {
		return ErrNotReservedByUser
	}

	p.Status = NumberActive
	p.ReservedUntil = nil
	p.UpdatedAt = now
	return nil
}

func (p *PhoneNumber) Release(now time.Time) {
	p.User = nil
	p.Status = NumberAvailable
	p.ReservedUntil = nil
	p.UpdatedAt = now
}

// AssignTo moves the number into an assigned status for userID. A number held by a different
// user is never reassigned; it has to be released first.
func (p *PhoneNumber) AssignTo(userID primitive.ObjectID, status PhoneNumberStatus, now time.Time) error {
	if !status.Assigned() {
		return ErrInvalidStatus
	}
	if p.User != nil && *p.User != userID {
		return ErrAlreadyAssigned
	}

	p.User = &userID
	p.Status = status
	if status == NumberReserved {
		until := now.Add(DefaultReservationDuration)
		p.ReservedUntil = &until
	} else {
		p.ReservedUntil = nil
	}
	p.UpdatedAt = now
	return nil
}

// AvailableFor reports whether userID may subscribe to the number right now.
func (p *PhoneNumber) AvailableFor(userID primitive.ObjectID) bool {
	return p.Status == NumberAvailable || (p.Status == NumberReserved && p.IsOwnedBy(userID))
}

func (p *PhoneNumber) ReservationExpired(now time.Time) bool {
	return p.Status == NumberReserved && p.ReservedUntil != nil && now.After(*p.ReservedUntil)
}

// CheckInvariants verifies the owner and reservation fields agree with the status.
func (p *PhoneNumber) CheckInvariants() error {
	if !p.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, p.Status)
	}
	if p.Status.Assigned() != (p.User != nil) {
		return fmt.Errorf("number %s: owner does not match status %s", p.Number, p.Status)
	}
	if (p.Status == NumberReserved) != (p.ReservedUntil != nil) {
		return fmt.Errorf("number %s: reserved_until does not match status %s", p.Number, p.Status)
	}
	return nil
}

type PhoneNumberFilter struct {
	Status   PhoneNumberStatus
	Type     PhoneNumberType
	Search   string
	MinPrice *float64
	MaxPrice *float64
	SortBy   string
	SortDesc bool
	Page     int
	Limit    int
}

type CreatePhoneNumberRequest struct {
	Number      string          `json:"number" binding:"required"`
	Type        PhoneNumberType `json:"type" binding:"required"`
	Price       float64         `json:"price" binding:"gte=0"`
	Description string          `json:"description"`
}

type UpdateStatusRequest struct {
	Status PhoneNumberStatus `json:"status" binding:"required"`
	UserID string            `json:"userId"`
}

type BulkCreateResult struct {
	Created    []*PhoneNumber `json:"created"`
	Duplicates []string       `json:"duplicates"`
	Invalid    []string       `json:"invalid"`
}
