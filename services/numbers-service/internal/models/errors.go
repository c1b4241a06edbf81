package models

import "errors"

// Handlers map these to HTTP statuses; wrap them with fmt.Errorf("%w: ...") to add detail.
var (
	ErrValidation      = errors.New("validation failed")
	ErrUnauthenticated = errors.New("not authenticated")
	ErrForbidden       = errors.New("not authorized to access this resource")

	ErrNumberNotFound       = errors.New("phone number not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrNotificationNotFound = errors.New("notification not found")

	ErrNumberNotAvailable = errors.New("phone number is not available")
	ErrNotReservedByUser  = errors.New("phone number is not reserved by this user")
	ErrNumberInUse        = errors.New("phone number is in use")
	ErrAlreadySubscribed  = errors.New("an active subscription already exists for this number")
	ErrPaymentNotSuccess  = errors.New("payment was not successful")
	ErrDuplicateNumber    = errors.New("phone number already exists")

	ErrAlreadyAssigned  = errors.New("phone number is already assigned to another user")
	ErrConcurrentUpdate = errors.New("phone number was modified by another request")

	ErrInvalidStatus = errors.New("invalid phone number status")
	ErrInvalidPlan   = errors.New("invalid subscription plan")

	ErrGateway        = errors.New("payment gateway error")
	ErrGatewayTimeout = errors.New("payment gateway timed out")
)
