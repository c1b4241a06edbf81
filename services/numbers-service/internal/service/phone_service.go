package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vanityline/vanityline/pkg/logger"
	pkgmodels "github.com/vanityline/vanityline/pkg/models"
	"github.com/vanityline/vanityline/services/numbers-service/internal/models"
)

type PhoneService struct {
	numbers PhoneNumberRepository
	users   AccountRepository
	metrics *Metrics
	logger  logger.Logger
	now     func() time.Time
}

func NewPhoneService(numbers PhoneNumberRepository, users AccountRepository, metrics *Metrics, log logger.Logger) *PhoneService {
	return &PhoneService{
		numbers: numbers,
		users:   users,
		metrics: metrics,
		logger:  log,
		now:     time.Now,
	}
}

func (s *PhoneService) List(ctx context.Context, filter models.PhoneNumberFilter) ([]*models.PhoneNumber, models.Page, error) {
	numbers, total, err := s.numbers.List(ctx, filter)
	if err != nil {
		return nil, models.Page{}, fmt.Errorf("failed to list phone numbers: %w", err)
	}
	return numbers, models.NewPage(filter.Page, filter.Limit, total), nil
}

func (s *PhoneService) Get(ctx context.Context, id primitive.ObjectID) (*models.PhoneNumber, error) {
	number, err := s.numbers.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get phone number: %w", err)
	}
	if number == nil {
		return nil, models.ErrNumberNotFound
	}
	return number, nil
}

func (s *PhoneService) Mine(ctx context.Context, userID primitive.ObjectID) ([]*models.PhoneNumber, error) {
	numbers, err := s.numbers.FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user phone numbers: %w", err)
	}
	return numbers, nil
}

// Reserve holds an available number for the user. Two concurrent reservations of the same
// number race on the version check; the loser gets ErrConcurrentUpdate.
func (s *PhoneService) Reserve(ctx context.Context, id, userID primitive.ObjectID) (*models.PhoneNumber, error) {
	number, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := number.Reserve(userID, models.DefaultReservationDuration, s.now()); err != nil {
		return nil, err
	}
	if err := s.numbers.Save(ctx, number); err != nil {
		return nil, err
	}
	if err := s.users.AddPhoneNumber(ctx, userID, number.ID); err != nil {
		return nil, fmt.Errorf("failed to link number to user: %w", err)
	}

	s.metrics.Reservations.Inc()
	s.logger.WithContext(ctx).Info("Phone number reserved",
		logger.F("number", number.Number),
		logger.F("user_id", userID.Hex()),
	)
	return number, nil
}

// UpdateStatus is the administrative transition used by handlers and by the payment flow.
// Moving to available clears the owner and removes the number from the owner's profile.
func (s *PhoneService) UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.PhoneNumberStatus, userID *primitive.ObjectID) (*models.PhoneNumber, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidStatus, status)
	}

	number, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, number, status, userID); err != nil {
		return nil, err
	}
	return number, nil
}

// transition applies status to a number the caller already loaded. The save is checked against
// the version that was read, so a change made since then fails with ErrConcurrentUpdate.
func (s *PhoneService) transition(ctx context.Context, number *models.PhoneNumber, status models.PhoneNumberStatus, userID *primitive.ObjectID) error {
	now := s.now()

	if status == models.NumberAvailable {
		previous := number.User
		number.Release(now)
		if err := s.numbers.Save(ctx, number); err != nil {
			return err
		}
		if previous != nil {
			if err := s.users.PullPhoneNumber(ctx, *previous, number.ID); err != nil && !errors.Is(err, pkgmodels.ErrUserNotFound) {
				return fmt.Errorf("failed to unlink number from user: %w", err)
			}
		}
		return nil
	}

	if userID == nil {
		return fmt.Errorf("%w: userId is required for status %s", models.ErrValidation, status)
	}

	var err error
	if status == models.NumberActive && number.Status == models.NumberReserved && number.IsOwnedBy(*userID) {
		err = number.Activate(*userID, now)
	} else {
		err = number.AssignTo(*userID, status, now)
	}
	if err != nil {
		return err
	}

	if err := s.numbers.Save(ctx, number); err != nil {
		return err
	}
	if err := s.users.AddPhoneNumber(ctx, *userID, number.ID); err != nil {
		return fmt.Errorf("failed to link number to user: %w", err)
	}
	return nil
}

// restore writes previous back over number after a later step of the same operation failed.
func (s *PhoneService) restore(ctx context.Context, number *models.PhoneNumber, previous models.PhoneNumber) error {
	previous.Version = number.Version
	previous.UpdatedAt = s.now()
	if err := s.numbers.Save(ctx, &previous); err != nil {
		return err
	}
	if previous.User == nil && number.User != nil {
		if err := s.users.PullPhoneNumber(ctx, *number.User, number.ID); err != nil && !errors.Is(err, pkgmodels.ErrUserNotFound) {
			return fmt.Errorf("failed to unlink number from user: %w", err)
		}
	}
	*number = previous
	return nil
}

// ReleaseExpired frees reservations whose hold has lapsed. It returns how many were released
// and stops at the first error.
func (s *PhoneService) ReleaseExpired(ctx context.Context) (int, error) {
	now := s.now()
	expired, err := s.numbers.FindExpiredReservations(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to find expired reservations: %w", err)
	}

	released := 0
	for _, number := range expired {
		if !number.ReservationExpired(now) {
			continue
		}
		if _, err := s.UpdateStatus(ctx, number.ID, models.NumberAvailable, nil); err != nil {
			if errors.Is(err, models.ErrConcurrentUpdate) {
				continue
			}
			return released, fmt.Errorf("failed to release %s: %w", number.Number, err)
		}
		released++
		s.metrics.ReservationsReleased.Inc()
	}
	return released, nil
}

func (s *PhoneService) Create(ctx context.Context, req models.CreatePhoneNumberRequest) (*models.PhoneNumber, error) {
	number, err := models.NewPhoneNumber(strings.TrimSpace(req.Number), req.Type, req.Price, req.Description, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.numbers.Create(ctx, number); err != nil {
		return nil, err
	}
	return number, nil
}

// BulkCreate inserts each entry independently. Duplicates and invalid entries are reported
// back instead of failing the batch.
func (s *PhoneService) BulkCreate(ctx context.Context, reqs []models.CreatePhoneNumberRequest) (*models.BulkCreateResult, error) {
	result := &models.BulkCreateResult{
		Created:    make([]*models.PhoneNumber, 0, len(reqs)),
		Duplicates: []string{},
		Invalid:    []string{},
	}

	for _, req := range reqs {
		number, err := s.Create(ctx, req)
		switch {
		case err == nil:
			result.Created = append(result.Created, number)
		case errors.Is(err, models.ErrDuplicateNumber):
			result.Duplicates = append(result.Duplicates, req.Number)
		case errors.Is(err, models.ErrValidation):
			result.Invalid = append(result.Invalid, req.Number)
		default:
			return result, err
		}
	}

	s.logger.WithContext(ctx).Info("Bulk phone number import finished",
		logger.F("created", len(result.Created)),
		logger.F("duplicates", len(result.Duplicates)),
		logger.F("invalid", len(result.Invalid)),
	)
	return result, nil
}

// Delete removes a number that nobody holds.
func (s *PhoneService) Delete(ctx context.Context, id primitive.ObjectID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.numbers.Delete(ctx, id)
}
