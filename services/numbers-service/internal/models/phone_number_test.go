package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newAvailable(t *testing.T) *PhoneNumber {
	t.Helper()
	p, err := NewPhoneNumber("0700-123-4633", TypeVanity, 1500, "", now)
	require.NoError(t, err)
	return p
}

func TestNewPhoneNumber_Validation(t *testing.T) {
	_, err := NewPhoneNumber("", TypeVanity, 10, "", now)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewPhoneNumber("0800-000", "premium-rate", 10, "", now)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewPhoneNumber("0800-000", TypeTollFree, -1, "", now)
	assert.ErrorIs(t, err, ErrValidation)

	p, err := NewPhoneNumber("0800-000", TypeTollFree, 0, "", now)
	require.NoError(t, err)
	assert.Equal(t, NumberAvailable, p.Status)
	assert.NoError(t, p.CheckInvariants())
}

func TestPhoneNumber_Reserve(t *testing.T) {
	p := newAvailable(t)
	user := primitive.NewObjectID()

	require.NoError(t, p.Reserve(user, 0, now))

	assert.Equal(t, NumberReserved, p.Status)
	assert.True(t, p.IsOwnedBy(user))
	require.NotNil(t, p.ReservedUntil)
	assert.Equal(t, now.Add(DefaultReservationDuration), *p.ReservedUntil)
	assert.NoError(t, p.CheckInvariants())
}

func TestPhoneNumber_ReserveUnavailableLeavesNumberUnchanged(t *testing.T) {
	owner := primitive.NewObjectID()
	other := primitive.NewObjectID()

	for _, status := range []PhoneNumberStatus{NumberReserved, NumberActive, NumberSuspended} {
		t.Run(string(status), func(t *testing.T) {
			p := newAvailable(t)
			require.NoError(t, p.AssignTo(owner, status, now))
			before := *p

			err := p.Reserve(other, time.Hour, now.Add(time.Minute))

			assert.ErrorIs(t, err, ErrNumberNotAvailable)
			assert.Equal(t, before, *p)
		})
	}
}

func TestPhoneNumber_Activate(t *testing.T) {
	user := primitive.NewObjectID()

	p := newAvailable(t)
	assert.ErrorIs(t, p.Activate(user, now), ErrNotReservedByUser)

	require.NoError(t, p.Reserve(user, time.Minute, now))
	assert.ErrorIs(t, p.Activate(primitive.NewObjectID(), now), ErrNotReservedByUser)

	require.NoError(t, p.Activate(user, now))
	assert.Equal(t, NumberActive, p.Status)
	assert.Nil(t, p.ReservedUntil)
	assert.NoError(t, p.CheckInvariants())
}

func TestPhoneNumber_Release(t *testing.T) {
	p := newAvailable(t)
	require.NoError(t, p.Reserve(primitive.NewObjectID(), time.Minute, now))

	p.Release(now)

	assert.Equal(t, NumberAvailable, p.Status)
	assert.Nil(t, p.User)
	assert.Nil(t, p.ReservedUntil)
	assert.NoError(t, p.CheckInvariants())
}

func TestPhoneNumber_AssignTo(t *testing.T) {
	owner := primitive.NewObjectID()

	p := newAvailable(t)
	assert.ErrorIs(t, p.AssignTo(owner, NumberAvailable, now), ErrInvalidStatus)
	assert.ErrorIs(t, p.AssignTo(owner, "gone", now), ErrInvalidStatus)

	require.NoError(t, p.AssignTo(owner, NumberReserved, now))
	assert.NotNil(t, p.ReservedUntil)

	require.NoError(t, p.AssignTo(owner, NumberSuspended, now))
	assert.Nil(t, p.ReservedUntil)
	assert.NoError(t, p.CheckInvariants())

	assert.ErrorIs(t, p.AssignTo(primitive.NewObjectID(), NumberActive, now), ErrAlreadyAssigned)
	assert.Equal(t, NumberSuspended, p.Status)
}

func TestPhoneNumber_AvailableFor(t *testing.T) {
	user := primitive.NewObjectID()
	p := newAvailable(t)
	assert.True(t, p.AvailableFor(user))

	require.NoError(t, p.Reserve(user, time.Minute, now))
	assert.True(t, p.AvailableFor(user))
	assert.False(t, p.AvailableFor(primitive.NewObjectID()))

	require.NoError(t, p.Activate(user, now))
	assert.False(t, p.AvailableFor(user))
}

func TestPhoneNumber_ReservationExpired(t *testing.T) {
	p := newAvailable(t)
	require.NoError(t, p.Reserve(primitive.NewObjectID(), 30*time.Minute, now))

	assert.False(t, p.ReservationExpired(now.Add(29*time.Minute)))
	assert.True(t, p.ReservationExpired(now.Add(31*time.Minute)))
}

func TestPhoneNumber_CheckInvariants(t *testing.T) {
	user := primitive.NewObjectID()
	until := now

	broken := []PhoneNumber{
		{Number: "1", Status: NumberAvailable, User: &user},
		{Number: "2", Status: NumberActive},
		{Number: "3", Status: NumberReserved, User: &user},
		{Number: "4", Status: NumberActive, User: &user, ReservedUntil: &until},
		{Number: "5", Status: "unknown"},
	}
	for _, p := range broken {
		assert.Error(t, p.CheckInvariants(), "number %s", p.Number)
	}
}
