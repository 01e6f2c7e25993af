package attempt_test

import (
	"testing"
	"time"

	"courierhub/internal/core/domain/model/attempt"
	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var broadcastAt = time.Date(2024, 5, 14, 9, 30, 0, 0, time.UTC)

func TestNewAttempt(t *testing.T) {
	orderID := kernel.NewUUID()
	a, b := kernel.NewUUID(), kernel.NewUUID()

	att, err := attempt.NewAttempt(orderID, 2, 1, []kernel.UUID{a, b, a}, broadcastAt, time.Minute)
	require.NoError(t, err)

	assert.Equal(t, 2, att.Seq())
	assert.Equal(t, 1, att.Tier())
	assert.Equal(t, []kernel.UUID{a, b}, att.Candidates())
	assert.Equal(t, broadcastAt.Add(time.Minute), att.ExpiresAt())
	assert.True(t, att.Includes(b))
	assert.False(t, att.Includes(kernel.NewUUID()))
	assert.Equal(t, []kernel.UUID{a}, att.Others(b))
}

func TestNewAttempt_EmptyExpiresImmediately(t *testing.T) {
	att, err := attempt.NewAttempt(kernel.NewUUID(), 1, 0, nil, broadcastAt, time.Minute)
	require.NoError(t, err)

	assert.True(t, att.IsEmpty())
	assert.True(t, att.IsExpired(broadcastAt))
}

func TestAttempt_IsExpired(t *testing.T) {
	att, err := attempt.NewAttempt(kernel.NewUUID(), 1, 0, []kernel.UUID{kernel.NewUUID()}, broadcastAt, time.Minute)
	require.NoError(t, err)

	assert.False(t, att.IsExpired(broadcastAt.Add(59*time.Second)))
	assert.True(t, att.IsExpired(broadcastAt.Add(time.Minute)))
}

func TestNewAttempt_Validation(t *testing.T) {
	orderID := kernel.NewUUID()

	_, err := attempt.NewAttempt(kernel.UUID{}, 1, 0, nil, broadcastAt, time.Minute)
	require.ErrorIs(t, err, errs.ErrValueIsRequired)

	_, err = attempt.NewAttempt(orderID, 0, 0, nil, broadcastAt, time.Minute)
	require.ErrorIs(t, err, errs.ErrValueIsOutOfRange)

	_, err = attempt.NewAttempt(orderID, 1, -1, nil, broadcastAt, time.Minute)
	require.ErrorIs(t, err, errs.ErrValueIsOutOfRange)

	_, err = attempt.NewAttempt(orderID, 1, 0, nil, broadcastAt, 0)
	require.ErrorIs(t, err, errs.ErrValueIsInvalid)

	_, err = attempt.NewAttempt(orderID, 1, 0, []kernel.UUID{{}}, broadcastAt, time.Minute)
	require.ErrorIs(t, err, errs.ErrValueIsInvalid)
}

func TestAttempt_CandidatesAreCopied(t *testing.T) {
	first := kernel.NewUUID()
	att, err := attempt.NewAttempt(kernel.NewUUID(), 1, 0, []kernel.UUID{first}, broadcastAt, time.Minute)
	require.NoError(t, err)

	got := att.Candidates()
	got[0] = kernel.NewUUID()

	assert.True(t, att.Includes(first))
}

func TestRestoreAttempt(t *testing.T) {
	att, err := attempt.NewAttempt(kernel.NewUUID(), 3, 2, []kernel.UUID{kernel.NewUUID()}, broadcastAt, 90*time.Second)
	require.NoError(t, err)

	restored, err := attempt.RestoreAttempt(att.Snapshot())
	require.NoError(t, err)
	assert.Equal(t, att.Snapshot(), restored.Snapshot())

	var zero attempt.Attempt
	require.ErrorIs(t, zero.Validate(), attempt.ErrAttemptIsNotConstructed)
}
