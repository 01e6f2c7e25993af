package pgerr_test

import (
	"errors"
	"fmt"
	"testing"

	"courierhub/internal/adapters/out/postgres/pgerr"
	"courierhub/internal/core/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		contention bool
	}{
		{name: "serialization failure", err: &pgconn.PgError{Code: "40001"}, contention: true},
		{name: "deadlock", err: &pgconn.PgError{Code: "40P01"}, contention: true},
		{name: "lock timeout wrapped", err: fmt.Errorf("update: %w", &pgconn.PgError{Code: "55P03"}), contention: true},
		{name: "unique violation", err: &pgconn.PgError{Code: "23505"}},
		{name: "plain error", err: errors.New("connection reset")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pgerr.Classify(tt.err)
			require.ErrorIs(t, got, tt.err)
			assert.Equal(t, tt.contention, errors.Is(got, ports.ErrStorageContention))
		})
	}

	require.NoError(t, pgerr.Classify(nil))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, pgerr.IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, pgerr.IsUniqueViolation(&pgconn.PgError{Code: "40001"}))
	assert.False(t, pgerr.IsUniqueViolation(errors.New("boom")))
}
