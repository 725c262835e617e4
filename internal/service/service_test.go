package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"donation-payments/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

// mockTx implements pgx.Tx for testing and records how the transaction ended.
type mockTx struct {
	pgx.Tx
	mu         sync.Mutex
	committed  bool
	rolledBack bool
	commitErr  error
}

func (m *mockTx) Rollback(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.committed {
		m.rolledBack = true
	}
	return nil
}

func (m *mockTx) Commit(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commitErr != nil {
		return m.commitErr
	}
	m.committed = true
	return nil
}

func requireAppError(t *testing.T, err error, code string, status int) {
	t.Helper()
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	require.Equal(t, code, appErr.Code)
	require.Equal(t, status, appErr.HTTPStatus)
}
