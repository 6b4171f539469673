package kv

import (
	"context"
	"testing"

	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresBackend(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	b := NewPostgresBackend(mock)
	ctx := context.Background()

	mock.ExpectQuery("SELECT value FROM kv_store").WithArgs("derma_products").WillReturnError(pgx.ErrNoRows)
	_, found, err := b.Get(ctx, "derma_products")
	require.NoError(t, err)
	assert.False(t, found)

	mock.ExpectExec("INSERT INTO kv_store").WithArgs("derma_products", `[{"id":"1"}]`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, b.Set(ctx, "derma_products", []byte(`[{"id":"1"}]`)))

	mock.ExpectQuery("SELECT value FROM kv_store").WithArgs("derma_products").WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow(`[{"id":"1"}]`))
	got, found, err := b.Get(ctx, "derma_products")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `[{"id":"1"}]`, string(got))

	mock.ExpectExec("DELETE FROM kv_store").WithArgs("derma_products").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, b.Delete(ctx, "derma_products"))

	mock.ExpectQuery("SELECT value FROM kv_store").WithArgs("derma_users").WillReturnError(errBackendDown)
	_, _, err = b.Get(ctx, "derma_users")
	assert.ErrorIs(t, err, errBackendDown)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
