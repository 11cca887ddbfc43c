package pg_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/kiosk/pkg/pg"
)

func TestErrorClassifiers(t *testing.T) {
	t.Parallel()

	dup := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	check := &pgconn.PgError{Code: "23514"}

	assert.True(t, pg.IsDuplicateKeyError(dup))
	assert.False(t, pg.IsDuplicateKeyError(check))
	assert.False(t, pg.IsDuplicateKeyError(nil))

	assert.True(t, pg.IsCheckViolationError(check))
	assert.False(t, pg.IsCheckViolationError(errors.New("other")))

	assert.True(t, pg.IsNotFoundError(fmt.Errorf("find: %w", pgx.ErrNoRows)))
	assert.False(t, pg.IsNotFoundError(nil))
}

func TestConnect_EmptyConnectionString(t *testing.T) {
	t.Parallel()

	_, err := pg.Connect(t.Context(), pg.Config{})
	assert.ErrorIs(t, err, pg.ErrEmptyConnectionString)
}

func TestConnect_InvalidConnectionString(t *testing.T) {
	t.Parallel()

	_, err := pg.Connect(t.Context(), pg.Config{ConnectionString: "postgres://%zz"})
	assert.ErrorIs(t, err, pg.ErrFailedToParseDBConfig)
}
