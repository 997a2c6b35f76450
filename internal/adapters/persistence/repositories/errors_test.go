package repositories

import (
	"errors"
	"fmt"
	"testing"

	"estate-commission/internal/core/domain"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsDuplicate(t *testing.T) {
	assert.True(t, IsDuplicate(gorm.ErrDuplicatedKey))
	assert.True(t, IsDuplicate(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}))
	assert.True(t, IsDuplicate(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.True(t, IsDuplicate(errors.New("UNIQUE constraint failed: vouchers.number")))

	assert.False(t, IsDuplicate(nil))
	assert.False(t, IsDuplicate(&mysql.MySQLError{Number: 1213}))
	assert.False(t, IsDuplicate(errors.New("boom")))
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(&mysql.MySQLError{Number: 1213, Message: "Deadlock found"}))
	assert.True(t, IsTransient(&mysql.MySQLError{Number: 1205}))
	assert.True(t, IsTransient(&pgconn.PgError{Code: "40001"}))
	assert.True(t, IsTransient(&pgconn.PgError{Code: "40P01"}))
	assert.True(t, IsTransient(errors.New("database is locked")))
	assert.True(t, IsTransient(fmt.Errorf("%w: retry", domain.ErrTransientStorage)))

	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsTransient(gorm.ErrRecordNotFound))
}

func TestTranslate(t *testing.T) {
	assert.NoError(t, Translate(nil, domain.ErrAgentNotFound))
	assert.ErrorIs(t, Translate(gorm.ErrRecordNotFound, domain.ErrAgentNotFound), domain.ErrAgentNotFound)
	assert.ErrorIs(t, Translate(&mysql.MySQLError{Number: 1213}, domain.ErrAgentNotFound), domain.ErrTransientStorage)
	assert.ErrorIs(t, Translate(&mysql.MySQLError{Number: 1062}, domain.ErrAgentNotFound), domain.ErrDuplicateEntry)

	other := errors.New("syntax error")
	assert.Equal(t, other, Translate(other, domain.ErrAgentNotFound))
}
