package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	gormlogger "gorm.io/gorm/logger"
)

func TestOperationFromSQL(t *testing.T) {
	assert.Equal(t, "SELECT", operationFromSQL("WITH g AS (SELECT 1) SELECT * FROM g"))
	assert.Equal(t, "UPDATE", operationFromSQL(" update equity_grants set unvested_shares = 1"))
	assert.Equal(t, "UNKNOWN", operationFromSQL(""))
}

func TestGormLoggerDropsParams(t *testing.T) {
	l := NewGormLogger(DefaultGormLoggerConfig())
	sql, params := l.ParamsFilter(context.Background(), "SELECT ?", 42)
	assert.Equal(t, "SELECT ?", sql)
	assert.Nil(t, params)
}

func TestGormLoggerLogMode(t *testing.T) {
	l := NewGormLogger(DefaultGormLoggerConfig())
	silent := l.LogMode(gormlogger.Silent).(*GormLogger)
	assert.Equal(t, gormlogger.Silent, silent.cfg.Level)
	assert.Equal(t, gormlogger.Warn, l.cfg.Level)
}
