package db

import (
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/payequity/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.False(t, IsDuplicateKeyErr(nil))
	assert.True(t, IsDuplicateKeyErr(gorm.ErrDuplicatedKey))
	assert.True(t, IsDuplicateKeyErr(errors.New("UNIQUE constraint failed: equity_grants.contractor_id")))
	assert.True(t, IsDuplicateKeyErr(errors.New("Error 1062: Duplicate entry")))
	assert.False(t, IsDuplicateKeyErr(errors.New("connection refused")))
}

func TestDialect(t *testing.T) {
	for _, typ := range []string{"postgres", "mysql", "sqlite"} {
		d, err := Dialect(config.Config{DBType: typ, DBName: "payequity"})
		require.NoError(t, err, typ)
		assert.NotNil(t, d)
	}

	_, err := Dialect(config.Config{DBType: "oracle"})
	assert.Error(t, err)
}

type fakePool struct {
	idle, open    int
	life, idleFor time.Duration
}

func (f *fakePool) SetMaxIdleConns(n int)              { f.idle = n }
func (f *fakePool) SetMaxOpenConns(n int)              { f.open = n }
func (f *fakePool) SetConnMaxLifetime(d time.Duration) { f.life = d }
func (f *fakePool) SetConnMaxIdleTime(d time.Duration) { f.idleFor = d }

func TestApplyPool(t *testing.T) {
	p := &fakePool{}
	applyPool(p, PoolConfig{MaxIdleConn: 5, MaxOpenConn: 20, ConnMaxLifetime: 60})
	assert.Equal(t, 5, p.idle)
	assert.Equal(t, 20, p.open)
	assert.Equal(t, time.Minute, p.life)
	assert.Zero(t, p.idleFor)
}

func TestInstrumentWithoutPoolMetrics(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:instrument?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, Instrument(conn, config.Config{DBName: "payequity"}))
	_, ok := conn.Config.Plugins["otelgorm"]
	assert.True(t, ok)
	assert.NoError(t, conn.Exec("SELECT 1").Error)
}
