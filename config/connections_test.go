package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresPoolConfig(t *testing.T) {
	t.Run("plain connection", func(t *testing.T) {
		cfg := &DatabaseConfig{Host: "localhost", Port: 5432, User: "hydro", Password: "secret", Name: "hydrotrack", MaxConnections: 7}

		poolCfg, err := PostgresPoolConfig(cfg)
		require.NoError(t, err)
		assert.Equal(t, "hydro", poolCfg.ConnConfig.User)
		assert.Equal(t, "hydrotrack", poolCfg.ConnConfig.Database)
		assert.Equal(t, int32(7), poolCfg.MaxConns)
		assert.Nil(t, poolCfg.ConnConfig.TLSConfig)
	})

	t.Run("tls required", func(t *testing.T) {
		cfg := &DatabaseConfig{Host: "db.hydrotrack.io", Port: 5432, User: "hydro", Name: "hydrotrack", SSLMode: "require"}

		poolCfg, err := PostgresPoolConfig(cfg)
		require.NoError(t, err)
		require.NotNil(t, poolCfg.ConnConfig.TLSConfig)
		assert.Equal(t, "db.hydrotrack.io", poolCfg.ConnConfig.TLSConfig.ServerName)
	})
}

func TestRedisOptions(t *testing.T) {
	opts := RedisOptions(&RedisConfig{Address: "cache:6379", DB: 2, PoolSize: 4})
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Nil(t, opts.TLSConfig)

	opts = RedisOptions(&RedisConfig{Address: "cache:6380", UseTLS: true})
	assert.NotNil(t, opts.TLSConfig)
}

func TestPingRedis(t *testing.T) {
	t.Run("succeeds after a failure", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		mock.ExpectPing().SetErr(errors.New("connection refused"))
		mock.ExpectPing().SetVal("PONG")

		err := PingRedis(context.Background(), client, 3, time.Millisecond)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("gives up", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		for i := 0; i < 2; i++ {
			mock.ExpectPing().SetErr(errors.New("connection refused"))
		}

		err := PingRedis(context.Background(), client, 2, time.Millisecond)
		assert.EqualError(t, err, "connection refused")
	})
}
