package spool

import (
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisSpoolFailsWithoutServer(t *testing.T) {
	_, err := NewRedisSpool(RedisConfig{Addr: "127.0.0.1:1"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ping redis")
}

func TestRedisSpoolKeys(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	s := newRedisSpool(client, "", nil)
	defer s.Close()

	assert.Equal(t, "lattice:spool:index", s.indexKey())
	assert.Equal(t, "lattice:spool:data", s.dataKey())
	assert.Equal(t, "lattice:spool:encoding", s.encodingKey())

	var _ Spool = s
}
