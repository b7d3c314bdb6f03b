package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alem-hub/studentdb/internal/domain/student"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachableCache points at a port nothing listens on; commands fail fast.
func unreachableCache(t *testing.T) *Cache {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 1
	cfg.MaxRetries = -1
	cfg.DialTimeout = 200 * time.Millisecond

	client := redis.NewClient(cfg.Options())
	t.Cleanup(func() { _ = client.Close() })

	return NewCacheWithClient(client, cfg)
}

func TestConfig_Addr(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "localhost:6379", cfg.Addr())

	cfg.Host = "cache.internal"
	cfg.Port = 6380
	assert.Equal(t, "cache.internal:6380", cfg.Addr())
}

func TestConfig_Options(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Password = "secret"
	cfg.DB = 3

	opts := cfg.Options()
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, cfg.PoolSize, opts.PoolSize)
	assert.Equal(t, cfg.ReadTimeout, opts.ReadTimeout)
}

func TestRosterKey(t *testing.T) {
	assert.Equal(t, "roster:all", RosterKey(""))
	assert.Equal(t, "roster:all", RosterKey(student.RosterKeyAll))
	assert.Equal(t, "roster:group:G1", RosterKey(student.RosterKeyForGroup("G1")))
}

func TestCache_ArgumentValidation(t *testing.T) {
	c := unreachableCache(t)
	ctx := context.Background()

	assert.ErrorIs(t, c.Set(ctx, "", "v", time.Minute), ErrCacheKeyEmpty)
	assert.ErrorIs(t, c.Set(ctx, "k", nil, time.Minute), ErrCacheNilValue)
	assert.ErrorIs(t, c.Set(ctx, "k", "v", -time.Second), ErrCacheInvalidTTL)
	assert.ErrorIs(t, c.Set(ctx, "k", make(chan int), time.Minute), ErrCacheSerialization)

	var dest string
	assert.ErrorIs(t, c.Get(ctx, "", &dest), ErrCacheKeyEmpty)
	assert.ErrorIs(t, c.DeleteByPattern(ctx, ""), ErrCacheKeyEmpty)
	assert.NoError(t, c.Delete(ctx))
}

func TestNewCache_ConnectionFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 1
	cfg.MaxRetries = -1
	cfg.DialTimeout = 200 * time.Millisecond

	_, err := NewCache(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCacheConnection)
}

func TestRosterCache_UnreachableServer(t *testing.T) {
	rc := NewRosterCache(unreachableCache(t))
	ctx := context.Background()

	_, err := rc.GetRoster(ctx, student.RosterKeyAll)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)

	err = rc.SetRoster(ctx, student.RosterKeyAll, nil, time.Minute)
	assert.Error(t, err)

	assert.Error(t, rc.Invalidate(ctx))
}

func TestRosterSnapshot_RoundTrip(t *testing.T) {
	roster := []student.Student{
		{ID: 2, FirstName: "Grace", LastName: "Hopper", Group: "Beta"},
		{ID: 1, FirstName: "Ada", LastName: "Lovelace", Group: "Alpha"},
	}

	raw, err := encodeRoster(roster)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"id":2,"first_name":"Grace","last_name":"Hopper","group":"Beta"},
		{"id":1,"first_name":"Ada","last_name":"Lovelace","group":"Alpha"}
	]`, string(raw))

	decoded, err := decodeRoster(raw)
	require.NoError(t, err)
	assert.Equal(t, roster, decoded)
}

func TestRosterSnapshot_NilNormalisation(t *testing.T) {
	raw, err := encodeRoster(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))

	for _, stored := range []string{"[]", "null"} {
		decoded, err := decodeRoster(json.RawMessage(stored))
		require.NoError(t, err, stored)
		assert.NotNil(t, decoded, stored)
		assert.Empty(t, decoded, stored)
	}
}

func TestRosterSnapshot_Malformed(t *testing.T) {
	_, err := decodeRoster(json.RawMessage(`{"id":1}`))
	assert.ErrorIs(t, err, ErrCacheSerialization)
}
