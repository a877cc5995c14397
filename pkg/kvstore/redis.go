package kvstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/proticket/marketplace-core/pkg/logger"
)

// redisStore keeps each record as a Redis hash with two fields: "v" holds
// the version counter, "d" the value bytes. The version check and the
// write happen inside one Lua script, which is what makes CompareAndSet
// atomic on the server.
type redisStore struct {
	cli       *redis.Client
	keyPrefix string
	l         logger.Logger
}

func NewRedisStore(cli *redis.Client, keyPrefix string, l logger.Logger) Store {
	return &redisStore{
		cli:       cli,
		keyPrefix: keyPrefix,
		l:         l,
	}
}

// casScript returns 1 on success, 0 on a version mismatch. An absent key
// counts as version 0.
var casScript = redis.NewScript(`
	local key = KEYS[1]
	local expected = tonumber(ARGV[1])
	local value = ARGV[2]

	local current = tonumber(redis.call('HGET', key, 'v') or '0')
	if current ~= expected then
		return 0
	end

	redis.call('HSET', key, 'v', current + 1, 'd', value)
	return 1
`)

var setScript = redis.NewScript(`
	local key = KEYS[1]
	local value = ARGV[1]

	local current = tonumber(redis.call('HGET', key, 'v') or '0')
	redis.call('HSET', key, 'v', current + 1, 'd', value)
	return current + 1
`)

func (s *redisStore) Get(ctx context.Context, key string) (Record, error) {
	vals, err := s.cli.HMGet(ctx, s.key(key), "v", "d").Result()
	if err != nil {
		s.l.Errorf(ctx, "kvstore.redisStore.Get: %v", err)
		return Record{}, err
	}

	if vals[0] == nil || vals[1] == nil {
		return Record{}, ErrNotFound
	}

	var version int64
	if _, err := fmt.Sscanf(vals[0].(string), "%d", &version); err != nil {
		return Record{}, fmt.Errorf("corrupt version for key %s: %w", key, err)
	}

	return Record{
		Key:     key,
		Value:   []byte(vals[1].(string)),
		Version: version,
	}, nil
}

func (s *redisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := setScript.Run(ctx, s.cli, []string{s.key(key)}, value).Err(); err != nil {
		s.l.Errorf(ctx, "kvstore.redisStore.Set: %v", err)
		return err
	}
	return nil
}

func (s *redisStore) CompareAndSet(ctx context.Context, key string, value []byte, version int64) error {
	res, err := casScript.Run(ctx, s.cli, []string{s.key(key)}, version, value).Int()
	if err != nil {
		s.l.Errorf(ctx, "kvstore.redisStore.CompareAndSet: %v", err)
		return err
	}

	if res == 0 {
		return ErrVersionMismatch
	}

	return nil
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	if err := s.cli.Del(ctx, s.key(key)).Err(); err != nil {
		s.l.Errorf(ctx, "kvstore.redisStore.Delete: %v", err)
		return err
	}
	return nil
}

func (s *redisStore) ScanPrefix(ctx context.Context, prefix string) ([]Record, error) {
	var recs []Record

	iter := s.cli.Scan(ctx, 0, s.key(prefix)+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := s.stripPrefix(iter.Val())

		rec, err := s.Get(ctx, key)
		if err != nil {
			if err == ErrNotFound {
				// Deleted between SCAN and HMGET.
				continue
			}
			return nil, err
		}

		recs = append(recs, rec)
	}
	if err := iter.Err(); err != nil {
		s.l.Errorf(ctx, "kvstore.redisStore.ScanPrefix: %v", err)
		return nil, err
	}

	return recs, nil
}

func (s *redisStore) key(key string) string {
	return s.keyPrefix + key
}

func (s *redisStore) stripPrefix(redisKey string) string {
	return redisKey[len(s.keyPrefix):]
}
