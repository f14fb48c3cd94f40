package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps a collection as a hash of id -> JSON plus a list of ids
// that records insertion order.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// NewRedisClient connects and pings so a bad address fails at startup.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

func docsKey(collection string) string {
	return fmt.Sprintf("%s:docs", collection)
}

func idsKey(collection string) string {
	return fmt.Sprintf("%s:ids", collection)
}

func (s *RedisStore) Insert(ctx context.Context, collection string, record any) (string, error) {
	data, err := encodeRecord("insert", collection, record)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, docsKey(collection), id, data)
		pipe.RPush(ctx, idsKey(collection), id)
		return nil
	})
	if err != nil {
		return "", storeFailure("insert", collection, err)
	}

	return id, nil
}

func (s *RedisStore) ListAll(ctx context.Context, collection string) ([]Document, error) {
	if err := validateCollection(collection); err != nil {
		return nil, storeFailure("list", collection, err)
	}

	ids, err := s.rdb.LRange(ctx, idsKey(collection), 0, -1).Result()
	if err != nil {
		return nil, storeFailure("list", collection, err)
	}
	docs := make([]Document, 0, len(ids))
	if len(ids) == 0 {
		return docs, nil
	}

	values, err := s.rdb.HMGet(ctx, docsKey(collection), ids...).Result()
	if err != nil {
		return nil, storeFailure("list", collection, err)
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// id listed but hash entry gone
			continue
		}
		docs = append(docs, Document{ID: ids[i], Data: []byte(raw)})
	}
	return docs, nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

var _ DocumentStore = (*RedisStore)(nil)
