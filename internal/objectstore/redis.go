package objectstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// DefaultPageSize is the number of keys returned per listing page.
const DefaultPageSize = 1000

// RedisStore keeps objects in Redis for deployments without an object store.
//
// Each object is a hash {body, content_type} at onboarding:{namespace}:object:{key}.
// A sorted set at onboarding:{namespace}:objects indexes every key with score 0,
// so listings are exact, lexicographically ordered and paginated with ZRANGEBYLEX.
type RedisStore struct {
	rdb       *redis.Client
	namespace string
	pageSize  int64
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates an object store on an existing Redis client.
// A non-positive pageSize selects DefaultPageSize.
func NewRedisStore(rdb *redis.Client, namespace string, pageSize int) (*RedisStore, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace cannot be empty")
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return &RedisStore{
		rdb:       rdb,
		namespace: namespace,
		pageSize:  int64(pageSize),
	}, nil
}

// ObjectKey returns the Redis key holding an object.
// Pattern: onboarding:{namespace}:object:{key}
func ObjectKey(namespace, key string) string {
	return fmt.Sprintf("onboarding:%s:object:%s", namespace, key)
}

// IndexKey returns the Redis key of the sorted set indexing all objects.
// Pattern: onboarding:{namespace}:objects
func IndexKey(namespace string) string {
	return fmt.Sprintf("onboarding:%s:objects", namespace)
}

// Put writes an object and adds it to the listing index in one transaction.
func (s *RedisStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	if key == "" {
		return fmt.Errorf("object key cannot be empty")
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, ObjectKey(s.namespace, key), map[string]interface{}{
			"body":         body,
			"content_type": contentType,
		})
		pipe.ZAdd(ctx, IndexKey(s.namespace), redis.Z{Score: 0, Member: key})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write object %q to Redis: %w", key, err)
	}

	return nil
}

// Get reads an object body. Returns ErrNotFound if the key does not exist.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	body, err := s.rdb.HGet(ctx, ObjectKey(s.namespace, key), "body").Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read object %q from Redis: %w", key, err)
	}
	return body, nil
}

// ListPage returns up to pageSize keys under prefix that sort after token.
// The token is the last key of the previous page.
func (s *RedisStore) ListPage(ctx context.Context, prefix, token string) (*Page, error) {
	min := "[" + prefix
	if token != "" {
		min = "(" + token
	}
	max := "+"
	if prefix != "" {
		max = "(" + prefix + "\xff"
	}

	keys, err := s.rdb.ZRangeByLex(ctx, IndexKey(s.namespace), &redis.ZRangeBy{
		Min:   min,
		Max:   max,
		Count: s.pageSize,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list objects from Redis: %w", err)
	}

	page := &Page{Keys: make([]string, 0, len(keys))}
	for _, key := range keys {
		if strings.HasPrefix(key, prefix) {
			page.Keys = append(page.Keys, key)
		}
	}

	if int64(len(keys)) == s.pageSize {
		page.NextToken = keys[len(keys)-1]
	}

	return page, nil
}

// URI returns redis://{namespace}/{key}.
func (s *RedisStore) URI(key string) string {
	return fmt.Sprintf("redis://%s/%s", s.namespace, key)
}
