package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// KVStore is the namespaced key/value persistence backing client session
// state (cart, table, language, theme, order timer). Values are JSON.
type KVStore struct {
	client *redis.Client
	ns     string
}

func NewKVStore(client *redis.Client, namespace string) *KVStore {
	return &KVStore{client: client, ns: namespace}
}

func (s *KVStore) Client() *redis.Client {
	return s.client
}

// Namespace returns a store scoped to a sub-namespace, e.g. one per client
// session.
func (s *KVStore) Namespace(ns string) *KVStore {
	return &KVStore{client: s.client, ns: s.ns + ":" + ns}
}

func (s *KVStore) key(k string) string {
	return s.ns + ":" + k
}

// Get unmarshals the stored value into dest. The second return is false when
// the key is absent.
func (s *KVStore) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (s *KVStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(key), data, ttl).Err()
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}
