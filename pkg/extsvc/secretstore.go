package extsvc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// SecretStore persists registry credentials out-of-band from the database,
// keyed by an opaque reference stored on the Version row.
type SecretStore interface {
	Put(ctx context.Context, ref string, cred RegistryCredential) error
	Get(ctx context.Context, ref string) (RegistryCredential, error)
	Delete(ctx context.Context, ref string) error
}

const secretKeyPrefix = "forge:extsvc:credential:"

// RedisSecretStore stores registry credentials in Redis. Credentials are not
// given a TTL: they live exactly as long as the Version that references them
// and are reaped explicitly when that Version is deleted.
type RedisSecretStore struct {
	rdb *redis.Client
}

// NewRedisSecretStore creates a RedisSecretStore.
func NewRedisSecretStore(rdb *redis.Client) *RedisSecretStore {
	return &RedisSecretStore{rdb: rdb}
}

func (s *RedisSecretStore) Put(ctx context.Context, ref string, cred RegistryCredential) error {
	payload, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshaling registry credential: %w", err)
	}
	if err := s.rdb.Set(ctx, secretKeyPrefix+ref, payload, 0).Err(); err != nil {
		return fmt.Errorf("storing registry credential: %w", err)
	}
	return nil
}

func (s *RedisSecretStore) Get(ctx context.Context, ref string) (RegistryCredential, error) {
	raw, err := s.rdb.Get(ctx, secretKeyPrefix+ref).Bytes()
	if err != nil {
		return RegistryCredential{}, fmt.Errorf("loading registry credential: %w", err)
	}
	var cred RegistryCredential
	if err := json.Unmarshal(raw, &cred); err != nil {
		return RegistryCredential{}, fmt.Errorf("unmarshaling registry credential: %w", err)
	}
	return cred, nil
}

func (s *RedisSecretStore) Delete(ctx context.Context, ref string) error {
	return s.rdb.Del(ctx, secretKeyPrefix+ref).Err()
}
