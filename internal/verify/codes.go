package verify

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"
)

// CodeStore keeps email verification codes in redis with a TTL so every
// horizontally scaled user-service instance sees the same codes.
type CodeStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCodeStore creates a store; ttl bounds how long a code stays valid.
func NewCodeStore(client *redis.Client, ttl time.Duration) *CodeStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CodeStore{client: client, ttl: ttl}
}

// Generate returns a fresh 6-digit code.
func Generate() string {
	return fmt.Sprintf("%06d", rand.IntN(900000)+100000)
}

// Put stores the code for an email, replacing any previous one.
func (s *CodeStore) Put(ctx context.Context, email, code string) error {
	return s.client.Set(ctx, key(email), code, s.ttl).Err()
}

// Verify reports whether code matches the stored, unexpired code.
func (s *CodeStore) Verify(ctx context.Context, email, code string) (bool, error) {
	stored, err := s.client.Get(ctx, key(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return stored == code, nil
}

// Delete removes a consumed code.
func (s *CodeStore) Delete(ctx context.Context, email string) error {
	return s.client.Del(ctx, key(email)).Err()
}

func key(email string) string {
	return "verify:code:" + email
}
