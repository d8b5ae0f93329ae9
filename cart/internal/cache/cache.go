package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/cart/pkg/response"
	"github.com/Alturino/storefront/internal/log"
)

const summaryKeyFormat = "cart:summary:%s"

func SummaryKey(userID uuid.UUID) string {
	return fmt.Sprintf(summaryKeyFormat, userID.String())
}

// SummaryCache mirrors the latest cart summary of each user so readers that
// only need the badge counts skip the database.
type SummaryCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSummaryCache(client *redis.Client, ttl time.Duration) *SummaryCache {
	return &SummaryCache{client: client, ttl: ttl}
}

func (s *SummaryCache) Set(c context.Context, userID uuid.UUID, summary response.Summary) error {
	key := SummaryKey(userID)
	logger := zerolog.Ctx(c).With().
		Str(log.KeyTag, "SummaryCache Set").
		Str(log.KeyCacheKey, key).
		Logger()

	logger.Trace().Msg("marshaling cart summary")
	b, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed marshaling cart summary with error=%w", err)
	}

	logger.Trace().Msg("setting cart summary")
	if err = s.client.Set(c, key, b, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed setting key=%s with error=%w", key, err)
	}
	logger.Trace().Msg("set cart summary")
	return nil
}

// Get reports false when no summary is mirrored for userID.
func (s *SummaryCache) Get(c context.Context, userID uuid.UUID) (response.Summary, bool, error) {
	key := SummaryKey(userID)
	b, err := s.client.Get(c, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return response.Summary{}, false, nil
	}
	if err != nil {
		return response.Summary{}, false, fmt.Errorf("failed getting key=%s with error=%w", key, err)
	}

	summary := response.Summary{}
	if err = json.Unmarshal(b, &summary); err != nil {
		return response.Summary{}, false, fmt.Errorf("failed unmarshaling key=%s with error=%w", key, err)
	}
	return summary, true, nil
}

func (s *SummaryCache) Delete(c context.Context, userID uuid.UUID) error {
	key := SummaryKey(userID)
	if err := s.client.Del(c, key).Err(); err != nil {
		return fmt.Errorf("failed deleting key=%s with error=%w", key, err)
	}
	return nil
}
