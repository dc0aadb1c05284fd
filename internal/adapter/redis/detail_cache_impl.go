package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/boxd-office/internal/domain"
	"github.com/user/boxd-office/pkg/utils"
)

const detailKeyPrefix = "detail:"

// DetailCacheImpl implements repository.DetailCache with JSON values under
// expiring keys.
type DetailCacheImpl struct {
	client  *redis.Client
	baseURL string
}

// NewDetailCache scopes keys to baseURL so different catalogs never collide.
func NewDetailCache(client *redis.Client, baseURL string) *DetailCacheImpl {
	return &DetailCacheImpl{client: client, baseURL: baseURL}
}

// generateKey hashes the film's catalog location into a fixed-length key.
func (r *DetailCacheImpl) generateKey(slug string) string {
	return fmt.Sprintf("%s%s", detailKeyPrefix, utils.HashURL(r.baseURL+"/film/"+slug+"/"))
}

func (r *DetailCacheImpl) Get(ctx context.Context, slug string) (domain.DetailRecord, bool, error) {
	b, err := r.client.Get(ctx, r.generateKey(slug)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.DetailRecord{}, false, nil
	}
	if err != nil {
		return domain.DetailRecord{}, false, err
	}
	var rec domain.DetailRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return domain.DetailRecord{}, false, fmt.Errorf("decode cached detail %s: %w", slug, err)
	}
	rec.Slug = slug
	return rec, true, nil
}

// Put stores the record with SETEX so value and expiry are set atomically.
func (r *DetailCacheImpl) Put(ctx context.Context, rec domain.DetailRecord, ttl time.Duration) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.client.SetEx(ctx, r.generateKey(rec.Slug), b, ttl).Err()
}

func (r *DetailCacheImpl) Delete(ctx context.Context, slug string) error {
	return r.client.Del(ctx, r.generateKey(slug)).Err()
}
