package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ai-chat-subscription/internal/domain/model"
	"ai-chat-subscription/internal/domain/ports/repository"
	"ai-chat-subscription/internal/infra/metrics"
	red "ai-chat-subscription/internal/infra/redis"
)

var _ repository.PlanRepository = (*planRepoCacheDecorator)(nil)

// planRepoCacheDecorator caches the plan catalog in Redis. Plans change
// rarely but are read on every entitlement resolution and code redemption.
type planRepoCacheDecorator struct {
	inner repository.PlanRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewPlanRepoCacheDecorator(inner repository.PlanRepository, cache red.RedisClient, ttl time.Duration) repository.PlanRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &planRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func planKey(id string) string { return fmt.Sprintf("plan:%s", id) }

const planListKey = "plans:active"

func (d *planRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	val, err := d.cache.Get(ctx, planKey(id))
	if err == nil {
		var p model.Plan
		if json.Unmarshal([]byte(val), &p) == nil {
			metrics.IncCacheRequest("plan", "hit")
			return &p, nil
		}
	} else if err != redis.Nil {
		metrics.IncCacheRequest("plan", "error")
	}

	metrics.IncCacheRequest("plan", "miss")
	p, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(p); err == nil {
		_ = d.cache.Set(ctx, planKey(id), b, d.ttl)
	}
	return p, nil
}

func (d *planRepoCacheDecorator) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	val, err := d.cache.Get(ctx, planListKey)
	if err == nil {
		var plans []*model.Plan
		if json.Unmarshal([]byte(val), &plans) == nil {
			metrics.IncCacheRequest("plan_list", "hit")
			return plans, nil
		}
	}

	metrics.IncCacheRequest("plan_list", "miss")
	plans, err := d.inner.ListActive(ctx, tx)
	if err != nil {
		return nil, err
	}
	if len(plans) > 0 {
		if b, err := json.Marshal(plans); err == nil {
			_ = d.cache.Set(ctx, planListKey, b, d.ttl)
		}
	}
	return plans, nil
}

// ListAll is admin-only and rare; it always goes to the database.
func (d *planRepoCacheDecorator) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	return d.inner.ListAll(ctx, tx)
}

// Writes invalidate both the per-plan entry and the active list.

func (d *planRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	_ = d.cache.Del(ctx, planKey(p.ID), planListKey)
	return d.inner.Save(ctx, tx, p)
}

func (d *planRepoCacheDecorator) Deactivate(ctx context.Context, tx repository.Tx, id string) error {
	_ = d.cache.Del(ctx, planKey(id), planListKey)
	return d.inner.Deactivate(ctx, tx, id)
}
