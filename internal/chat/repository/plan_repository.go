package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace_chat_service/internal/chat/domain"
	"marketplace_chat_service/pkg/database"
	"marketplace_chat_service/pkg/logger"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"
)

// PlanRepository read-only view of the billing collaborator's plan table
type PlanRepository interface {
	// GetPlan returns PlanFree when the user has no billing row
	GetPlan(ctx context.Context, userID string) (domain.Plan, error)
}

type pgPlanRepository struct {
	pool *pgxpool.Pool
}

// NewPGPlanRepository billing_status lives in the billing service's postgres
func NewPGPlanRepository(pool *pgxpool.Pool) PlanRepository {
	return &pgPlanRepository{pool: pool}
}

func (r *pgPlanRepository) GetPlan(ctx context.Context, userID string) (domain.Plan, error) {
	var plan *string
	err := r.pool.QueryRow(ctx,
		`SELECT plan FROM billing_status WHERE user_id = $1`, userID,
	).Scan(&plan)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PlanFree, nil
	}
	if err != nil {
		return "", fmt.Errorf("query plan: %w", err)
	}
	if plan == nil {
		return domain.PlanFree, nil
	}
	return domain.ParsePlan(*plan), nil
}

type staticPlanRepository struct {
	plans map[string]domain.Plan
}

// NewStaticPlanRepository fixed plan table, used when no billing database is configured
func NewStaticPlanRepository(plans map[string]domain.Plan) PlanRepository {
	cp := make(map[string]domain.Plan, len(plans))
	for k, v := range plans {
		cp[k] = v
	}
	return &staticPlanRepository{plans: cp}
}

func (r *staticPlanRepository) GetPlan(_ context.Context, userID string) (domain.Plan, error) {
	if p, ok := r.plans[userID]; ok {
		return domain.ParsePlan(string(p)), nil
	}
	return domain.PlanFree, nil
}

type cachedPlanRepository struct {
	next  PlanRepository
	cache database.RedisRepository[domain.PlanStatus]
	ttl   time.Duration
}

// NewCachedPlanRepository read-through redis cache in front of another PlanRepository.
// Cache failures fall through to the source.
func NewCachedPlanRepository(next PlanRepository, cache database.RedisRepository[domain.PlanStatus], ttl time.Duration) PlanRepository {
	return &cachedPlanRepository{next: next, cache: cache, ttl: ttl}
}

func (r *cachedPlanRepository) GetPlan(ctx context.Context, userID string) (domain.Plan, error) {
	status, err := r.cache.Get(ctx, userID)
	if err == nil {
		return domain.ParsePlan(string(status.Plan)), nil
	}
	if !errors.Is(err, database.ErrCacheMiss) {
		logger.Log.Warn("plan cache get failed", zap.String("user_id", userID), zap.Error(err))
	}

	plan, err := r.next.GetPlan(ctx, userID)
	if err != nil {
		return "", err
	}

	if err := r.cache.Set(ctx, userID, domain.PlanStatus{UserID: userID, Plan: plan}, r.ttl); err != nil {
		logger.Log.Warn("plan cache set failed", zap.String("user_id", userID), zap.Error(err))
	}
	return plan, nil
}
