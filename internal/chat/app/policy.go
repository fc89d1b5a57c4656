package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"marketplace_chat_service/internal/chat/domain"
	errprocess "marketplace_chat_service/pkg/err"
	"marketplace_chat_service/pkg/logger"

	"go.uber.org/zap"
)

// PolicyGate admission check run once before a conversation is created.
// nil allows; a TooManyRequests AppError denies.
type PolicyGate interface {
	CheckCreationAllowed(ctx context.Context, userID string) error
}

// PlanSource resolve a user's billing plan
type PlanSource interface {
	GetPlan(ctx context.Context, userID string) (domain.Plan, error)
}

// ConversationCounter count conversations a user created since a point in time
type ConversationCounter interface {
	CountConversationsCreatedSince(ctx context.Context, userID string, since time.Time) (int64, error)
}

// QuotaConfig weekly quota parameters
type QuotaConfig struct {
	Limit          int64
	Window         time.Duration
	UnlimitedPlans []string
	Now            func() time.Time
}

type weeklyQuotaGate struct {
	plans     PlanSource
	counter   ConversationCounter
	limit     int64
	window    time.Duration
	unlimited map[domain.Plan]struct{}
	now       func() time.Time
	metrics   *Metrics
}

// NewWeeklyQuotaGate restricted plans may create cfg.Limit conversations per cfg.Window
func NewWeeklyQuotaGate(plans PlanSource, counter ConversationCounter, cfg QuotaConfig, metrics *Metrics) PolicyGate {
	g := &weeklyQuotaGate{
		plans:     plans,
		counter:   counter,
		limit:     cfg.Limit,
		window:    cfg.Window,
		unlimited: make(map[domain.Plan]struct{}, len(cfg.UnlimitedPlans)),
		now:       cfg.Now,
		metrics:   metrics,
	}
	if g.limit <= 0 {
		g.limit = 5
	}
	if g.window <= 0 {
		g.window = 7 * 24 * time.Hour
	}
	if g.now == nil {
		g.now = time.Now
	}
	for _, p := range cfg.UnlimitedPlans {
		g.unlimited[domain.ParsePlan(p)] = struct{}{}
	}
	return g
}

func (g *weeklyQuotaGate) CheckCreationAllowed(ctx context.Context, userID string) error {
	plan, err := g.plans.GetPlan(ctx, userID)
	if err != nil {
		// 查不到方案時以免費方案計算
		logger.Log.Warn("plan lookup failed, applying free quota", zap.String("user_id", userID), zap.Error(err))
		plan = domain.PlanFree
	}
	if _, ok := g.unlimited[plan]; ok {
		return nil
	}

	count, err := g.counter.CountConversationsCreatedSince(ctx, userID, g.now().Add(-g.window))
	if err != nil {
		return errprocess.Wrap(errprocess.Internal, "quota check failed", err)
	}
	if count >= g.limit {
		g.metrics.quotaDenied()
		return errprocess.NewTooManyRequests(fmt.Sprintf(
			"%s plan allows %d conversations per %s; upgrade to create more",
			strings.ToLower(string(plan)), g.limit, formatWindow(g.window)))
	}
	return nil
}

func formatWindow(d time.Duration) string {
	if d%(24*time.Hour) == 0 {
		days := int(d / (24 * time.Hour))
		if days == 1 {
			return "day"
		}
		return fmt.Sprintf("%d days", days)
	}
	return d.String()
}
