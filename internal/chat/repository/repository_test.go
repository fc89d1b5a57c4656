package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketplace_chat_service/internal/chat/domain"
	"marketplace_chat_service/pkg/database"
	"marketplace_chat_service/pkg/logger"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.SetNewNop()
}

type mockPlanCache struct {
	mock.Mock
}

func (m *mockPlanCache) Set(ctx context.Context, key string, value domain.PlanStatus, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *mockPlanCache) Get(ctx context.Context, key string) (domain.PlanStatus, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(domain.PlanStatus), args.Error(1)
}

func (m *mockPlanCache) Del(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockPlanCache) GetTTL(ctx context.Context, key string) (int, error) {
	args := m.Called(ctx, key)
	return args.Int(0), args.Error(1)
}

func (m *mockPlanCache) ExtendTTL(ctx context.Context, key string, ttl time.Duration) error {
	return m.Called(ctx, key, ttl).Error(0)
}

var _ database.RedisRepository[domain.PlanStatus] = (*mockPlanCache)(nil)

type countingPlans struct {
	PlanRepository
	calls int
}

func (c *countingPlans) GetPlan(ctx context.Context, userID string) (domain.Plan, error) {
	c.calls++
	return c.PlanRepository.GetPlan(ctx, userID)
}

func TestCachedPlanRepository_HitSkipsSource(t *testing.T) {
	ctx := context.Background()
	cache := new(mockPlanCache)
	source := &countingPlans{PlanRepository: NewStaticPlanRepository(nil)}
	cache.On("Get", ctx, "u1").Return(domain.PlanStatus{UserID: "u1", Plan: "pro"}, nil)

	repo := NewCachedPlanRepository(source, cache, time.Minute)
	plan, err := repo.GetPlan(ctx, "u1")

	require.NoError(t, err)
	assert.Equal(t, domain.PlanPro, plan)
	assert.Zero(t, source.calls)
}

func TestCachedPlanRepository_MissFillsCache(t *testing.T) {
	ctx := context.Background()
	cache := new(mockPlanCache)
	source := &countingPlans{PlanRepository: NewStaticPlanRepository(map[string]domain.Plan{"u2": domain.PlanUlt})}
	cache.On("Get", ctx, "u2").Return(domain.PlanStatus{}, database.ErrCacheMiss)
	cache.On("Set", ctx, "u2", domain.PlanStatus{UserID: "u2", Plan: domain.PlanUlt}, time.Minute).Return(nil)

	repo := NewCachedPlanRepository(source, cache, time.Minute)
	plan, err := repo.GetPlan(ctx, "u2")

	require.NoError(t, err)
	assert.Equal(t, domain.PlanUlt, plan)
	assert.Equal(t, 1, source.calls)
	cache.AssertExpectations(t)
}

func TestCachedPlanRepository_CacheDownFallsThrough(t *testing.T) {
	ctx := context.Background()
	cache := new(mockPlanCache)
	cache.On("Get", ctx, "u3").Return(domain.PlanStatus{}, errors.New("connection refused"))
	cache.On("Set", ctx, "u3", mock.Anything, time.Minute).Return(errors.New("connection refused"))

	repo := NewCachedPlanRepository(NewStaticPlanRepository(nil), cache, time.Minute)
	plan, err := repo.GetPlan(ctx, "u3")

	require.NoError(t, err)
	assert.Equal(t, domain.PlanFree, plan)
}

func TestMemoryReportRepository_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryReportRepository()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, repo.Create(ctx, &domain.Report{ID: id, CreatedAt: base.Add(time.Duration(i) * time.Hour)}))
	}
	assert.Error(t, repo.Create(ctx, &domain.Report{ID: "r1"}))

	all, err := repo.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "r3", all[0].ID)

	page, _ := repo.List(ctx, 1, 1)
	require.Len(t, page, 1)
	assert.Equal(t, "r2", page[0].ID)

	_, err = repo.FindByID(ctx, "nope")
	assert.ErrorIs(t, err, ErrReportNotFound)
}

func TestMemoryDocumentStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDocumentStore()

	require.NoError(t, store.Put(ctx, "reports/r1.html", []byte("<html>")))
	data, err := store.Get(ctx, "reports/r1.html")
	require.NoError(t, err)
	assert.Equal(t, "<html>", string(data))

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

type recordingWriter struct {
	msgs []kafka.Message
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestKafkaReportPublisher_KeysByConversation(t *testing.T) {
	w := &recordingWriter{}
	pub := NewKafkaReportPublisher(w)

	err := pub.PublishReport(context.Background(), domain.ReportEvent{
		Type:           domain.ReportSubmitted,
		ReportID:       "r1",
		ConversationID: "c1",
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "c1", string(w.msgs[0].Key))
	assert.Contains(t, string(w.msgs[0].Value), `"report_id":"r1"`)
}

func TestMemoryCleanupQueue_RequeueOnNack(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewMemoryCleanupQueue(4)
	require.NoError(t, q.Enqueue(ctx, domain.CleanupJob{ConversationID: "c1"}))

	deliveries, err := q.Consume(ctx)
	require.NoError(t, err)

	d := <-deliveries
	assert.Equal(t, "c1", d.Job.ConversationID)
	require.NoError(t, d.Nack(true))

	select {
	case again := <-deliveries:
		assert.Equal(t, "c1", again.Job.ConversationID)
		require.NoError(t, again.Ack())
	case <-time.After(time.Second):
		t.Fatal("requeued job was not redelivered")
	}
}
