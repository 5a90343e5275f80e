package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/kendall-kelly/triloka-construction-api/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*DashboardCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewDashboardCache(client, time.Minute), mr
}

func TestDashboardCache_KeysCarryVersion(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	ver, err := cache.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), ver)

	key, err := cache.BuildKey(ctx, "admin", "7")
	require.NoError(t, err)
	assert.Equal(t, "dashboard:admin:7:1", key)

	require.NoError(t, cache.Bump(ctx))
	key, err = cache.BuildKey(ctx, "admin", "7")
	require.NoError(t, err)
	assert.Equal(t, "dashboard:admin:7:2", key)

	stored, err := mr.Get(dashboardVersionKey)
	require.NoError(t, err)
	assert.Equal(t, "2", stored)
}

func TestDashboardCache_FetchJSON(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) (interface{}, error) {
		calls++
		return map[string]int{"calls": calls}, nil
	}

	key, err := cache.BuildKey(ctx, "test")
	require.NoError(t, err)

	var first map[string]int
	require.NoError(t, cache.FetchJSON(ctx, key, &first, loader))
	var second map[string]int
	require.NoError(t, cache.FetchJSON(ctx, key, &second, loader))

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Minute, mr.TTL(key))

	require.NoError(t, cache.Bump(ctx))
	key, err = cache.BuildKey(ctx, "test")
	require.NoError(t, err)

	var third map[string]int
	require.NoError(t, cache.FetchJSON(ctx, key, &third, loader))
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, third["calls"])
}

func TestDashboardCache_NilClientAlwaysLoads(t *testing.T) {
	ctx := context.Background()
	for _, cache := range []*DashboardCache{nil, NewDashboardCache(nil, time.Minute)} {
		key, err := cache.BuildKey(ctx, "client", "3")
		require.NoError(t, err)
		assert.Equal(t, "dashboard:client:3", key)
		require.NoError(t, cache.Bump(ctx))

		calls := 0
		var out int
		for i := 0; i < 2; i++ {
			require.NoError(t, cache.FetchJSON(ctx, key, &out, func(context.Context) (interface{}, error) {
				calls++
				return calls, nil
			}))
		}
		assert.Equal(t, 2, calls)
		assert.Equal(t, 2, out)
	}
}

func TestDashboardSummary_CachedUntilBump(t *testing.T) {
	db := setupTestDB(t)
	admin := createUser(t, db, models.RoleAdmin, "admin@example.com")
	client := createUser(t, db, models.RoleClient, "client@example.com")
	cache, _ := newTestCache(t)
	svc := NewDashboardService(db, cache)
	ctx := context.Background()
	now := time.Now()

	manualInvoice(t, db, admin, client, now, now.Add(3*24*time.Hour))

	summary, err := svc.Summary(ctx, admin)
	require.NoError(t, err)
	adminSummary, ok := summary.(*AdminSummary)
	require.True(t, ok)
	assert.Equal(t, int64(1), adminSummary.Invoices.Total)
	assert.Equal(t, int64(1), adminSummary.Invoices.Unpaid)

	manualInvoice(t, db, admin, client, now, now.Add(3*24*time.Hour))

	summary, err = svc.Summary(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.(*AdminSummary).Invoices.Total, "served from cache")

	require.NoError(t, cache.Bump(ctx))
	summary, err = svc.Summary(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.(*AdminSummary).Invoices.Total)

	clientView, err := svc.Summary(ctx, client)
	require.NoError(t, err)
	clientSummary, ok := clientView.(*ClientSummary)
	require.True(t, ok)
	assert.Equal(t, int64(2), clientSummary.Invoices.Total)
	assertDecimal(t, "200000", clientSummary.Outstanding)
	assert.Len(t, clientSummary.UpcomingDue, 2)
}

func TestDashboardSummary_WorksWithoutCache(t *testing.T) {
	db := setupTestDB(t)
	admin := createUser(t, db, models.RoleAdmin, "admin@example.com")
	svc := NewDashboardService(db, nil)

	_, err := NewInventoryService(db).Create(actorOf(admin), itemInput("LOW-1", 1, 5))
	require.NoError(t, err)

	summary, err := svc.Summary(context.Background(), admin)
	require.NoError(t, err)
	stats := summary.(*AdminSummary)
	assert.Equal(t, int64(1), stats.Inventory.LowStock)
	require.Len(t, stats.LowStockItems, 1)
	assert.Equal(t, "LOW-1", stats.LowStockItems[0].ItemCode)
}
