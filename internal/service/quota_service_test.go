package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/weblan/neural_go_server/config"
	"github.com/weblan/neural_go_server/internal/repository"
	"github.com/weblan/neural_go_server/internal/testutil"
)

func testConfig() *config.Config {
	return &config.Config{
		Analysis: config.AnalysisConfig{
			MaxCodeLength:     40000,
			DefaultDailyLimit: 5,
		},
		Quota: config.QuotaConfig{
			Roles: map[string]int{
				"free":      5,
				"pro":       100,
				"unlimited": 0,
			},
		},
		Gemini: config.GeminiConfig{
			Model: "gemini-2.5-flash",
		},
	}
}

func newTestQuotaService(db *gorm.DB) *QuotaService {
	return NewQuotaService(repository.NewUserRepository(db), testConfig(), zap.NewNop())
}

func TestQuotaService_DailyLimit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	svc := newTestQuotaService(db)

	assert.Equal(t, 5, svc.DailyLimit("free"))
	assert.Equal(t, 100, svc.DailyLimit("pro"))
	assert.Equal(t, 0, svc.DailyLimit("unlimited"))
	// 未配置的角色回退到默认值
	assert.Equal(t, 5, svc.DailyLimit("something-else"))
}

func TestQuotaService_CheckQuota(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	svc := newTestQuotaService(db)
	now := time.Now()
	yesterday := now.AddDate(0, 0, -1)

	t.Run("under limit", func(t *testing.T) {
		user := testutil.TestUser(t, db, testutil.WithCounters(3, 10, &now))

		ok, err := svc.CheckQuota(user.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("at limit", func(t *testing.T) {
		user := testutil.TestUser(t, db, testutil.WithCounters(5, 20, &now))

		ok, err := svc.CheckQuota(user.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("stale counter from yesterday does not block", func(t *testing.T) {
		user := testutil.TestUser(t, db, testutil.WithCounters(5, 20, &yesterday))

		ok, err := svc.CheckQuota(user.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("unlimited role always passes", func(t *testing.T) {
		user := testutil.TestUser(t, db,
			testutil.WithRole("unlimited"),
			testutil.WithCounters(9999, 9999, &now))

		ok, err := svc.CheckQuota(user.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.CheckQuota(99999)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})
}

func TestQuotaService_RecordUsage_SameDay(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	svc := newTestQuotaService(db)
	now := time.Now()
	user := testutil.TestUser(t, db, testutil.WithCounters(2, 10, &now))

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.RecordUsage(tx, user.ID)
	})
	require.NoError(t, err)

	updated, err := repository.NewUserRepository(db).GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, updated.AnalysesToday)
	assert.Equal(t, 11, updated.TotalAnalyses)
	require.NotNil(t, updated.LastAnalysisDate)
}

func TestQuotaService_RecordUsage_Rollover(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	svc := newTestQuotaService(db)
	yesterday := time.Now().AddDate(0, 0, -1)
	user := testutil.TestUser(t, db, testutil.WithCounters(5, 42, &yesterday))

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.RecordUsage(tx, user.ID)
	})
	require.NoError(t, err)

	updated, err := repository.NewUserRepository(db).GetByID(user.ID)
	require.NoError(t, err)
	// 跨天：今日计数归零后自增，总计数继续累加
	assert.Equal(t, 1, updated.AnalysesToday)
	assert.Equal(t, 43, updated.TotalAnalyses)
	require.NotNil(t, updated.LastAnalysisDate)
	assert.WithinDuration(t, time.Now(), *updated.LastAnalysisDate, 5*time.Second)
}

func TestQuotaService_RecordUsage_FirstAnalysis(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	svc := newTestQuotaService(db)
	user := testutil.TestUser(t, db)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.RecordUsage(tx, user.ID)
	})
	require.NoError(t, err)

	updated, err := repository.NewUserRepository(db).GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.AnalysesToday)
	assert.Equal(t, 1, updated.TotalAnalyses)
	require.NotNil(t, updated.LastAnalysisDate)
}

func TestQuotaService_RecordUsage_MissingUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	svc := newTestQuotaService(db)

	// 用户不存在只告警不报错，不影响外层事务
	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.RecordUsage(tx, 99999)
	})
	assert.NoError(t, err)
}

func TestQuotaService_GetQuotaInfo(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	svc := newTestQuotaService(db)
	now := time.Now()

	t.Run("active counters", func(t *testing.T) {
		user := testutil.TestUser(t, db, testutil.WithCounters(3, 10, &now))

		info, err := svc.GetQuotaInfo(user.ID)
		require.NoError(t, err)
		assert.Equal(t, "free", info.Role)
		assert.Equal(t, 5, info.DailyLimit)
		assert.Equal(t, 3, info.DailyUsed)
		assert.Equal(t, 2, info.DailyRemain)
	})

	t.Run("stale counters read as zero", func(t *testing.T) {
		yesterday := now.AddDate(0, 0, -1)
		user := testutil.TestUser(t, db, testutil.WithCounters(5, 10, &yesterday))

		info, err := svc.GetQuotaInfo(user.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, info.DailyUsed)
		assert.Equal(t, 5, info.DailyRemain)
	})
}
