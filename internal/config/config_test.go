package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("加载默认配置成功", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, int64(200), cfg.Search.MailboxInclusionThreshold)
		assert.Equal(t, 1000, cfg.Migration.BatchSize)
		assert.Equal(t, 4, cfg.Migration.Workers)
		assert.Equal(t, int64(10000), cfg.Migration.ProgressThreshold)
		assert.Equal(t, 10, cfg.Migration.ProgressEvery)
		assert.Equal(t, 5*time.Minute, cfg.Redis.UserTTL)
		assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
		assert.Empty(t, cfg.Database.Type)
	})

	t.Run("从环境变量覆盖配置", func(t *testing.T) {
		t.Setenv("MAILSEARCH_SERVER_PORT", "9090")
		t.Setenv("MAILSEARCH_SEARCH_MAILBOX_INCLUSION_THRESHOLD", "50")
		t.Setenv("MAILSEARCH_MIGRATION_BATCH_SIZE", "250")
		t.Setenv("MAILSEARCH_CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
		t.Setenv("MAILSEARCH_DATABASE_TYPE", "Postgres")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, int64(50), cfg.Search.MailboxInclusionThreshold)
		assert.Equal(t, 250, cfg.Migration.BatchSize)
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, "postgres", cfg.Database.Type)
	})

	t.Run("测试环境中迁移总是禁用", func(t *testing.T) {
		t.Setenv("MAILSEARCH_MIGRATION_ENABLED", "true")

		cfg, err := Load()
		require.NoError(t, err)
		assert.False(t, cfg.Migration.Enabled)

		t.Setenv("MAILSEARCH_ENV", "test")
		cfg, err = Load()
		require.NoError(t, err)
		assert.False(t, cfg.Migration.Enabled)
	})

	t.Run("非法配置", func(t *testing.T) {
		tests := []struct {
			name  string
			key   string
			value string
		}{
			{"阈值为零", "MAILSEARCH_SEARCH_MAILBOX_INCLUSION_THRESHOLD", "0"},
			{"批大小为负", "MAILSEARCH_MIGRATION_BATCH_SIZE", "-1"},
			{"不支持的数据库", "MAILSEARCH_DATABASE_TYPE", "mysql"},
			{"非法时长", "MAILSEARCH_REDIS_USER_TTL", "soon"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Setenv(tt.key, tt.value)
				_, err := Load()
				assert.Error(t, err)
			})
		}
	})
}

func TestIsTestEnv(t *testing.T) {
	assert.True(t, isTestEnv("test"))
	// go test 进程本身也视为测试环境
	assert.True(t, isTestEnv("production"))
}
