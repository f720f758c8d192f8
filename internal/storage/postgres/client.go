package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"mailsearch/backend/internal/config"
)

// Client 封装 PostgreSQL 连接池，用于就绪检查
type Client struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// New 创建新的 PostgreSQL 客户端并测试连接
func New(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*Client, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}
	// 只用于健康检查，保持较小的连接数
	poolConfig.MaxConns = 2
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("已连接 PostgreSQL", zap.String("host", poolConfig.ConnConfig.Host))
	return &Client{pool: pool, logger: logger}, nil
}

// Ping 测试数据库连接
func (c *Client) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

// Close 关闭连接池
func (c *Client) Close() {
	c.pool.Close()
	c.logger.Info("PostgreSQL 连接池已关闭")
}
