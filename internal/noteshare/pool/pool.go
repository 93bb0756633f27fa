package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	logx "github.com/blueplan/noteshare-go/internal/noteshare/log"
	"github.com/redis/go-redis/v9"
)

// Options 连接池参数
type Options struct {
	URL         string
	PoolSize    int
	DialTimeout time.Duration
}

// PoolManager 管理笔记存储使用的 Redis 连接池
type PoolManager struct {
	client *redis.Client
	logger *logx.Logger
	mu     sync.Mutex
	closed bool
	stats  PoolStats
}

// PoolStats 连接池统计信息
type PoolStats struct {
	HealthChecks   atomic.Int64
	HealthFailures atomic.Int64
	LastReset      time.Time
}

// NewPoolManager 解析 URL 并建立连接池，连接测试失败时返回错误
func NewPoolManager(ctx context.Context, opts Options, logger *logx.Logger) (*PoolManager, error) {
	if logger == nil {
		logger = logx.NewNop()
	}
	client, err := createRedisPool(ctx, opts)
	if err != nil {
		return nil, err
	}
	pm := &PoolManager{client: client, logger: logger}
	pm.stats.LastReset = time.Now()

	logger.Info(ctx, "redis pool ready",
		logx.KV("addr", client.Options().Addr),
		logx.KV("db", client.Options().DB),
		logx.KV("pool_size", client.Options().PoolSize))
	return pm, nil
}

// createRedisPool 创建Redis连接池
func createRedisPool(ctx context.Context, opts Options) (*redis.Client, error) {
	opt, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	if opts.PoolSize > 0 {
		opt.PoolSize = opts.PoolSize
	}
	opt.MinIdleConns = 1
	opt.MaxRetries = 3
	opt.DialTimeout = 5 * time.Second
	if opts.DialTimeout > 0 {
		opt.DialTimeout = opts.DialTimeout
	}
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second
	opt.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, opt.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// Client returns the shared client. It stays owned by the manager.
func (pm *PoolManager) Client() *redis.Client {
	return pm.client
}

// HealthCheck 健康检查，供 /api/health/ready 使用
func (pm *PoolManager) HealthCheck(ctx context.Context) map[string]interface{} {
	pm.stats.HealthChecks.Add(1)
	health := map[string]interface{}{"status": "healthy"}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pm.client.Ping(pingCtx).Err(); err != nil {
		pm.stats.HealthFailures.Add(1)
		health["status"] = "unhealthy"
		health["error"] = err.Error()
		health["checks"] = pm.GetConnectionStats()
		return health
	}

	ps := pm.client.PoolStats()
	health["stats"] = map[string]interface{}{
		"total_conns": ps.TotalConns,
		"idle_conns":  ps.IdleConns,
		"stale_conns": ps.StaleConns,
		"hits":        ps.Hits,
		"misses":      ps.Misses,
		"timeouts":    ps.Timeouts,
	}
	health["checks"] = pm.GetConnectionStats()
	return health
}

// GetConnectionStats 获取连接统计信息
func (pm *PoolManager) GetConnectionStats() map[string]interface{} {
	return map[string]interface{}{
		"health_checks":   pm.stats.HealthChecks.Load(),
		"health_failures": pm.stats.HealthFailures.Load(),
		"last_reset":      pm.stats.LastReset,
	}
}

// Close 关闭连接池，重复调用无副作用
func (pm *PoolManager) Close() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.closed {
		return nil
	}
	pm.closed = true
	if err := pm.client.Close(); err != nil {
		pm.logger.Error(context.Background(), "close redis pool", logx.KV("error", err))
		return err
	}
	pm.logger.Info(context.Background(), "redis pool closed")
	return nil
}
