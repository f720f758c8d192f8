// Package migration 为历史邮件补齐反规范化搜索字段。
package migration

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mailsearch/backend/internal/domain"
	"mailsearch/backend/internal/envelope"
	"mailsearch/backend/internal/filter"
	"mailsearch/backend/internal/monitoring"
	"mailsearch/backend/internal/storage"
)

const (
	DefaultBatchSize         = 1000
	DefaultWorkers           = 4
	DefaultProgressThreshold = 10000
	DefaultProgressEvery     = 10
)

// State 迁移状态
type State string

const (
	StateScanning   State = "scanning"
	StateProcessing State = "processing"
	StateDone       State = "done"
)

// Store 迁移所需的存储能力
type Store interface {
	FindMessages(ctx context.Context, pred filter.Predicate, opts storage.FindOptions) ([]domain.Message, error)
	CountMessages(ctx context.Context, pred filter.Predicate) (int64, error)
	storage.SearchIndexRepository
}

// Config 迁移配置
type Config struct {
	Enabled bool
	// BatchSize 每批读取的记录数
	BatchSize int
	// Workers 单批内并行提取的协程数
	Workers int
	// ProgressThreshold 待处理总数低于该值时每批都输出进度，否则每 ProgressEvery 批输出一次
	ProgressThreshold int64
	ProgressEvery     int
}

// Cursor 进度游标，只保存在内存中
type Cursor struct {
	LastID      int64 // 已处理的最大 ID（不含）
	SnapshotMax int64 // 迁移开始时的最大 ID
	Processed   int64
	Modified    int64
	Batches     int
}

// Result 一次运行的结果
type Result struct {
	State   State
	Skipped bool // 迁移被禁用
	Total   int64
	Cursor  Cursor
}

// Runner 搜索字段迁移执行器
type Runner struct {
	store   Store
	cfg     Config
	logger  *zap.Logger
	metrics *monitoring.Metrics
	state   State
}

// NewRunner 创建迁移执行器
func NewRunner(store Store, cfg Config, logger *zap.Logger, metrics *monitoring.Metrics) *Runner {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.ProgressThreshold <= 0 {
		cfg.ProgressThreshold = DefaultProgressThreshold
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = DefaultProgressEvery
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		store:   store,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		state:   StateScanning,
	}
}

// State 返回当前状态
func (r *Runner) State() State {
	return r.state
}

// Run 执行一次迁移
//
// 只处理迁移开始时已存在且没有搜索字段的记录，重复执行最终不再修改任何记录。
// 存储错误会中止运行，已写入的批次保留。
//
// 参数:
//   - ctx: 上下文
//
// 返回值:
//   - Result: 运行结果
//   - error: 存储错误
func (r *Runner) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	result, err := r.run(ctx)

	outcome := "done"
	switch {
	case err != nil:
		outcome = "failed"
	case result.Skipped:
		outcome = "skipped"
	}
	r.metrics.RecordMigrationRun(outcome, time.Since(start))

	return result, err
}

func (r *Runner) run(ctx context.Context) (Result, error) {
	r.state = StateScanning

	if !r.cfg.Enabled {
		r.logger.Info("搜索字段迁移已禁用")
		r.state = StateDone
		return Result{State: StateDone, Skipped: true}, nil
	}

	snapshotMax, ok, err := r.store.MaxMessageID(ctx)
	if err != nil {
		return Result{State: r.state}, fmt.Errorf("read max message id: %w", err)
	}
	if !ok {
		r.logger.Info("没有需要迁移的邮件")
		r.state = StateDone
		return Result{State: StateDone}, nil
	}

	cursor := Cursor{SnapshotMax: snapshotMax}

	total, err := r.store.CountMessages(ctx, eligible(cursor))
	if err != nil {
		return Result{State: r.state, Cursor: cursor}, fmt.Errorf("count eligible messages: %w", err)
	}
	if total == 0 {
		r.logger.Info("所有邮件均已有搜索字段", zap.Int64("snapshotMax", snapshotMax))
		r.state = StateDone
		return Result{State: StateDone, Cursor: cursor}, nil
	}

	r.logger.Info("开始搜索字段迁移",
		zap.Int64("total", total),
		zap.Int64("snapshotMax", snapshotMax),
		zap.Int("batchSize", r.cfg.BatchSize),
	)
	r.state = StateProcessing

	for {
		batch, err := r.store.FindMessages(ctx, eligible(cursor), storage.FindOptions{
			Sort:  storage.SortIDAsc,
			Limit: r.cfg.BatchSize,
		})
		if err != nil {
			return Result{State: r.state, Total: total, Cursor: cursor}, fmt.Errorf("fetch batch after id %d: %w", cursor.LastID, err)
		}
		if len(batch) == 0 {
			break
		}

		updates, err := r.extract(ctx, batch)
		if err != nil {
			return Result{State: r.state, Total: total, Cursor: cursor}, err
		}

		modified, err := r.store.UpdateSearchIndexes(ctx, updates)
		cursor.Modified += modified
		if err != nil {
			return Result{State: r.state, Total: total, Cursor: cursor}, fmt.Errorf("write batch after id %d: %w", cursor.LastID, err)
		}

		cursor.LastID = batch[len(batch)-1].ID
		cursor.Processed += int64(len(batch))
		cursor.Batches++
		r.metrics.RecordMigrationBatch(int64(len(batch)), modified)

		if total < r.cfg.ProgressThreshold || cursor.Batches%r.cfg.ProgressEvery == 0 {
			r.logger.Info("搜索字段迁移进度",
				zap.Int64("processed", cursor.Processed),
				zap.Int64("modified", cursor.Modified),
				zap.Int64("total", total),
				zap.Int64("lastID", cursor.LastID),
				zap.Int("batches", cursor.Batches),
			)
		}
	}

	r.state = StateDone
	r.logger.Info("搜索字段迁移完成",
		zap.Int64("processed", cursor.Processed),
		zap.Int64("modified", cursor.Modified),
		zap.Int("batches", cursor.Batches),
	)
	return Result{State: StateDone, Total: total, Cursor: cursor}, nil
}

// extract 并行计算一批记录的搜索字段，结果顺序与输入一致
func (r *Runner) extract(ctx context.Context, batch []domain.Message) ([]domain.SearchIndexUpdate, error) {
	updates := make([]domain.SearchIndexUpdate, len(batch))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i := range batch {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			msg := &batch[i]
			updates[i] = domain.SearchIndexUpdate{
				MessageID: msg.ID,
				Search:    *envelope.ExtractSearchIndex(&msg.Envelope, msg.Subject),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return updates, nil
}

// eligible 没有搜索字段且 ID 位于 (LastID, SnapshotMax] 的记录
func eligible(c Cursor) filter.Predicate {
	return filter.And{Clauses: []filter.Predicate{
		filter.Exists{Field: domain.FieldSearch, Present: false},
		filter.Range{
			Field:        domain.FieldID,
			Min:          c.LastID,
			MinExclusive: true,
			Max:          c.SnapshotMax,
		},
	}}
}
