package reporter

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/germanramos/hydra-app-manager/internal/config"
	"github.com/germanramos/hydra-app-manager/internal/publisher"
	"github.com/germanramos/hydra-app-manager/internal/source"
	"github.com/germanramos/hydra-app-manager/internal/workerpool"
	"github.com/germanramos/hydra-app-manager/pkg/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IterationResult 一次迭代的结果
type IterationResult struct {
	ID        string             `json:"id"`
	StartedAt time.Time          `json:"started_at"`
	Duration  time.Duration      `json:"duration"`
	Interval  time.Duration      `json:"interval"`
	Report    *model.Report      `json:"report"`
	Publish   []publisher.Result `json:"publish"`
}

// Reporter 周期性地轮询服务器并向hydra发布报告
type Reporter struct {
	source    source.Source
	builder   *Builder
	publisher *publisher.Publisher
	pool      *workerpool.Pool
	logger    config.Logger
	interval  time.Duration

	last atomic.Pointer[IterationResult]
}

// New 创建Reporter
// interval在快照没有提供间隔（例如获取快照失败）时使用
func New(src source.Source, builder *Builder, pub *publisher.Publisher, pool *workerpool.Pool, interval time.Duration, logger config.Logger) *Reporter {
	return &Reporter{
		source:    src,
		builder:   builder,
		publisher: pub,
		pool:      pool,
		logger:    logger,
		interval:  interval,
	}
}

// Run 立即执行第一次迭代，之后每次迭代结束后等待间隔再执行下一次，直到ctx被取消
// 迭代中的任何错误或panic都只记录日志，不会终止循环
func (r *Reporter) Run(ctx context.Context) error {
	r.logger.Info("报告循环启动", zap.Duration("interval", r.interval))

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("报告循环停止")
			return nil
		case <-timer.C:
		}

		interval := r.interval
		result, err := r.RunOnce(ctx)
		if err != nil {
			r.logger.Error("迭代失败，等待下一次迭代", zap.Error(err))
		} else if result.Interval > 0 {
			interval = result.Interval
		}

		timer.Reset(interval)
	}
}

// RunOnce 执行一次 轮询->组装->发布
func (r *Reporter) RunOnce(ctx context.Context) (result *IterationResult, err error) {
	id := uuid.NewString()
	logger := r.logger.With(zap.String("iteration", id))
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("迭代发生panic", zap.Any("panic", rec), zap.Stack("stack"))
			result, err = nil, fmt.Errorf("迭代 %s 发生panic: %v", id, rec)
		}
	}()

	logger.Debug("*** 开始迭代 ***")

	snapshot, err := r.source.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取配置快照失败: %w", err)
	}

	report := r.builder.Build(ctx, snapshot.Servers, snapshot.LocalStrategy, snapshot.CloudStrategy)

	results, err := r.publisher.Publish(ctx, r.pool, report, snapshot.Hydras, snapshot.AppID)
	if err != nil {
		return nil, fmt.Errorf("发布报告失败: %w", err)
	}

	result = &IterationResult{
		ID:        id,
		StartedAt: start,
		Duration:  time.Since(start),
		Interval:  snapshot.Interval,
		Report:    report,
		Publish:   results,
	}
	r.last.Store(result)

	failed := 0
	for _, res := range results {
		if !res.OK() {
			failed++
		}
	}
	logger.Info("迭代完成",
		zap.Int("servers", len(report.Servers)),
		zap.Int("hydras", len(results)),
		zap.Int("failed_hydras", failed),
		zap.Duration("duration", result.Duration))

	return result, nil
}

// Last 返回最近一次成功完成的迭代，尚未完成任何迭代时返回nil
func (r *Reporter) Last() *IterationResult {
	return r.last.Load()
}
