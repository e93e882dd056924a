package reporter

import (
	"context"
	"time"

	"github.com/germanramos/hydra-app-manager/internal/poller"
	"github.com/germanramos/hydra-app-manager/internal/workerpool"
	"github.com/germanramos/hydra-app-manager/pkg/model"
)

// Builder 轮询服务器并组装报告
type Builder struct {
	poller *poller.Poller
	pool   *workerpool.Pool
	now    func() time.Time
}

// NewBuilder 创建报告构建器
func NewBuilder(p *poller.Poller, pool *workerpool.Pool) *Builder {
	return &Builder{
		poller: p,
		pool:   pool,
		now:    time.Now,
	}
}

// Build 轮询所有服务器并生成报告
// 每个服务器都会出现在报告中，轮询失败的服务器状态为UNAVAILABLE；
// 策略事件使用组装报告时的时间戳，与各服务器的观测时间相互独立
func (b *Builder) Build(ctx context.Context, servers []model.ServerConfig, localStrategy, cloudStrategy string) *model.Report {
	statuses := b.poller.PollAll(ctx, b.pool, servers)

	report := model.NewReport(b.now(), localStrategy, cloudStrategy)
	for i, server := range servers {
		report.Servers[server.Key()] = model.NewServerEntry(server, statuses[i])
	}

	return report
}
