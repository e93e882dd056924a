package workerpool

import (
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/germanramos/hydra-app-manager/internal/config"
)

// Pool 固定大小的协程池，用于并发轮询服务器和并发发布报告
type Pool struct {
	pool   *ants.Pool
	logger config.Logger
}

// New 创建协程池
func New(size int, logger config.Logger) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("协程池大小必须大于0: %d", size)
	}

	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("创建协程池失败: %w", err)
	}

	return &Pool{pool: pool, logger: logger}, nil
}

// Run 并发执行fn(0..n-1)，全部完成后返回
// 任务提交失败（例如协程池已释放）时在当前协程中执行，保证每个任务都会被执行。
// 任务中的panic在任务内恢复并记录日志，不会交给ants的默认处理器；
// 需要为异常任务填充结果的调用方应在fn内自行recover。
func (p *Pool) Run(n int, fn func(i int)) {
	var wg sync.WaitGroup
	wg.Add(n)

	for i := 0; i < n; i++ {
		i := i
		task := func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error("协程池任务异常",
						zap.Int("task", i),
						zap.Any("panic", r),
						zap.Stack("stack"))
				}
			}()
			fn(i)
		}
		if err := p.pool.Submit(task); err != nil {
			task()
		}
	}

	wg.Wait()
}

// Cap 返回协程池容量
func (p *Pool) Cap() int {
	return p.pool.Cap()
}

// Release 释放协程池
func (p *Pool) Release() {
	p.pool.Release()
}
