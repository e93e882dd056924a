package hoststat

import (
	"context"
	"fmt"
	"time"

	"github.com/germanramos/hydra-app-manager/pkg/model"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// DefaultSampleWindow CPU使用率的采样窗口
const DefaultSampleWindow = 200 * time.Millisecond

// Load 本机负载，百分比
type Load struct {
	CPUPercent float64
	MemPercent float64
}

// Collector 采集本机CPU和内存使用率
type Collector struct {
	window time.Duration
	now    func() time.Time
}

// NewCollector 创建采集器，window<=0时使用默认采样窗口
func NewCollector(window time.Duration) *Collector {
	if window <= 0 {
		window = DefaultSampleWindow
	}
	return &Collector{window: window, now: time.Now}
}

// Collect 采集一次本机负载
func (c *Collector) Collect(ctx context.Context) (Load, error) {
	usage, err := cpu.PercentWithContext(ctx, c.window, false)
	if err != nil {
		return Load{}, fmt.Errorf("获取CPU使用率失败: %w", err)
	}
	if len(usage) == 0 {
		return Load{}, fmt.Errorf("获取CPU使用率失败: 没有数据")
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Load{}, fmt.Errorf("获取内存使用率失败: %w", err)
	}

	return Load{
		CPUPercent: usage[0],
		MemPercent: vm.UsedPercent,
	}, nil
}

// Status 以被监控服务器的状态格式返回本机负载，采集失败时返回UNAVAILABLE
func (c *Collector) Status(ctx context.Context) (model.ServerStatus, error) {
	load, err := c.Collect(ctx)
	if err != nil {
		return model.UnavailableStatus(c.now()), err
	}

	return model.ServerStatus{
		CPULoad:   load.CPUPercent,
		MemLoad:   load.MemPercent,
		State:     model.StateReady,
		Timestamp: c.now().UnixMilli(),
	}, nil
}
