package source

import (
	"context"
	"sync"
	"time"

	"github.com/germanramos/hydra-app-manager/internal/config"
	"github.com/germanramos/hydra-app-manager/pkg/model"
)

// Snapshot 一次迭代使用的输入，迭代期间只读
type Snapshot struct {
	Servers       []model.ServerConfig
	Hydras        []string
	AppID         string
	LocalStrategy string
	CloudStrategy string
	Interval      time.Duration
}

// Source 提供每次迭代开始时的配置快照
type Source interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// FromConfig 由配置构造快照
func FromConfig(cfg *config.Config) Snapshot {
	return Snapshot{
		Servers:       cfg.ServerConfigs(),
		Hydras:        append([]string(nil), cfg.Hydras...),
		AppID:         cfg.Main.AppID,
		LocalStrategy: cfg.Main.LocalStrategy,
		CloudStrategy: cfg.Main.CloudStrategy,
		Interval:      cfg.SleepInterval(),
	}
}

// clone 深拷贝快照，调用方可以随意修改返回值
func (s Snapshot) clone() Snapshot {
	s.Servers = append([]model.ServerConfig(nil), s.Servers...)
	s.Hydras = append([]string(nil), s.Hydras...)
	return s
}

// StaticSource 基于配置文件的快照来源，配置热加载时通过Update替换
type StaticSource struct {
	mu       sync.RWMutex
	snapshot Snapshot
	cost     int
	cloud    string
}

// NewStaticSource 创建静态来源
func NewStaticSource(cfg *config.Config) *StaticSource {
	s := &StaticSource{}
	s.Update(cfg)
	return s
}

// Update 用新配置替换快照，不影响已经取出的快照
func (s *StaticSource) Update(cfg *config.Config) {
	snapshot := FromConfig(cfg)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snapshot
	s.cost = cfg.Main.Cost
	s.cloud = cfg.Main.Cloud
}

// Snapshot 返回当前配置的副本
func (s *StaticSource) Snapshot(ctx context.Context) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.clone(), nil
}

// defaults 返回服务器默认的成本和云标签
func (s *StaticSource) defaults() (int, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cost, s.cloud
}
